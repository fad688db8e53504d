// Package events scores training-event options and looks up their rewards in
// an online event catalog.
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public event search endpoint.
const DefaultBaseURL = "https://umasearch.notvoid.moe/api/event_by_name"

// ErrNotFound is returned when the catalog has no match for an event name.
var ErrNotFound = errors.New("event not found")

// Catalog resolves an event name to its options and rewards.
type Catalog interface {
	Lookup(ctx context.Context, name string) (career.EventPrompt, error)
}

// CatalogOptions configures an HTTPCatalog.
type CatalogOptions struct {
	BaseURL    string
	Timeout    time.Duration
	CacheSize  int
	GlobalOnly bool
	Kinds      []string
	MinScore   float64
	Client     *http.Client
	Logger     *log.Logger
}

// HTTPCatalog queries the event search API and caches results by name.
type HTTPCatalog struct {
	opts   CatalogOptions
	client *http.Client
	cache  *lru.Cache[string, career.EventPrompt]
	logger *log.Logger
}

// NewHTTPCatalog creates a catalog client. Zero options fall back to defaults.
func NewHTTPCatalog(opts CatalogOptions) (*HTTPCatalog, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 6 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cache, err := lru.New[string, career.EventPrompt](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create event cache: %w", err)
	}
	return &HTTPCatalog{
		opts:   opts,
		client: client,
		cache:  cache,
		logger: logger.WithPrefix("events"),
	}, nil
}

// Lookup fetches the options of the named event.
func (c *HTTPCatalog) Lookup(ctx context.Context, name string) (career.EventPrompt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return career.EventPrompt{}, ErrNotFound
	}
	if prompt, ok := c.cache.Get(name); ok {
		return prompt, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(name), nil)
	if err != nil {
		return career.EventPrompt{}, fmt.Errorf("build event request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return career.EventPrompt{}, fmt.Errorf("fetch event %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return career.EventPrompt{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return career.EventPrompt{}, fmt.Errorf("fetch event %q: unexpected status %s", name, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return career.EventPrompt{}, fmt.Errorf("read event %q: %w", name, err)
	}

	prompt, err := ParseMatch(body, name)
	if err != nil {
		return career.EventPrompt{}, err
	}
	c.cache.Add(name, prompt)
	c.logger.Debug("Event resolved", "event", prompt.Name, "options", len(prompt.Options))
	return prompt, nil
}

func (c *HTTPCatalog) requestURL(name string) string {
	params := url.Values{}
	params.Set("event_name", name)
	if c.opts.GlobalOnly {
		params.Set("global_only", "true")
	}
	if len(c.opts.Kinds) > 0 {
		params.Set("kinds", strings.Join(c.opts.Kinds, ","))
	}
	if c.opts.MinScore > 0 {
		params.Set("min_score", strconv.FormatFloat(c.opts.MinScore, 'f', -1, 64))
	}
	return c.opts.BaseURL + "?" + params.Encode()
}

// ParseMatch decodes an event search response. Options keep the order in
// which the catalog lists them; list-shaped options are labelled "Option N".
func ParseMatch(body []byte, fallbackName string) (career.EventPrompt, error) {
	if !gjson.ValidBytes(body) {
		return career.EventPrompt{}, fmt.Errorf("decode event %q: invalid json", fallbackName)
	}
	match := gjson.GetBytes(body, "match")
	if !match.IsObject() || !match.Get("data").Exists() {
		return career.EventPrompt{}, ErrNotFound
	}

	prompt := career.EventPrompt{Name: match.Get("event_name").String()}
	if prompt.Name == "" {
		prompt.Name = fallbackName
	}

	options := match.Get("data.options")
	switch {
	case options.IsObject():
		options.ForEach(func(label, rewards gjson.Result) bool {
			prompt.Options = append(prompt.Options, career.EventOption{
				Label:   label.String(),
				Rewards: NormalizeRewards(rewards),
			})
			return true
		})
	case options.IsArray():
		for i, rewards := range options.Array() {
			prompt.Options = append(prompt.Options, career.EventOption{
				Label:   fmt.Sprintf("Option %d", i+1),
				Rewards: NormalizeRewards(rewards),
			})
		}
	default:
		return career.EventPrompt{}, fmt.Errorf("decode event %q: unsupported options format", prompt.Name)
	}
	return prompt, nil
}
