package events

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

// Enricher fills in event rewards that the screen reader cannot see.
type Enricher struct {
	catalog Catalog
	logger  *log.Logger
}

// NewEnricher wraps a catalog. A nil logger discards output.
func NewEnricher(catalog Catalog, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Enricher{catalog: catalog, logger: logger.WithPrefix("events")}
}

// Enrich returns snap with catalog rewards attached to its event prompt.
// Lookup failures are logged and leave the snapshot as it was; the policy then
// falls back to the first option.
func (e *Enricher) Enrich(ctx context.Context, snap career.Snapshot) career.Snapshot {
	if e == nil || e.catalog == nil || snap.Screen != career.ScreenEvent || snap.Event == nil {
		return snap
	}
	if snap.Event.HasRewards() || snap.Event.Name == "" {
		return snap
	}

	found, err := e.catalog.Lookup(ctx, snap.Event.Name)
	if err != nil {
		e.logger.Warn("Event lookup failed", "event", snap.Event.Name, "error", err)
		return snap
	}

	onScreen := len(snap.Event.Options)
	if onScreen > 0 && onScreen != len(found.Options) {
		e.logger.Warn("Catalog option count differs from screen",
			"event", snap.Event.Name, "screen", onScreen, "catalog", len(found.Options))
		return snap
	}

	out := snap.Clone()
	out.Event.Options = append([]career.EventOption(nil), found.Options...)
	return out
}
