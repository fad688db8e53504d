// Package config loads the bot configuration from an HCL file, back-fills
// defaults and applies UMABOT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/daftuyda/umamusume-auto-train/internal/events"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// Config represents the complete bot configuration
type Config struct {
	Goal    *GoalConfig    `hcl:"goal,block"`
	Policy  *PolicyConfig  `hcl:"policy,block"`
	Loop    *LoopConfig    `hcl:"loop,block"`
	Events  *EventsConfig  `hcl:"events,block"`
	Agent   *AgentConfig   `hcl:"agent,block"`
	Journal *JournalConfig `hcl:"journal,block"`
	Log     *LogConfig     `hcl:"log,block"`
}

// GoalConfig says when a run is done. Zero fans adopts the goal on screen.
type GoalConfig struct {
	Fans       int   `hcl:"fans,optional"`
	StopOnGoal *bool `hcl:"stop_on_goal,optional"`
}

// PolicyConfig holds the decision thresholds. Numeric thresholds are
// pointers so an explicit zero is kept rather than replaced by the default.
type PolicyConfig struct {
	MinimumMood    string             `hcl:"minimum_mood,optional"`
	RestThreshold  *int               `hcl:"rest_threshold,optional"`
	MaxFailure     *int               `hcl:"max_failure,optional"`
	StatPriority   []string           `hcl:"stat_priority,optional"`
	StatCaps       map[string]int     `hcl:"stat_caps,optional"`
	StatWeights    map[string]float64 `hcl:"stat_weights,optional"`
	RainbowBonus   *float64           `hcl:"rainbow_bonus,optional"`
	SupportBonus   *float64           `hcl:"support_bonus,optional"`
	CapDecay       *float64           `hcl:"cap_decay,optional"`
	Selection      string             `hcl:"selection,optional"`
	PrioritizeG1   *bool              `hcl:"prioritize_g1,optional"`
	RaceInJunior   *bool              `hcl:"race_in_junior,optional"`
	NoRaceMonths   []string           `hcl:"no_race_months,optional"`
	ObjectiveRaces *bool              `hcl:"objective_races,optional"`
	ObjectiveTurns *int               `hcl:"objective_turns,optional"`
	JuneBias       *bool              `hcl:"june_bias,optional"`
	JuneBiasEnergy *int               `hcl:"june_bias_energy,optional"`
	RaceForFans    *bool              `hcl:"race_for_fans,optional"`
	HandleDebuffs  *bool              `hcl:"handle_debuffs,optional"`
}

// LoopConfig bounds the loop's waits and retries. Durations are strings
// such as "750ms" or "10s".
type LoopConfig struct {
	ReadTimeout            string `hcl:"read_timeout,optional"`
	ReadAttempts           int    `hcl:"read_attempts,optional"`
	ReadBackoff            string `hcl:"read_backoff,optional"`
	MaxBackoff             string `hcl:"max_backoff,optional"`
	ActionTimeout          string `hcl:"action_timeout,optional"`
	ActionAttempts         int    `hcl:"action_attempts,optional"`
	SettleInterval         string `hcl:"settle_interval,optional"`
	SettleTimeout          string `hcl:"settle_timeout,optional"`
	SettleAttempts         int    `hcl:"settle_attempts,optional"`
	MaxConsecutiveFailures int    `hcl:"max_consecutive_failures,optional"`
	MaxIterations          int    `hcl:"max_iterations,optional"`
}

// EventsConfig controls event option scoring and the event catalog
type EventsConfig struct {
	Optimal        *bool    `hcl:"optimal,optional"`
	CatalogURL     string   `hcl:"catalog_url,optional"`
	CatalogTimeout string   `hcl:"catalog_timeout,optional"`
	CacheSize      int      `hcl:"cache_size,optional"`
	Offline        bool     `hcl:"offline,optional"`
	HardAvoid      []string `hcl:"hard_avoid,optional"`
}

// AgentConfig locates the capture agent
type AgentConfig struct {
	URL            string `hcl:"url,optional"`
	DialTimeout    string `hcl:"dial_timeout,optional"`
	RequestTimeout string `hcl:"request_timeout,optional"`
}

// JournalConfig controls the run journal
type JournalConfig struct {
	Enabled *bool  `hcl:"enabled,optional"`
	Path    string `hcl:"path,optional"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
	File  string `hcl:"file,optional"`
}

const (
	DefaultAgentURL    = "ws://127.0.0.1:8765/agent"
	DefaultJournalPath = "umabot.db"
	DefaultCatalogURL  = events.DefaultBaseURL
)

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Goal: &GoalConfig{
			Fans:       0,
			StopOnGoal: boolPtr(true),
		},
		Policy: &PolicyConfig{
			MinimumMood:    "NORMAL",
			RestThreshold:  intPtr(30),
			MaxFailure:     intPtr(15),
			StatPriority:   []string{"spd", "sta", "pwr", "guts", "wit"},
			StatCaps:       map[string]int{"spd": 1200, "sta": 1200, "pwr": 1200, "guts": 1200, "wit": 1200},
			StatWeights:    map[string]float64{"spd": 1, "sta": 1, "pwr": 1, "guts": 1, "wit": 1},
			RainbowBonus:   floatPtr(4),
			SupportBonus:   floatPtr(1),
			CapDecay:       floatPtr(0.10),
			Selection:      "value",
			PrioritizeG1:   boolPtr(true),
			RaceInJunior:   boolPtr(false),
			NoRaceMonths:   []string{"Jul", "Aug"},
			ObjectiveRaces: boolPtr(true),
			ObjectiveTurns: intPtr(10),
			JuneBias:       boolPtr(true),
			JuneBiasEnergy: intPtr(60),
			RaceForFans:    boolPtr(true),
			HandleDebuffs:  boolPtr(true),
		},
		Loop: &LoopConfig{
			ReadTimeout:            "10s",
			ReadAttempts:           3,
			ReadBackoff:            "500ms",
			MaxBackoff:             "5s",
			ActionTimeout:          "15s",
			ActionAttempts:         2,
			SettleInterval:         "750ms",
			SettleTimeout:          "10s",
			SettleAttempts:         8,
			MaxConsecutiveFailures: 5,
		},
		Events: &EventsConfig{
			Optimal:        boolPtr(true),
			CatalogURL:     DefaultCatalogURL,
			CatalogTimeout: "6s",
			CacheSize:      256,
		},
		Agent: &AgentConfig{
			URL:            DefaultAgentURL,
			DialTimeout:    "5s",
			RequestTimeout: "20s",
		},
		Journal: &JournalConfig{
			Enabled: boolPtr(true),
			Path:    DefaultJournalPath,
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(src, filename)
}

// ParseConfig decodes HCL source and back-fills missing values
func ParseConfig(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Goal == nil {
		c.Goal = d.Goal
	}
	if c.Goal.StopOnGoal == nil {
		c.Goal.StopOnGoal = d.Goal.StopOnGoal
	}

	if c.Policy == nil {
		c.Policy = d.Policy
	}
	p, dp := c.Policy, d.Policy
	if p.MinimumMood == "" {
		p.MinimumMood = dp.MinimumMood
	}
	if p.RestThreshold == nil {
		p.RestThreshold = dp.RestThreshold
	}
	if p.MaxFailure == nil {
		p.MaxFailure = dp.MaxFailure
	}
	if len(p.StatPriority) == 0 {
		p.StatPriority = dp.StatPriority
	}
	// Partial maps keep the defaults for stats they do not mention
	for k, v := range dp.StatCaps {
		if _, ok := p.StatCaps[k]; !ok {
			if p.StatCaps == nil {
				p.StatCaps = map[string]int{}
			}
			p.StatCaps[k] = v
		}
	}
	for k, v := range dp.StatWeights {
		if _, ok := p.StatWeights[k]; !ok {
			if p.StatWeights == nil {
				p.StatWeights = map[string]float64{}
			}
			p.StatWeights[k] = v
		}
	}
	if p.RainbowBonus == nil {
		p.RainbowBonus = dp.RainbowBonus
	}
	if p.SupportBonus == nil {
		p.SupportBonus = dp.SupportBonus
	}
	if p.CapDecay == nil {
		p.CapDecay = dp.CapDecay
	}
	if p.Selection == "" {
		p.Selection = dp.Selection
	}
	if p.PrioritizeG1 == nil {
		p.PrioritizeG1 = dp.PrioritizeG1
	}
	if p.RaceInJunior == nil {
		p.RaceInJunior = dp.RaceInJunior
	}
	// An explicit empty list races in every month
	if p.NoRaceMonths == nil {
		p.NoRaceMonths = dp.NoRaceMonths
	}
	if p.ObjectiveRaces == nil {
		p.ObjectiveRaces = dp.ObjectiveRaces
	}
	if p.ObjectiveTurns == nil {
		p.ObjectiveTurns = dp.ObjectiveTurns
	}
	if p.JuneBias == nil {
		p.JuneBias = dp.JuneBias
	}
	if p.JuneBiasEnergy == nil {
		p.JuneBiasEnergy = dp.JuneBiasEnergy
	}
	if p.RaceForFans == nil {
		p.RaceForFans = dp.RaceForFans
	}
	if p.HandleDebuffs == nil {
		p.HandleDebuffs = dp.HandleDebuffs
	}

	if c.Loop == nil {
		c.Loop = d.Loop
	}
	l, dl := c.Loop, d.Loop
	if l.ReadTimeout == "" {
		l.ReadTimeout = dl.ReadTimeout
	}
	if l.ReadAttempts == 0 {
		l.ReadAttempts = dl.ReadAttempts
	}
	if l.ReadBackoff == "" {
		l.ReadBackoff = dl.ReadBackoff
	}
	if l.MaxBackoff == "" {
		l.MaxBackoff = dl.MaxBackoff
	}
	if l.ActionTimeout == "" {
		l.ActionTimeout = dl.ActionTimeout
	}
	if l.ActionAttempts == 0 {
		l.ActionAttempts = dl.ActionAttempts
	}
	if l.SettleInterval == "" {
		l.SettleInterval = dl.SettleInterval
	}
	if l.SettleTimeout == "" {
		l.SettleTimeout = dl.SettleTimeout
	}
	if l.SettleAttempts == 0 {
		l.SettleAttempts = dl.SettleAttempts
	}
	if l.MaxConsecutiveFailures == 0 {
		l.MaxConsecutiveFailures = dl.MaxConsecutiveFailures
	}

	if c.Events == nil {
		c.Events = d.Events
	}
	if c.Events.Optimal == nil {
		c.Events.Optimal = d.Events.Optimal
	}
	if c.Events.CatalogURL == "" {
		c.Events.CatalogURL = d.Events.CatalogURL
	}
	if c.Events.CatalogTimeout == "" {
		c.Events.CatalogTimeout = d.Events.CatalogTimeout
	}
	if c.Events.CacheSize == 0 {
		c.Events.CacheSize = d.Events.CacheSize
	}

	if c.Agent == nil {
		c.Agent = d.Agent
	}
	if c.Agent.URL == "" {
		c.Agent.URL = d.Agent.URL
	}
	if c.Agent.DialTimeout == "" {
		c.Agent.DialTimeout = d.Agent.DialTimeout
	}
	if c.Agent.RequestTimeout == "" {
		c.Agent.RequestTimeout = d.Agent.RequestTimeout
	}

	if c.Journal == nil {
		c.Journal = d.Journal
	}
	if c.Journal.Enabled == nil {
		c.Journal.Enabled = d.Journal.Enabled
	}
	if c.Journal.Path == "" {
		c.Journal.Path = d.Journal.Path
	}

	if c.Log == nil {
		c.Log = d.Log
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Goal.Fans < 0 {
		return fmt.Errorf("goal: fans cannot be negative")
	}

	policyCfg, err := c.PolicyConfig()
	if err != nil {
		return err
	}
	if err := policyCfg.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	loopCfg, err := c.LoopConfig()
	if err != nil {
		return err
	}
	if err := loopCfg.Validate(); err != nil {
		return fmt.Errorf("loop: %w", err)
	}

	if _, err := parseDuration("events.catalog_timeout", c.Events.CatalogTimeout); err != nil {
		return err
	}
	if c.Events.CacheSize < 0 {
		return fmt.Errorf("events: cache size cannot be negative")
	}
	if _, err := parseDuration("agent.dial_timeout", c.Agent.DialTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("agent.request_timeout", c.Agent.RequestTimeout); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	return nil
}

// Encode renders the configuration as HCL
func (c *Config) Encode() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(c, f.Body())
	return f.Bytes()
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration cannot be negative", name)
	}
	return d, nil
}
