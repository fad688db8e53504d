package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
)

// PolicyConfig converts the policy and events blocks to a policy.Config
func (c *Config) PolicyConfig() (policy.Config, error) {
	p := c.Policy
	out := policy.DefaultConfig()

	mood := career.ParseMood(p.MinimumMood)
	if mood == career.MoodUnknown {
		return out, fmt.Errorf("policy: unknown minimum mood %q", p.MinimumMood)
	}
	out.MinimumMood = mood
	selection, ok := policy.ParseSelection(p.Selection)
	if !ok {
		return out, fmt.Errorf("policy: unknown training selection %q", p.Selection)
	}
	out.Selection = selection
	out.RestThreshold = *p.RestThreshold
	out.MaxFailure = *p.MaxFailure
	out.RainbowBonus = *p.RainbowBonus
	out.SupportBonus = *p.SupportBonus
	out.CapDecay = *p.CapDecay
	out.PrioritizeG1 = *p.PrioritizeG1
	out.RaceInJunior = *p.RaceInJunior
	out.ObjectiveRaces = *p.ObjectiveRaces
	out.ObjectiveTurns = *p.ObjectiveTurns
	out.JuneBias = *p.JuneBias
	out.JuneBiasEnergy = *p.JuneBiasEnergy
	out.RaceForFans = *p.RaceForFans
	out.HandleDebuffs = *p.HandleDebuffs

	out.NoRaceMonths = out.NoRaceMonths[:0:0]
	for _, name := range p.NoRaceMonths {
		month := career.Turn{Label: name}.Month()
		if month == "" {
			return out, fmt.Errorf("policy: unknown month %q in no_race_months", name)
		}
		out.NoRaceMonths = append(out.NoRaceMonths, month)
	}

	out.StatPriority = out.StatPriority[:0:0]
	for _, name := range p.StatPriority {
		stat, ok := career.ParseStat(name)
		if !ok {
			return out, fmt.Errorf("policy: unknown stat %q in stat_priority", name)
		}
		out.StatPriority = append(out.StatPriority, stat)
	}
	for name, limit := range p.StatCaps {
		stat, ok := career.ParseStat(name)
		if !ok {
			return out, fmt.Errorf("policy: unknown stat %q in stat_caps", name)
		}
		out.StatCaps[stat] = limit
	}
	for name, w := range p.StatWeights {
		stat, ok := career.ParseStat(name)
		if !ok {
			return out, fmt.Errorf("policy: unknown stat %q in stat_weights", name)
		}
		out.StatWeights[stat] = w
	}

	out.OptimalEvents = *c.Events.Optimal
	out.EventWeights.CapDecayStrength = *p.CapDecay
	out.HardAvoidStatuses = append([]string(nil), c.Events.HardAvoid...)
	return out, nil
}

// LoopConfig converts the goal and loop blocks to a session.Config
func (c *Config) LoopConfig() (session.Config, error) {
	l := c.Loop
	out := session.Config{
		ReadAttempts:           l.ReadAttempts,
		ActionAttempts:         l.ActionAttempts,
		SettleAttempts:         l.SettleAttempts,
		MaxConsecutiveFailures: l.MaxConsecutiveFailures,
		MaxIterations:          l.MaxIterations,
		StopOnGoal:             *c.Goal.StopOnGoal,
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"loop.read_timeout", l.ReadTimeout, &out.ReadTimeout},
		{"loop.read_backoff", l.ReadBackoff, &out.ReadBackoff},
		{"loop.max_backoff", l.MaxBackoff, &out.MaxBackoff},
		{"loop.action_timeout", l.ActionTimeout, &out.ActionTimeout},
		{"loop.settle_interval", l.SettleInterval, &out.SettleInterval},
		{"loop.settle_timeout", l.SettleTimeout, &out.SettleTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.name, d.value)
		if err != nil {
			return out, err
		}
		*d.dst = v
	}
	return out, nil
}

// CatalogOptions converts the events block to catalog options. The second
// result is false when the catalog is disabled.
func (c *Config) CatalogOptions() (events.CatalogOptions, bool, error) {
	timeout, err := parseDuration("events.catalog_timeout", c.Events.CatalogTimeout)
	if err != nil {
		return events.CatalogOptions{}, false, err
	}
	opts := events.CatalogOptions{
		BaseURL:   strings.TrimSpace(c.Events.CatalogURL),
		Timeout:   timeout,
		CacheSize: c.Events.CacheSize,
	}
	return opts, !c.Events.Offline && *c.Events.Optimal, nil
}

// AgentTimeouts returns the dial and per-request timeouts of the agent block
func (c *Config) AgentTimeouts() (dial, request time.Duration, err error) {
	if dial, err = parseDuration("agent.dial_timeout", c.Agent.DialTimeout); err != nil {
		return 0, 0, err
	}
	if request, err = parseDuration("agent.request_timeout", c.Agent.RequestTimeout); err != nil {
		return 0, 0, err
	}
	return dial, request, nil
}

// JournalEnabled reports whether runs should be journaled
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled != nil && *c.Journal.Enabled && c.Journal.Path != ""
}
