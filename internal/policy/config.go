package policy

import (
	"fmt"
	"strings"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
)

// Selection says how the train rule ranks safe training options.
type Selection int

const (
	// SelectionValue ranks by projected stat value.
	SelectionValue Selection = iota
	// SelectionSupport ranks by support cards: the most cards in the Junior
	// year, the most rainbow cards afterwards.
	SelectionSupport
)

func (s Selection) String() string {
	switch s {
	case SelectionValue:
		return "value"
	case SelectionSupport:
		return "support"
	default:
		return fmt.Sprintf("Selection(%d)", int(s))
	}
}

// ParseSelection parses a selection name.
func ParseSelection(name string) (Selection, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "value", "":
		return SelectionValue, true
	case "support", "supports":
		return SelectionSupport, true
	}
	return SelectionValue, false
}

// Config holds the tunables of the decision policy. It is read once at
// startup and never changed while a run is in progress.
type Config struct {
	MinimumMood   career.Mood
	RestThreshold int // also the energy at or below which the false-scan guard runs
	MaxFailure    int
	StatPriority  []career.Stat
	StatCaps      map[career.Stat]int
	StatWeights   map[career.Stat]float64
	RainbowBonus  float64
	SupportBonus  float64
	CapDecay      float64
	Selection     Selection

	PrioritizeG1   bool
	RaceInJunior   bool     // allow optional races in the Junior year
	NoRaceMonths   []string // three-letter months without optional races
	ObjectiveRaces bool
	ObjectiveTurns int // race for the objective when fewer turns are left
	JuneBias       bool
	JuneBiasEnergy int // June energy below which only double rainbows are trained
	RaceForFans    bool
	HandleDebuffs  bool
	OptimalEvents  bool

	EventWeights      events.Weights
	HardAvoidStatuses []string
}

// DefaultConfig returns the stock policy configuration.
func DefaultConfig() Config {
	caps := make(map[career.Stat]int, len(career.AllStats))
	weights := make(map[career.Stat]float64, len(career.AllStats))
	for _, s := range career.AllStats {
		caps[s] = 1200
		weights[s] = 1.0
	}
	return Config{
		MinimumMood:    career.MoodNormal,
		RestThreshold:  30,
		MaxFailure:     15,
		StatPriority:   []career.Stat{career.Speed, career.Stamina, career.Power, career.Guts, career.Wit},
		StatCaps:       caps,
		StatWeights:    weights,
		RainbowBonus:   4,
		SupportBonus:   1,
		CapDecay:       0.10,
		Selection:      SelectionValue,
		PrioritizeG1:   true,
		NoRaceMonths:   []string{"Jul", "Aug"},
		ObjectiveRaces: true,
		ObjectiveTurns: 10,
		JuneBias:       true,
		JuneBiasEnergy: 60,
		RaceForFans:    true,
		HandleDebuffs:  true,
		OptimalEvents:  true,
		EventWeights:   events.DefaultWeights(),
	}
}

// Validate checks the configuration for values the policy cannot work with.
func (c Config) Validate() error {
	if c.MinimumMood < career.MoodWorse || c.MinimumMood > career.MoodGreat {
		return fmt.Errorf("minimum mood must be a known mood, got %s", c.MinimumMood)
	}
	if c.RestThreshold < 0 || c.RestThreshold > 100 {
		return fmt.Errorf("rest threshold must be between 0 and 100, got %d", c.RestThreshold)
	}
	if c.MaxFailure < 0 || c.MaxFailure > 100 {
		return fmt.Errorf("maximum failure must be between 0 and 100, got %d", c.MaxFailure)
	}
	if c.ObjectiveTurns < 0 {
		return fmt.Errorf("objective turns cannot be negative, got %d", c.ObjectiveTurns)
	}
	if c.JuneBiasEnergy < 0 || c.JuneBiasEnergy > 100 {
		return fmt.Errorf("june bias energy must be between 0 and 100, got %d", c.JuneBiasEnergy)
	}
	if c.Selection != SelectionValue && c.Selection != SelectionSupport {
		return fmt.Errorf("unknown training selection %s", c.Selection)
	}
	for _, m := range c.NoRaceMonths {
		if (career.Turn{Label: m}).Month() != m {
			return fmt.Errorf("no-race months must be three-letter month names, got %q", m)
		}
	}
	seen := map[career.Stat]bool{}
	for _, s := range c.StatPriority {
		if seen[s] {
			return fmt.Errorf("stat %s listed twice in priority", s)
		}
		seen[s] = true
	}
	for s, limit := range c.StatCaps {
		if limit < 0 {
			return fmt.Errorf("stat cap for %s cannot be negative", s)
		}
	}
	return nil
}

func (c Config) priorityIndex(s career.Stat) int {
	for i, p := range c.StatPriority {
		if p == s {
			return i
		}
	}
	return len(c.StatPriority) + int(s)
}

func (c Config) weight(s career.Stat) float64 {
	if w, ok := c.StatWeights[s]; ok {
		return w
	}
	return 1.0
}
