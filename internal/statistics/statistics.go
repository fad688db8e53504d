package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

const actionKinds = int(career.ActionChooseEvent) + 1

// StepResult is the outcome of one committed action.
type StepResult struct {
	Action      career.ActionKind
	Rule        string
	Turn        int
	FansGained  int // fan count change across the action
	EnergyDelta int // energy change, zero when either read was unknown
}

// ActionStats tracks the results of a single action kind.
type ActionStats struct {
	Count     int
	SumFans   float64
	SumEnergy float64
}

// Statistics tracks what happened during a career run.
type Statistics struct {
	Steps   int
	SumFans float64
	SumFan2 float64   // sum of squares for variance calculation
	Values  []float64 // fan gain of every step, for median/percentile

	Actions [actionKinds]ActionStats
	Rules   map[string]int

	// Failures counts retried or recorded failures by kind ("read",
	// "ambiguous", "execution", "verify").
	Failures map[string]int

	BestGain   int // largest fan gain from one action
	BestGainAt int // turn of BestGain
	Gains      int // steps that gained fans
}

// New returns empty statistics.
func New() *Statistics {
	return &Statistics{
		Rules:    make(map[string]int),
		Failures: make(map[string]int),
	}
}

// Add incorporates a committed step.
func (s *Statistics) Add(result StepResult) {
	gain := float64(result.FansGained)
	s.Steps++
	s.SumFans += gain
	s.SumFan2 += gain * gain
	s.Values = append(s.Values, gain)

	if k := int(result.Action); k >= 0 && k < actionKinds {
		s.Actions[k].Count++
		s.Actions[k].SumFans += gain
		s.Actions[k].SumEnergy += float64(result.EnergyDelta)
	}
	if result.Rule != "" {
		if s.Rules == nil {
			s.Rules = make(map[string]int)
		}
		s.Rules[result.Rule]++
	}

	if result.FansGained > 0 {
		s.Gains++
	}
	if result.FansGained > s.BestGain {
		s.BestGain = result.FansGained
		s.BestGainAt = result.Turn
	}
}

// AddFailure counts one failure of the given kind.
func (s *Statistics) AddFailure(kind string) {
	if s.Failures == nil {
		s.Failures = make(map[string]int)
	}
	s.Failures[kind]++
}

// TotalFailures returns the number of failures of every kind.
func (s *Statistics) TotalFailures() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// Count returns how many times an action kind was committed.
func (s *Statistics) Count(kind career.ActionKind) int {
	if k := int(kind); k >= 0 && k < actionKinds {
		return s.Actions[k].Count
	}
	return 0
}

// Mean returns the mean fan gain per step.
func (s *Statistics) Mean() float64 {
	if s.Steps == 0 {
		return 0
	}
	return s.SumFans / float64(s.Steps)
}

// Variance returns the sample variance of the fan gains.
func (s *Statistics) Variance() float64 {
	if s.Steps < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumFan2 - float64(s.Steps)*mean*mean) / float64(s.Steps-1)
}

// StdDev returns the sample standard deviation of the fan gains.
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// Median returns the median fan gain.
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the fan gain at the given percentile (0.0 to 1.0).
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// MeanEnergy returns the average energy change of an action kind.
func (s *Statistics) MeanEnergy(kind career.ActionKind) float64 {
	k := int(kind)
	if k < 0 || k >= actionKinds || s.Actions[k].Count == 0 {
		return 0
	}
	return s.Actions[k].SumEnergy / float64(s.Actions[k].Count)
}

// Validate checks the tallies against each other.
func (s *Statistics) Validate() error {
	if len(s.Values) != s.Steps {
		return fmt.Errorf("values array length (%d) does not match step count (%d)", len(s.Values), s.Steps)
	}

	counted := 0
	fans := 0.0
	for _, a := range s.Actions {
		counted += a.Count
		fans += a.SumFans
	}
	if counted != s.Steps {
		return fmt.Errorf("action counts total (%d) does not match step count (%d)", counted, s.Steps)
	}
	if math.Abs(fans-s.SumFans) > 1e-6 {
		return fmt.Errorf("fan ledger mismatch: actions=%.0f total=%.0f", fans, s.SumFans)
	}
	if s.Gains > s.Steps {
		return fmt.Errorf("gaining steps (%d) exceed step count (%d)", s.Gains, s.Steps)
	}
	return nil
}
