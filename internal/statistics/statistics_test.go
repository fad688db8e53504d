package statistics

import (
	"math"
	"testing"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

func TestStatistics_Empty(t *testing.T) {
	stats := New()

	if stats.Mean() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdDev() != 0 {
		t.Errorf("Expected stddev of 0 for empty stats, got %f", stats.StdDev())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0 for empty stats, got %f", stats.Median())
	}
	if stats.MeanEnergy(career.ActionRest) != 0 {
		t.Errorf("Expected no rest energy for empty stats, got %f", stats.MeanEnergy(career.ActionRest))
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Expected empty stats to validate, got %v", err)
	}
}

func TestStatistics_MultipleSteps(t *testing.T) {
	stats := New()

	results := []StepResult{
		{Action: career.ActionTrain, Rule: "train", Turn: 12, FansGained: 0, EnergyDelta: -20},
		{Action: career.ActionRace, Rule: "g1-priority", Turn: 13, FansGained: 3000, EnergyDelta: -15},
		{Action: career.ActionRest, Rule: "low-energy", Turn: 14, FansGained: 0, EnergyDelta: 50},
		{Action: career.ActionRace, Rule: "aptitude-race", Turn: 15, FansGained: 1200, EnergyDelta: -15},
		{Action: career.ActionTrain, Rule: "train", Turn: 16, FansGained: 0, EnergyDelta: -18},
	}
	for _, r := range results {
		stats.Add(r)
	}

	if stats.Steps != 5 {
		t.Errorf("Expected 5 steps, got %d", stats.Steps)
	}
	if math.Abs(stats.Mean()-840) > 1e-9 {
		t.Errorf("Expected mean of 840, got %f", stats.Mean())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0, got %f", stats.Median())
	}
	if stats.Count(career.ActionRace) != 2 {
		t.Errorf("Expected 2 races, got %d", stats.Count(career.ActionRace))
	}
	if stats.Rules["train"] != 2 {
		t.Errorf("Expected train rule twice, got %d", stats.Rules["train"])
	}
	if stats.BestGain != 3000 || stats.BestGainAt != 13 {
		t.Errorf("Expected best gain 3000 at turn 13, got %d at %d", stats.BestGain, stats.BestGainAt)
	}
	if stats.Gains != 2 {
		t.Errorf("Expected 2 gaining steps, got %d", stats.Gains)
	}
	if math.Abs(stats.MeanEnergy(career.ActionTrain)+19) > 1e-9 {
		t.Errorf("Expected mean train energy of -19, got %f", stats.MeanEnergy(career.ActionTrain))
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Expected stats to validate, got %v", err)
	}
}

func TestStatistics_Percentiles(t *testing.T) {
	stats := New()
	for i := 1; i <= 5; i++ {
		stats.Add(StepResult{Action: career.ActionRace, FansGained: i * 100})
	}

	tests := []struct {
		percentile float64
		expected   float64
	}{
		{0.0, 100},
		{0.25, 200},
		{0.5, 300},
		{0.75, 400},
		{1.0, 500},
		{0.1, 140},
	}

	for _, tt := range tests {
		got := stats.Percentile(tt.percentile)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Percentile(%.2f): expected %f, got %f", tt.percentile, tt.expected, got)
		}
	}
}

func TestStatistics_Variance(t *testing.T) {
	stats := New()
	for _, gain := range []int{100, 200, 300} {
		stats.Add(StepResult{Action: career.ActionRace, FansGained: gain})
	}

	if math.Abs(stats.Variance()-10000) > 1e-6 {
		t.Errorf("Expected variance of 10000, got %f", stats.Variance())
	}
	if math.Abs(stats.StdDev()-100) > 1e-6 {
		t.Errorf("Expected stddev of 100, got %f", stats.StdDev())
	}
}

func TestStatistics_Failures(t *testing.T) {
	var stats Statistics
	stats.AddFailure("read")
	stats.AddFailure("read")
	stats.AddFailure("verify")

	if stats.Failures["read"] != 2 {
		t.Errorf("Expected 2 read failures, got %d", stats.Failures["read"])
	}
	if stats.TotalFailures() != 3 {
		t.Errorf("Expected 3 failures, got %d", stats.TotalFailures())
	}
}

func TestStatistics_ValidateDetectsMismatch(t *testing.T) {
	stats := New()
	stats.Add(StepResult{Action: career.ActionTrain})
	stats.Steps = 3

	if err := stats.Validate(); err == nil {
		t.Error("Expected validation error for step count mismatch")
	}
}
