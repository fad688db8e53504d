package policy

import (
	"sort"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
)

// Candidate is a training option after filtering and valuation.
type Candidate struct {
	Option   career.TrainingOption
	Value    float64
	Adjusted bool   // failure risk raised by the false-scan guard
	Rejected string // non-empty when the option was filtered out
}

// GuardFalseScan corrects failure chances misread at low energy. When energy
// is at or below the trigger and most non-Wit options read above maxFailure,
// the low readings are treated as misreads and raised to the highest reading.
// The returned slice is a copy; the second result lists the stats changed.
func GuardFalseScan(options []career.TrainingOption, energy, trigger, maxFailure int) ([]career.TrainingOption, []career.Stat) {
	out := make([]career.TrainingOption, len(options))
	copy(out, options)
	if energy < 0 || energy > trigger {
		return out, nil
	}

	var above, below []int
	hiMax := 0
	for i, opt := range out {
		if opt.Stat == career.Wit || opt.FailureRisk < 0 {
			continue
		}
		if opt.FailureRisk > maxFailure {
			above = append(above, i)
			hiMax = max(hiMax, opt.FailureRisk)
		} else {
			below = append(below, i)
		}
	}

	total := len(above) + len(below)
	if total == 0 || len(below) == 0 || len(above) < max(2, total/2+1) {
		return out, nil
	}

	adjusted := make([]career.Stat, 0, len(below))
	for _, i := range below {
		out[i].FailureRisk = hiMax
		adjusted = append(adjusted, out[i].Stat)
	}
	return out, adjusted
}

// Candidates values every training option on the snapshot. Options that
// cannot be chosen carry a Rejected reason and a zero value.
func Candidates(snap career.Snapshot, cfg Config) []Candidate {
	options, adjusted := GuardFalseScan(snap.Training, snap.Energy, cfg.RestThreshold, cfg.MaxFailure)
	wasAdjusted := make(map[career.Stat]bool, len(adjusted))
	for _, s := range adjusted {
		wasAdjusted[s] = true
	}

	out := make([]Candidate, 0, len(options))
	for _, opt := range options {
		c := Candidate{Option: opt, Adjusted: wasAdjusted[opt.Stat]}
		switch {
		case opt.FailureRisk == career.RiskUnknown:
			c.Rejected = "failure chance unreadable"
		case opt.FailureRisk > cfg.MaxFailure:
			c.Rejected = "failure chance too high"
		case capped(snap.Stats, cfg.StatCaps, opt.Stat):
			c.Rejected = "stat at cap"
		case opt.Stat == career.Wit && opt.Supports < 2:
			c.Rejected = "too few supports for wit"
		default:
			c.Value = value(opt, snap.Stats, cfg)
		}
		out = append(out, c)
	}
	return out
}

// BestTraining picks the training the configured selection prefers. With
// SelectionValue the highest-value option wins; ties go to the lower failure
// risk and then to the earlier stat in the priority order.
func BestTraining(snap career.Snapshot, cfg Config) (Candidate, bool, []Candidate) {
	all := Candidates(snap, cfg)

	ok := acceptable(all)
	if len(ok) == 0 {
		return Candidate{}, false, all
	}
	if cfg.Selection == SelectionSupport {
		return bySupports(snap.Turn, ok, all, cfg)
	}

	sort.SliceStable(ok, func(i, j int) bool {
		a, b := ok[i], ok[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		if a.Option.FailureRisk != b.Option.FailureRisk {
			return a.Option.FailureRisk < b.Option.FailureRisk
		}
		return cfg.priorityIndex(a.Option.Stat) < cfg.priorityIndex(b.Option.Stat)
	})
	return ok[0], true, all
}

// bySupports prefers rainbow cards after the Junior year and the most cards
// otherwise. A lone card is only worth training at zero failure risk.
func bySupports(turn career.Turn, ok, all []Candidate, cfg Config) (Candidate, bool, []Candidate) {
	if !turn.Junior() {
		best := mostBy(ok, cfg, func(c Candidate) int { return c.Option.Rainbow })
		if best.Option.Rainbow > 0 {
			return best, true, all
		}
	}

	best := mostBy(ok, cfg, func(c Candidate) int { return c.Option.Supports })
	if best.Option.Supports <= 1 && best.Option.FailureRisk > 0 {
		for i := range all {
			if all[i].Option.Stat == best.Option.Stat {
				all[i].Rejected = "too few supports to risk a failure"
			}
		}
		return Candidate{}, false, all
	}
	return best, true, all
}

// DoubleRainbow returns the safe option with the most rainbow cards, if any
// has two or more.
func DoubleRainbow(snap career.Snapshot, cfg Config) (Candidate, bool) {
	ok := acceptable(Candidates(snap, cfg))
	if len(ok) == 0 {
		return Candidate{}, false
	}
	best := mostBy(ok, cfg, func(c Candidate) int { return c.Option.Rainbow })
	return best, best.Option.Rainbow >= 2
}

func acceptable(all []Candidate) []Candidate {
	ok := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.Rejected == "" {
			ok = append(ok, c)
		}
	}
	return ok
}

// mostBy returns the candidate with the largest key, earlier priority first
// on ties. candidates must not be empty.
func mostBy(candidates []Candidate, cfg Config, key func(Candidate) int) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		k, bk := key(c), key(best)
		if k > bk || (k == bk && cfg.priorityIndex(c.Option.Stat) < cfg.priorityIndex(best.Option.Stat)) {
			best = c
		}
	}
	return best
}

func capped(stats map[career.Stat]int, caps map[career.Stat]int, s career.Stat) bool {
	limit, ok := caps[s]
	if !ok || limit <= 0 {
		return false
	}
	return stats[s] >= limit
}

func value(opt career.TrainingOption, stats map[career.Stat]int, cfg Config) float64 {
	total := 0.0
	for _, s := range career.AllStats {
		gain, ok := opt.Gains[s]
		if !ok {
			continue
		}
		total += cfg.weight(s) * events.CapDecay(gain, stats[s], cfg.StatCaps[s], cfg.CapDecay)
	}
	total += cfg.RainbowBonus * float64(opt.Rainbow)
	total += cfg.SupportBonus * float64(opt.Supports)
	return total
}
