package events

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

var chancePattern = regexp.MustCompile(`~?\s*(\d{1,3})\s*%`)

// Weights are the scoring constants for event options.
type Weights struct {
	Stat                 map[career.Stat]float64
	DefaultStat          float64
	NegativeStatPenalty  float64
	EnergyPoint          float64
	SkillPointsPoint     float64
	BondPoint            float64
	HintPoint            float64
	GoodResultBonus      float64
	BadResultPenalty     float64
	StatusPenalties      map[string]float64
	GenericStatusPenalty float64
	CapDecayStrength     float64
}

// DefaultWeights returns the stock scoring table.
func DefaultWeights() Weights {
	return Weights{
		Stat: map[career.Stat]float64{
			career.Speed:   0.9,
			career.Stamina: 0.9,
			career.Power:   0.9,
			career.Guts:    0.6,
			career.Wit:     0.6,
		},
		DefaultStat:         0.6,
		NegativeStatPenalty: 1.2,
		EnergyPoint:         1.0,
		SkillPointsPoint:    0.5,
		BondPoint:           0.2,
		HintPoint:           1.5,
		GoodResultBonus:     2.0,
		BadResultPenalty:    -4.0,
		StatusPenalties: map[string]float64{
			"Slow Metabolism": -12.0,
			"Injured":         -18.0,
			"Fatigue":         -6.0,
		},
		GenericStatusPenalty: -5.0,
		CapDecayStrength:     0.10,
	}
}

// Context is what the scorer knows about the trainee.
type Context struct {
	Energy              int // career.EnergyUnknown when not measured
	PreferEnergyBelow   int
	LowEnergyMultiplier float64
	StatCaps            map[career.Stat]int
	CurrentStats        map[career.Stat]int
	AvoidBadResult      bool
	HardAvoidStatuses   []string
}

// DefaultContext returns a context with unknown energy and no caps.
func DefaultContext() Context {
	return Context{
		Energy:              career.EnergyUnknown,
		PreferEnergyBelow:   30,
		LowEnergyMultiplier: 1.5,
		AvoidBadResult:      true,
	}
}

// Scored is the evaluation of one option.
type Scored struct {
	Index   int
	Label   string
	Score   float64
	Details []string
}

// Scorer ranks event options.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Best returns the zero-based index of the highest scoring option. Ties go to
// the earlier option. A prompt without any reward data picks the first option.
func (s *Scorer) Best(prompt *career.EventPrompt, ctx Context) (int, []Scored) {
	if prompt == nil || len(prompt.Options) == 0 {
		return 0, nil
	}
	scored := make([]Scored, len(prompt.Options))
	best := 0
	for i, opt := range prompt.Options {
		score, details := s.Score(opt, ctx)
		scored[i] = Scored{Index: i, Label: opt.Label, Score: score, Details: details}
		if score > scored[best].Score {
			best = i
		}
	}
	if !prompt.HasRewards() {
		return 0, scored
	}
	return best, scored
}

// Score evaluates one option and explains each contribution.
func (s *Scorer) Score(opt career.EventOption, ctx Context) (float64, []string) {
	w := s.weights
	var details []string
	score := 0.0

	prob := 1.0
	if m := chancePattern.FindStringSubmatch(opt.Label); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		prob = math.Max(0, math.Min(1, pct/100))
	}

	hasGood, hasBad := false, false
	for _, r := range opt.Rewards {
		if r.Kind != career.RewardText {
			continue
		}
		text := strings.ToLower(r.Text)
		hasGood = hasGood || strings.Contains(text, "good result")
		hasBad = hasBad || strings.Contains(text, "bad result")
	}
	if hasGood {
		score += w.GoodResultBonus
		details = append(details, fmt.Sprintf("%+.1f good-result bonus", w.GoodResultBonus))
	}
	if hasBad {
		score += w.BadResultPenalty
		details = append(details, fmt.Sprintf("%.1f bad-result penalty", w.BadResultPenalty))
	}

	for _, r := range opt.Rewards {
		if r.Kind == career.RewardStatus && slices.Contains(ctx.HardAvoidStatuses, r.Name) {
			return -999, append(details, "-999 hard-avoid status: "+r.Name)
		}
	}

	for _, r := range opt.Rewards {
		switch r.Kind {
		case career.RewardEnergy:
			mult := w.EnergyPoint
			if ctx.Energy >= 0 && ctx.Energy <= ctx.PreferEnergyBelow && ctx.LowEnergyMultiplier > 0 {
				mult *= ctx.LowEnergyMultiplier
				details = append(details, fmt.Sprintf("(energy low bias x%.2f)", ctx.LowEnergyMultiplier))
			}
			delta := float64(r.Value) * mult * prob
			score += delta
			details = append(details, fmt.Sprintf("%+.1f Energy %+d", delta, r.Value))

		case career.RewardSkillPoints:
			delta := float64(r.Value) * w.SkillPointsPoint * prob
			score += delta
			details = append(details, fmt.Sprintf("%+.1f Skill points %+d", delta, r.Value))

		case career.RewardBond:
			delta := float64(r.Value) * w.BondPoint * prob
			score += delta
			details = append(details, fmt.Sprintf("%+.1f Bond %+d", delta, r.Value))

		case career.RewardHint:
			delta := w.HintPoint * prob
			score += delta
			details = append(details, fmt.Sprintf("%+.1f Hint %s", delta, r.Name))

		case career.RewardStat:
			stat, known := career.ParseStat(r.Name)
			base := w.DefaultStat
			if known {
				if sw, ok := w.Stat[stat]; ok {
					base = sw
				}
			}
			var delta float64
			if r.Value < 0 {
				delta = float64(r.Value) * base * w.NegativeStatPenalty * prob
			} else {
				adj := float64(r.Value)
				if known {
					adj = CapDecay(r.Value, ctx.CurrentStats[stat], ctx.StatCaps[stat], w.CapDecayStrength)
				}
				delta = adj * base * prob
			}
			score += delta
			details = append(details, fmt.Sprintf("%+.1f %s %+d", delta, r.Name, r.Value))

		case career.RewardStatus:
			penalty, ok := w.StatusPenalties[r.Name]
			if !ok {
				penalty = w.GenericStatusPenalty
			}
			score += penalty * prob
			details = append(details, fmt.Sprintf("%.1f Status %s", penalty, r.Name))
		}
	}

	if ctx.AvoidBadResult && hasBad && score > -50 {
		score -= 2
		details = append(details, "-2.0 extra avoid-bad nudge")
	}
	return score, details
}

// CapDecay discounts the part of a gain that would push a stat past its cap.
// A cap of zero means uncapped.
func CapDecay(add, current, limit int, strength float64) float64 {
	if limit <= 0 || add <= 0 {
		return float64(add)
	}
	over := current + add - limit
	if over <= 0 {
		return float64(add)
	}
	if over > add {
		over = add
	}
	usable := add - over
	return float64(usable) + float64(over)*math.Exp(-strength*float64(over))
}
