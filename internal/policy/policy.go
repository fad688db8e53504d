// Package policy turns a career snapshot into exactly one action.
//
// Lobby decisions walk an ordered rule list where the first match wins:
//
//	mood-gate       low mood and an outing is available      -> recreation
//	debuff          any ailment                              -> infirmary
//	objective-race  unmet objective due soon, after debut    -> race
//	race-calendar   Junior year or a training month          -> skip racing
//	g1-priority     aptitude-matched G1 race                 -> race
//	goal-reached    fan goal met, no mandated race           -> skip racing
//	aptitude-race   any aptitude-matched race                -> race
//	low-energy      energy below the rest threshold          -> rest
//	june-energy     tired in June                            -> double rainbow or rest
//	train           best safe training, else                 -> rest
//
// Decide never touches the session state it is given; the loop applies the
// effects after the action has been executed and verified.
package policy

import (
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
)

// Decision is the policy's answer for one snapshot.
type Decision struct {
	Action    career.Action
	Rule      string
	Reasoning string
	Ambiguous bool
}

// Input is what the lobby rules look at. It is local to one Decide call.
type Input struct {
	Snapshot career.Snapshot
	Goal     int
	Config   Config

	skipRacing bool
}

// Rule is one entry of the lobby rule list.
type Rule struct {
	Name  string
	Match func(in *Input, t *Thinking) (career.Action, bool)
}

// Policy decides actions from snapshots.
type Policy struct {
	cfg    Config
	rules  []Rule
	scorer *events.Scorer
}

// Option customises a Policy.
type Option func(*Policy)

// WithRules replaces the lobby rule list.
func WithRules(rules ...Rule) Option {
	return func(p *Policy) {
		p.rules = rules
	}
}

// New creates a policy with the default lobby rules.
func New(cfg Config, opts ...Option) *Policy {
	p := &Policy{
		cfg:    cfg,
		rules:  DefaultRules(),
		scorer: events.NewScorer(cfg.EventWeights),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Rules returns the lobby rules in evaluation order.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Decide maps a snapshot and the current session state to one action. It is
// deterministic and has no side effects; state may be nil.
func (p *Policy) Decide(snap career.Snapshot, state *career.SessionState) Decision {
	thinking := &Thinking{}

	if reason, ambiguous := snap.Ambiguity(); ambiguous {
		thinking.Add("Snapshot is ambiguous (%s), waiting instead of guessing", reason)
		return Decision{Action: career.Wait(), Rule: "ambiguous", Reasoning: thinking.String(), Ambiguous: true}
	}

	switch snap.Screen {
	case career.ScreenEvent:
		return p.decideEvent(snap, thinking)
	case career.ScreenRaceDay:
		return p.decideRaceDay(snap, thinking)
	case career.ScreenComplete:
		thinking.Add("Career is complete")
		return Decision{Action: career.Wait(), Rule: "career-complete", Reasoning: thinking.String()}
	}

	in := &Input{Snapshot: snap, Goal: goalFor(snap, state), Config: p.cfg}
	for _, rule := range p.rules {
		if action, ok := rule.Match(in, thinking); ok {
			return Decision{Action: action, Rule: rule.Name, Reasoning: thinking.String()}
		}
	}

	thinking.Add("No rule matched, resting")
	return Decision{Action: career.Rest(), Rule: "fallback", Reasoning: thinking.String()}
}

func goalFor(snap career.Snapshot, state *career.SessionState) int {
	if state != nil && state.FanGoal() > 0 {
		return state.FanGoal()
	}
	return snap.Fans.Goal
}

func (p *Policy) decideEvent(snap career.Snapshot, thinking *Thinking) Decision {
	if !p.cfg.OptimalEvents || !snap.Event.HasRewards() {
		thinking.Add("Event %q: taking the top choice", snap.Event.Name)
		return Decision{Action: career.ChooseEvent(0), Rule: "event", Reasoning: thinking.String()}
	}

	ctx := events.DefaultContext()
	ctx.Energy = snap.Energy
	ctx.CurrentStats = snap.Stats
	ctx.StatCaps = p.cfg.StatCaps
	ctx.HardAvoidStatuses = p.cfg.HardAvoidStatuses

	best, scored := p.scorer.Best(snap.Event, ctx)
	for _, s := range scored {
		thinking.Add("Option %d %q scores %.2f", s.Index+1, s.Label, s.Score)
	}
	thinking.Add("Event %q: picking option %d of %d", snap.Event.Name, best+1, len(snap.Event.Options))
	return Decision{Action: career.ChooseEvent(best), Rule: "event", Reasoning: thinking.String()}
}

func (p *Policy) decideRaceDay(snap career.Snapshot, thinking *Thinking) Decision {
	if race, ok := bestRace(snap.Races, true); ok {
		thinking.Add("Race day: entering %s", race)
		return Decision{Action: career.RaceIn(race), Rule: "race-day", Reasoning: thinking.String()}
	}
	if len(snap.Races) > 0 {
		thinking.Add("Race day: no aptitude match, entering scheduled %s", snap.Races[0])
		return Decision{Action: career.RaceIn(snap.Races[0]), Rule: "race-day", Reasoning: thinking.String()}
	}
	thinking.Add("Race day: entering the scheduled race")
	return Decision{Action: career.RaceIn(career.Race{Name: "Race Day"}), Rule: "race-day", Reasoning: thinking.String()}
}

// bestRace returns the highest-grade race, earliest listed on ties. When
// aptitudeOnly is set, races without an aptitude match are ignored.
func bestRace(races []career.Race, aptitudeOnly bool) (career.Race, bool) {
	found := false
	var best career.Race
	for _, r := range races {
		if aptitudeOnly && !r.AptitudeMatch {
			continue
		}
		if !found || r.Grade > best.Grade {
			best = r
			found = true
		}
	}
	return best, found
}
