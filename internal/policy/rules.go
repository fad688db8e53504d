package policy

import (
	"slices"
	"strings"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

// DefaultRules returns the lobby rules in precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "mood-gate", Match: moodGate},
		{Name: "debuff", Match: debuff},
		{Name: "objective-race", Match: objectiveRace},
		{Name: "race-calendar", Match: raceCalendar},
		{Name: "g1-priority", Match: g1Priority},
		{Name: "goal-reached", Match: goalReached},
		{Name: "aptitude-race", Match: aptitudeRace},
		{Name: "low-energy", Match: lowEnergy},
		{Name: "june-energy", Match: juneEnergy},
		{Name: "train", Match: train},
	}
}

func moodGate(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	if snap.Mood >= in.Config.MinimumMood {
		return career.Action{}, false
	}
	if !snap.RecoveryAvailable {
		t.Add("Mood is %s but no outing is available", snap.Mood)
		return career.Action{}, false
	}
	t.Add("Mood is %s (below %s), going on an outing", snap.Mood, in.Config.MinimumMood)
	return career.Recreation(), true
}

func debuff(in *Input, t *Thinking) (career.Action, bool) {
	if len(in.Snapshot.Debuffs) == 0 {
		return career.Action{}, false
	}
	if !in.Config.HandleDebuffs {
		t.Add("Ignoring debuffs %s", strings.Join(in.Snapshot.Debuffs, ", "))
		return career.Action{}, false
	}
	t.Add("Debuffed (%s), visiting the infirmary", strings.Join(in.Snapshot.Debuffs, ", "))
	return career.HandleDebuff(), true
}

func objectiveRace(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	if !in.Config.ObjectiveRaces || snap.Turn.PreDebut() || !snap.Objective.Urgent(in.Config.ObjectiveTurns) {
		return career.Action{}, false
	}
	race, ok := bestRace(snap.Races, true)
	if !ok {
		t.Add("Objective due in %d turns but no race matches aptitude", snap.Objective.TurnsLeft)
		return career.Action{}, false
	}
	t.Add("Objective due in %d turns, racing %s", snap.Objective.TurnsLeft, race)
	return career.RaceIn(race), true
}

// raceCalendar holds back optional races in the Junior year and in the
// months kept for training. Objective and race-day races are not optional.
func raceCalendar(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	if len(snap.Races) == 0 {
		return career.Action{}, false
	}
	switch month := snap.Turn.Month(); {
	case snap.Turn.Junior() && !in.Config.RaceInJunior:
		t.Add("Junior year, leaving optional races for later")
	case month != "" && slices.Contains(in.Config.NoRaceMonths, month):
		t.Add("%s is kept for training, skipping optional races", month)
	default:
		return career.Action{}, false
	}
	in.skipRacing = true
	return career.Action{}, false
}

func g1Priority(in *Input, t *Thinking) (career.Action, bool) {
	if in.skipRacing || !in.Config.PrioritizeG1 {
		return career.Action{}, false
	}
	for _, r := range in.Snapshot.Races {
		if r.Grade == career.GradeG1 && r.AptitudeMatch {
			t.Add("G1 race %s matches aptitude", r.Name)
			return career.RaceIn(r), true
		}
	}
	return career.Action{}, false
}

func goalReached(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	if snap.GoalMet(in.Goal) && !snap.RaceMandated {
		t.Add("Fan goal reached (%d/%d), preferring training over racing", snap.Fans.Current, in.Goal)
		in.skipRacing = true
	}
	return career.Action{}, false
}

func aptitudeRace(in *Input, t *Thinking) (career.Action, bool) {
	if in.skipRacing || !in.Config.RaceForFans {
		return career.Action{}, false
	}
	race, ok := bestRace(in.Snapshot.Races, true)
	if !ok {
		return career.Action{}, false
	}
	t.Add("Racing %s for fans", race)
	return career.RaceIn(race), true
}

func lowEnergy(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	if !snap.EnergyKnown() || snap.Energy >= in.Config.RestThreshold {
		return career.Action{}, false
	}
	t.Add("Energy %d is below %d, resting", snap.Energy, in.Config.RestThreshold)
	return career.Rest(), true
}

func juneEnergy(in *Input, t *Thinking) (career.Action, bool) {
	snap := in.Snapshot
	cfg := in.Config
	if !cfg.JuneBias || snap.Turn.Month() != "Jun" || !snap.EnergyKnown() {
		return career.Action{}, false
	}
	if limit := max(cfg.RestThreshold, cfg.JuneBiasEnergy); snap.Energy >= limit {
		return career.Action{}, false
	}
	if best, ok := DoubleRainbow(snap, cfg); ok {
		t.Add("June with energy %d, training %s on a double rainbow (%d rainbow cards)", snap.Energy, best.Option.Stat, best.Option.Rainbow)
		return career.Train(best.Option.Stat), true
	}
	t.Add("June with energy %d and no safe double rainbow, resting", snap.Energy)
	return career.Rest(), true
}

func train(in *Input, t *Thinking) (career.Action, bool) {
	best, ok, candidates := BestTraining(in.Snapshot, in.Config)
	for _, c := range candidates {
		if c.Rejected != "" {
			t.Add("%s skipped: %s", c.Option.Stat, c.Rejected)
		}
	}
	if !ok {
		t.Add("No safe training, resting")
		return career.Rest(), true
	}
	t.Add("Training %s (value %.1f, %d%% failure)", best.Option.Stat, best.Value, best.Option.FailureRisk)
	return career.Train(best.Option.Stat), true
}
