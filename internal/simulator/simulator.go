// Package simulator is a seeded stand-in for the game. It models a career
// closely enough to drive the loop end to end, and can inject the faults a
// real screen reader runs into.
package simulator

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/randutil"
)

var (
	// ErrReadFault is an injected capture failure.
	ErrReadFault = errors.New("simulated capture failure")
	// ErrExecFault is an injected input failure.
	ErrExecFault = errors.New("simulated input failure")
	// ErrInvalidAction is returned for actions the current screen does not offer.
	ErrInvalidAction = errors.New("action not available on this screen")
)

const (
	DefaultTurns = 72
	statCap      = 1200
)

// Config holds configuration for a simulated career
type Config struct {
	Seed    int64
	Turns   int // career length, DefaultTurns when zero
	FanGoal int // goal shown on screen, none when zero

	ReadFailureRate  float64
	AmbiguousRate    float64
	ExecFailureRate  float64
	TransitionFrames int // transition screens shown after every action

	Logger *log.Logger
}

// Summary describes where a career stands
type Summary struct {
	Turn       int
	Turns      int
	Fans       int
	FanGoal    int
	Energy     int
	Mood       career.Mood
	Stats      map[career.Stat]int
	RacesWon   int
	RacesRun   int
	Failures   int // failed trainings
	Captures   int
	Executions int
	Complete   bool
}

type pendingEvent struct {
	prompt career.EventPrompt
}

// Career is a simulated training career. It implements the loop's Reader and
// Executor and is safe for concurrent use.
type Career struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand // game dynamics
	faults *rand.Rand // fault injection
	logger *log.Logger

	turn     int
	energy   int
	mood     career.Mood
	fans     int
	stats    map[career.Stat]int
	debuffs  []string
	races    []career.Race
	training []career.TrainingOption
	event    *pendingEvent

	// objective: run at least one optional race before the next race day
	objectiveMet bool

	transitions int
	racesRun    int
	racesWon    int
	failures    int
	captures    int
	executions  int
}

// New creates a career at its first turn.
func New(cfg Config) *Career {
	if cfg.Turns <= 0 {
		cfg.Turns = DefaultTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Career{
		cfg:    cfg,
		rng:    randutil.NewStream(cfg.Seed, 0),
		faults: randutil.NewStream(cfg.Seed, 1),
		logger: logger.WithPrefix("sim"),
		turn:   1,
		energy: 100,
		mood:   career.MoodNormal,
		stats:  map[career.Stat]int{},
	}
	for _, s := range career.AllStats {
		c.stats[s] = randutil.Between(c.rng, 80, 120)
	}
	c.rollTurn()
	return c
}

// Capture returns what the screen shows right now.
func (c *Career) Capture(ctx context.Context) (career.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return career.Snapshot{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++

	if randutil.Chance(c.faults, c.cfg.ReadFailureRate) {
		return career.Snapshot{}, ErrReadFault
	}
	if c.transitions > 0 {
		c.transitions--
		return career.Snapshot{Screen: career.ScreenTransition, Energy: career.EnergyUnknown, CapturedAt: time.Now()}, nil
	}

	snap := c.snapshot()
	if randutil.Chance(c.faults, c.cfg.AmbiguousRate) {
		snap.Issues = append(snap.Issues, "simulated glare over the status panel")
	}
	return snap, nil
}

// Execute applies action to the career.
func (c *Career) Execute(ctx context.Context, action career.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executions++

	if randutil.Chance(c.faults, c.cfg.ExecFailureRate) {
		return ErrExecFault
	}
	if err := c.apply(action); err != nil {
		return err
	}
	c.transitions = c.cfg.TransitionFrames
	return nil
}

// Summary returns the current standing.
func (c *Career) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make(map[career.Stat]int, len(c.stats))
	for k, v := range c.stats {
		stats[k] = v
	}
	return Summary{
		Turn:       c.turn,
		Turns:      c.cfg.Turns,
		Fans:       c.fans,
		FanGoal:    c.cfg.FanGoal,
		Energy:     c.energy,
		Mood:       c.mood,
		Stats:      stats,
		RacesWon:   c.racesWon,
		RacesRun:   c.racesRun,
		Failures:   c.failures,
		Captures:   c.captures,
		Executions: c.executions,
		Complete:   c.complete(),
	}
}

func (c *Career) complete() bool {
	return c.turn > c.cfg.Turns
}

func (c *Career) screen() career.Screen {
	switch {
	case c.complete():
		return career.ScreenComplete
	case c.event != nil:
		return career.ScreenEvent
	case isRaceDay(c.turn, c.cfg.Turns):
		return career.ScreenRaceDay
	default:
		return career.ScreenLobby
	}
}

func (c *Career) snapshot() career.Snapshot {
	snap := career.Snapshot{
		Screen:            c.screen(),
		Mood:              c.mood,
		Energy:            c.energy,
		Turn:              turnOf(c.turn),
		Debuffs:           append([]string(nil), c.debuffs...),
		Fans:              career.Fans{Current: c.fans, Goal: c.cfg.FanGoal},
		RecoveryAvailable: c.mood < career.MoodGreat,
		Objective:         c.objective(),
		Stats:             make(map[career.Stat]int, len(c.stats)),
		CapturedAt:        time.Now(),
	}
	for k, v := range c.stats {
		snap.Stats[k] = v
	}

	switch snap.Screen {
	case career.ScreenLobby:
		snap.Races = append([]career.Race(nil), c.races...)
		for _, t := range c.training {
			t.Gains = cloneGains(t.Gains)
			snap.Training = append(snap.Training, t)
		}
	case career.ScreenRaceDay:
		snap.Races = []career.Race{scheduledRace(c.turn, c.cfg.Turns)}
		snap.RaceMandated = true
	case career.ScreenEvent:
		prompt := c.event.prompt
		ev := &career.EventPrompt{Name: prompt.Name}
		for _, o := range prompt.Options {
			ev.Options = append(ev.Options, career.EventOption{Label: o.Label, Rewards: append([]career.Reward(nil), o.Rewards...)})
		}
		snap.Event = ev
	}
	return snap
}

func (c *Career) apply(action career.Action) error {
	screen := c.screen()
	if screen == career.ScreenComplete {
		return fmt.Errorf("%w: career is over", ErrInvalidAction)
	}
	if action.Kind == career.ActionWait {
		return nil
	}

	switch screen {
	case career.ScreenEvent:
		if action.Kind != career.ActionChooseEvent {
			return fmt.Errorf("%w: %s during an event", ErrInvalidAction, action)
		}
		return c.chooseEvent(action.EventChoice)
	case career.ScreenRaceDay:
		if action.Kind != career.ActionRace {
			return fmt.Errorf("%w: %s on race day", ErrInvalidAction, action)
		}
		c.runRace(scheduledRace(c.turn, c.cfg.Turns))
		c.objectiveMet = false
		c.endTurn()
		return nil
	}

	switch action.Kind {
	case career.ActionTrain:
		c.train(action.Stat)
	case career.ActionRest:
		c.energy = min(100, c.energy+randutil.Between(c.rng, 40, 60))
		if randutil.Chance(c.rng, 0.1) {
			c.mood = max(career.MoodWorse, c.mood-1)
		}
	case career.ActionRecreation:
		c.mood = min(career.MoodGreat, c.mood+1)
		c.energy = min(100, c.energy+10)
	case career.ActionHandleDebuff:
		c.debuffs = nil
		c.energy = min(100, c.energy+20)
	case career.ActionRace:
		race, ok := c.findRace(action.Race.Name)
		if !ok {
			return fmt.Errorf("%w: no race named %q this turn", ErrInvalidAction, action.Race.Name)
		}
		c.runRace(race)
		c.objectiveMet = true
	case career.ActionChooseEvent:
		return fmt.Errorf("%w: no event is open", ErrInvalidAction)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	c.endTurn()
	return nil
}

// objective shows the goal panel. Until the debut the objective is the debut
// race itself and can only be met on race day.
func (c *Career) objective() career.Objective {
	if c.complete() {
		return career.Objective{}
	}
	next := c.turn
	for !isRaceDay(next, c.cfg.Turns) {
		next++
	}
	return career.Objective{Met: c.objectiveMet, TurnsLeft: next - c.turn}
}

func (c *Career) train(stat career.Stat) {
	var opt *career.TrainingOption
	for i := range c.training {
		if c.training[i].Stat == stat {
			opt = &c.training[i]
		}
	}
	if opt == nil {
		return
	}

	if c.rng.IntN(100) < opt.FailureRisk {
		c.failures++
		c.energy = max(0, c.energy-5)
		c.mood = max(career.MoodWorse, c.mood-1)
		c.stats[stat] = max(0, c.stats[stat]-5)
		c.logger.Debug("Training failed", "stat", stat, "risk", opt.FailureRisk)
		return
	}

	for s, gain := range opt.Gains {
		if len(c.debuffs) > 0 {
			gain /= 2
		}
		c.stats[s] = min(statCap, c.stats[s]+gain)
	}
	if stat == career.Wit {
		c.energy = min(100, c.energy+5)
	} else {
		c.energy = max(0, c.energy-randutil.Between(c.rng, 18, 24))
	}
	if randutil.Chance(c.rng, 0.05) {
		c.addDebuff()
	}
}

func (c *Career) runRace(race career.Race) {
	c.racesRun++
	base := map[career.Grade]int{
		career.GradeG1:    9000,
		career.GradeG2:    5000,
		career.GradeG3:    3000,
		career.GradeOther: 1500,
	}[race.Grade]

	winChance := 0.25
	if race.AptitudeMatch {
		winChance = 0.55
	}
	if c.energy < 30 {
		winChance /= 2
	}

	gain := base / 4
	if randutil.Chance(c.rng, winChance) {
		c.racesWon++
		gain = base
		c.mood = min(career.MoodGreat, c.mood+1)
	} else if randutil.Chance(c.rng, 0.5) {
		gain = base / 2
	}
	c.fans += gain
	c.energy = max(0, c.energy-15)
	c.logger.Debug("Race finished", "race", race, "fans", gain)
}

func (c *Career) chooseEvent(option int) error {
	prompt := c.event.prompt
	if option < 0 || option >= len(prompt.Options) {
		return fmt.Errorf("%w: event option %d of %d", ErrInvalidAction, option+1, len(prompt.Options))
	}
	for _, r := range prompt.Options[option].Rewards {
		switch r.Kind {
		case career.RewardStat:
			if s, ok := career.ParseStat(r.Name); ok {
				c.stats[s] = max(0, min(statCap, c.stats[s]+r.Value))
			}
		case career.RewardEnergy:
			c.energy = max(0, min(100, c.energy+r.Value))
		case career.RewardStatus:
			c.addDebuff()
		}
	}
	c.event = nil
	return nil
}

func (c *Career) findRace(name string) (career.Race, bool) {
	for _, r := range c.races {
		if r.Name == name {
			return r, true
		}
	}
	return career.Race{}, false
}

var debuffNames = []string{"Night Owl", "Skin Outbreak", "Slacker", "Migraine"}

func (c *Career) addDebuff() {
	name := debuffNames[c.rng.IntN(len(debuffNames))]
	for _, d := range c.debuffs {
		if d == name {
			return
		}
	}
	c.debuffs = append(c.debuffs, name)
}

// endTurn advances the calendar and rolls what the next turn shows.
func (c *Career) endTurn() {
	c.turn++
	if c.complete() {
		c.races, c.training, c.event = nil, nil, nil
		return
	}
	if randutil.Chance(c.rng, 0.06) {
		c.mood = max(career.MoodWorse, c.mood-1)
	}
	c.rollTurn()
	if !isRaceDay(c.turn, c.cfg.Turns) && randutil.Chance(c.rng, 0.3) {
		c.event = &pendingEvent{prompt: randomEvent(c.rng)}
	}
}

func (c *Career) rollTurn() {
	c.training = c.training[:0]
	for _, s := range career.AllStats {
		c.training = append(c.training, c.rollTraining(s))
	}

	c.races = nil
	if c.turn > 12 && !isRaceDay(c.turn, c.cfg.Turns) {
		n := randutil.Between(c.rng, 0, 2)
		for i := 0; i < n; i++ {
			grade := career.Grade(randutil.Between(c.rng, int(career.GradeOther), int(career.GradeG1)))
			c.races = append(c.races, career.Race{
				Name:          fmt.Sprintf("%s %s", raceNames[c.rng.IntN(len(raceNames))], grade),
				Grade:         grade,
				AptitudeMatch: randutil.Chance(c.rng, 0.4),
			})
		}
	}
}

var baseGains = map[career.Stat]map[career.Stat]int{
	career.Speed:   {career.Speed: 10, career.Power: 3},
	career.Stamina: {career.Stamina: 9, career.Guts: 3},
	career.Power:   {career.Power: 9, career.Stamina: 3},
	career.Guts:    {career.Guts: 8, career.Speed: 3, career.Power: 3},
	career.Wit:     {career.Wit: 9, career.Speed: 2},
}

func (c *Career) rollTraining(stat career.Stat) career.TrainingOption {
	supports := randutil.Between(c.rng, 0, 4)
	rainbow := 0
	if supports > 0 && randutil.Chance(c.rng, 0.3) {
		rainbow = randutil.Between(c.rng, 1, supports)
	}

	moodBonus := int(c.mood) - int(career.MoodNormal)
	gains := make(map[career.Stat]int, 3)
	for s, g := range baseGains[stat] {
		gain := g + supports*2 + moodBonus
		if s == stat {
			gain += rainbow * 3
		}
		gains[s] = max(1, gain)
	}

	risk := 0
	if c.energy < 60 {
		risk = (60 - c.energy) * 6 / 5
	}
	risk += randutil.Between(c.rng, 0, 3)
	if stat == career.Wit {
		risk /= 2
	}
	return career.TrainingOption{
		Stat:        stat,
		Gains:       gains,
		FailureRisk: min(99, risk),
		Supports:    supports,
		Rainbow:     rainbow,
	}
}

func cloneGains(m map[career.Stat]int) map[career.Stat]int {
	out := make(map[career.Stat]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
