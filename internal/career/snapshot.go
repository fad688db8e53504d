package career

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// EnergyUnknown marks an energy bar the reader could not measure.
const EnergyUnknown = -1

// RiskUnknown marks a training failure chance the reader could not parse.
const RiskUnknown = -1

// Turn is the calendar marker shown in the lobby. Index increases by one per
// career turn; zero means the reader could not read it.
type Turn struct {
	Index int
	Year  string
	Label string
}

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var fullMonthNames = []string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}

// Junior reports whether the turn falls in the first career year.
func (t Turn) Junior() bool {
	return strings.HasPrefix(strings.TrimSpace(t.Year), "Junior")
}

// PreDebut reports whether the character has not run its debut yet.
func (t Turn) PreDebut() bool {
	return strings.Contains(t.Year, "Pre-Debut") || strings.Contains(t.Label, "Pre-Debut")
}

// Month returns the month named by the label ("Early Jun" -> "Jun"), falling
// back to the year text, or "" when neither names one.
func (t Turn) Month() string {
	for _, text := range []string{t.Label, t.Year} {
		for _, field := range strings.Fields(text) {
			for i, m := range monthNames {
				if strings.EqualFold(field, m) || strings.EqualFold(field, fullMonthNames[i]) {
					return m
				}
			}
		}
	}
	return ""
}

// Objective is the career goal panel: the current objective and the turns
// left to meet it. TurnsLeft is zero when the counter was not read.
type Objective struct {
	Met       bool
	TurnsLeft int
}

// Urgent reports whether an unmet objective is due in fewer than within turns.
func (o Objective) Urgent(within int) bool {
	return !o.Met && o.TurnsLeft > 0 && o.TurnsLeft < within
}

// Race is one entry of the race list.
type Race struct {
	Name          string
	AptitudeMatch bool
	Grade         Grade
}

func (r Race) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Grade)
}

// TrainingOption is the preview of one training facility.
type TrainingOption struct {
	Stat        Stat
	Gains       map[Stat]int
	FailureRisk int // percent, RiskUnknown if unreadable
	Supports    int // support cards present
	Rainbow     int // support cards whose type matches Stat
}

// Fans is the current fan count and the goal shown on screen.
type Fans struct {
	Current int
	Goal    int
}

// RewardKind classifies a single event reward line.
type RewardKind int

const (
	RewardUnknown RewardKind = iota
	RewardStat
	RewardEnergy
	RewardSkillPoints
	RewardBond
	RewardHint
	RewardStatus
	RewardText
)

func (k RewardKind) String() string {
	switch k {
	case RewardStat:
		return "stat"
	case RewardEnergy:
		return "energy"
	case RewardSkillPoints:
		return "skill_points"
	case RewardBond:
		return "bond"
	case RewardHint:
		return "hint"
	case RewardStatus:
		return "status"
	case RewardText:
		return "text"
	default:
		return "unknown"
	}
}

// Reward is one normalised outcome of an event option.
type Reward struct {
	Kind  RewardKind
	Name  string
	Value int
	Text  string
}

// EventOption is one selectable answer of a training event.
type EventOption struct {
	Label   string
	Rewards []Reward
}

// EventPrompt is a training event dialog.
type EventPrompt struct {
	Name    string
	Options []EventOption
}

// HasRewards reports whether any option carries reward data.
func (e *EventPrompt) HasRewards() bool {
	if e == nil {
		return false
	}
	for _, opt := range e.Options {
		if len(opt.Rewards) > 0 {
			return true
		}
	}
	return false
}

// Snapshot is the structured reading of one screen capture. It is produced
// once per loop iteration and never modified afterwards.
type Snapshot struct {
	Screen            Screen
	Mood              Mood
	Energy            int
	Turn              Turn
	Debuffs           []string
	Races             []Race
	Training          []TrainingOption
	Fans              Fans
	RecoveryAvailable bool
	RaceMandated      bool
	Objective         Objective
	Stats             map[Stat]int
	Event             *EventPrompt
	Issues            []string
	CapturedAt        time.Time
}

// EnergyKnown reports whether the energy bar was measured.
func (s Snapshot) EnergyKnown() bool {
	return s.Energy >= 0 && s.Energy <= 100
}

// Ambiguity reports why the snapshot cannot be acted on, if it cannot.
func (s Snapshot) Ambiguity() (string, bool) {
	if len(s.Issues) > 0 {
		return "low-confidence read: " + strings.Join(s.Issues, ", "), true
	}
	switch s.Screen {
	case ScreenTransition:
		return "screen is mid-transition", true
	case ScreenEvent:
		if s.Event == nil || len(s.Event.Options) == 0 {
			return "event screen without readable options", true
		}
		return "", false
	case ScreenLobby:
		if s.Mood == MoodUnknown {
			return "mood unreadable", true
		}
		if !s.EnergyKnown() {
			return "energy bar unreadable", true
		}
		if len(s.Training) > 0 {
			for _, opt := range s.Training {
				if opt.FailureRisk != RiskUnknown {
					return "", false
				}
			}
			return "every training failure chance unreadable", true
		}
	}
	return "", false
}

// GoalMet reports whether the fan count has reached goal. A goal of zero is
// never met.
func (s Snapshot) GoalMet(goal int) bool {
	return goal > 0 && s.Fans.Current >= goal
}

// Fingerprint digests the fields the policy looks at. Two reads with the same
// fingerprint show the same decision-relevant UI.
func (s Snapshot) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d|%d|%s|", s.Screen, s.Mood, s.Energy, s.Turn.Index, s.Turn.Label)
	fmt.Fprintf(&b, "%d/%d|%t|%t|", s.Fans.Current, s.Fans.Goal, s.RecoveryAvailable, s.RaceMandated)
	fmt.Fprintf(&b, "%t:%d|", s.Objective.Met, s.Objective.TurnsLeft)
	debuffs := slices.Clone(s.Debuffs)
	slices.Sort(debuffs)
	b.WriteString(strings.Join(debuffs, ","))
	b.WriteByte('|')
	for _, r := range s.Races {
		fmt.Fprintf(&b, "%s:%t:%d;", r.Name, r.AptitudeMatch, r.Grade)
	}
	b.WriteByte('|')
	for _, t := range s.Training {
		fmt.Fprintf(&b, "%d:%d:%d:%d;", t.Stat, t.FailureRisk, t.Supports, t.Rainbow)
	}
	if s.Event != nil {
		fmt.Fprintf(&b, "|%s:%d", s.Event.Name, len(s.Event.Options))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Clone returns a deep copy so callers can derive modified snapshots without
// touching the original.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Debuffs = slices.Clone(s.Debuffs)
	c.Races = slices.Clone(s.Races)
	c.Issues = slices.Clone(s.Issues)
	if s.Training != nil {
		c.Training = make([]TrainingOption, len(s.Training))
		for i, t := range s.Training {
			t.Gains = cloneStats(t.Gains)
			c.Training[i] = t
		}
	}
	c.Stats = cloneStats(s.Stats)
	if s.Event != nil {
		ev := &EventPrompt{Name: s.Event.Name, Options: make([]EventOption, len(s.Event.Options))}
		for i, opt := range s.Event.Options {
			ev.Options[i] = EventOption{Label: opt.Label, Rewards: slices.Clone(opt.Rewards)}
		}
		c.Event = ev
	}
	return c
}

func cloneStats(m map[Stat]int) map[Stat]int {
	if m == nil {
		return nil
	}
	out := make(map[Stat]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
