// Package career models what the bot knows about a training career: the
// per-iteration Snapshot read off the screen, the Action chosen for it and the
// SessionState the loop keeps between iterations.
package career

import "strings"

// Mood is the trainee's morale. Higher values are better; MoodUnknown means the
// reader could not recognise the mood label.
type Mood int

const (
	MoodUnknown Mood = iota
	MoodWorse
	MoodBad
	MoodNormal
	MoodGood
	MoodGreat
)

// String returns the on-screen label for the mood
func (m Mood) String() string {
	switch m {
	case MoodWorse:
		return "Worse"
	case MoodBad:
		return "Bad"
	case MoodNormal:
		return "Normal"
	case MoodGood:
		return "Good"
	case MoodGreat:
		return "Great"
	default:
		return "Unknown"
	}
}

// ParseMood maps reader output to a Mood. Anything unrecognised is MoodUnknown.
func ParseMood(s string) Mood {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GREAT":
		return MoodGreat
	case "GOOD":
		return MoodGood
	case "NORMAL":
		return MoodNormal
	case "BAD":
		return MoodBad
	case "WORSE", "AWFUL":
		return MoodWorse
	default:
		return MoodUnknown
	}
}

// Stat is one of the five trainable stats.
type Stat int

const (
	Speed Stat = iota
	Stamina
	Power
	Guts
	Wit
)

// AllStats lists the stats in on-screen order.
var AllStats = []Stat{Speed, Stamina, Power, Guts, Wit}

func (s Stat) String() string {
	switch s {
	case Speed:
		return "Speed"
	case Stamina:
		return "Stamina"
	case Power:
		return "Power"
	case Guts:
		return "Guts"
	case Wit:
		return "Wit"
	default:
		return "Unknown"
	}
}

// Key returns the short key used in config files and the agent protocol.
func (s Stat) Key() string {
	switch s {
	case Speed:
		return "spd"
	case Stamina:
		return "sta"
	case Power:
		return "pwr"
	case Guts:
		return "guts"
	case Wit:
		return "wit"
	default:
		return "unknown"
	}
}

// ParseStat accepts long names and short keys, case-insensitively.
func ParseStat(s string) (Stat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spd", "speed":
		return Speed, true
	case "sta", "stamina":
		return Stamina, true
	case "pwr", "power":
		return Power, true
	case "guts":
		return Guts, true
	case "wit", "wisdom", "int":
		return Wit, true
	default:
		return 0, false
	}
}

// Grade is a race grade. Higher is better, GradeOther is the zero value.
type Grade int

const (
	GradeOther Grade = iota
	GradeG3
	GradeG2
	GradeG1
)

func (g Grade) String() string {
	switch g {
	case GradeG1:
		return "G1"
	case GradeG2:
		return "G2"
	case GradeG3:
		return "G3"
	default:
		return "Other"
	}
}

// ParseGrade maps "G1", "g2", ... to a Grade; anything else is GradeOther.
func ParseGrade(s string) Grade {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "G1":
		return GradeG1
	case "G2":
		return GradeG2
	case "G3":
		return GradeG3
	default:
		return GradeOther
	}
}

// Screen identifies which UI the snapshot was taken from.
type Screen int

const (
	ScreenLobby Screen = iota
	ScreenEvent
	ScreenRaceDay
	ScreenTransition
	ScreenComplete
)

func (s Screen) String() string {
	switch s {
	case ScreenLobby:
		return "lobby"
	case ScreenEvent:
		return "event"
	case ScreenRaceDay:
		return "race-day"
	case ScreenTransition:
		return "transition"
	case ScreenComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParseScreen is the inverse of Screen.String. Unknown names map to
// ScreenTransition so an unrecognised UI is never acted upon.
func ParseScreen(s string) Screen {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lobby":
		return ScreenLobby
	case "event":
		return ScreenEvent
	case "race-day", "race_day", "raceday":
		return ScreenRaceDay
	case "complete":
		return ScreenComplete
	default:
		return ScreenTransition
	}
}
