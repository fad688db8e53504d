package career

import "fmt"

// ActionKind is the closed set of things the bot can do on a screen.
type ActionKind int

const (
	ActionWait ActionKind = iota
	ActionTrain
	ActionRace
	ActionRest
	ActionRecreation
	ActionHandleDebuff
	ActionChooseEvent
)

func (k ActionKind) String() string {
	switch k {
	case ActionWait:
		return "wait"
	case ActionTrain:
		return "train"
	case ActionRace:
		return "race"
	case ActionRest:
		return "rest"
	case ActionRecreation:
		return "recreation"
	case ActionHandleDebuff:
		return "handle-debuff"
	case ActionChooseEvent:
		return "choose-event"
	default:
		return "unknown"
	}
}

// ParseActionKind is the inverse of ActionKind.String.
func ParseActionKind(s string) (ActionKind, bool) {
	for k := ActionWait; k <= ActionChooseEvent; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return ActionWait, false
}

// Action is a single decision. Only the field matching Kind is meaningful:
// Stat for Train, Race for Race and EventChoice (zero-based) for ChooseEvent.
type Action struct {
	Kind        ActionKind
	Stat        Stat
	Race        Race
	EventChoice int
}

// Train selects the training facility for stat.
func Train(stat Stat) Action { return Action{Kind: ActionTrain, Stat: stat} }

// RaceIn enters race.
func RaceIn(race Race) Action { return Action{Kind: ActionRace, Race: race} }

// Rest skips the turn to recover energy.
func Rest() Action { return Action{Kind: ActionRest} }

// Recreation spends the turn on an outing, which recovers mood.
func Recreation() Action { return Action{Kind: ActionRecreation} }

// HandleDebuff visits the infirmary.
func HandleDebuff() Action { return Action{Kind: ActionHandleDebuff} }

// ChooseEvent picks the zero-based option of the current event dialog.
func ChooseEvent(option int) Action { return Action{Kind: ActionChooseEvent, EventChoice: option} }

// Wait does nothing this iteration.
func Wait() Action { return Action{Kind: ActionWait} }

func (a Action) String() string {
	switch a.Kind {
	case ActionTrain:
		return fmt.Sprintf("train %s", a.Stat)
	case ActionRace:
		return fmt.Sprintf("race %s", a.Race)
	case ActionChooseEvent:
		return fmt.Sprintf("choose event option %d", a.EventChoice+1)
	default:
		return a.Kind.String()
	}
}

// Dispatchable reports whether the action needs the executor at all.
func (a Action) Dispatchable() bool {
	return a.Kind != ActionWait
}
