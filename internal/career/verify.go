package career

import (
	"errors"
	"fmt"
)

// ErrNoEffect is returned by Verify when the post-action snapshot does not show
// what the action should have done.
var ErrNoEffect = errors.New("action had no visible effect")

// Verify checks that after shows the expected effect of action taken on before.
// Any turn advance counts as an effect; otherwise each kind has its own signal.
func Verify(action Action, before, after Snapshot) error {
	if action.Kind == ActionWait {
		return nil
	}
	if before.Turn.Index > 0 && after.Turn.Index > before.Turn.Index {
		return nil
	}

	switch action.Kind {
	case ActionTrain:
		if before.EnergyKnown() && after.EnergyKnown() && after.Energy < before.Energy {
			return nil
		}
		return noEffect(action, "energy did not drop")
	case ActionRest:
		if before.EnergyKnown() && after.EnergyKnown() && after.Energy > before.Energy {
			return nil
		}
		return noEffect(action, "energy did not recover")
	case ActionRecreation:
		if before.Mood != MoodUnknown && after.Mood > before.Mood {
			return nil
		}
		return noEffect(action, "mood did not improve")
	case ActionRace:
		if after.Fans.Current > before.Fans.Current {
			return nil
		}
		return noEffect(action, "fan count unchanged")
	case ActionHandleDebuff:
		if len(after.Debuffs) < len(before.Debuffs) {
			return nil
		}
		return noEffect(action, "debuffs still present")
	case ActionChooseEvent:
		if after.Screen != ScreenEvent {
			return nil
		}
		if before.Event != nil && after.Event != nil && after.Event.Name != before.Event.Name {
			return nil
		}
		return noEffect(action, "event dialog still open")
	}
	return noEffect(action, "unknown action kind")
}

func noEffect(action Action, why string) error {
	return fmt.Errorf("%s: %s: %w", action, why, ErrNoEffect)
}
