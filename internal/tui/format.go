package tui

import (
	"fmt"
	"strings"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
)

// FormatEvent renders the log line for a loop event. State changes and raw
// snapshots have no line of their own.
func FormatEvent(e session.Event) (string, bool) {
	switch e.Kind {
	case session.EventDecision:
		if e.Decision.Ambiguous {
			return WarningStyle.Render("? ") + e.Decision.Reasoning, true
		}
		if e.Snapshot == nil {
			return "", false
		}
		return fmt.Sprintf("%s %s %s",
			TurnStyle.Render(turnLabel(e.Snapshot.Turn)),
			ActionStyle.Render(e.Decision.Action.String()),
			RuleStyle.Render("["+e.Decision.Rule+"]")), true

	case session.EventCommit:
		if e.Snapshot == nil {
			return "", false
		}
		s := e.Snapshot
		return InfoStyle.Render(fmt.Sprintf("  ok: energy %s, mood %s, fans %d",
			energyLabel(s.Energy), s.Mood, s.Fans.Current)), true

	case session.EventFailure:
		return ErrorStyle.Render(fmt.Sprintf("! %s failure", e.Failure)) + " " + errText(e.Err), true

	case session.EventStop:
		line := fmt.Sprintf("Stopped: %s (fans %d, races %d)", e.Cause, e.Fans, e.RacesRun)
		if e.Err != nil {
			return ErrorStyle.Render(line) + " " + errText(e.Err), true
		}
		return SuccessStyle.Render(line), true
	}
	return "", false
}

func turnLabel(t career.Turn) string {
	if t.Index == 0 {
		return "T--"
	}
	if t.Label == "" {
		return fmt.Sprintf("T%02d", t.Index)
	}
	return fmt.Sprintf("T%02d %s", t.Index, t.Label)
}

func energyLabel(e int) string {
	if e == career.EnergyUnknown {
		return "?"
	}
	return fmt.Sprintf("%d", e)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

// Status is the sidebar summary, rebuilt from events.
type Status struct {
	State    session.State
	Screen   career.Screen
	Turn     career.Turn
	Mood     career.Mood
	Energy   int
	Debuffs  []string
	Fans     int
	FanGoal  int
	RacesRun int
	Steps    int
	Failures int
	LastRule string
	Stopped  *session.StopCause
}

// Apply folds e into the status.
func (s *Status) Apply(e session.Event) {
	s.State = e.State
	s.Fans = e.Fans
	s.FanGoal = e.FanGoal
	s.RacesRun = e.RacesRun

	switch e.Kind {
	case session.EventSnapshot:
		snap := e.Snapshot
		if snap == nil || snap.Screen == career.ScreenTransition {
			return
		}
		s.Screen = snap.Screen
		if snap.Turn.Index > 0 {
			s.Turn = snap.Turn
		}
		if snap.Mood != career.MoodUnknown {
			s.Mood = snap.Mood
		}
		s.Energy = snap.Energy
		s.Debuffs = append(s.Debuffs[:0], snap.Debuffs...)
	case session.EventCommit:
		s.Steps++
		s.LastRule = e.Decision.Rule
	case session.EventFailure:
		s.Failures++
	case session.EventStop:
		cause := e.Cause
		s.Stopped = &cause
	}
}

// Render draws the sidebar content.
func (s Status) Render() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(" Career "))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Turn:   %s\n", turnLabel(s.Turn))
	if s.Turn.Year != "" {
		fmt.Fprintf(&b, "        %s\n", InfoStyle.Render(s.Turn.Year))
	}
	fmt.Fprintf(&b, "Screen: %s\n", s.Screen)
	fmt.Fprintf(&b, "Mood:   %s\n", moodStyle(s.Mood.String()).Render(s.Mood.String()))
	fmt.Fprintf(&b, "Energy: %s\n", energyBar(s.Energy))
	if len(s.Debuffs) > 0 {
		fmt.Fprintf(&b, "Debuff: %s\n", WarningStyle.Render(strings.Join(s.Debuffs, ", ")))
	}
	b.WriteString("\n")

	if s.FanGoal > 0 {
		fmt.Fprintf(&b, "Fans:   %d / %d\n", s.Fans, s.FanGoal)
	} else {
		fmt.Fprintf(&b, "Fans:   %d\n", s.Fans)
	}
	fmt.Fprintf(&b, "Races:  %d\n", s.RacesRun)
	fmt.Fprintf(&b, "Steps:  %d\n", s.Steps)
	if s.Failures > 0 {
		fmt.Fprintf(&b, "Fails:  %s\n", ErrorStyle.Render(fmt.Sprintf("%d", s.Failures)))
	}
	b.WriteString("\n")

	if s.Stopped != nil {
		b.WriteString(SuccessStyle.Render("Stopped: " + s.Stopped.String()))
	} else {
		b.WriteString(InfoStyle.Render("Loop: " + s.State.String()))
	}
	return b.String()
}

func energyBar(e int) string {
	if e < 0 || e > 100 {
		return InfoStyle.Render("unknown")
	}
	const width = 10
	filled := (e + 5) / 10
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	style := SuccessStyle
	switch {
	case e < 30:
		style = ErrorStyle
	case e < 50:
		style = WarningStyle
	}
	return style.Render(bar) + fmt.Sprintf(" %d", e)
}
