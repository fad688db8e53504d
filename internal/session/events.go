package session

import (
	"fmt"
	"time"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/policy"
	"github.com/daftuyda/umamusume-auto-train/internal/statistics"
)

// State is the loop's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateDeciding
	StateActing
	StateVerifying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDeciding:
		return "deciding"
	case StateActing:
		return "acting"
	case StateVerifying:
		return "verifying"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason is why the loop reached Stopped.
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonGoalMet
	ReasonCareerComplete
	ReasonCancelled
	ReasonIterationLimit
	ReasonUnrecoverable
)

// StopCause is the terminal cause of a run. Failure is only meaningful when
// Reason is ReasonUnrecoverable.
type StopCause struct {
	Reason  StopReason
	Failure FailureKind
}

var (
	GoalMet        = StopCause{Reason: ReasonGoalMet}
	CareerComplete = StopCause{Reason: ReasonCareerComplete}
	Cancelled      = StopCause{Reason: ReasonCancelled}
	IterationLimit = StopCause{Reason: ReasonIterationLimit}
)

// Unrecoverable is the cause for a run stopped by repeated failures.
func Unrecoverable(kind FailureKind) StopCause {
	return StopCause{Reason: ReasonUnrecoverable, Failure: kind}
}

func (c StopCause) String() string {
	switch c.Reason {
	case ReasonGoalMet:
		return "goal-met"
	case ReasonCareerComplete:
		return "career-complete"
	case ReasonCancelled:
		return "cancelled"
	case ReasonIterationLimit:
		return "iteration-limit"
	case ReasonUnrecoverable:
		return fmt.Sprintf("unrecoverable(%s)", c.Failure)
	default:
		return "none"
	}
}

// Result is what Run returns once the loop has stopped.
type Result struct {
	Cause StopCause
	State career.SessionState
	Stats *statistics.Statistics
}

// EventKind classifies loop events.
type EventKind int

const (
	EventState EventKind = iota
	EventSnapshot
	EventDecision
	EventCommit
	EventFailure
	EventStop
)

// Event is what observers see of the loop.
type Event struct {
	Kind      EventKind
	Time      time.Time
	Iteration int
	State     State

	Snapshot *career.Snapshot
	Decision policy.Decision

	Failure FailureKind
	Err     error

	Cause    StopCause
	Fans     int
	FanGoal  int
	RacesRun int
}

// Observer receives loop events synchronously on the loop goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Step is one committed action as handed to a Recorder.
type Step struct {
	Seq       int
	Turn      career.Turn
	Action    career.Action
	Rule      string
	Reasoning string
	Mood      career.Mood
	Energy    int
	Fans      int
	At        time.Time
}
