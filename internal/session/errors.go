package session

import (
	"errors"
	"fmt"
)

var (
	// ErrReadFailure means the screen could not be captured or parsed.
	ErrReadFailure = errors.New("snapshot read failed")
	// ErrAmbiguousSnapshot means the snapshot could not be acted on safely.
	ErrAmbiguousSnapshot = errors.New("snapshot is ambiguous")
	// ErrExecutionFailure means the executor did not acknowledge an action.
	ErrExecutionFailure = errors.New("action execution failed")
	// ErrVerification means the screen after an action did not show its effect.
	ErrVerification = errors.New("action could not be verified")
	// ErrTimeout is the cause of a capture or execution that ran out of time.
	ErrTimeout = errors.New("timed out")
)

// FailureKind says which step of the loop failed.
type FailureKind int

const (
	FailureRead FailureKind = iota
	FailureAmbiguous
	FailureExecution
	FailureVerify
)

func (k FailureKind) String() string {
	switch k {
	case FailureRead:
		return "read"
	case FailureAmbiguous:
		return "ambiguous"
	case FailureExecution:
		return "execution"
	case FailureVerify:
		return "verify"
	default:
		return "unknown"
	}
}

// UnrecoverableError stops the loop after a bounded number of failures.
type UnrecoverableError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable %s failure after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Err
}
