// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorCode is a string type used for structured error reporting. Using a
// custom type ensures only predefined constants appear where a code is
// expected.
type ErrorCode string

const (
	ErrCodeConnection       ErrorCode = "CONNECTION_ERROR"
	ErrCodeStaleTarget      ErrorCode = "STALE_TARGET"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	ErrCodeAmbiguousTarget  ErrorCode = "AMBIGUOUS_TARGET"
	ErrCodeNoResolution     ErrorCode = "NO_RESOLUTION"
	ErrCodeIncompleteForm   ErrorCode = "INCOMPLETE_FORM"
	ErrCodeGateBlocked      ErrorCode = "GATE_BLOCKED"
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	ErrCodeExecution        ErrorCode = "EXECUTION_FAILURE"
)

// ConnectionError means the browser session is unreachable. The session
// manager retries attach, then falls back to launch; if both fail this
// surfaces as fatal.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("browser connection failed (endpoint %q): %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StaleTargetError means a target was resolved against a superseded DOM
// version. Retryable exactly once: re-observe, re-resolve, retry.
type StaleTargetError struct {
	TargetVersion  uint64
	CurrentVersion uint64
}

func (e *StaleTargetError) Error() string {
	return fmt.Sprintf("stale target: resolved at DOM version %d, page is at %d", e.TargetVersion, e.CurrentVersion)
}

// TimeoutError wraps a wait-for-condition that did not complete in time.
// Retryable once with re-observation, then surfaced.
type TimeoutError struct {
	Condition string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s: %v", e.Condition, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AmbiguousTargetError means an observation matched more than one element.
// Triggers ladder escalation, never a retry of the same level.
type AmbiguousTargetError struct {
	Level   FidelityLevel
	Matches int
	Spec    TargetSpec
}

func (e *AmbiguousTargetError) Error() string {
	return fmt.Sprintf("ambiguous target at %s level: %d elements match %+v", e.Level, e.Matches, e.Spec)
}

// IncompleteFormError is fatal after the fill/audit bound is exhausted.
// It carries the unresolved questions so the operator sees what remains.
type IncompleteFormError struct {
	FormID     string
	Rounds     int
	Unresolved []FormQuestion
}

func (e *IncompleteFormError) Error() string {
	return fmt.Sprintf("form %q incomplete after %d rounds: %d questions unresolved", e.FormID, e.Rounds, len(e.Unresolved))
}

// ErrNoResolution is the ladder-internal miss: the level captured fine but
// nothing matched the intent. The ladder escalates on it.
var ErrNoResolution = errors.New("observation did not resolve the target")

// ErrGateBlocked is returned when a mutating action is attempted while the
// interaction gate is not in Running. This is the safety contract; it is
// never retried automatically.
var ErrGateBlocked = errors.New("interaction gate is not in running state")

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// CodeOf maps an error to its taxonomy code for the step ledger.
func CodeOf(err error) ErrorCode {
	var (
		connErr  *ConnectionError
		staleErr *StaleTargetError
		toErr    *TimeoutError
		ambErr   *AmbiguousTargetError
		formErr  *IncompleteFormError
	)
	switch {
	case errors.As(err, &connErr):
		return ErrCodeConnection
	case errors.As(err, &staleErr):
		return ErrCodeStaleTarget
	case errors.As(err, &toErr):
		return ErrCodeTimeout
	case errors.As(err, &ambErr):
		return ErrCodeAmbiguousTarget
	case errors.As(err, &formErr):
		return ErrCodeIncompleteForm
	case errors.Is(err, ErrNoResolution):
		return ErrCodeNoResolution
	case errors.Is(err, ErrGateBlocked):
		return ErrCodeGateBlocked
	}
	return ErrCodeExecution
}
