package surgery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no case exists for the requested id.
var ErrNotFound = errors.New("surgical case not found")

// ErrConflict is returned when the persisted case has advanced past the
// version the caller read. The caller should reload and retry.
var ErrConflict = errors.New("surgical case was modified concurrently")

// ValidationError reports caller input that fails a local invariant. It
// is raised before any repository call is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// PreconditionError reports a transition whose guard is false given the
// current persisted state. Missing names the unmet preconditions so the
// caller can present an actionable message.
type PreconditionError struct {
	Op      string
	Missing []string
}

func (e *PreconditionError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s: precondition not met", e.Op)
	}
	return fmt.Sprintf("%s: precondition not met: %s", e.Op, strings.Join(e.Missing, ", "))
}

// HandoffError reports a failed bridge call made after the state change
// was already persisted. The transition stands; the handoff can be
// retried independently.
type HandoffError struct {
	Op  string
	Err error
}

func (e *HandoffError) Error() string {
	return fmt.Sprintf("%s handoff failed (state change persisted): %v", e.Op, e.Err)
}

func (e *HandoffError) Unwrap() error { return e.Err }
