package hospitalization

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no stay exists for the requested id.
var ErrNotFound = errors.New("stay not found")

// ErrConflict is returned when the persisted stay has advanced past the
// version the caller read.
var ErrConflict = errors.New("stay was modified concurrently")

// ValidationError reports caller input that fails a local invariant.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// PreconditionError reports a transition whose guard is false given the
// current persisted state.
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
// was already persisted.
type HandoffError struct {
	Op  string
	Err error
}

func (e *HandoffError) Error() string {
	return fmt.Sprintf("%s handoff failed (state change persisted): %v", e.Op, e.Err)
}

func (e *HandoffError) Unwrap() error { return e.Err }

// Repository is the persistence gateway for stays.
type Repository interface {
	Create(ctx context.Context, st *Stay) error
	GetByID(ctx context.Context, id uuid.UUID) (*Stay, error)
	List(ctx context.Context, limit, offset int) ([]*Stay, int, error)
	ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*Stay, int, error)

	// Update writes the mutable stay fields guarded by the version the
	// caller read, returning ErrConflict on a stale write.
	Update(ctx context.Context, st *Stay) error

	// AddCareLog appends a care entry. Entries are never modified.
	AddCareLog(ctx context.Context, log *CareLog) error
}
