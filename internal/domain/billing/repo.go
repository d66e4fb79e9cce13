package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no invoice exists for the requested id or
// source.
var ErrNotFound = errors.New("invoice not found")

// Repository is the persistence gateway for invoices.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetBySource(ctx context.Context, sourceKind string, sourceID uuid.UUID) (*Invoice, error)
	List(ctx context.Context, limit, offset int) ([]*Invoice, int, error)
	UpdateStatus(ctx context.Context, inv *Invoice) error
	AddLine(ctx context.Context, line *InvoiceLine) error
}
