package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no item exists for the requested id.
var ErrNotFound = errors.New("inventory item not found")

// ErrInsufficientStock is returned when a deduction would take the
// on-hand quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository is the persistence gateway for inventory items. Deduct and
// Restock must adjust the stored quantity atomically.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, limit, offset int) ([]*Item, int, error)
	Update(ctx context.Context, item *Item) error
	Deduct(ctx context.Context, id uuid.UUID, quantity int) error
	Restock(ctx context.Context, id uuid.UUID, quantity int) error
}
