package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, item *Item) error {
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	if item.Unit == "" {
		item.Unit = "unit"
	}
	if item.StockQuantity < 0 {
		return fmt.Errorf("stock_quantity cannot be negative")
	}
	item.IsActive = true
	return s.repo.Create(ctx, item)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, item *Item) error {
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.Update(ctx, item)
}

// Deduct removes quantity from stock. It fails with ErrInsufficientStock
// when the on-hand quantity is too low; the stored quantity never goes
// negative.
func (s *Service) Deduct(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return s.repo.Deduct(ctx, id, quantity)
}

// Restock adds quantity back to stock.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return s.repo.Restock(ctx, id, quantity)
}
