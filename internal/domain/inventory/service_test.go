package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, item *Item) error {
	item.ID = uuid.New()
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Item, int, error) {
	var items []*Item
	for _, it := range m.items {
		items = append(items, it)
	}
	return items, len(items), nil
}

func (m *mockRepo) Update(_ context.Context, item *Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) Deduct(_ context.Context, id uuid.UUID, quantity int) error {
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if item.StockQuantity < quantity {
		return ErrInsufficientStock
	}
	item.StockQuantity -= quantity
	return nil
}

func (m *mockRepo) Restock(_ context.Context, id uuid.UUID, quantity int) error {
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	item.StockQuantity += quantity
	return nil
}

func seedItem(t *testing.T, svc *Service, stock int) *Item {
	t.Helper()
	item := &Item{Name: "propofol", Unit: "ml", UnitPriceCents: 1500, StockQuantity: stock}
	if err := svc.Create(context.Background(), item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func TestService_Create(t *testing.T) {
	svc := NewService(newMockRepo())
	item := seedItem(t, svc, 10)
	if !item.IsActive {
		t.Error("new item not active")
	}

	if err := svc.Create(context.Background(), &Item{}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.Create(context.Background(), &Item{Name: "x", StockQuantity: -1}); err == nil {
		t.Error("expected error for negative stock")
	}
}

func TestService_Deduct(t *testing.T) {
	svc := NewService(newMockRepo())
	item := seedItem(t, svc, 10)
	ctx := context.Background()

	if err := svc.Deduct(ctx, item.ID, 4); err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	got, _ := svc.Get(ctx, item.ID)
	if got.StockQuantity != 6 {
		t.Errorf("stock = %d, want 6", got.StockQuantity)
	}
}

func TestService_Deduct_InsufficientStock(t *testing.T) {
	svc := NewService(newMockRepo())
	item := seedItem(t, svc, 3)
	ctx := context.Background()

	err := svc.Deduct(ctx, item.ID, 5)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("err = %v, want ErrInsufficientStock", err)
	}
	got, _ := svc.Get(ctx, item.ID)
	if got.StockQuantity != 3 {
		t.Errorf("stock = %d, want unchanged 3", got.StockQuantity)
	}
}

func TestService_Deduct_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	item := seedItem(t, svc, 3)

	if err := svc.Deduct(context.Background(), item.ID, 0); err == nil {
		t.Error("expected error for zero quantity")
	}
	if err := svc.Deduct(context.Background(), uuid.New(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestService_Restock(t *testing.T) {
	svc := NewService(newMockRepo())
	item := seedItem(t, svc, 2)
	ctx := context.Background()

	if err := svc.Restock(ctx, item.ID, 8); err != nil {
		t.Fatalf("Restock: %v", err)
	}
	got, _ := svc.Get(ctx, item.ID)
	if got.StockQuantity != 10 {
		t.Errorf("stock = %d, want 10", got.StockQuantity)
	}
}
