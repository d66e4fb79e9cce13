package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Item maps to the inventory_item table: a stocked medication or
// consumable with its current on-hand quantity.
type Item struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	SKU            *string   `db:"sku" json:"sku,omitempty"`
	Unit           string    `db:"unit" json:"unit"`
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
	StockQuantity  int       `db:"stock_quantity" json:"stock_quantity"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
