package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	StatusDraft  = "draft"
	StatusIssued = "issued"
	StatusPaid   = "paid"
	StatusVoid   = "void"
)

var validStatuses = map[string]bool{
	StatusDraft:  true,
	StatusIssued: true,
	StatusPaid:   true,
	StatusVoid:   true,
}

// Source kinds an invoice can be generated from.
const (
	SourceSurgicalCase = "surgical_case"
	SourceStay         = "stay"
)

// Invoice maps to the invoice table. At most one invoice exists per
// source record; repeated generation requests return the existing one.
type Invoice struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SourceKind string     `db:"source_kind" json:"source_kind"`
	SourceID   uuid.UUID  `db:"source_id" json:"source_id"`
	AnimalID   uuid.UUID  `db:"animal_id" json:"animal_id"`
	Status     string     `db:"status" json:"status"`
	TotalCents int64      `db:"total_cents" json:"total_cents"`
	Note       *string    `db:"note" json:"note,omitempty"`
	IssuedAt   *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`

	Lines []*InvoiceLine `json:"lines,omitempty"`
}

// InvoiceLine maps to the invoice_line table.
type InvoiceLine struct {
	ID             uuid.UUID `db:"id" json:"id"`
	InvoiceID      uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description    string    `db:"description" json:"description"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
}

// Total sums the line amounts in cents.
func (inv *Invoice) Total() int64 {
	var total int64
	for _, l := range inv.Lines {
		total += int64(l.Quantity) * l.UnitPriceCents
	}
	return total
}
