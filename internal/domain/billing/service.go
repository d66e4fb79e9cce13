package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LineInput is one billable item supplied by a source reader.
type LineInput struct {
	Description    string
	Quantity       int
	UnitPriceCents int64
}

// SourceInfo is the billing view of a completed workflow record.
type SourceInfo struct {
	AnimalID uuid.UUID
	Lines    []LineInput
}

// SourceReader resolves a workflow record into billable lines. The
// concrete readers are adapters over the surgery and hospitalization
// services, wired at startup.
type SourceReader interface {
	BillingInfo(ctx context.Context, sourceID uuid.UUID) (*SourceInfo, error)
}

// TxRunner executes fn atomically. The default runs fn directly; main
// installs db.WithTx so the invoice and its lines commit together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo    Repository
	readers map[string]SourceReader
	runTx   TxRunner
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:    repo,
		readers: make(map[string]SourceReader),
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

// RegisterReader binds a source kind to its reader.
func (s *Service) RegisterReader(sourceKind string, r SourceReader) {
	s.readers[sourceKind] = r
}

// SetTxRunner installs the transaction wrapper used for multi-statement
// writes.
func (s *Service) SetTxRunner(run TxRunner) {
	s.runTx = run
}

// CreateFromCase generates a draft invoice for a completed surgical
// case. It is idempotent per case: if an invoice already exists for the
// case its id is returned and nothing new is created.
func (s *Service) CreateFromCase(ctx context.Context, caseID uuid.UUID) (uuid.UUID, error) {
	return s.createFromSource(ctx, SourceSurgicalCase, caseID)
}

// CreateFromStay generates a draft invoice for a discharged stay, with
// the same idempotency guarantee.
func (s *Service) CreateFromStay(ctx context.Context, stayID uuid.UUID) (uuid.UUID, error) {
	return s.createFromSource(ctx, SourceStay, stayID)
}

func (s *Service) createFromSource(ctx context.Context, sourceKind string, sourceID uuid.UUID) (uuid.UUID, error) {
	existing, err := s.repo.GetBySource(ctx, sourceKind, sourceID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return uuid.Nil, err
	}

	reader, ok := s.readers[sourceKind]
	if !ok {
		return uuid.Nil, fmt.Errorf("no billing reader for source kind %q", sourceKind)
	}
	info, err := reader.BillingInfo(ctx, sourceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve %s %s: %w", sourceKind, sourceID, err)
	}

	inv := &Invoice{
		SourceKind: sourceKind,
		SourceID:   sourceID,
		AnimalID:   info.AnimalID,
		Status:     StatusDraft,
	}
	for _, l := range info.Lines {
		inv.Lines = append(inv.Lines, &InvoiceLine{
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	inv.TotalCents = inv.Total()

	// The invoice and its lines must land together: a partial invoice
	// would satisfy the idempotency lookup above and block every retry.
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, line := range inv.Lines {
			line.InvoiceID = inv.ID
			if err := s.repo.AddLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return inv.ID, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// transition writes the invoice with the new status after checking the
// target against the known vocabulary.
func (s *Service) transition(ctx context.Context, inv *Invoice, to string) error {
	if !validStatuses[to] {
		return fmt.Errorf("invalid invoice status %q", to)
	}
	inv.Status = to
	return s.repo.UpdateStatus(ctx, inv)
}

// Issue moves a draft invoice to issued. Issuing an already-issued
// invoice is a no-op.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusIssued || inv.Status == StatusPaid {
		return inv, nil
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("cannot issue invoice in status %s", inv.Status)
	}
	now := time.Now().UTC()
	inv.IssuedAt = &now
	if err := s.transition(ctx, inv, StatusIssued); err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkPaid records payment on an issued invoice. Paying an already-paid
// invoice is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid {
		return inv, nil
	}
	if inv.Status != StatusIssued {
		return nil, fmt.Errorf("cannot pay invoice in status %s", inv.Status)
	}
	now := time.Now().UTC()
	inv.PaidAt = &now
	if err := s.transition(ctx, inv, StatusPaid); err != nil {
		return nil, err
	}
	return inv, nil
}

// Void cancels a draft or issued invoice, for example one generated
// against the wrong record. Voiding an already-void invoice is a no-op;
// a paid invoice cannot be voided.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusVoid {
		return inv, nil
	}
	if inv.Status == StatusPaid {
		return nil, fmt.Errorf("cannot void invoice in status %s", inv.Status)
	}
	if err := s.transition(ctx, inv, StatusVoid); err != nil {
		return nil, err
	}
	return inv, nil
}
