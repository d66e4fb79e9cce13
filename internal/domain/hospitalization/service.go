package hospitalization

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hssvet/clinic-api/internal/platform/notify"
)

// InvoiceCreator is the billing bridge for discharged stays. It must be
// idempotent per stay.
type InvoiceCreator interface {
	CreateFromStay(ctx context.Context, stayID uuid.UUID) (uuid.UUID, error)
}

// EventEmitter publishes workflow events to the configured webhook.
type EventEmitter interface {
	Emit(eventType, resource, resourceID string, payload interface{})
}

type Service struct {
	repo    Repository
	billing InvoiceCreator
	events  EventEmitter
}

func NewService(repo Repository, billing InvoiceCreator, events EventEmitter) *Service {
	return &Service{repo: repo, billing: billing, events: events}
}

// AdmitInput carries the fields needed to open a stay.
type AdmitInput struct {
	AnimalID uuid.UUID  `json:"animal_id"`
	CaseID   *uuid.UUID `json:"case_id,omitempty"`
	Reason   string     `json:"reason"`
}

// Admit opens a new stay in admitted status.
func (s *Service) Admit(ctx context.Context, in AdmitInput) (*Stay, error) {
	if in.AnimalID == uuid.Nil {
		return nil, &ValidationError{Field: "animal_id", Msg: "is required"}
	}
	if in.Reason == "" {
		return nil, &ValidationError{Field: "reason", Msg: "is required"}
	}
	st := &Stay{
		AnimalID:   in.AnimalID,
		CaseID:     in.CaseID,
		Reason:     in.Reason,
		AdmittedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Stay, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Stay, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*Stay, int, error) {
	return s.repo.ListByAnimal(ctx, animalID, limit, offset)
}

func (s *Service) load(ctx context.Context, id uuid.UUID, expectedVersion int) (*Stay, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != st.VersionID {
		return nil, ErrConflict
	}
	return st, nil
}

// AddCareLog appends a care entry to an admitted stay.
func (s *Service) AddCareLog(ctx context.Context, id uuid.UUID, note string, recordedBy *string) (*Stay, error) {
	if note == "" {
		return nil, &ValidationError{Field: "note", Msg: "is required"}
	}
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusAdmitted {
		return nil, &PreconditionError{Op: "add care log",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusAdmitted, st.Status)}}
	}

	log := &CareLog{
		StayID:     st.ID,
		Note:       note,
		RecordedBy: recordedBy,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.repo.AddCareLog(ctx, log); err != nil {
		return nil, err
	}
	st.CareLogs = append(st.CareLogs, log)
	return st, nil
}

// Discharge closes an admitted stay, then requests invoice generation.
// Like case completion, the billing handoff runs only after the state
// change is persisted; a billing failure surfaces as a retryable
// HandoffError without rolling the discharge back. Re-discharging an
// already-discharged stay is a no-op.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, expectedVersion int, notes string) (*Stay, error) {
	st, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if st.Status == StatusDischarged {
		return st, nil
	}
	if st.Status != StatusAdmitted {
		return nil, &PreconditionError{Op: "discharge",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusAdmitted, st.Status)}}
	}

	now := time.Now().UTC()
	st.Status = StatusDischarged
	st.DischargedAt = &now
	if notes != "" {
		st.DischargeNotes = &notes
	}
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Emit(notify.EventStayDischarged, "stay", st.ID.String(), st)
	}
	if _, err := s.billing.CreateFromStay(ctx, st.ID); err != nil {
		return st, &HandoffError{Op: "invoice creation", Err: err}
	}
	return st, nil
}

// RetryInvoice re-requests invoice generation for a discharged stay.
func (s *Service) RetryInvoice(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if st.Status != StatusDischarged {
		return uuid.Nil, &PreconditionError{Op: "retry invoice",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusDischarged, st.Status)}}
	}
	invoiceID, err := s.billing.CreateFromStay(ctx, st.ID)
	if err != nil {
		return uuid.Nil, &HandoffError{Op: "invoice creation", Err: err}
	}
	return invoiceID, nil
}

// Cancel ends an admitted stay without discharge. Cancelling an
// already-cancelled stay is a no-op; cancelling a discharged stay fails.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int, reason string) (*Stay, error) {
	st, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if st.Status == StatusCancelled {
		return st, nil
	}
	if st.Status == StatusDischarged {
		return nil, &PreconditionError{Op: "cancel",
			Missing: []string{"discharged stays cannot be cancelled"}}
	}

	st.Status = StatusCancelled
	if reason != "" {
		st.CancelReason = &reason
	}
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
