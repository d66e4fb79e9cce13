package surgery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hssvet/clinic-api/internal/domain/consent"
	"github.com/hssvet/clinic-api/internal/platform/notify"
)

// InvoiceCreator is the billing bridge. CreateFromCase must be idempotent
// per case: retries for a case that already has an invoice return the
// existing invoice id.
type InvoiceCreator interface {
	CreateFromCase(ctx context.Context, caseID uuid.UUID) (uuid.UUID, error)
}

// StockDeductor is the inventory bridge for consumed medications.
type StockDeductor interface {
	Deduct(ctx context.Context, itemID uuid.UUID, quantity int) error
}

// EventEmitter publishes workflow events to the configured webhook.
type EventEmitter interface {
	Emit(eventType, resource, resourceID string, payload interface{})
}

type Service struct {
	repo    Repository
	billing InvoiceCreator
	stock   StockDeductor
	events  EventEmitter
}

func NewService(repo Repository, billing InvoiceCreator, stock StockDeductor, events EventEmitter) *Service {
	return &Service{repo: repo, billing: billing, stock: stock, events: events}
}

// CreateInput carries the fields needed to schedule a new case.
type CreateInput struct {
	AnimalID     uuid.UUID  `json:"animal_id"`
	ClinicianID  *uuid.UUID `json:"clinician_id,omitempty"`
	Procedure    string     `json:"procedure"`
	PlannedStart time.Time  `json:"planned_start"`
}

// Create schedules a new case in planned status with an empty checklist.
func (s *Service) Create(ctx context.Context, in CreateInput) (*SurgicalCase, error) {
	if in.AnimalID == uuid.Nil {
		return nil, &ValidationError{Field: "animal_id", Msg: "is required"}
	}
	if in.Procedure == "" {
		return nil, &ValidationError{Field: "procedure", Msg: "is required"}
	}
	if in.PlannedStart.IsZero() {
		return nil, &ValidationError{Field: "planned_start", Msg: "is required"}
	}
	sc := &SurgicalCase{
		AnimalID:     in.AnimalID,
		ClinicianID:  in.ClinicianID,
		Procedure:    in.Procedure,
		PlannedStart: in.PlannedStart,
	}
	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SurgicalCase, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*SurgicalCase, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*SurgicalCase, int, error) {
	return s.repo.ListByAnimal(ctx, animalID, limit, offset)
}

// load fetches the case and enforces an optional caller-supplied version
// expectation. expectedVersion 0 means "no expectation".
func (s *Service) load(ctx context.Context, id uuid.UUID, expectedVersion int) (*SurgicalCase, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != sc.VersionID {
		return nil, ErrConflict
	}
	return sc, nil
}

// SaveChecklist replaces the checklist flags. A complete checklist moves
// a planned case to consents-pending; unchecking below completeness moves
// a consents-pending case back to planned so the stored status always
// agrees with the flags.
func (s *Service) SaveChecklist(ctx context.Context, id uuid.UUID, expectedVersion int, cl Checklist) (*SurgicalCase, error) {
	sc, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !sc.ChecklistEditable() {
		return nil, &PreconditionError{Op: "save checklist",
			Missing: []string{fmt.Sprintf("status must be %s or %s, is %s", StatusPlanned, StatusConsentsPending, sc.Status)}}
	}

	sc.Checklist = cl
	switch {
	case cl.Complete() && sc.Status == StatusPlanned:
		sc.Status = StatusConsentsPending
	case !cl.Complete() && sc.Status == StatusConsentsPending:
		sc.Status = StatusPlanned
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// SignConsentInput carries one captured consent form.
type SignConsentInput struct {
	FormType       string           `json:"form_type"`
	SignerName     string           `json:"signer_name"`
	SignerRelation string           `json:"signer_relation"`
	WitnessName    *string          `json:"witness_name,omitempty"`
	Strokes        []consent.Stroke `json:"strokes"`
}

// SignConsent rasterizes the captured strokes, validates the signer and
// appends a consent record to the case. Signing an already-signed form
// type adds a superseding record; prior records are never touched.
func (s *Service) SignConsent(ctx context.Context, id uuid.UUID, expectedVersion int, in SignConsentInput) (*SurgicalCase, error) {
	pad := consent.NewPad(0, 0)
	for _, st := range in.Strokes {
		pad.AddStroke(st)
	}
	rec, err := pad.Sign(in.FormType, in.SignerName, in.SignerRelation, in.WitnessName)
	if err != nil {
		if ve, ok := err.(*consent.ValidationError); ok {
			return nil, &ValidationError{Field: ve.Field, Msg: ve.Msg}
		}
		return nil, err
	}

	sc, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if sc.Status != StatusConsentsPending {
		return nil, &PreconditionError{Op: "sign consent",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusConsentsPending, sc.Status)}}
	}

	bound := &ConsentRecord{
		ID:             rec.ID,
		CaseID:         sc.ID,
		FormType:       rec.FormType,
		SignerName:     rec.SignerName,
		SignerRelation: rec.SignerRelation,
		WitnessName:    rec.WitnessName,
		SignatureImage: rec.SignatureImage,
		SignedAt:       rec.SignedAt,
	}
	if err := s.repo.AddConsent(ctx, bound); err != nil {
		return nil, err
	}
	sc.Consents = append(sc.Consents, bound)
	return sc, nil
}

// Start moves a ready case into progress and stamps the actual start
// time. Calling it on a case already in progress is a no-op returning the
// current state, so a retried request cannot fail spuriously.
func (s *Service) Start(ctx context.Context, id uuid.UUID, expectedVersion int) (*SurgicalCase, error) {
	sc, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if sc.Status == StatusInProgress {
		return sc, nil
	}
	if sc.EffectiveStatus() != StatusReady {
		missing := sc.Checklist.MissingItems()
		for _, ft := range sc.MissingConsents() {
			missing = append(missing, ft+" consent")
		}
		if len(missing) == 0 {
			missing = []string{fmt.Sprintf("status must be %s, is %s", StatusReady, sc.Status)}
		}
		return nil, &PreconditionError{Op: "start procedure", Missing: missing}
	}

	now := time.Now().UTC()
	sc.Status = StatusInProgress
	sc.ActualStart = &now
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// CompleteInput carries the discharge data required to finish a case.
type CompleteInput struct {
	DischargeType string `json:"discharge_type"`
	PostOpNotes   string `json:"post_op_notes"`
}

// Complete finishes an in-progress case: it persists the discharge data
// and end timestamp first, then requests invoice generation. A billing
// failure does not roll the completion back; it surfaces as a retryable
// HandoffError alongside the completed case. Re-completing an
// already-completed case with the same discharge type is a no-op and
// never produces a second invoice call.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, expectedVersion int, in CompleteInput) (*SurgicalCase, error) {
	if in.DischargeType == "" {
		return nil, &ValidationError{Field: "discharge_type", Msg: "is required"}
	}
	if !validDischargeTypes[in.DischargeType] {
		return nil, &ValidationError{Field: "discharge_type", Msg: fmt.Sprintf("unknown discharge type %q", in.DischargeType)}
	}

	sc, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if sc.Status == StatusCompleted {
		if sc.DischargeType != nil && *sc.DischargeType == in.DischargeType {
			return sc, nil
		}
		return nil, &PreconditionError{Op: "complete procedure",
			Missing: []string{fmt.Sprintf("already completed with discharge type %s", deref(sc.DischargeType))}}
	}
	if sc.Status != StatusInProgress {
		return nil, &PreconditionError{Op: "complete procedure",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusInProgress, sc.Status)}}
	}

	now := time.Now().UTC()
	sc.Status = StatusCompleted
	sc.ActualEnd = &now
	sc.DischargeType = &in.DischargeType
	if in.PostOpNotes != "" {
		sc.PostOpNotes = &in.PostOpNotes
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Emit(notify.EventCaseCompleted, "surgical_case", sc.ID.String(), sc)
	}
	if _, err := s.billing.CreateFromCase(ctx, sc.ID); err != nil {
		return sc, &HandoffError{Op: "invoice creation", Err: err}
	}
	return sc, nil
}

// RetryInvoice re-requests invoice generation for a completed case after
// a failed handoff. The billing bridge is idempotent per case, so a
// duplicate retry returns the existing invoice.
func (s *Service) RetryInvoice(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if sc.Status != StatusCompleted {
		return uuid.Nil, &PreconditionError{Op: "retry invoice",
			Missing: []string{fmt.Sprintf("status must be %s, is %s", StatusCompleted, sc.Status)}}
	}
	invoiceID, err := s.billing.CreateFromCase(ctx, sc.ID)
	if err != nil {
		return uuid.Nil, &HandoffError{Op: "invoice creation", Err: err}
	}
	return invoiceID, nil
}

// AddMedicationInput carries one consumed-medication entry.
type AddMedicationInput struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// AddMedication appends a consumed-medication entry to a case, then
// deducts the quantity from stock. Entries are accepted while the
// procedure runs and after completion, so drugs administered during
// close-out can still be recorded. The entry is persisted before the
// deduction; a failed deduction surfaces as a retryable HandoffError
// without removing the entry.
func (s *Service) AddMedication(ctx context.Context, id uuid.UUID, in AddMedicationInput) (*SurgicalCase, error) {
	if in.ItemID == uuid.Nil {
		return nil, &ValidationError{Field: "item_id", Msg: "is required"}
	}
	if in.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Msg: "must be positive"}
	}

	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc.Status != StatusInProgress && sc.Status != StatusCompleted {
		return nil, &PreconditionError{Op: "add medication",
			Missing: []string{fmt.Sprintf("status must be %s or %s, is %s", StatusInProgress, StatusCompleted, sc.Status)}}
	}

	use := &MedicationUse{
		CaseID:     sc.ID,
		ItemID:     in.ItemID,
		Quantity:   in.Quantity,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.repo.AddMedication(ctx, use); err != nil {
		return nil, err
	}
	sc.Medications = append(sc.Medications, use)

	if err := s.stock.Deduct(ctx, in.ItemID, in.Quantity); err != nil {
		return sc, &HandoffError{Op: "stock deduction", Err: err}
	}
	return sc, nil
}

// Cancel ends a non-terminal case. Cancelling an already-cancelled case
// is a no-op; cancelling a completed case fails.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int, reason string) (*SurgicalCase, error) {
	sc, err := s.load(ctx, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if sc.Status == StatusCancelled {
		return sc, nil
	}
	if sc.Status == StatusCompleted {
		return nil, &PreconditionError{Op: "cancel",
			Missing: []string{"completed cases cannot be cancelled"}}
	}

	sc.Status = StatusCancelled
	if reason != "" {
		sc.CancelReason = &reason
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
