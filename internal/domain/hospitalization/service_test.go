package hospitalization

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	stays map[uuid.UUID]Stay
	logs  map[uuid.UUID][]*CareLog
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		stays: make(map[uuid.UUID]Stay),
		logs:  make(map[uuid.UUID][]*CareLog),
	}
}

func (m *mockRepo) Create(_ context.Context, st *Stay) error {
	st.ID = uuid.New()
	st.Status = StatusAdmitted
	st.VersionID = 1
	m.stays[st.ID] = *st
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Stay, error) {
	stored, ok := m.stays[id]
	if !ok {
		return nil, ErrNotFound
	}
	st := stored
	st.CareLogs = append([]*CareLog(nil), m.logs[id]...)
	return &st, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Stay, int, error) {
	var items []*Stay
	for id := range m.stays {
		st, _ := m.GetByID(context.Background(), id)
		items = append(items, st)
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByAnimal(_ context.Context, animalID uuid.UUID, limit, offset int) ([]*Stay, int, error) {
	var items []*Stay
	for id, st := range m.stays {
		if st.AnimalID == animalID {
			full, _ := m.GetByID(context.Background(), id)
			items = append(items, full)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Update(_ context.Context, st *Stay) error {
	stored, ok := m.stays[st.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.VersionID != st.VersionID {
		return ErrConflict
	}
	st.VersionID++
	cp := *st
	cp.CareLogs = nil
	m.stays[st.ID] = cp
	return nil
}

func (m *mockRepo) AddCareLog(_ context.Context, log *CareLog) error {
	log.ID = uuid.New()
	m.logs[log.StayID] = append(m.logs[log.StayID], log)
	return nil
}

type mockBilling struct {
	calls    int
	failNext bool
	invoices map[uuid.UUID]uuid.UUID
}

func newMockBilling() *mockBilling {
	return &mockBilling{invoices: make(map[uuid.UUID]uuid.UUID)}
}

func (m *mockBilling) CreateFromStay(_ context.Context, stayID uuid.UUID) (uuid.UUID, error) {
	m.calls++
	if m.failNext {
		m.failNext = false
		return uuid.Nil, errors.New("billing unavailable")
	}
	if existing, ok := m.invoices[stayID]; ok {
		return existing, nil
	}
	id := uuid.New()
	m.invoices[stayID] = id
	return id, nil
}

type fixture struct {
	svc     *Service
	billing *mockBilling
}

func newFixture() *fixture {
	billing := newMockBilling()
	return &fixture{svc: NewService(newMockRepo(), billing, nil), billing: billing}
}

func (f *fixture) admit(t *testing.T) *Stay {
	t.Helper()
	st, err := f.svc.Admit(context.Background(), AdmitInput{AnimalID: uuid.New(), Reason: "post-op observation"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	return st
}

func TestService_Admit(t *testing.T) {
	f := newFixture()
	st := f.admit(t)
	if st.Status != StatusAdmitted {
		t.Errorf("status = %q, want admitted", st.Status)
	}
	if st.AdmittedAt.IsZero() {
		t.Error("admitted_at not stamped")
	}
}

func TestService_Admit_Validation(t *testing.T) {
	f := newFixture()
	var ve *ValidationError

	_, err := f.svc.Admit(context.Background(), AdmitInput{Reason: "x"})
	if !errors.As(err, &ve) {
		t.Errorf("missing animal: err = %v", err)
	}
	_, err = f.svc.Admit(context.Background(), AdmitInput{AnimalID: uuid.New()})
	if !errors.As(err, &ve) {
		t.Errorf("missing reason: err = %v", err)
	}
}

func TestService_AddCareLog(t *testing.T) {
	f := newFixture()
	st := f.admit(t)
	ctx := context.Background()

	st, err := f.svc.AddCareLog(ctx, st.ID, "ate well, temperature normal", nil)
	if err != nil {
		t.Fatalf("AddCareLog: %v", err)
	}
	if len(st.CareLogs) != 1 {
		t.Fatalf("care logs = %d, want 1", len(st.CareLogs))
	}

	// Entries accumulate, never replace.
	st, err = f.svc.AddCareLog(ctx, st.ID, "medication administered", nil)
	if err != nil {
		t.Fatalf("second AddCareLog: %v", err)
	}
	if len(st.CareLogs) != 2 {
		t.Errorf("care logs = %d, want 2", len(st.CareLogs))
	}
}

func TestService_AddCareLog_RequiresAdmitted(t *testing.T) {
	f := newFixture()
	st := f.admit(t)
	ctx := context.Background()

	if _, err := f.svc.Discharge(ctx, st.ID, 0, "recovered"); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	_, err := f.svc.AddCareLog(ctx, st.ID, "late note", nil)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Errorf("err = %v, want *PreconditionError", err)
	}
}

func TestService_Discharge(t *testing.T) {
	f := newFixture()
	st := f.admit(t)

	st, err := f.svc.Discharge(context.Background(), st.ID, 0, "recovered")
	if err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	if st.Status != StatusDischarged {
		t.Errorf("status = %q, want discharged", st.Status)
	}
	if st.DischargedAt == nil {
		t.Error("discharged_at not stamped")
	}
	if f.billing.calls != 1 {
		t.Errorf("billing calls = %d, want 1", f.billing.calls)
	}
}

func TestService_Discharge_Idempotent(t *testing.T) {
	f := newFixture()
	st := f.admit(t)
	ctx := context.Background()

	if _, err := f.svc.Discharge(ctx, st.ID, 0, "recovered"); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	again, err := f.svc.Discharge(ctx, st.ID, 0, "recovered")
	if err != nil {
		t.Fatalf("re-discharge: %v", err)
	}
	if again.Status != StatusDischarged {
		t.Errorf("status = %q", again.Status)
	}
	if f.billing.calls != 1 {
		t.Errorf("billing calls = %d, want 1 (no second invoice)", f.billing.calls)
	}
}

func TestService_Discharge_BillingFailureKeepsDischarge(t *testing.T) {
	f := newFixture()
	st := f.admit(t)
	f.billing.failNext = true
	ctx := context.Background()

	got, err := f.svc.Discharge(ctx, st.ID, 0, "recovered")
	var he *HandoffError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want *HandoffError", err)
	}
	if got.Status != StatusDischarged {
		t.Error("discharge not returned alongside handoff error")
	}

	stored, _ := f.svc.Get(ctx, st.ID)
	if stored.Status != StatusDischarged {
		t.Errorf("stored status = %q, want discharged", stored.Status)
	}

	invoiceID, err := f.svc.RetryInvoice(ctx, st.ID)
	if err != nil {
		t.Fatalf("RetryInvoice: %v", err)
	}
	if invoiceID == uuid.Nil {
		t.Error("retry returned nil invoice id")
	}
}

func TestService_Discharge_StaleVersion(t *testing.T) {
	f := newFixture()
	st := f.admit(t)

	_, err := f.svc.Discharge(context.Background(), st.ID, st.VersionID+2, "recovered")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestService_Cancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	st := f.admit(t)
	got, err := f.svc.Cancel(ctx, st.ID, 0, "transferred to specialist clinic")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}

	// Re-cancel is a no-op.
	if _, err := f.svc.Cancel(ctx, st.ID, 0, ""); err != nil {
		t.Errorf("re-cancel: %v", err)
	}

	// Discharged stays cannot be cancelled.
	discharged := f.admit(t)
	if _, err := f.svc.Discharge(ctx, discharged.ID, 0, ""); err != nil {
		t.Fatalf("Discharge: %v", err)
	}
	_, err = f.svc.Cancel(ctx, discharged.ID, 0, "")
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Errorf("cancel discharged: err = %v, want *PreconditionError", err)
	}
}
