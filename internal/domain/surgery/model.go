package surgery

import (
	"time"

	"github.com/google/uuid"

	"github.com/hssvet/clinic-api/internal/domain/consent"
)

// Case statuses. Stored statuses are monotonic except for cancelled,
// which is reachable from any non-terminal status. StatusReady is derived
// on read and never persisted.
const (
	StatusPlanned         = "planned"
	StatusConsentsPending = "consents-pending"
	StatusReady           = "ready"
	StatusInProgress      = "in-progress"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// Discharge types recorded at completion.
const (
	DischargeSameDay         = "same-day"
	DischargeHospitalization = "hospitalization"
)

var validDischargeTypes = map[string]bool{
	DischargeSameDay:         true,
	DischargeHospitalization: true,
}

// RequiredConsentForms are the form types that must carry a signed record
// before a procedure may start.
var RequiredConsentForms = []string{consent.FormAnesthesia, consent.FormSurgery}

// Checklist maps to the checklist columns on surgical_case. Flags are
// mutable only while the case is planned or consents-pending.
type Checklist struct {
	PatientIDVerified    bool `db:"patient_id_verified" json:"patient_id_verified"`
	OwnerContactVerified bool `db:"owner_contact_verified" json:"owner_contact_verified"`
	FastingConfirmed     bool `db:"fasting_confirmed" json:"fasting_confirmed"`
	PreOpExamCompleted   bool `db:"pre_op_exam_completed" json:"pre_op_exam_completed"`
	BloodTestCompleted   bool `db:"blood_test_completed" json:"blood_test_completed"`
	XrayCompleted        bool `db:"xray_completed" json:"xray_completed"`
}

// Complete evaluates the readiness predicate. At least one diagnostic
// confirmation (blood test or x-ray) is mandatory; the modality is the
// clinician's choice.
func (c Checklist) Complete() bool {
	return c.PatientIDVerified &&
		c.OwnerContactVerified &&
		c.FastingConfirmed &&
		c.PreOpExamCompleted &&
		(c.BloodTestCompleted || c.XrayCompleted)
}

// MissingItems names the unsatisfied checklist items, for precondition
// messages.
func (c Checklist) MissingItems() []string {
	var missing []string
	if !c.PatientIDVerified {
		missing = append(missing, "patient_id_verified")
	}
	if !c.OwnerContactVerified {
		missing = append(missing, "owner_contact_verified")
	}
	if !c.FastingConfirmed {
		missing = append(missing, "fasting_confirmed")
	}
	if !c.PreOpExamCompleted {
		missing = append(missing, "pre_op_exam_completed")
	}
	if !c.BloodTestCompleted && !c.XrayCompleted {
		missing = append(missing, "blood_test_completed or xray_completed")
	}
	return missing
}

// ConsentRecord maps to the case_consent table. Rows are append-only
// evidence: re-signing a form type inserts a new row, it never updates or
// deletes the prior one.
type ConsentRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CaseID         uuid.UUID `db:"case_id" json:"case_id"`
	FormType       string    `db:"form_type" json:"form_type"`
	SignerName     string    `db:"signer_name" json:"signer_name"`
	SignerRelation string    `db:"signer_relation" json:"signer_relation"`
	WitnessName    *string   `db:"witness_name" json:"witness_name,omitempty"`
	SignatureImage []byte    `db:"signature_image" json:"signature_image,omitempty"`
	SignedAt       time.Time `db:"signed_at" json:"signed_at"`
}

// MedicationUse maps to the case_medication table. Entries are appended
// while the procedure is in progress and never removed.
type MedicationUse struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CaseID     uuid.UUID `db:"case_id" json:"case_id"`
	ItemID     uuid.UUID `db:"item_id" json:"item_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// SurgicalCase maps to the surgical_case table. This is the aggregate
// root for the procedure workflow.
type SurgicalCase struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AnimalID      uuid.UUID  `db:"animal_id" json:"animal_id"`
	ClinicianID   *uuid.UUID `db:"clinician_id" json:"clinician_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	Procedure     string     `db:"procedure" json:"procedure"`
	PlannedStart  time.Time  `db:"planned_start" json:"planned_start"`
	ActualStart   *time.Time `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd     *time.Time `db:"actual_end" json:"actual_end,omitempty"`
	Checklist     Checklist  `json:"checklist"`
	DischargeType *string    `db:"discharge_type" json:"discharge_type,omitempty"`
	PostOpNotes   *string    `db:"post_op_notes" json:"post_op_notes,omitempty"`
	CancelReason  *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	VersionID     int        `db:"version_id" json:"version_id"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Consents    []*ConsentRecord `json:"consents,omitempty"`
	Medications []*MedicationUse `json:"medications,omitempty"`
}

// LatestConsent returns the most recently signed record for the form
// type, or nil. Earlier records remain in Consents for audit.
func (sc *SurgicalCase) LatestConsent(formType string) *ConsentRecord {
	var latest *ConsentRecord
	for _, rec := range sc.Consents {
		if rec.FormType != formType {
			continue
		}
		if latest == nil || rec.SignedAt.After(latest.SignedAt) {
			latest = rec
		}
	}
	return latest
}

// RequiredConsentsSigned reports whether every required form type carries
// at least one signed record.
func (sc *SurgicalCase) RequiredConsentsSigned() bool {
	for _, ft := range RequiredConsentForms {
		if sc.LatestConsent(ft) == nil {
			return false
		}
	}
	return true
}

// MissingConsents names the required form types without a signed record.
func (sc *SurgicalCase) MissingConsents() []string {
	var missing []string
	for _, ft := range RequiredConsentForms {
		if sc.LatestConsent(ft) == nil {
			missing = append(missing, ft)
		}
	}
	return missing
}

// EffectiveStatus derives the display status. A consents-pending case
// whose checklist is complete and required consents are all signed is
// ready to start; readiness is computed here rather than persisted so the
// stored status and the consent evidence can never disagree.
func (sc *SurgicalCase) EffectiveStatus() string {
	if sc.Status == StatusConsentsPending && sc.Checklist.Complete() && sc.RequiredConsentsSigned() {
		return StatusReady
	}
	return sc.Status
}

// Terminal reports whether the case can accept no further transitions.
func (sc *SurgicalCase) Terminal() bool {
	return sc.Status == StatusCompleted || sc.Status == StatusCancelled
}

// ChecklistEditable reports whether checklist flags may still change.
func (sc *SurgicalCase) ChecklistEditable() bool {
	return sc.Status == StatusPlanned || sc.Status == StatusConsentsPending
}
