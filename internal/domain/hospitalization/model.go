package hospitalization

import (
	"time"

	"github.com/google/uuid"
)

// Stay statuses. Admitted is the only active state; discharged and
// cancelled are terminal.
const (
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
	StatusCancelled  = "cancelled"
)

// Stay maps to the stay table: one hospitalization episode for an
// animal, optionally opened as a follow-up to a surgical case.
type Stay struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AnimalID       uuid.UUID  `db:"animal_id" json:"animal_id"`
	CaseID         *uuid.UUID `db:"case_id" json:"case_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	Reason         string     `db:"reason" json:"reason"`
	AdmittedAt     time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt   *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	DischargeNotes *string    `db:"discharge_notes" json:"discharge_notes,omitempty"`
	CancelReason   *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	VersionID      int        `db:"version_id" json:"version_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	CareLogs []*CareLog `json:"care_logs,omitempty"`
}

// Terminal reports whether the stay accepts no further transitions.
func (s *Stay) Terminal() bool {
	return s.Status == StatusDischarged || s.Status == StatusCancelled
}

// CareLog maps to the stay_care_log table. Entries are append-only: they
// are never updated or deleted once written.
type CareLog struct {
	ID         uuid.UUID `db:"id" json:"id"`
	StayID     uuid.UUID `db:"stay_id" json:"stay_id"`
	Note       string    `db:"note" json:"note"`
	RecordedBy *string   `db:"recorded_by" json:"recorded_by,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
