package surgery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hssvet/clinic-api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed case repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const caseCols = `id, animal_id, clinician_id, status, procedure, planned_start, actual_start, actual_end,
	patient_id_verified, owner_contact_verified, fasting_confirmed, pre_op_exam_completed,
	blood_test_completed, xray_completed,
	discharge_type, post_op_notes, cancel_reason, version_id, created_at, updated_at`

func scanCase(row pgx.Row) (*SurgicalCase, error) {
	var sc SurgicalCase
	err := row.Scan(&sc.ID, &sc.AnimalID, &sc.ClinicianID, &sc.Status, &sc.Procedure,
		&sc.PlannedStart, &sc.ActualStart, &sc.ActualEnd,
		&sc.Checklist.PatientIDVerified, &sc.Checklist.OwnerContactVerified, &sc.Checklist.FastingConfirmed,
		&sc.Checklist.PreOpExamCompleted, &sc.Checklist.BloodTestCompleted, &sc.Checklist.XrayCompleted,
		&sc.DischargeType, &sc.PostOpNotes, &sc.CancelReason, &sc.VersionID, &sc.CreatedAt, &sc.UpdatedAt)
	return &sc, err
}

func (r *repoPG) Create(ctx context.Context, sc *SurgicalCase) error {
	sc.ID = uuid.New()
	sc.Status = StatusPlanned
	sc.VersionID = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO surgical_case (id, animal_id, clinician_id, status, procedure, planned_start,
			patient_id_verified, owner_contact_verified, fasting_confirmed, pre_op_exam_completed,
			blood_test_completed, xray_completed, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sc.ID, sc.AnimalID, sc.ClinicianID, sc.Status, sc.Procedure, sc.PlannedStart,
		sc.Checklist.PatientIDVerified, sc.Checklist.OwnerContactVerified, sc.Checklist.FastingConfirmed,
		sc.Checklist.PreOpExamCompleted, sc.Checklist.BloodTestCompleted, sc.Checklist.XrayCompleted,
		sc.VersionID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*SurgicalCase, error) {
	sc, err := scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM surgical_case WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*SurgicalCase, int, error) {
	return r.list(ctx, `SELECT COUNT(*) FROM surgical_case`, nil,
		`SELECT `+caseCols+` FROM surgical_case ORDER BY planned_start DESC LIMIT $1 OFFSET $2`,
		[]interface{}{limit, offset})
}

func (r *repoPG) ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*SurgicalCase, int, error) {
	return r.list(ctx, `SELECT COUNT(*) FROM surgical_case WHERE animal_id = $1`, []interface{}{animalID},
		`SELECT `+caseCols+` FROM surgical_case WHERE animal_id = $1 ORDER BY planned_start DESC LIMIT $2 OFFSET $3`,
		[]interface{}{animalID, limit, offset})
}

func (r *repoPG) list(ctx context.Context, countSQL string, countArgs []interface{}, dataSQL string, dataArgs []interface{}) ([]*SurgicalCase, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SurgicalCase
	for rows.Next() {
		sc, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, sc := range items {
		if err := r.loadChildren(ctx, sc); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// Update writes the mutable columns, guarded by the version the caller
// read. RowsAffected distinguishes a stale write from a missing row.
func (r *repoPG) Update(ctx context.Context, sc *SurgicalCase) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE surgical_case SET status=$3, actual_start=$4, actual_end=$5,
			patient_id_verified=$6, owner_contact_verified=$7, fasting_confirmed=$8,
			pre_op_exam_completed=$9, blood_test_completed=$10, xray_completed=$11,
			discharge_type=$12, post_op_notes=$13, cancel_reason=$14,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $2`,
		sc.ID, sc.VersionID, sc.Status, sc.ActualStart, sc.ActualEnd,
		sc.Checklist.PatientIDVerified, sc.Checklist.OwnerContactVerified, sc.Checklist.FastingConfirmed,
		sc.Checklist.PreOpExamCompleted, sc.Checklist.BloodTestCompleted, sc.Checklist.XrayCompleted,
		sc.DischargeType, sc.PostOpNotes, sc.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM surgical_case WHERE id = $1)`, sc.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	sc.VersionID++
	return nil
}

func (r *repoPG) AddConsent(ctx context.Context, rec *ConsentRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO case_consent (id, case_id, form_type, signer_name, signer_relation, witness_name, signature_image, signed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.CaseID, rec.FormType, rec.SignerName, rec.SignerRelation, rec.WitnessName, rec.SignatureImage, rec.SignedAt)
	return err
}

func (r *repoPG) AddMedication(ctx context.Context, use *MedicationUse) error {
	if use.ID == uuid.Nil {
		use.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO case_medication (id, case_id, item_id, quantity, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		use.ID, use.CaseID, use.ItemID, use.Quantity, use.RecordedAt)
	return err
}

func (r *repoPG) loadChildren(ctx context.Context, sc *SurgicalCase) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, form_type, signer_name, signer_relation, witness_name, signature_image, signed_at
		FROM case_consent WHERE case_id = $1 ORDER BY signed_at`, sc.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec ConsentRecord
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.FormType, &rec.SignerName,
			&rec.SignerRelation, &rec.WitnessName, &rec.SignatureImage, &rec.SignedAt); err != nil {
			return err
		}
		sc.Consents = append(sc.Consents, &rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mrows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, item_id, quantity, recorded_at
		FROM case_medication WHERE case_id = $1 ORDER BY recorded_at`, sc.ID)
	if err != nil {
		return err
	}
	defer mrows.Close()
	for mrows.Next() {
		var use MedicationUse
		if err := mrows.Scan(&use.ID, &use.CaseID, &use.ItemID, &use.Quantity, &use.RecordedAt); err != nil {
			return err
		}
		sc.Medications = append(sc.Medications, &use)
	}
	return mrows.Err()
}
