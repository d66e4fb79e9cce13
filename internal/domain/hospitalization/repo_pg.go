package hospitalization

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

// NewRepoPG creates the Postgres-backed stay repository.
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

const stayCols = `id, animal_id, case_id, status, reason, admitted_at, discharged_at, discharge_notes, cancel_reason, version_id, created_at, updated_at`

func scanStay(row pgx.Row) (*Stay, error) {
	var st Stay
	err := row.Scan(&st.ID, &st.AnimalID, &st.CaseID, &st.Status, &st.Reason,
		&st.AdmittedAt, &st.DischargedAt, &st.DischargeNotes, &st.CancelReason,
		&st.VersionID, &st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *repoPG) Create(ctx context.Context, st *Stay) error {
	st.ID = uuid.New()
	st.Status = StatusAdmitted
	st.VersionID = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stay (id, animal_id, case_id, status, reason, admitted_at, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		st.ID, st.AnimalID, st.CaseID, st.Status, st.Reason, st.AdmittedAt, st.VersionID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Stay, error) {
	st, err := scanStay(r.conn(ctx).QueryRow(ctx, `SELECT `+stayCols+` FROM stay WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadCareLogs(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Stay, int, error) {
	return r.list(ctx, `SELECT COUNT(*) FROM stay`, nil,
		`SELECT `+stayCols+` FROM stay ORDER BY admitted_at DESC LIMIT $1 OFFSET $2`,
		[]interface{}{limit, offset})
}

func (r *repoPG) ListByAnimal(ctx context.Context, animalID uuid.UUID, limit, offset int) ([]*Stay, int, error) {
	return r.list(ctx, `SELECT COUNT(*) FROM stay WHERE animal_id = $1`, []interface{}{animalID},
		`SELECT `+stayCols+` FROM stay WHERE animal_id = $1 ORDER BY admitted_at DESC LIMIT $2 OFFSET $3`,
		[]interface{}{animalID, limit, offset})
}

func (r *repoPG) list(ctx context.Context, countSQL string, countArgs []interface{}, dataSQL string, dataArgs []interface{}) ([]*Stay, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Stay
	for rows.Next() {
		st, err := scanStay(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, st := range items {
		if err := r.loadCareLogs(ctx, st); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, st *Stay) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE stay SET status=$3, discharged_at=$4, discharge_notes=$5, cancel_reason=$6,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $2`,
		st.ID, st.VersionID, st.Status, st.DischargedAt, st.DischargeNotes, st.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM stay WHERE id = $1)`, st.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	st.VersionID++
	return nil
}

func (r *repoPG) AddCareLog(ctx context.Context, log *CareLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stay_care_log (id, stay_id, note, recorded_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		log.ID, log.StayID, log.Note, log.RecordedBy, log.RecordedAt)
	return err
}

func (r *repoPG) loadCareLogs(ctx context.Context, st *Stay) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, stay_id, note, recorded_by, recorded_at
		FROM stay_care_log WHERE stay_id = $1 ORDER BY recorded_at`, st.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var log CareLog
		if err := rows.Scan(&log.ID, &log.StayID, &log.Note, &log.RecordedBy, &log.RecordedAt); err != nil {
			return err
		}
		st.CareLogs = append(st.CareLogs, &log)
	}
	return rows.Err()
}
