package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardcare/wardcare/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const cols = `id, patient_id, drug, COALESCE(dose, ''), COALESCE(route, ''), COALESCE(schedule, ''),
	COALESCE(next_due, ''), state, administered_by, administered_at, created_at`

func scan(row pgx.Row) (*Dose, error) {
	var d Dose
	err := row.Scan(&d.ID, &d.PatientID, &d.Drug, &d.Dose, &d.Route, &d.Schedule,
		&d.NextDue, &d.State, &d.AdministeredBy, &d.AdministeredAt, &d.CreatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Dose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.State == "" {
		d.State = StateOpen
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_dose (id, patient_id, drug, dose, route, schedule, next_due,
			state, administered_by, administered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		d.ID, d.PatientID, d.Drug, d.Dose, d.Route, d.Schedule, d.NextDue,
		d.State, d.AdministeredBy, d.AdministeredAt,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dose, error) {
	d, err := scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM medication_dose WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repoPG) Update(ctx context.Context, d *Dose) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_dose SET state = $2, administered_by = $3, administered_at = $4
		WHERE id = $1`,
		d.ID, d.State, d.AdministeredBy, d.AdministeredAt)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medication_dose WHERE id = $1`, id)
	return err
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Dose, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Dose
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, openOnly bool) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+cols+` FROM medication_dose
		WHERE patient_id = $1 AND (NOT $2 OR state = 'open')
		ORDER BY drug, created_at`, patientID, openOnly)
}

func (r *repoPG) ListOpenSeries(ctx context.Context, patientID uuid.UUID, drug, schedule string) ([]*Dose, error) {
	return r.list(ctx, `SELECT `+cols+` FROM medication_dose
		WHERE patient_id = $1 AND drug = $2 AND COALESCE(schedule, '') = $3 AND state = 'open'
		ORDER BY created_at`, patientID, drug, schedule)
}

func (r *repoPG) CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT administered_by, COUNT(*) FROM medication_dose
		WHERE patient_id = $1 AND state = 'given' AND administered_by IS NOT NULL
		GROUP BY administered_by`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
