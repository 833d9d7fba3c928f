package task

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

const cols = `id, patient_id, description, due_at, completed, completed_at, completed_by, source, created_at`

func scan(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.PatientID, &t.Description, &t.DueAt, &t.Completed,
		&t.CompletedAt, &t.CompletedBy, &t.Source, &t.CreatedAt)
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Source == "" {
		t.Source = SourceManual
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ward_task (id, patient_id, description, due_at, completed, completed_at, completed_by, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		t.ID, t.PatientID, t.Description, t.DueAt, t.Completed, t.CompletedAt, t.CompletedBy, t.Source,
	).Scan(&t.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM ward_task WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repoPG) Update(ctx context.Context, t *Task) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ward_task SET completed = $2, completed_at = $3, completed_by = $4
		WHERE id = $1`,
		t.ID, t.Completed, t.CompletedAt, t.CompletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM ward_task WHERE id = $1`, id)
	return err
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Task
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) ListOpen(ctx context.Context, patientID uuid.UUID) ([]*Task, error) {
	return r.list(ctx, `SELECT `+cols+` FROM ward_task
		WHERE patient_id = $1 AND NOT completed
		ORDER BY due_at NULLS FIRST, description`, patientID)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Task, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ward_task WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, `SELECT `+cols+` FROM ward_task
		WHERE patient_id = $1
		ORDER BY completed, due_at NULLS FIRST, created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	return items, total, err
}

func (r *repoPG) ReplaceOpen(ctx context.Context, t *Task) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM ward_task WHERE patient_id = $1 AND description = $2 AND NOT completed`,
		t.PatientID, t.Description)
	if err != nil {
		return 0, err
	}
	t.Completed = false
	t.CompletedAt = nil
	t.CompletedBy = nil
	if err := r.Create(ctx, t); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
