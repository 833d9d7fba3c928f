package nursing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardcare/wardcare/internal/platform/db"
)

// -- Nurse --

type nurseRepoPG struct{ pool *pgxpool.Pool }

func NewNurseRepoPG(pool *pgxpool.Pool) NurseRepository { return &nurseRepoPG{pool: pool} }

func (r *nurseRepoPG) conn(ctx context.Context) db.Queryable { return db.Querier(ctx, r.pool) }

func (r *nurseRepoPG) Create(ctx context.Context, n *Nurse) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO nurse (id, name) VALUES ($1, $2) RETURNING created_at`, n.ID, n.Name).Scan(&n.CreatedAt)
}

func (r *nurseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	var n Nurse
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, created_at FROM nurse WHERE id = $1`, id).
		Scan(&n.ID, &n.Name, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNurseNotFound
	}
	return &n, err
}

func (r *nurseRepoPG) List(ctx context.Context) ([]*Nurse, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, created_at FROM nurse ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Nurse
	for rows.Next() {
		var n Nurse
		if err := rows.Scan(&n.ID, &n.Name, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Queryable { return db.Querier(ctx, r.pool) }

const patientCols = `id, identifier, name, room, diagnosis, allergies, assigned_nurse_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Identifier, &p.Name, &p.Room, &p.Diagnosis, &p.Allergies,
		&p.AssignedNurseID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, identifier, name, room, diagnosis, allergies, assigned_nurse_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Identifier, p.Name, p.Room, p.Diagnosis, p.Allergies, p.AssignedNurseID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY room NULLS LAST, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) SetAssignedNurse(ctx context.Context, patientID, nurseID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET assigned_nurse_id = $2, updated_at = NOW() WHERE id = $1`, patientID, nurseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assign nurse: %w", ErrPatientNotFound)
	}
	return nil
}

// -- Note --

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewNoteRepoPG(pool *pgxpool.Pool) NoteRepository { return &noteRepoPG{pool: pool} }

func (r *noteRepoPG) conn(ctx context.Context) db.Queryable { return db.Querier(ctx, r.pool) }

func (r *noteRepoPG) Create(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO nurse_note (id, patient_id, author_id, note)
			VALUES ($1, $2, $3, $4) RETURNING created_at`,
			n.ID, n.PatientID, n.AuthorID, n.Text).Scan(&n.CreatedAt)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO nurse_note (id, patient_id, author_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.PatientID, n.AuthorID, n.Text, n.CreatedAt)
	return err
}

func (r *noteRepoPG) Recent(ctx context.Context, patientID uuid.UUID, limit int) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, author_id, note, created_at FROM nurse_note
		WHERE patient_id = $1 ORDER BY created_at DESC, id LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.PatientID, &n.AuthorID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}

func (r *noteRepoPG) CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT author_id, COUNT(*) FROM nurse_note
		WHERE patient_id = $1 AND author_id IS NOT NULL
		GROUP BY author_id`, patientID)
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
