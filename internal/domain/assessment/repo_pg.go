package assessment

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

const cols = `id, patient_id, author_id, recorded_at,
	temperature, heart_rate, respiration_rate, systolic_bp, diastolic_bp, oxygen_sat, weight,
	pain, mobility, edema, confusion, nutrition,
	skin, cardiac, respiratory, neuro, gastro, other_notes`

func scan(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.PatientID, &a.AuthorID, &a.RecordedAt,
		&a.Temperature, &a.HeartRate, &a.RespirationRate, &a.SystolicBP, &a.DiastolicBP, &a.OxygenSat, &a.Weight,
		&a.Pain, &a.Mobility, &a.Edema, &a.Confusion, &a.Nutrition,
		&a.Skin, &a.Cardiac, &a.Respiratory, &a.Neuro, &a.Gastro, &a.OtherNotes)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO assessment (`+cols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		a.ID, a.PatientID, a.AuthorID, a.RecordedAt,
		a.Temperature, a.HeartRate, a.RespirationRate, a.SystolicBP, a.DiastolicBP, a.OxygenSat, a.Weight,
		a.Pain, a.Mobility, a.Edema, a.Confusion, a.Nutrition,
		a.Skin, a.Cardiac, a.Respiratory, a.Neuro, a.Gastro, a.OtherNotes)
	return err
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Assessment, error) {
	a, err := scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM assessment WHERE patient_id = $1 ORDER BY recorded_at DESC, id LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM assessment WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Assessment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT author_id, COUNT(*) FROM assessment
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
