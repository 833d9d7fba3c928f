package priority

import (
	"context"

	"github.com/google/uuid"
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

func (r *repoPG) Replace(ctx context.Context, patientID uuid.UUID, labels []string) ([]*Problem, error) {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM patient_problem WHERE patient_id = $1`, patientID); err != nil {
		return nil, err
	}
	problems := make([]*Problem, 0, len(labels))
	for i, label := range labels {
		p := &Problem{ID: uuid.New(), PatientID: patientID, Rank: i + 1, Label: label}
		if _, err := q.Exec(ctx,
			`INSERT INTO patient_problem (id, patient_id, rank, label) VALUES ($1, $2, $3, $4)`,
			p.ID, p.PatientID, p.Rank, p.Label); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Problem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, patient_id, rank, label FROM patient_problem WHERE patient_id = $1 ORDER BY rank`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.PatientID, &p.Rank, &p.Label); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, patientID uuid.UUID, label string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patient_problem WHERE patient_id = $1 AND label = $2`, patientID, label)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
