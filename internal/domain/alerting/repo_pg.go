package alerting

import (
	"context"
	"time"

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

func (r *repoPG) Replace(ctx context.Context, patientID uuid.UUID, alerts []*Alert) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM ward_alert WHERE patient_id = $1`, patientID); err != nil {
		return err
	}
	now := time.Now()
	for _, a := range alerts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.PatientID = patientID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO ward_alert (id, patient_id, code, message, severity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.PatientID, a.Code, a.Message, a.Severity, a.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, code, message, severity, created_at
		FROM ward_alert WHERE patient_id = $1
		ORDER BY CASE severity WHEN 'critical' THEN 0 ELSE 1 END, code`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Code, &a.Message, &a.Severity, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
