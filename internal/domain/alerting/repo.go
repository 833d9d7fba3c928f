package alerting

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Replace discards the patient's alerts and stores alerts instead.
	Replace(ctx context.Context, patientID uuid.UUID, alerts []*Alert) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error)
}
