package priority

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("problem not found")

type Repository interface {
	// Replace stores labels as the patient's problem set with ranks 1..n.
	Replace(ctx context.Context, patientID uuid.UUID, labels []string) ([]*Problem, error)
	// ListByPatient returns the current set ordered by rank.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Problem, error)
	// Delete removes one label and reports whether it existed.
	Delete(ctx context.Context, patientID uuid.UUID, label string) (bool, error)
}
