package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medication dose not found")

type Repository interface {
	Create(ctx context.Context, d *Dose) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dose, error)
	// Update persists state and administration fields.
	Update(ctx context.Context, d *Dose) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, openOnly bool) ([]*Dose, error)
	// ListOpenSeries returns open rows of one (patient, drug, schedule).
	ListOpenSeries(ctx context.Context, patientID uuid.UUID, drug, schedule string) ([]*Dose, error)
	// CountByAuthor counts given doses per administering nurse.
	CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error)
}
