package assessment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Assessment) error
	// Latest returns the assessment with the greatest RecordedAt, or nil
	// when the patient has none.
	Latest(ctx context.Context, patientID uuid.UUID) (*Assessment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error)
	CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error)
}
