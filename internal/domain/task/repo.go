package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("task not found")

type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// Update persists the completion fields.
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListOpen returns the patient's open tasks by due time.
	ListOpen(ctx context.Context, patientID uuid.UUID) ([]*Task, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Task, int, error)
	// ReplaceOpen deletes open tasks sharing t's key, then inserts t.
	ReplaceOpen(ctx context.Context, t *Task) (removed int, err error)
}
