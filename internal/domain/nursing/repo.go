package nursing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrNurseNotFound   = errors.New("nurse not found")
)

type NurseRepository interface {
	Create(ctx context.Context, n *Nurse) error
	GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error)
	List(ctx context.Context) ([]*Nurse, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context) ([]*Patient, error)
	SetAssignedNurse(ctx context.Context, patientID, nurseID uuid.UUID) error
}

type NoteRepository interface {
	Create(ctx context.Context, n *Note) error
	// Recent returns up to limit notes, newest first.
	Recent(ctx context.Context, patientID uuid.UUID, limit int) ([]*Note, error)
	CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error)
}

// AuthorCounter counts a patient's records per authoring nurse.
type AuthorCounter interface {
	CountByAuthor(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error)
}
