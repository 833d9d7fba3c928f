package nursing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service manages the ward roster, patients and nursing notes.
type Service struct {
	nurses   NurseRepository
	patients PatientRepository
	notes    NoteRepository
}

func NewService(nurses NurseRepository, patients PatientRepository, notes NoteRepository) *Service {
	return &Service{nurses: nurses, patients: patients, notes: notes}
}

func (s *Service) CreateNurse(ctx context.Context, n *Nurse) error {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.nurses.Create(ctx, n)
}

func (s *Service) ListNurses(ctx context.Context) ([]*Nurse, error) {
	return s.nurses.List(ctx)
}

func (s *Service) GetNurse(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	return s.nurses.GetByID(ctx, id)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]*Patient, error) {
	return s.patients.List(ctx)
}

// AddNote stores a trimmed note. Blank notes are rejected.
func (s *Service) AddNote(ctx context.Context, n *Note) error {
	n.Text = strings.TrimSpace(n.Text)
	if n.Text == "" {
		return fmt.Errorf("note is required")
	}
	if n.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	return s.notes.Create(ctx, n)
}

// RecentNotes returns the newest notes, limit defaulting to 5.
func (s *Service) RecentNotes(ctx context.Context, patientID uuid.UUID, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.notes.Recent(ctx, patientID, limit)
}
