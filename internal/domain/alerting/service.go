package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardcare/wardcare/internal/domain/assessment"
)

// DrugLister returns the lower-case names of drugs with an open dose.
type DrugLister interface {
	ActiveDrugNames(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

// Service evaluates the per-patient rule table and persists the result.
type Service struct {
	assessments assessment.Repository
	drugs       DrugLister
	repo        Repository
	now         func() time.Time
}

func NewService(assessments assessment.Repository, drugs DrugLister, repo Repository) *Service {
	return &Service{assessments: assessments, drugs: drugs, repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Evaluate replaces the patient's alert set from the latest assessment.
// Without an assessment nothing is written and evaluated is false.
func (s *Service) Evaluate(ctx context.Context, patientID uuid.UUID) (alerts []*Alert, evaluated bool, err error) {
	latest, err := s.assessments.Latest(ctx, patientID)
	if err != nil {
		return nil, false, fmt.Errorf("latest assessment: %w", err)
	}
	if latest == nil {
		return nil, false, nil
	}
	drugs, err := s.drugs.ActiveDrugNames(ctx, patientID)
	if err != nil {
		return nil, false, fmt.Errorf("active drugs: %w", err)
	}

	alerts = Evaluate(Input{Assessment: latest, Drugs: drugs})
	now := s.now()
	for _, a := range alerts {
		a.PatientID = patientID
		a.CreatedAt = now
	}
	if err := s.repo.Replace(ctx, patientID, alerts); err != nil {
		return nil, false, fmt.Errorf("replace alerts: %w", err)
	}
	return alerts, true, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
