package priority

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wardcare/wardcare/internal/domain/alerting"
	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/nursing"
)

// TaskPlanner regenerates the open tasks implied by a problem set.
type TaskPlanner interface {
	PlanForProblems(ctx context.Context, patientID uuid.UUID, labels []string) (int, error)
}

// BaselineGuarantor makes sure the standing tasks are open.
type BaselineGuarantor interface {
	EnsureBaseline(ctx context.Context, patientID uuid.UUID) (int, error)
}

// AlertEvaluator replaces the patient's alert set.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, patientID uuid.UUID) ([]*alerting.Alert, bool, error)
}

// NoteReader returns recent notes, newest first.
type NoteReader interface {
	Recent(ctx context.Context, patientID uuid.UUID, limit int) ([]*nursing.Note, error)
}

// Snapshot is the derived state written by one Recompute.
type Snapshot struct {
	PatientID       uuid.UUID         `json:"patient_id"`
	Problems        []*Problem        `json:"problems"`
	Alerts          []*alerting.Alert `json:"alerts"`
	AlertsEvaluated bool              `json:"alerts_evaluated"`
	TasksPlanned    int               `json:"tasks_planned"`
	BaselineAdded   int               `json:"baseline_added"`
}

// Labels returns the problem labels in rank order.
func (s *Snapshot) Labels() []string {
	out := make([]string, len(s.Problems))
	for i, p := range s.Problems {
		out[i] = p.Label
	}
	return out
}

type Service struct {
	repo        Repository
	assessments assessment.Repository
	notes       NoteReader
	tasks       TaskPlanner
	baseline    BaselineGuarantor
	alerts      AlertEvaluator
}

func NewService(repo Repository, assessments assessment.Repository, notes NoteReader,
	tasks TaskPlanner, baseline BaselineGuarantor, alerts AlertEvaluator) *Service {
	return &Service{
		repo:        repo,
		assessments: assessments,
		notes:       notes,
		tasks:       tasks,
		baseline:    baseline,
		alerts:      alerts,
	}
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Problem, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Recompute re-derives problems, tasks and alerts for one patient. The
// caller provides the transaction.
func (s *Service) Recompute(ctx context.Context, patientID uuid.UUID) (*Snapshot, error) {
	current, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	previous := make([]string, len(current))
	for i, p := range current {
		previous[i] = p.Label
	}

	latest, err := s.assessments.Latest(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("latest assessment: %w", err)
	}

	var fromNotes []string
	recent, err := s.notes.Recent(ctx, patientID, 1)
	if err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	if len(recent) > 0 {
		fromNotes = FromNote(recent[0].Text)
	}

	labels := Rank(previous, FromVitals(latest), fromNotes)
	problems, err := s.repo.Replace(ctx, patientID, labels)
	if err != nil {
		return nil, fmt.Errorf("replace problems: %w", err)
	}
	snap := &Snapshot{PatientID: patientID, Problems: problems}

	if snap.TasksPlanned, err = s.tasks.PlanForProblems(ctx, patientID, labels); err != nil {
		return nil, fmt.Errorf("plan tasks: %w", err)
	}
	if snap.BaselineAdded, err = s.baseline.EnsureBaseline(ctx, patientID); err != nil {
		return nil, fmt.Errorf("baseline tasks: %w", err)
	}
	if snap.Alerts, snap.AlertsEvaluated, err = s.alerts.Evaluate(ctx, patientID); err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}
	return snap, nil
}

// Dismiss removes one tracked problem. The next Recompute may re-detect it
// from current data; otherwise it stays gone.
func (s *Service) Dismiss(ctx context.Context, patientID uuid.UUID, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("label is required")
	}
	ok, err := s.repo.Delete(ctx, patientID, label)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
