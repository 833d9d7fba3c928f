package medication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardcare/wardcare/internal/domain/interval"
)

var (
	ErrActorRequired = errors.New("administering nurse is required")
	ErrUnknownAction = errors.New("unknown dose action")
)

// Outcome describes what one Record call changed.
type Outcome struct {
	Dose    *Dose       `json:"dose"`
	Spawned *Dose       `json:"spawned,omitempty"`
	Removed []uuid.UUID `json:"removed,omitempty"`
	Changed bool        `json:"changed"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source; used by tests and the importer.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Prescribe adds the first open dose row of a new order.
func (s *Service) Prescribe(ctx context.Context, d *Dose) error {
	d.Drug = strings.TrimSpace(d.Drug)
	if d.Drug == "" {
		return fmt.Errorf("drug is required")
	}
	if d.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	d.State = StateOpen
	d.AdministeredBy = nil
	d.AdministeredAt = nil
	return s.repo.Create(ctx, d)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Dose, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, openOnly bool) ([]*Dose, error) {
	return s.repo.ListByPatient(ctx, patientID, openOnly)
}

// ActiveDrugNames returns the distinct lower-case names of drugs that
// still have an open dose.
func (s *Service) ActiveDrugNames(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	doses, err := s.repo.ListByPatient(ctx, patientID, true)
	if err != nil {
		return nil, err
	}
	return distinctNames(doses), nil
}

// DrugNames returns every drug ever ordered for the patient.
func (s *Service) DrugNames(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	doses, err := s.repo.ListByPatient(ctx, patientID, false)
	if err != nil {
		return nil, err
	}
	return distinctNames(doses), nil
}

func distinctNames(doses []*Dose) []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range doses {
		n := strings.ToLower(strings.TrimSpace(d.Drug))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Record applies a nurse action to a dose row:
//
//	open      + given|not_given -> resolved, next open row spawned
//	resolved  + same action     -> undo
//	resolved  + other action    -> switch resolution, no spawn
//	resolved  + undo            -> open, later open rows of the series removed
//	open      + undo            -> no-op
func (s *Service) Record(ctx context.Context, doseID uuid.UUID, action Action, actor *uuid.UUID) (*Outcome, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	d, err := s.repo.GetByID(ctx, doseID)
	if err != nil {
		return nil, err
	}

	if action == ActionUndo {
		if d.State == StateOpen {
			return &Outcome{Dose: d}, nil
		}
		return s.undo(ctx, d)
	}

	target := DoseState(action)
	switch d.State {
	case StateOpen:
		return s.resolve(ctx, d, target, actor)
	case target:
		return s.undo(ctx, d)
	default:
		return s.switchResolution(ctx, d, target, actor)
	}
}

func (s *Service) resolve(ctx context.Context, d *Dose, target DoseState, actor *uuid.UUID) (*Outcome, error) {
	if actor == nil {
		return nil, ErrActorRequired
	}
	now := s.now()
	d.State = target
	d.AdministeredBy = actor
	d.AdministeredAt = &now
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update dose: %w", err)
	}

	next := &Dose{
		PatientID: d.PatientID,
		Drug:      d.Drug,
		Dose:      d.Dose,
		Route:     d.Route,
		Schedule:  d.Schedule,
		NextDue:   FormatDue(ParseDue(d.NextDue, now).Add(interval.ForSchedule(d.Schedule))),
		State:     StateOpen,
	}
	if err := s.repo.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("spawn next dose: %w", err)
	}
	return &Outcome{Dose: d, Spawned: next, Changed: true}, nil
}

func (s *Service) switchResolution(ctx context.Context, d *Dose, target DoseState, actor *uuid.UUID) (*Outcome, error) {
	if actor == nil {
		return nil, ErrActorRequired
	}
	now := s.now()
	d.State = target
	d.AdministeredBy = actor
	d.AdministeredAt = &now
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update dose: %w", err)
	}
	return &Outcome{Dose: d, Changed: true}, nil
}

func (s *Service) undo(ctx context.Context, d *Dose) (*Outcome, error) {
	now := s.now()
	base := ParseDue(d.NextDue, now)

	d.State = StateOpen
	d.AdministeredBy = nil
	d.AdministeredAt = nil
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("reopen dose: %w", err)
	}

	series, err := s.repo.ListOpenSeries(ctx, d.PatientID, d.Drug, d.Schedule)
	if err != nil {
		return nil, fmt.Errorf("list open series: %w", err)
	}
	out := &Outcome{Dose: d, Changed: true}
	for _, o := range series {
		if o.ID == d.ID || !ParseDue(o.NextDue, now).After(base) {
			continue
		}
		if err := s.repo.Delete(ctx, o.ID); err != nil {
			return nil, fmt.Errorf("remove future dose: %w", err)
		}
		out.Removed = append(out.Removed, o.ID)
	}
	return out, nil
}
