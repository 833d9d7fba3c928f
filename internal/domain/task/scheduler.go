package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardcare/wardcare/internal/domain/interval"
)

var ErrUnknownAction = errors.New("unknown task action")

// ToggleResult describes what one Toggle changed.
type ToggleResult struct {
	Task    *Task       `json:"task"`
	Spawned *Task       `json:"spawned,omitempty"`
	Removed []uuid.UUID `json:"removed,omitempty"`
	Changed bool        `json:"changed"`
}

// Completion is the outcome of completing tasks by description.
type Completion struct {
	Completed []*Task `json:"completed"`
	Scheduled []*Task `json:"scheduled"`
}

// Scheduler keeps the recurring task queue of each patient.
type Scheduler struct {
	repo Repository
	now  func() time.Time
}

func NewScheduler(repo Repository) *Scheduler {
	return &Scheduler{repo: repo, now: time.Now}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Scheduler) ListOpen(ctx context.Context, patientID uuid.UUID) ([]*Task, error) {
	return s.repo.ListOpen(ctx, patientID)
}

func (s *Scheduler) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Task, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Scheduler) next(patientID uuid.UUID, description string, base time.Time, src Source) *Task {
	due := base.Add(interval.ForTask(description))
	return &Task{PatientID: patientID, Description: description, DueAt: &due, Source: src}
}

// PlanForProblems replaces the open task of every description the problem
// labels map to, due now plus the description's interval. It returns the
// number of tasks written.
func (s *Scheduler) PlanForProblems(ctx context.Context, patientID uuid.UUID, labels []string) (int, error) {
	now := s.now()
	seen := make(map[string]bool)
	n := 0
	for _, label := range labels {
		for _, desc := range TasksFor(label) {
			if seen[desc] {
				continue
			}
			seen[desc] = true
			if _, err := s.repo.ReplaceOpen(ctx, s.next(patientID, desc, now, SourceProblem)); err != nil {
				return n, fmt.Errorf("plan %q: %w", desc, err)
			}
			n++
		}
	}
	return n, nil
}

// EnsureBaseline opens each baseline task that has no open instance.
func (s *Scheduler) EnsureBaseline(ctx context.Context, patientID uuid.UUID) (int, error) {
	open, err := s.repo.ListOpen(ctx, patientID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(open))
	for _, t := range open {
		have[t.Description] = true
	}
	now := s.now()
	n := 0
	for _, desc := range Baseline {
		if have[desc] {
			continue
		}
		if err := s.repo.Create(ctx, s.next(patientID, desc, now, SourceBaseline)); err != nil {
			return n, fmt.Errorf("baseline %q: %w", desc, err)
		}
		n++
	}
	return n, nil
}

// Toggle applies a manual action to one task:
//
//	open      + complete|toggle -> completed, next occurrence spawned
//	completed + reopen|toggle   -> open, later open duplicates removed
//
// complete on a completed task and reopen on an open task change nothing.
func (s *Scheduler) Toggle(ctx context.Context, taskID uuid.UUID, action Action, actor *uuid.UUID) (*ToggleResult, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if action == ActionToggle {
		action = ActionComplete
		if t.Completed {
			action = ActionReopen
		}
	}

	switch {
	case action == ActionComplete && !t.Completed:
		return s.complete(ctx, t, actor)
	case action == ActionReopen && t.Completed:
		return s.reopen(ctx, t)
	}
	return &ToggleResult{Task: t}, nil
}

func (s *Scheduler) markDone(ctx context.Context, t *Task, actor *uuid.UUID, now time.Time) error {
	t.Completed = true
	t.CompletedAt = &now
	t.CompletedBy = actor
	if err := s.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (s *Scheduler) complete(ctx context.Context, t *Task, actor *uuid.UUID) (*ToggleResult, error) {
	now := s.now()
	if err := s.markDone(ctx, t, actor, now); err != nil {
		return nil, err
	}
	next := s.next(t.PatientID, t.Description, t.dueOr(now), SourceRecurrence)
	if err := s.repo.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("spawn next task: %w", err)
	}
	return &ToggleResult{Task: t, Spawned: next, Changed: true}, nil
}

// reopen removes open tasks of the same key due strictly after t. A task
// without due time retracts every other open duplicate.
func (s *Scheduler) reopen(ctx context.Context, t *Task) (*ToggleResult, error) {
	t.Completed = false
	t.CompletedAt = nil
	t.CompletedBy = nil
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("reopen task: %w", err)
	}

	open, err := s.repo.ListOpen(ctx, t.PatientID)
	if err != nil {
		return nil, err
	}
	res := &ToggleResult{Task: t, Changed: true}
	for _, o := range open {
		if o.ID == t.ID || !o.SameKey(t) {
			continue
		}
		if t.DueAt != nil && (o.DueAt == nil || !o.DueAt.After(*t.DueAt)) {
			continue
		}
		if err := s.repo.Delete(ctx, o.ID); err != nil {
			return nil, fmt.Errorf("remove future task: %w", err)
		}
		res.Removed = append(res.Removed, o.ID)
	}
	return res, nil
}

// CompleteMatching completes every open task whose description contains
// one of keywords, ignoring case, and schedules one next occurrence per
// distinct description at now plus its interval.
func (s *Scheduler) CompleteMatching(ctx context.Context, patientID uuid.UUID, keywords []string, actor *uuid.UUID, src Source) (*Completion, error) {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return s.completeWhere(ctx, patientID, actor, src, func(desc string) bool {
		d := strings.ToLower(desc)
		for _, k := range lowered {
			if strings.Contains(d, k) {
				return true
			}
		}
		return false
	})
}

// RecordDone completes the open tasks with exactly description. When none
// is open, a completed task is logged instead so the work stays documented.
func (s *Scheduler) RecordDone(ctx context.Context, patientID uuid.UUID, description string, actor *uuid.UUID, src Source) (*Completion, error) {
	c, err := s.completeWhere(ctx, patientID, actor, src, func(desc string) bool { return desc == description })
	if err != nil || len(c.Completed) > 0 {
		return c, err
	}
	now := s.now()
	logged := &Task{
		PatientID:   patientID,
		Description: description,
		DueAt:       &now,
		Completed:   true,
		CompletedAt: &now,
		CompletedBy: actor,
		Source:      src,
	}
	if err := s.repo.Create(ctx, logged); err != nil {
		return nil, fmt.Errorf("log completed task: %w", err)
	}
	c.Completed = append(c.Completed, logged)
	return c, nil
}

func (s *Scheduler) completeWhere(ctx context.Context, patientID uuid.UUID, actor *uuid.UUID, src Source, match func(string) bool) (*Completion, error) {
	open, err := s.repo.ListOpen(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	res := &Completion{}
	var order []string
	seen := make(map[string]bool)
	for _, t := range open {
		if !match(t.Description) {
			continue
		}
		if err := s.markDone(ctx, t, actor, now); err != nil {
			return nil, err
		}
		res.Completed = append(res.Completed, t)
		if !seen[t.Description] {
			seen[t.Description] = true
			order = append(order, t.Description)
		}
	}
	for _, desc := range order {
		next := s.next(patientID, desc, now, src)
		if _, err := s.repo.ReplaceOpen(ctx, next); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", desc, err)
		}
		res.Scheduled = append(res.Scheduled, next)
	}
	return res, nil
}
