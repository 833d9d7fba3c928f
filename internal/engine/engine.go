// Package engine is the single entry point for everything that changes a
// patient's derived ward state. Each mutating call holds the patient's
// lock, runs in one transaction and publishes the alert snapshot only
// after commit.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardcare/wardcare/internal/domain/alerting"
	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/interval"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
	"github.com/wardcare/wardcare/internal/platform/lock"
	"github.com/wardcare/wardcare/internal/platform/metrics"
	"github.com/wardcare/wardcare/internal/platform/notify"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deps wires the engine. Publisher, Locker and Metrics are optional.
type Deps struct {
	Tx          Transactor
	Locker      lock.Locker
	Publisher   notify.Publisher
	Metrics     *metrics.EngineMetrics
	Logger      zerolog.Logger
	Now         func() time.Time
	Nursing     *nursing.Service
	Patients    nursing.PatientRepository
	Scorer      *nursing.Scorer
	Assessments assessment.Repository
	Doses       *medication.Service
	Alerts      *alerting.Service
	Ward        *alerting.WardView
	Priorities  *priority.Service
	Tasks       *task.Scheduler
}

type Engine struct {
	Deps
}

func New(d Deps) *Engine {
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if d.Publisher == nil {
		d.Publisher = notify.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Ward != nil && d.Metrics != nil {
		d.Ward.OnLookup(d.Metrics.CacheLookup)
	}
	return &Engine{Deps: d}
}

// callStats collects the counts logged for one call.
type callStats struct {
	problems int
	alerts   int
	spawned  int
}

func patientKey(id uuid.UUID) string { return "patient:" + id.String() }

// run serializes fn per patient and executes it in one transaction.
func (e *Engine) run(ctx context.Context, op string, patientID uuid.UUID, fn func(ctx context.Context, st *callStats) error) error {
	start := time.Now()
	unlock, err := e.Locker.Lock(ctx, patientKey(patientID))
	if err != nil {
		e.Metrics.ObserveCall(op, time.Since(start), err)
		return fmt.Errorf("lock patient: %w", err)
	}
	defer unlock()
	e.Metrics.ObserveLockWait(time.Since(start))

	var st callStats
	err = e.Tx.InTx(ctx, func(ctx context.Context) error { return fn(ctx, &st) })
	if err == nil && e.Ward != nil {
		e.Ward.Invalidate()
	}

	d := time.Since(start)
	e.Metrics.ObserveCall(op, d, err)
	ev := e.Logger.Info()
	if err != nil {
		ev = e.Logger.Error().Err(err)
	}
	ev.Str("operation", op).
		Str("patient_id", patientID.String()).
		Int("problems", st.problems).
		Int("alerts", st.alerts).
		Int("tasks_spawned", st.spawned).
		Dur("duration", d).
		Msg("engine call")
	return err
}

// publish sends the snapshot after commit. Failures are logged only.
func (e *Engine) publish(ctx context.Context, snap *priority.Snapshot) {
	if snap == nil || !snap.AlertsEvaluated {
		return
	}
	out := notify.AlertSnapshot{
		PatientID:   snap.PatientID,
		Alerts:      make([]notify.Alert, 0, len(snap.Alerts)),
		Problems:    snap.Labels(),
		EvaluatedAt: e.Now(),
	}
	for _, a := range snap.Alerts {
		out.Alerts = append(out.Alerts, notify.Alert{Severity: string(a.Severity), Message: a.Message})
	}
	err := e.Publisher.PublishAlerts(ctx, out)
	e.Metrics.Published(err)
	if err != nil {
		e.Logger.Warn().Err(err).Str("patient_id", snap.PatientID.String()).Msg("alert publish failed")
	}
}

// recompute is the in-transaction part of Recompute.
func (e *Engine) recompute(ctx context.Context, patientID uuid.UUID, st *callStats) (*priority.Snapshot, error) {
	snap, err := e.Priorities.Recompute(ctx, patientID)
	if err != nil {
		return nil, err
	}
	st.problems = len(snap.Problems)
	st.alerts = len(snap.Alerts)
	st.spawned += snap.TasksPlanned + snap.BaselineAdded
	e.Metrics.TaskSpawned(string(task.SourceProblem), snap.TasksPlanned)
	e.Metrics.TaskSpawned(string(task.SourceBaseline), snap.BaselineAdded)
	for _, a := range snap.Alerts {
		e.Metrics.AlertRaised(string(a.Severity))
	}
	return snap, nil
}

func (e *Engine) requirePatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := e.Patients.GetByID(ctx, patientID)
	return err
}

// Recompute re-derives problems, tasks and alerts for one patient.
func (e *Engine) Recompute(ctx context.Context, patientID uuid.UUID) (*priority.Snapshot, error) {
	var snap *priority.Snapshot
	err := e.run(ctx, "recompute", patientID, func(ctx context.Context, st *callStats) error {
		if err := e.requirePatient(ctx, patientID); err != nil {
			return err
		}
		var err error
		snap, err = e.recompute(ctx, patientID, st)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, snap)
	return snap, nil
}

// ToggleTask completes or reopens a task.
func (e *Engine) ToggleTask(ctx context.Context, taskID uuid.UUID, action task.Action, actor *uuid.UUID) (*task.ToggleResult, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownAction, action)
	}
	t, err := e.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var res *task.ToggleResult
	err = e.run(ctx, "toggle_task", t.PatientID, func(ctx context.Context, st *callStats) error {
		var err error
		if res, err = e.Tasks.Toggle(ctx, taskID, action, actor); err != nil {
			return err
		}
		if res.Spawned != nil {
			st.spawned = 1
			e.Metrics.TaskSpawned(string(task.SourceRecurrence), 1)
		}
		return nil
	})
	return res, err
}

// RecordDose applies a dose action and refreshes the primary nurse.
func (e *Engine) RecordDose(ctx context.Context, doseID uuid.UUID, action medication.Action, actor *uuid.UUID) (*medication.Outcome, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", medication.ErrUnknownAction, action)
	}
	d, err := e.Doses.GetByID(ctx, doseID)
	if err != nil {
		return nil, err
	}
	var out *medication.Outcome
	err = e.run(ctx, "record_dose", d.PatientID, func(ctx context.Context, st *callStats) error {
		var err error
		if out, err = e.Doses.Record(ctx, doseID, action, actor); err != nil {
			return err
		}
		if out.Changed {
			_, _, err = e.Scorer.Assign(ctx, d.PatientID)
		}
		return err
	})
	return out, err
}

// LookupInterval resolves free text with the task or medication table.
func (e *Engine) LookupInterval(kind interval.Kind, text string) time.Duration {
	return interval.Lookup(kind, text)
}

// AssessmentOutcome is returned by RecordAssessment.
type AssessmentOutcome struct {
	Assessment *assessment.Assessment `json:"assessment"`
	Completed  []*task.Task           `json:"completed_tasks"`
	Note       *nursing.Note          `json:"note,omitempty"`
	Snapshot   *priority.Snapshot     `json:"snapshot"`
}

// RecordAssessment stores a flowsheet entry, completes the tasks it
// satisfies, keeps free-text observations as a note and recomputes.
func (e *Engine) RecordAssessment(ctx context.Context, a *assessment.Assessment, actor *uuid.UUID) (*AssessmentOutcome, error) {
	if a.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	out := &AssessmentOutcome{Assessment: a}
	err := e.run(ctx, "record_assessment", a.PatientID, func(ctx context.Context, st *callStats) error {
		if err := e.requirePatient(ctx, a.PatientID); err != nil {
			return err
		}
		a.ID = uuid.Nil
		a.AuthorID = actor
		if a.RecordedAt.IsZero() {
			a.RecordedAt = e.Now()
		}
		a.Clamp()
		if err := e.Assessments.Create(ctx, a); err != nil {
			return fmt.Errorf("store assessment: %w", err)
		}

		if kw := task.FlowsheetKeywords(a); len(kw) > 0 {
			c, err := e.Tasks.CompleteMatching(ctx, a.PatientID, kw, actor, task.SourceDocumentation)
			if err != nil {
				return err
			}
			out.Completed = c.Completed
			st.spawned += len(c.Scheduled)
			e.Metrics.TaskSpawned(string(task.SourceDocumentation), len(c.Scheduled))
		}

		if a.OtherNotes != nil && strings.TrimSpace(*a.OtherNotes) != "" {
			n := &nursing.Note{PatientID: a.PatientID, AuthorID: actor, Text: *a.OtherNotes, CreatedAt: a.RecordedAt}
			if err := e.Nursing.AddNote(ctx, n); err != nil {
				return err
			}
			out.Note = n
		}

		var err error
		if out.Snapshot, err = e.recompute(ctx, a.PatientID, st); err != nil {
			return err
		}
		_, _, err = e.Scorer.Assign(ctx, a.PatientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, out.Snapshot)
	return out, nil
}

// VoiceOutcome is returned by RecordVoiceNote.
type VoiceOutcome struct {
	Task       string             `json:"task,omitempty"`
	Completion *task.Completion   `json:"completion,omitempty"`
	Note       *nursing.Note      `json:"note,omitempty"`
	Snapshot   *priority.Snapshot `json:"snapshot"`
}

// RecordVoiceNote maps a dictated sentence to a task and documents it as
// done. Text that maps to no task is kept as a note together with the
// observation.
func (e *Engine) RecordVoiceNote(ctx context.Context, patientID uuid.UUID, spoken, observation string, actor *uuid.UUID) (*VoiceOutcome, error) {
	spoken, observation = strings.TrimSpace(spoken), strings.TrimSpace(observation)
	if spoken == "" && observation == "" {
		return nil, fmt.Errorf("spoken text or observation is required")
	}
	desc, mapped := task.MapSpokenPhrase(spoken)
	noteText := observation
	if !mapped && spoken != "" {
		noteText = strings.TrimSpace(spoken + "\n" + observation)
	}

	out := &VoiceOutcome{Task: desc}
	err := e.run(ctx, "record_voice_note", patientID, func(ctx context.Context, st *callStats) error {
		if err := e.requirePatient(ctx, patientID); err != nil {
			return err
		}
		if mapped {
			c, err := e.Tasks.RecordDone(ctx, patientID, desc, actor, task.SourceVoice)
			if err != nil {
				return err
			}
			out.Completion = c
			st.spawned += len(c.Scheduled)
			e.Metrics.TaskSpawned(string(task.SourceVoice), len(c.Scheduled))
		}
		if noteText != "" {
			n := &nursing.Note{PatientID: patientID, AuthorID: actor, Text: noteText, CreatedAt: e.Now()}
			if err := e.Nursing.AddNote(ctx, n); err != nil {
				return err
			}
			out.Note = n
		}
		var err error
		if out.Snapshot, err = e.recompute(ctx, patientID, st); err != nil {
			return err
		}
		_, _, err = e.Scorer.Assign(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, out.Snapshot)
	return out, nil
}

// AddNote stores a nurse note and recomputes, since notes feed problems.
func (e *Engine) AddNote(ctx context.Context, n *nursing.Note) (*priority.Snapshot, error) {
	if n.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	var snap *priority.Snapshot
	err := e.run(ctx, "add_note", n.PatientID, func(ctx context.Context, st *callStats) error {
		if err := e.requirePatient(ctx, n.PatientID); err != nil {
			return err
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = e.Now()
		}
		if err := e.Nursing.AddNote(ctx, n); err != nil {
			return err
		}
		var err error
		if snap, err = e.recompute(ctx, n.PatientID, st); err != nil {
			return err
		}
		_, _, err = e.Scorer.Assign(ctx, n.PatientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, snap)
	return snap, nil
}

// DismissProblem drops one tracked problem until data re-triggers it.
func (e *Engine) DismissProblem(ctx context.Context, patientID uuid.UUID, label string) error {
	return e.run(ctx, "dismiss_problem", patientID, func(ctx context.Context, _ *callStats) error {
		return e.Priorities.Dismiss(ctx, patientID, label)
	})
}

// EnsureBaselineAll opens missing baseline tasks for every patient and
// returns how many were created.
func (e *Engine) EnsureBaselineAll(ctx context.Context) (int, error) {
	patients, err := e.Patients.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range patients {
		var n int
		err := e.run(ctx, "ensure_baseline", p.ID, func(ctx context.Context, st *callStats) error {
			var err error
			if n, err = e.Tasks.EnsureBaseline(ctx, p.ID); err != nil {
				return err
			}
			st.spawned = n
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("patient %s: %w", p.ID, err)
		}
		total += n
		e.Metrics.TaskSpawned(string(task.SourceBaseline), n)
	}
	return total, nil
}

// ScoreAssignment recomputes the primary nurse of a patient.
func (e *Engine) ScoreAssignment(ctx context.Context, patientID uuid.UUID) (nursing.Assignment, bool, error) {
	var (
		res nursing.Assignment
		ok  bool
	)
	err := e.run(ctx, "score_assignment", patientID, func(ctx context.Context, _ *callStats) error {
		var err error
		res, ok, err = e.Scorer.Assign(ctx, patientID)
		return err
	})
	return res, ok, err
}

// -- Reads --

func (e *Engine) ListProblems(ctx context.Context, patientID uuid.UUID) ([]*priority.Problem, error) {
	return e.Priorities.ListByPatient(ctx, patientID)
}

func (e *Engine) ListAlerts(ctx context.Context, patientID uuid.UUID) ([]*alerting.Alert, error) {
	return e.Alerts.ListByPatient(ctx, patientID)
}

func (e *Engine) ListTasks(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*task.Task, int, error) {
	return e.Tasks.ListByPatient(ctx, patientID, limit, offset)
}

func (e *Engine) ListDoses(ctx context.Context, patientID uuid.UUID, openOnly bool) ([]*medication.Dose, error) {
	return e.Doses.ListByPatient(ctx, patientID, openOnly)
}

func (e *Engine) WardAlerts(ctx context.Context) ([]alerting.WardAlert, error) {
	return e.Ward.List(ctx)
}
