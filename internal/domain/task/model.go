package task

import (
	"time"

	"github.com/google/uuid"
)

// Source records what created a task row.
type Source string

const (
	SourceProblem       Source = "problem"
	SourceBaseline      Source = "baseline"
	SourceRecurrence    Source = "recurrence"
	SourceDocumentation Source = "documentation"
	SourceVoice         Source = "voice"
	SourceManual        Source = "manual"
	SourceImport        Source = "import"
)

// Action is a manual toggle request.
type Action string

const (
	ActionToggle   Action = "toggle"
	ActionComplete Action = "complete"
	ActionReopen   Action = "reopen"
)

func (a Action) Valid() bool {
	switch a {
	case ActionToggle, ActionComplete, ActionReopen:
		return true
	}
	return false
}

// Task is one occurrence of recurring nursing work. (PatientID,
// Description) is the recurrence key; at most one open row per key is
// kept by the scheduler.
type Task struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Description string     `db:"description" json:"description"`
	DueAt       *time.Time `db:"due_at" json:"due_at,omitempty"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `db:"completed_by" json:"completed_by,omitempty"`
	Source      Source     `db:"source" json:"source"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SameKey reports whether o shares t's recurrence key.
func (t *Task) SameKey(o *Task) bool {
	return t.PatientID == o.PatientID && t.Description == o.Description
}

func (t *Task) dueOr(now time.Time) time.Time {
	if t.DueAt == nil || t.DueAt.IsZero() {
		return now
	}
	return *t.DueAt
}
