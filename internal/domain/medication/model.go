package medication

import (
	"time"

	"github.com/google/uuid"
)

// DoseState is the resolution of a single dose row.
type DoseState string

const (
	StateOpen     DoseState = "open"
	StateGiven    DoseState = "given"
	StateNotGiven DoseState = "not_given"
)

// Action is what a nurse does to a dose row.
type Action string

const (
	ActionGiven    Action = "given"
	ActionNotGiven Action = "not_given"
	ActionUndo     Action = "undo"
)

func (a Action) Valid() bool {
	switch a {
	case ActionGiven, ActionNotGiven, ActionUndo:
		return true
	}
	return false
}

// Dose is one scheduled administration of a drug. A resolved row is
// history; the next administration always lives in a new open row.
type Dose struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Drug           string     `db:"drug" json:"drug"`
	Dose           string     `db:"dose" json:"dose,omitempty"`
	Route          string     `db:"route" json:"route,omitempty"`
	Schedule       string     `db:"schedule" json:"schedule,omitempty"`
	NextDue        string     `db:"next_due" json:"next_due,omitempty"`
	State          DoseState  `db:"state" json:"state"`
	AdministeredBy *uuid.UUID `db:"administered_by" json:"administered_by,omitempty"`
	AdministeredAt *time.Time `db:"administered_at" json:"administered_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// SameSeries reports whether o belongs to the same recurring order.
func (d *Dose) SameSeries(o *Dose) bool {
	return d.PatientID == o.PatientID && d.Drug == o.Drug && d.Schedule == o.Schedule
}
