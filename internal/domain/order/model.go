package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind separates physician orders from lab orders. Both share one queue.
type Kind string

const (
	KindDoctor Kind = "doctor"
	KindLab    Kind = "lab"
)

func (k Kind) Valid() bool {
	return k == KindDoctor || k == KindLab
}

// Status of an order. Only StatusDone is closed.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPlanned Status = "planned"
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPlanned, StatusPending, StatusDone:
		return true
	}
	return false
}

// ParseStatus maps the German ward vocabulary ("offen", "geplant",
// "ausstehend", "erledigt") and the API values onto a Status. Unknown
// text is treated as open.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "erledigt", string(StatusDone):
		return StatusDone
	case "geplant", string(StatusPlanned):
		return StatusPlanned
	case "ausstehend", string(StatusPending):
		return StatusPending
	}
	return StatusOpen
}

// DefaultLabPriority is used when a lab order names none.
const DefaultLabPriority = "Routine"

// Order is a physician or lab order for a patient. Category carries the
// order type for physician orders ("Anordnung", "Diagnostik") and the
// urgency for lab orders.
type Order struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Kind        Kind       `db:"kind" json:"kind"`
	Description string     `db:"description" json:"description"`
	Category    string     `db:"category" json:"category,omitempty"`
	OrderedBy   string     `db:"ordered_by" json:"ordered_by,omitempty"`
	DueAt       *time.Time `db:"due_at" json:"due_at,omitempty"`
	Status      Status     `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `db:"completed_by" json:"completed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (o *Order) Done() bool { return o.Status == StatusDone }

// Filter narrows List. Zero values match everything.
type Filter struct {
	PatientID *uuid.UUID
	Kind      Kind
	OpenOnly  bool
}
