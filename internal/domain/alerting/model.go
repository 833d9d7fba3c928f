package alerting

import (
	"time"

	"github.com/google/uuid"
)

// Severity of a per-patient alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert is one entry of a patient's current alert snapshot. The set is
// replaced as a whole on every evaluation.
type Alert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Code      string    `db:"code" json:"code"`
	Message   string    `db:"message" json:"message"`
	Severity  Severity  `db:"severity" json:"severity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Level is the severity scheme of the cross-patient ward view.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

func (l Level) order() int {
	switch l {
	case LevelHigh:
		return 0
	case LevelMedium:
		return 1
	}
	return 2
}

// WardAlert is one row of the aggregate ward alert list.
type WardAlert struct {
	PatientID         uuid.UUID `json:"patient_id"`
	PatientName       string    `json:"patient_name"`
	PatientIdentifier string    `json:"patient_identifier"`
	Type              string    `json:"type"`
	Severity          Level     `json:"severity"`
	Message           string    `json:"message"`
}
