// Package notify pushes per-patient alert snapshots to downstream
// consumers after an engine call has committed.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Alert is one entry of the published snapshot.
type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// AlertSnapshot is the payload published for a patient whenever its alert
// set was re-evaluated.
type AlertSnapshot struct {
	PatientID   uuid.UUID `json:"patient_id"`
	Alerts      []Alert   `json:"alerts"`
	Problems    []string  `json:"problems,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Publisher delivers alert snapshots. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishAlerts(ctx context.Context, snap AlertSnapshot) error
}

// Nop discards snapshots. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishAlerts(context.Context, AlertSnapshot) error { return nil }
