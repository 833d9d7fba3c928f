package priority

import "github.com/google/uuid"

// Problem is one ranked nursing priority of a patient.
type Problem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Rank      int       `db:"rank" json:"rank"`
	Label     string    `db:"label" json:"label"`
}

// MaxProblems caps the ranked set.
const MaxProblems = 3
