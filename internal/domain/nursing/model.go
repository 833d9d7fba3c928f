package nursing

import (
	"time"

	"github.com/google/uuid"
)

type Nurse struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Identifier      string     `db:"identifier" json:"identifier"`
	Name            string     `db:"name" json:"name"`
	Room            *string    `db:"room" json:"room,omitempty"`
	Diagnosis       *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Allergies       *string    `db:"allergies" json:"allergies,omitempty"`
	AssignedNurseID *uuid.UUID `db:"assigned_nurse_id" json:"assigned_nurse_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AllergyText returns the allergy list, empty when unknown.
func (p *Patient) AllergyText() string {
	if p.Allergies == nil {
		return ""
	}
	return *p.Allergies
}

// Note is a free-text nursing observation.
type Note struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	AuthorID  *uuid.UUID `db:"author_id" json:"author_id,omitempty"`
	Text      string     `db:"note" json:"note"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
