package assessment

import (
	"time"

	"github.com/google/uuid"
)

// Assessment is one flowsheet snapshot. Every measurement is optional;
// nil means "not documented".
type Assessment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	AuthorID        *uuid.UUID `db:"author_id" json:"author_id,omitempty"`
	RecordedAt      time.Time  `db:"recorded_at" json:"recorded_at"`
	Temperature     *float64   `db:"temperature" json:"temperature,omitempty"`
	HeartRate       *int       `db:"heart_rate" json:"heart_rate,omitempty"`
	RespirationRate *int       `db:"respiration_rate" json:"respiration_rate,omitempty"`
	SystolicBP      *int       `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP     *int       `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	OxygenSat       *int       `db:"oxygen_sat" json:"oxygen_sat,omitempty"`
	Weight          *int       `db:"weight" json:"weight,omitempty"`
	Pain            *int       `db:"pain" json:"pain,omitempty"`
	Mobility        *int       `db:"mobility" json:"mobility,omitempty"`
	Edema           *int       `db:"edema" json:"edema,omitempty"`
	Confusion       *int       `db:"confusion" json:"confusion,omitempty"`
	Nutrition       *int       `db:"nutrition" json:"nutrition,omitempty"`
	Skin            *string    `db:"skin" json:"skin,omitempty"`
	Cardiac         *string    `db:"cardiac" json:"cardiac,omitempty"`
	Respiratory     *string    `db:"respiratory" json:"respiratory,omitempty"`
	Neuro           *string    `db:"neuro" json:"neuro,omitempty"`
	Gastro          *string    `db:"gastro" json:"gastro,omitempty"`
	OtherNotes      *string    `db:"other_notes" json:"other_notes,omitempty"`
}

type intRange struct{ min, max int }

var (
	heartRateRange   = intRange{0, 250}
	respirationRange = intRange{0, 80}
	systolicRange    = intRange{40, 250}
	diastolicRange   = intRange{20, 150}
	oxygenRange      = intRange{50, 100}
	weightRange      = intRange{20, 300}
	painRange        = intRange{0, 10}
	mobilityRange    = intRange{0, 10}
	edemaRange       = intRange{0, 4}
	confusionRange   = intRange{0, 10}
	nutritionRange   = intRange{0, 10}
)

const (
	minTemperature = 25.0
	maxTemperature = 45.0
)

func clampInt(v *int, r intRange) {
	if v == nil {
		return
	}
	if *v < r.min {
		*v = r.min
	}
	if *v > r.max {
		*v = r.max
	}
}

// Clamp pulls every documented value into its plausible range in place.
// Values are never rejected.
func (a *Assessment) Clamp() {
	if a.Temperature != nil {
		if *a.Temperature < minTemperature {
			*a.Temperature = minTemperature
		}
		if *a.Temperature > maxTemperature {
			*a.Temperature = maxTemperature
		}
	}
	clampInt(a.HeartRate, heartRateRange)
	clampInt(a.RespirationRate, respirationRange)
	clampInt(a.SystolicBP, systolicRange)
	clampInt(a.DiastolicBP, diastolicRange)
	clampInt(a.OxygenSat, oxygenRange)
	clampInt(a.Weight, weightRange)
	clampInt(a.Pain, painRange)
	clampInt(a.Mobility, mobilityRange)
	clampInt(a.Edema, edemaRange)
	clampInt(a.Confusion, confusionRange)
	clampInt(a.Nutrition, nutritionRange)
}

// HasVitals reports whether any vital sign was documented.
func (a *Assessment) HasVitals() bool {
	return a.Temperature != nil || a.HeartRate != nil || a.RespirationRate != nil ||
		a.SystolicBP != nil || a.DiastolicBP != nil || a.OxygenSat != nil || a.Weight != nil
}

// Int returns the value of an optional measurement and whether it is set.
func Int(v *int) (int, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Float returns the value of an optional measurement and whether it is set.
func Float(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
