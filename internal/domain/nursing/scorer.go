package nursing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Weights of each kind of documented interaction.
const (
	NoteWeight       = 2
	AssessmentWeight = 1
	DoseWeight       = 1
)

// Assignment is the result of a scoring run.
type Assignment struct {
	PatientID uuid.UUID         `json:"patient_id"`
	NurseID   uuid.UUID         `json:"nurse_id"`
	Score     int               `json:"score"`
	Previous  *uuid.UUID        `json:"previous,omitempty"`
	Changed   bool              `json:"changed"`
	Scores    map[uuid.UUID]int `json:"scores"`
}

type weightedSource struct {
	name    string
	weight  int
	counter AuthorCounter
}

// Scorer picks a patient's primary nurse from how often each nurse
// documented for them.
type Scorer struct {
	patients PatientRepository
	sources  []weightedSource
}

func NewScorer(patients PatientRepository, notes, assessments, doses AuthorCounter) *Scorer {
	return &Scorer{
		patients: patients,
		sources: []weightedSource{
			{"notes", NoteWeight, notes},
			{"assessments", AssessmentWeight, assessments},
			{"doses", DoseWeight, doses},
		},
	}
}

// Assign recomputes the primary nurse and stores it on the patient. The
// bool is false when no nurse has documented anything, in which case the
// existing assignment is left untouched.
func (s *Scorer) Assign(ctx context.Context, patientID uuid.UUID) (Assignment, bool, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return Assignment{}, false, err
	}

	scores := make(map[uuid.UUID]int)
	for _, src := range s.sources {
		if src.counter == nil {
			continue
		}
		counts, err := src.counter.CountByAuthor(ctx, patientID)
		if err != nil {
			return Assignment{}, false, fmt.Errorf("count %s: %w", src.name, err)
		}
		for nurse, n := range counts {
			scores[nurse] += n * src.weight
		}
	}

	winner, best, ok := pickWinner(scores, p.AssignedNurseID)
	if !ok {
		return Assignment{}, false, nil
	}

	a := Assignment{
		PatientID: patientID,
		NurseID:   winner,
		Score:     best,
		Previous:  p.AssignedNurseID,
		Scores:    scores,
		Changed:   p.AssignedNurseID == nil || *p.AssignedNurseID != winner,
	}
	if a.Changed {
		if err := s.patients.SetAssignedNurse(ctx, patientID, winner); err != nil {
			return Assignment{}, false, err
		}
	}
	return a, true, nil
}

// pickWinner returns the top-scoring nurse. Among tied nurses the current
// assignee wins; otherwise the lowest id in canonical string form.
func pickWinner(scores map[uuid.UUID]int, current *uuid.UUID) (uuid.UUID, int, bool) {
	best := 0
	var tied []uuid.UUID
	for nurse, score := range scores {
		switch {
		case score <= 0:
		case score > best:
			best = score
			tied = []uuid.UUID{nurse}
		case score == best:
			tied = append(tied, nurse)
		}
	}
	if len(tied) == 0 {
		return uuid.Nil, 0, false
	}
	if current != nil {
		for _, n := range tied {
			if n == *current {
				return n, best, true
			}
		}
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i].String() < tied[j].String() })
	return tied[0], best, true
}
