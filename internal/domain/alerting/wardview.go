package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/nursing"
)

// Ward alert types.
const (
	TypeSepsis     = "Sepsiswarnung"
	TypeHypoxia    = "Hypoxie-Risiko"
	TypeHypotonia  = "Hypotonie"
	TypePain       = "Starke Schmerzen"
	TypeMedication = "Medikationswarnung"
	TypeInfection  = "Infektionshinweis"
)

// Allergens checked against the medication list.
var Allergens = []string{"penicillin", "ass", "aspirin", "heparin"}

// InfectionKeywords are searched in the most recent notes.
var InfectionKeywords = []string{"fieber", "infekt", "purulent", "eitrig", "sepsis"}

const (
	wardCacheKey = "ward:alerts"
	recentNotes  = 5
)

// PatientLister lists every patient on the ward.
type PatientLister interface {
	List(ctx context.Context) ([]*nursing.Patient, error)
}

// NoteReader returns recent notes, newest first.
type NoteReader interface {
	Recent(ctx context.Context, patientID uuid.UUID, limit int) ([]*nursing.Note, error)
}

// DrugNamer returns every drug name ever ordered for a patient.
type DrugNamer interface {
	DrugNames(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

// WardView builds the cross-patient alert list shown on the ward overview.
// Results are cached until the TTL passes or Invalidate is called.
type WardView struct {
	patients    PatientLister
	assessments assessment.Repository
	drugs       DrugNamer
	notes       NoteReader
	cache       *gocache.Cache
	observe     func(hit bool)
}

// NewWardView creates the view. A ttl <= 0 disables caching.
func NewWardView(patients PatientLister, assessments assessment.Repository, drugs DrugNamer, notes NoteReader, ttl time.Duration) *WardView {
	v := &WardView{patients: patients, assessments: assessments, drugs: drugs, notes: notes}
	if ttl > 0 {
		v.cache = gocache.New(ttl, 2*ttl)
	}
	return v
}

// OnLookup registers a callback receiving every cache hit or miss.
func (v *WardView) OnLookup(fn func(hit bool)) {
	v.observe = fn
}

func (v *WardView) record(hit bool) {
	if v.observe != nil {
		v.observe(hit)
	}
}

// Invalidate drops the cached list.
func (v *WardView) Invalidate() {
	if v.cache != nil {
		v.cache.Delete(wardCacheKey)
	}
}

// List returns the ward alerts, high severity first. Patients without an
// assessment are skipped.
func (v *WardView) List(ctx context.Context) ([]WardAlert, error) {
	if v.cache != nil {
		if cached, ok := v.cache.Get(wardCacheKey); ok {
			v.record(true)
			return cached.([]WardAlert), nil
		}
		v.record(false)
	}

	patients, err := v.patients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	out := []WardAlert{}
	for _, p := range patients {
		alerts, err := v.forPatient(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", p.ID, err)
		}
		out = append(out, alerts...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.order() < out[j].Severity.order()
	})

	if v.cache != nil {
		v.cache.SetDefault(wardCacheKey, out)
	}
	return out, nil
}

func (v *WardView) forPatient(ctx context.Context, p *nursing.Patient) ([]WardAlert, error) {
	a, err := v.assessments.Latest(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	var out []WardAlert
	add := func(typ string, lvl Level, msg string) {
		out = append(out, WardAlert{
			PatientID:         p.ID,
			PatientName:       p.Name,
			PatientIdentifier: p.Identifier,
			Type:              typ,
			Severity:          lvl,
			Message:           msg,
		})
	}

	if sepsisPattern(a) {
		add(TypeSepsis, LevelHigh, "Vitalzeichen-Konstellation mit möglicher Sepsis – Arzt informieren und Sepsis-Screening erwägen.")
	}
	if o2, ok := assessment.Int(a.OxygenSat); ok && o2 < 90 {
		add(TypeHypoxia, LevelHigh, fmt.Sprintf("O₂-Sättigung %d%% – Sauerstoffgabe / Arztkontakt prüfen.", o2))
	}
	if sys, ok := assessment.Int(a.SystolicBP); ok && sys < 90 {
		dia := "–"
		if d, ok := assessment.Int(a.DiastolicBP); ok {
			dia = fmt.Sprint(d)
		}
		add(TypeHypotonia, LevelMedium, fmt.Sprintf("RR %d/%s mmHg – Kreislaufsituation beobachten, ggf. Arzt informieren.", sys, dia))
	}
	if pain, ok := assessment.Int(a.Pain); ok && pain >= 8 {
		add(TypePain, LevelMedium, fmt.Sprintf("Schmerzskala %d/10 – Analgesie / ärztliche Rücksprache prüfen.", pain))
	}

	if allergies := strings.ToLower(p.AllergyText()); allergies != "" {
		drugs, err := v.drugs.DrugNames(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, allergen := range Allergens {
			if !strings.Contains(allergies, allergen) {
				continue
			}
			for _, d := range drugs {
				if strings.Contains(d, allergen) {
					add(TypeMedication, LevelHigh, fmt.Sprintf("Allergie gegen '%s' und Medikation '%s' – Gabe kritisch prüfen!", allergen, d))
					break
				}
			}
		}
	}

	notes, err := v.notes.Recent(ctx, p.ID, recentNotes)
	if err != nil {
		return nil, err
	}
	if mentionsInfection(notes) {
		add(TypeInfection, LevelLow, "Dokumentation mit Infekt-/Sepsis-Hinweisen – Verlauf engmaschig beobachten.")
	}
	return out, nil
}

// sepsisPattern needs temperature, heart rate and respiration rate.
func sepsisPattern(a *assessment.Assessment) bool {
	t, okT := assessment.Float(a.Temperature)
	hr, okHR := assessment.Int(a.HeartRate)
	rr, okRR := assessment.Int(a.RespirationRate)
	if !okT || !okHR || !okRR {
		return false
	}
	return (t >= 38.5 || t <= 36.0) && hr >= 110 && rr >= 22
}

func mentionsInfection(notes []*nursing.Note) bool {
	for _, n := range notes {
		text := strings.ToLower(n.Text)
		for _, k := range InfectionKeywords {
			if strings.Contains(text, k) {
				return true
			}
		}
	}
	return false
}
