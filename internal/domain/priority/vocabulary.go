package priority

import (
	"sort"
	"strings"

	"github.com/wardcare/wardcare/internal/domain/assessment"
)

// Code identifies a problem of the fixed vocabulary.
type Code string

const (
	CodeHypoxia     Code = "hypoxia"
	CodeDyspnea     Code = "dyspnea"
	CodeHypotension Code = "hypotension"
	CodeTachycardia Code = "tachycardia"
	CodeDelirium    Code = "delirium"
	CodeFallRisk    Code = "fall_risk"
	CodeFever       Code = "fever"
	CodePain        Code = "pain"
	CodeMonitoring  Code = "monitoring"
)

// Definition is a vocabulary entry. Lower weights rank first: breathing,
// circulation, neuro, safety/infection, pain.
type Definition struct {
	Code   Code
	Label  string
	Weight int
}

// UnmappedWeight ranks labels outside the vocabulary and the fallback last.
const UnmappedWeight = 99

// FallbackLabel fills an otherwise empty problem set.
const FallbackLabel = "Allgemeines Monitoring / Stabilisierung"

var Vocabulary = []Definition{
	{CodeHypoxia, "Hypoxie-Risiko / O₂-Überwachung", 1},
	{CodeDyspnea, "Atemnot / erhöhte Atemfrequenz", 1},
	{CodeHypotension, "Hypotonie – Kreislauf instabil", 2},
	{CodeTachycardia, "Tachykardie / Kreislaufbelastung", 2},
	{CodeDelirium, "Akute Verwirrtheit / Delirrisiko", 3},
	{CodeFallRisk, "Sturz- und Dekubitusrisiko", 4},
	{CodeFever, "Fieber / Infektionsrisiko", 4},
	{CodePain, "Starke Schmerzen", 5},
	{CodeMonitoring, FallbackLabel, UnmappedWeight},
}

var byCode, byLabel = index(Vocabulary)

func index(defs []Definition) (map[Code]Definition, map[string]Definition) {
	codes := make(map[Code]Definition, len(defs))
	labels := make(map[string]Definition, len(defs))
	for _, d := range defs {
		codes[d.Code] = d
		labels[d.Label] = d
	}
	return codes, labels
}

// Label returns the display label of c.
func Label(c Code) string { return byCode[c].Label }

// CodeOf maps a label back to its code; unknown labels report false.
func CodeOf(label string) (Code, bool) {
	d, ok := byLabel[label]
	return d.Code, ok
}

// Weight returns the triage weight of label.
func Weight(label string) int {
	if d, ok := byLabel[label]; ok {
		return d.Weight
	}
	return UnmappedWeight
}

type threshold struct {
	code  Code
	match func(a *assessment.Assessment) bool
}

var vitalThresholds = []threshold{
	{CodePain, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.Pain); return ok && v >= 7 }},
	{CodeFallRisk, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.Mobility); return ok && v <= 3 }},
	{CodeDelirium, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.Confusion); return ok && v >= 6 }},
	{CodeHypoxia, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.OxygenSat); return ok && v < 92 }},
	{CodeTachycardia, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.HeartRate); return ok && v > 110 }},
	{CodeHypotension, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.SystolicBP); return ok && v < 90 }},
	{CodeFever, func(a *assessment.Assessment) bool { v, ok := assessment.Float(a.Temperature); return ok && v > 38.5 }},
	{CodeDyspnea, func(a *assessment.Assessment) bool { v, ok := assessment.Int(a.RespirationRate); return ok && v > 20 }},
}

// FromVitals returns the labels triggered by a's vitals and scales, in
// threshold order. A nil assessment triggers nothing.
func FromVitals(a *assessment.Assessment) []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, t := range vitalThresholds {
		if t.match(a) {
			out = append(out, Label(t.code))
		}
	}
	return out
}

type noteKeyword struct {
	keywords []string
	code     Code
}

var noteKeywords = []noteKeyword{
	{[]string{"gestürzt", "gefallen"}, CodeFallRisk},
	{[]string{"atemnot"}, CodeDyspnea},
	{[]string{"schmerz"}, CodePain},
	{[]string{"verwirrt", "delir"}, CodeDelirium},
}

// FromNote returns the labels whose keywords occur in text.
func FromNote(text string) []string {
	lower := strings.ToLower(text)
	if lower == "" {
		return nil
	}
	var out []string
	for _, nk := range noteKeywords {
		for _, k := range nk.keywords {
			if strings.Contains(lower, k) {
				out = append(out, Label(nk.code))
				break
			}
		}
	}
	return out
}

// Rank merges previous, vitals and notes labels in that order, keeps the
// first occurrence of each, and returns at most MaxProblems labels sorted
// by weight. Ties keep merge order, so tracked problems stay ahead of new
// ones. The fallback appears only when nothing else is present.
func Rank(previous, vitals, notes []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, group := range [][]string{previous, vitals, notes} {
		for _, l := range group {
			l = strings.TrimSpace(l)
			if l == "" || l == FallbackLabel || seen[l] {
				continue
			}
			seen[l] = true
			merged = append(merged, l)
		}
	}
	if len(merged) == 0 {
		return []string{FallbackLabel}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return Weight(merged[i]) < Weight(merged[j])
	})
	if len(merged) > MaxProblems {
		merged = merged[:MaxProblems]
	}
	return merged
}
