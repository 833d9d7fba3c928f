package alerting

import (
	"fmt"
	"strings"

	"github.com/wardcare/wardcare/internal/domain/assessment"
)

// Alert codes.
const (
	CodeFever       = "fever"
	CodeHypoxia     = "severe_hypoxia"
	CodeHypotension = "hypotension"
	CodeTachycardia = "tachycardia"
	CodeSepsis      = "sepsis_suspicion"
	CodeBetaBlocker = "beta_blocker_low_bp"
)

// BetaBlockers are matched as substrings of active drug names.
var BetaBlockers = []string{"bisoprolol", "metoprolol", "carvedilol", "nebivolol", "atenolol", "propranolol"}

// Input is what a rule sees: the latest assessment and the lower-case names
// of drugs with an open dose.
type Input struct {
	Assessment *assessment.Assessment
	Drugs      []string
}

// Rule produces at most one alert. Check returns the message and whether
// the rule fired.
type Rule struct {
	Code     string
	Severity Severity
	Check    func(in Input) (string, bool)
}

func fixed(msg string, pred func(a *assessment.Assessment) bool) func(Input) (string, bool) {
	return func(in Input) (string, bool) {
		if pred(in.Assessment) {
			return msg, true
		}
		return "", false
	}
}

// Rules are evaluated in order; every rule is independent.
var Rules = []Rule{
	{CodeFever, SeverityWarning, fixed("Fieber: bitte Infekt abklären", func(a *assessment.Assessment) bool {
		t, ok := assessment.Float(a.Temperature)
		return ok && t >= 38.5
	})},
	{CodeHypoxia, SeverityCritical, fixed("Schwere Hypoxie! O₂-Gabe prüfen", func(a *assessment.Assessment) bool {
		v, ok := assessment.Int(a.OxygenSat)
		return ok && v < 90
	})},
	{CodeHypotension, SeverityCritical, fixed("Hypotonie – Gefahr einer Schocksituation", func(a *assessment.Assessment) bool {
		v, ok := assessment.Int(a.SystolicBP)
		return ok && v < 90
	})},
	{CodeTachycardia, SeverityWarning, fixed("Tachykardie: mögliche Schmerzen, Fieber oder Hypovolämie", func(a *assessment.Assessment) bool {
		v, ok := assessment.Int(a.HeartRate)
		return ok && v > 120
	})},
	{CodeSepsis, SeverityCritical, fixed("⚠️ Sepsisverdacht! Arzt sofort informieren.", func(a *assessment.Assessment) bool {
		return QSOFA(a) >= 2
	})},
	{CodeBetaBlocker, SeverityWarning, betaBlockerCheck},
}

// QSOFA scores respiration rate >= 22, systolic BP < 100 and confusion >= 5,
// one point each.
func QSOFA(a *assessment.Assessment) int {
	score := 0
	if v, ok := assessment.Int(a.RespirationRate); ok && v >= 22 {
		score++
	}
	if v, ok := assessment.Int(a.SystolicBP); ok && v < 100 {
		score++
	}
	if v, ok := assessment.Int(a.Confusion); ok && v >= 5 {
		score++
	}
	return score
}

func betaBlockerCheck(in Input) (string, bool) {
	sys, ok := assessment.Int(in.Assessment.SystolicBP)
	if !ok || sys >= 95 {
		return "", false
	}
	for _, drug := range in.Drugs {
		for _, bb := range BetaBlockers {
			if strings.Contains(drug, bb) {
				return fmt.Sprintf("%s bei niedrigen RR mit Vorsicht verabreichen!", capitalize(bb)), true
			}
		}
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Evaluate runs every rule against in. A nil assessment yields no alerts.
func Evaluate(in Input) []*Alert {
	if in.Assessment == nil {
		return nil
	}
	var out []*Alert
	for _, r := range Rules {
		if msg, ok := r.Check(in); ok {
			out = append(out, &Alert{Code: r.Code, Severity: r.Severity, Message: msg})
		}
	}
	return out
}
