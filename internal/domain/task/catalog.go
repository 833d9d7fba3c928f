package task

import (
	"strings"

	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/priority"
)

// Catalog lists the tasks planned for each problem.
var Catalog = map[priority.Code][]string{
	priority.CodeHypoxia: {
		"SpO₂ und Atemfrequenz alle 2h messen",
		"Oberkörperhochlagerung, atemerleichternde Positionierung",
	},
	priority.CodeDyspnea: {
		"Atemfrequenz und SpO₂ alle 1h kontrollieren",
		"Oberkörperhochlagerung, atemerleichternde Positionierung",
	},
	priority.CodeHypotension: {
		"Blutdruck und Puls alle 1h kontrollieren",
		"Flüssigkeitsbilanz täglich",
	},
	priority.CodeTachycardia: {
		"Puls und Blutdruck alle 2h kontrollieren",
	},
	priority.CodeDelirium: {
		"Orientierungshilfen (Kalender, Uhr, Angehörige) bereitstellen",
		"Bewusstseinslage alle 4h einschätzen",
	},
	priority.CodeFallRisk: {
		"Lagerung alle 2h dokumentieren",
		"Sturzrisiko einschätzen",
	},
	priority.CodeFever: {
		"Temperatur alle 4h messen",
		"Infektzeichen täglich beobachten",
	},
	priority.CodePain: {
		"Schmerzskala alle 4h erheben",
	},
	priority.CodeMonitoring: {
		"Vitalzeichen nach Standard überwachen",
	},
}

// TasksFor returns the planned descriptions for a problem label. Labels
// outside the vocabulary get the monitoring tasks.
func TasksFor(label string) []string {
	if code, ok := priority.CodeOf(label); ok {
		if tasks, ok := Catalog[code]; ok {
			return tasks
		}
	}
	return Catalog[priority.CodeMonitoring]
}

// Baseline tasks are kept open for every patient.
var Baseline = []string{
	"Vitalzeichenkontrolle nach Standard",
	"Schmerzen täglich erfragen",
	"Gewichtskontrolle täglich",
}

type phrase struct {
	match       string
	description string
}

// spokenPhrases is ordered; the first phrase contained in the text wins.
var spokenPhrases = []phrase{
	{"teilgewaschen", "Patient teilgewaschen"},
	{"ganzgewaschen", "Patient ganzgewaschen"},
	{"inhaliert", "Inhalation durchgeführt"},
	{"urin geleert", "Urinflasche geleert"},
	{"gelagert", "Lagerung alle 2h dokumentieren"},
	{"mobilisiert", "Mobilisation nach Standard"},
	{"zähne geputzt", "Zahnpflege durchgeführt"},
	{"essen", "Beim Essen geholfen"},
	{"aufgeklärt", "Patient informiert / aufgeklärt"},
	{"op geprüft", "Postoperative Kontrolle durchgeführt"},
	{"hochlagert", "Oberkörperhochlagerung, atemerleichternde Positionierung"},
	{"orientiert", "Orientierungshilfen (Kalender, Uhr, Angehörige) bereitstellen"},
	{"wunde", "Wundbehandlung durchgeführt"},
}

// MapSpokenPhrase maps a dictated sentence to a task description.
func MapSpokenPhrase(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, p := range spokenPhrases {
		if strings.Contains(lower, p.match) {
			return p.description, true
		}
	}
	return "", false
}

// FlowsheetKeywords returns the description keywords of tasks that a
// flowsheet entry satisfies, depending on which fields were documented.
func FlowsheetKeywords(a *assessment.Assessment) []string {
	if a == nil {
		return nil
	}
	var out []string
	if a.HasVitals() {
		out = append(out, "Vitalzeichen", "SpO₂", "Temperatur", "Blutdruck", "Puls", "Atemfrequenz")
	}
	if a.Weight != nil {
		out = append(out, "Gewicht")
	}
	if a.OxygenSat != nil || a.RespirationRate != nil {
		out = append(out, "Oberkörperhochlagerung")
	}
	if a.Pain != nil {
		out = append(out, "Schmerz")
	}
	if a.Mobility != nil {
		out = append(out, "Sturzrisiko", "Lagerung")
	}
	if a.Confusion != nil {
		out = append(out, "Orientierungshilfen")
	}
	return out
}
