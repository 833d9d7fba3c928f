// Package interval resolves free-text task descriptions and medication
// schedules to a re-check interval. Both tables are ordered; the first
// rule with a matching keyword wins.
package interval

import (
	"strings"
	"time"
)

const (
	DefaultTask     = 4 * time.Hour
	DefaultSchedule = 8 * time.Hour
)

// Rule maps any of its keywords (lower case substrings) to an interval.
type Rule struct {
	Keywords []string
	Interval time.Duration
}

func (r Rule) matches(lower string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// TaskRules apply to task descriptions.
var TaskRules = []Rule{
	{Keywords: []string{"täglich", "daily"}, Interval: 24 * time.Hour},
	{Keywords: []string{"alle 2h", "alle 2 h"}, Interval: 2 * time.Hour},
	{Keywords: []string{"alle 4h", "alle 4 h"}, Interval: 4 * time.Hour},
	{Keywords: []string{"alle 1h", "alle 1 h"}, Interval: 1 * time.Hour},
}

// ScheduleRules apply to medication schedule text. "Nx täglich" does not
// divide the day evenly; 2x maps to 6h and 3x to 8h.
var ScheduleRules = []Rule{
	{Keywords: []string{"alle 1h", "alle 1 h"}, Interval: 1 * time.Hour},
	{Keywords: []string{"alle 2h", "alle 2 h"}, Interval: 2 * time.Hour},
	{Keywords: []string{"alle 4h", "alle 4 h"}, Interval: 4 * time.Hour},
	{Keywords: []string{"1x täglich", "1 x täglich"}, Interval: 24 * time.Hour},
	{Keywords: []string{"2x täglich", "2 x täglich"}, Interval: 6 * time.Hour},
	{Keywords: []string{"3x täglich", "3 x täglich"}, Interval: 8 * time.Hour},
	{Keywords: []string{"morgens", "abends", "nachts"}, Interval: 24 * time.Hour},
}

// Resolve returns the interval of the first rule matching text, or def.
func Resolve(rules []Rule, text string, def time.Duration) time.Duration {
	lower := strings.ToLower(text)
	if lower == "" {
		return def
	}
	for _, r := range rules {
		if r.matches(lower) {
			return r.Interval
		}
	}
	return def
}

// ForTask resolves a task description; unmatched text yields 4h.
func ForTask(description string) time.Duration {
	return Resolve(TaskRules, description, DefaultTask)
}

// ForSchedule resolves a medication schedule; empty or unmatched text
// yields 8h.
func ForSchedule(schedule string) time.Duration {
	return Resolve(ScheduleRules, schedule, DefaultSchedule)
}

// Kind selects which table Lookup consults.
type Kind string

const (
	KindTask       Kind = "task"
	KindMedication Kind = "medication"
)

// Lookup resolves text with the table for kind. Unknown kinds are treated
// as medication schedules.
func Lookup(kind Kind, text string) time.Duration {
	if kind == KindTask {
		return ForTask(text)
	}
	return ForSchedule(text)
}
