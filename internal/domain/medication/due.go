package medication

import (
	"strings"
	"time"
)

// DueLayout is how spawned rows store their next-due time.
const DueLayout = "2006-01-02T15:04"

var dateTimeLayouts = []string{
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
}

// ParseDue interprets a stored next-due value. Full timestamps are read in
// now's location, a bare "HH:MM" means today at that time, and anything
// unparseable falls back to now.
func ParseDue(raw string, now time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t
		}
	}
	if t, err := time.Parse("15:04", s); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, now.Location())
	}
	return now
}

// FormatDue renders t in DueLayout.
func FormatDue(t time.Time) string {
	return t.Format(DueLayout)
}
