package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical storage form.
	DateLayout = "2006-01-02"
	// DisplayLayout is the user-facing form.
	DisplayLayout = "02.01.2006"
	// TimestampLayout is used for createdAt columns.
	TimestampLayout = time.RFC3339
)

// ParseDate accepts dd.MM.yyyy, yyyy-MM-dd and RFC 3339 timestamps and returns
// midnight of that calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{DateLayout, DisplayLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(t.In(loc)), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected dd.MM.yyyy or yyyy-MM-dd", s)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey formats t as yyyy-MM-dd.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DisplayDate formats t as dd.MM.yyyy.
func DisplayDate(t time.Time) string {
	return t.Format(DisplayLayout)
}

// PrettyHeader formats t as "Lundi 12.10".
func PrettyHeader(t time.Time) string {
	return fmt.Sprintf("%s %s", WeekdayLabel(t), t.Format("02.01"))
}
