package models

import (
	"strings"
	"time"
)

// Day is a configured calendar date eligible for reservations.
type Day struct {
	Date         time.Time `json:"-"`
	WeekdayLabel string    `json:"jour"`
	Menu         string    `json:"menu"`
	IsOpen       bool      `json:"open"`
	IsDisabled   bool      `json:"disabled"`
}

// Key returns the canonical yyyy-MM-dd form of the day's date.
func (d Day) Key() string {
	return DateKey(d.Date)
}

// WeekdayLabels maps the French labels used in the Paramètres sheet to weekdays.
var WeekdayLabels = map[string]time.Weekday{
	"Dimanche": time.Sunday,
	"Lundi":    time.Monday,
	"Mardi":    time.Tuesday,
	"Mercredi": time.Wednesday,
	"Jeudi":    time.Thursday,
	"Vendredi": time.Friday,
	"Samedi":   time.Saturday,
}

var weekdayNames = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// WeekdayLabel returns the French label of t's weekday.
func WeekdayLabel(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// ParseFlag reports whether a cell value means "yes".
// Sheets exports booleans as TRUE/VRAI depending on locale, CSV files use 1/yes.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "vrai", "yes", "oui":
		return true
	default:
		return false
	}
}
