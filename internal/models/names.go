package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName trims, collapses inner whitespace and upper-cases a person's name
// so that "  jean  dupont" and "Jean Dupont" match at the till.
// Full Unicode case mapping is used ("ß" becomes "SS").
func NormalizeName(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return cases.Upper(language.Und).String(strings.Join(fields, " "))
}
