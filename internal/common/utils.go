package common

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold returns the case-folded form of s for case-insensitive matching.
// Casers are stateful, so one is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	fs := Fold(s)
	for _, sub := range subs {
		if strings.Contains(fs, Fold(sub)) {
			return true
		}
	}
	return false
}

// Title converts free text like "partly cloudy" into "Partly Cloudy".
func Title(s string) string {
	return cases.Title(language.English).String(s)
}
