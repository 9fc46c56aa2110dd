package languageutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers keep state between calls, so every call gets a fresh one.

// Label turns an enum value like "tops" or "all_season" into a display label ("Tops", "All Season").
func Label(value string) string {
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return cases.Title(language.English).String(strings.TrimSpace(value))
}

// NormalizeTag lowercases a free-text tag and collapses inner whitespace.
func NormalizeTag(value string) string {
	return strings.Join(strings.Fields(cases.Lower(language.English).String(value)), " ")
}

// NormalizeSize uppercases a size label ("m" -> "M", "eu 42" -> "EU 42").
func NormalizeSize(value string) string {
	return strings.Join(strings.Fields(cases.Upper(language.English).String(value)), " ")
}

// NormalizeSpaces trims and collapses runs of whitespace without changing case.
func NormalizeSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
