package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capitalize title-cases bank supplied names, which often arrive in all caps
func Capitalize(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MaskSecret keeps the first and last 4 characters of long values
func MaskSecret(v string) string {
	if len(v) > 8 {
		return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
	}
	return strings.Repeat("*", len(v))
}
