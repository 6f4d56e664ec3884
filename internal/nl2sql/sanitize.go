package nl2sql

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?i)```(?:sql)?")

// SanitizeSQL removes markdown code fences anywhere in s and trims the
// surrounding whitespace. Text around the query is kept as is.
func SanitizeSQL(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}
