package db

import "strings"

// IsUniqueViolation reports whether err looks like a unique constraint hit.
// With a constraint name it matches that specific constraint; without one it
// falls back to the generic Postgres and sqlite phrasings so tests on either
// driver behave the same.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	if constraintName != "" {
		return strings.Contains(text, constraintName)
	}
	for _, phrase := range []string{"duplicate key value", "UNIQUE constraint failed"} {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
