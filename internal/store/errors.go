package store

import "strings"

// isUniqueConstraint reports whether err is sqlite's rejection of a
// UNIQUE index violation, the same string-matching approach the
// teacher uses throughout its own error-classification tests rather
// than a driver-specific error type assertion.
func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
