// Package uuid generates record identifiers.
package uuid

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string, falling back to a random v4 if
// the clock source fails.
func New() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}
