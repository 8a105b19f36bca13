// Package system provides the wall clock used to stamp stored records.
package system

import "time"

// Clock implements store.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to the microsecond precision
// Postgres keeps, so values read back compare equal to values written.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
