// Package clock abstracts wall time so batch timestamps are testable.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System implements Clock using time.Now in UTC.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports T.
type Fixed struct {
	T time.Time
}

// Now returns T.
func (f Fixed) Now() time.Time {
	return f.T
}
