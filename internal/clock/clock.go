// Package clock abstracts the wall clock so response dates are testable.
// Production code injects [Real]; tests inject [Fixed].
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns a Clock backed by [time.Now].
func Real() Clock { return realClock{} }

// Fixed is a Clock that always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return time.Time(f) }
