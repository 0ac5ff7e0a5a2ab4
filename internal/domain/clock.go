package domain

import "time"

// Clock provides the current time. Session expiry decisions read it through
// this interface so tests can pin and advance time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// ExpiredAt reports whether a deadline counts as passed at now once margin is
// subtracted from it. A zero deadline is always expired.
func ExpiredAt(deadline, now time.Time, margin time.Duration) bool {
	if deadline.IsZero() {
		return true
	}
	return !now.Before(deadline.Add(-margin))
}

var _ Clock = RealClock{}
