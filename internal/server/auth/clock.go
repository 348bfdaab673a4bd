package auth

import "time"

// Clock returns the current time. Tests pass fixed clocks.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }
