package clock

import "time"

// Clock is the local wall clock used for timeout arithmetic
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time truncated to whole seconds, matching the
// resolution of ledger timestamps
func (c *RealClock) Now() time.Time {
	return time.Now().Truncate(time.Second)
}
