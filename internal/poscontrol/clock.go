package poscontrol

import "time"

// Clock gives monotonic microsecond timestamps (§4.1). Backed by
// time.Now(), which on every platform Go supports already reads a
// monotonic clock source; we only need to convert to the microsecond
// integer the rest of the controller's timing math uses.
type Clock struct {
	start time.Time
}

// NewClock returns a Clock anchored at the moment of construction so early
// timestamps stay small and human-readable in logs.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns elapsed microseconds since the clock was constructed.
func (c *Clock) Now() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}
