// Package clock maps server wall-clock time onto the simulated orbit window.
package clock

import (
	"fmt"
	"time"
)

// Clock advances simulated time at wall-clock rate from the moment the
// server started, clamped to [start, end]. It is immutable and safe for
// concurrent use.
type Clock struct {
	origin time.Time // server start, wall clock
	start  time.Time
	end    time.Time
}

// New returns a clock whose simulated time equals start at origin.
func New(start, end, origin time.Time) (*Clock, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("orbit window ends (%s) before it starts (%s)", end, start)
	}
	return &Clock{origin: origin, start: start, end: end}, nil
}

// At returns the simulated instant for wall time now. Elapsed time is
// measured with the monotonic reading when both times carry one.
func (c *Clock) At(now time.Time) time.Time {
	elapsed := now.Sub(c.origin)
	if elapsed < 0 {
		elapsed = 0
	}
	t := c.start.Add(elapsed)
	if t.After(c.end) {
		return c.end
	}
	return t
}

// Window returns the simulated orbit bounds.
func (c *Clock) Window() (start, end time.Time) {
	return c.start, c.end
}
