package store

import (
	"sync/atomic"
	"time"
)

// Clock issues strictly increasing event ids.
//
// Each id is the current wall time in Unix nanoseconds, bumped to last+1
// whenever the wall clock has not advanced past the previous id. The clock is
// process-wide: one instance is shared by every globe.
//
// Thread-safety: Clock is safe for concurrent use (atomic compare-and-swap).
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

// NewClock creates a clock reading wall time from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns the next id. Calls are linearizable.
func (c *Clock) Next() int64 {
	for {
		last := c.last.Load()
		next := c.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Observe raises the clock so that every later id is greater than id.
// Backends call it on open with the highest persisted id.
func (c *Clock) Observe(id int64) {
	for {
		last := c.last.Load()
		if id <= last || c.last.CompareAndSwap(last, id) {
			return
		}
	}
}

// Current returns the last issued or observed id without advancing.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
