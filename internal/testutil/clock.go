package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a fake wall clock for tests. Each Now call returns
// the start time plus one more step than the previous call, so a log
// written through store.NewClock(c.Now) gets the same ids on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock whose first reading is start.
// A non-positive step defaults to one millisecond.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &DeterministicClock{start: start, step: step}
}

// Now returns the next reading and advances the clock by one step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many readings were taken.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
