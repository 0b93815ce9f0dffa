// Package clock abstracts time so that window rollover, expiry, and
// circuit-breaker cooldowns can be tested deterministically, without sleeps.
//
// Production code uses SystemClock; tests use ManualClock and advance time
// explicitly.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the limiter and its collaborators.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock. It is stateless and safe to share.
type SystemClock struct{}

func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a controllable clock for tests. It only moves when Advance
// or Set is called.
//
// Safe for concurrent use; concurrent Set calls can move time backward, so
// tests that care about monotonicity should advance from a single goroutine.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to an absolute instant, possibly backward.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
