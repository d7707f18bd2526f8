// Package clock provides the time source used for delay accounting and
// experiment timing.
//
// Readings are durations on a monotonic timeline that starts when the
// package is initialized. A reading never decreases; a [Monotonic] clock that
// observes otherwise panics, since no profiling result is meaningful once the
// time source is broken.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source.
type Clock interface {
	// Now returns the time elapsed since the clock's epoch.
	Now() time.Duration
	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// epoch anchors [Monotonic] readings. [time.Since] uses the monotonic reading
// carried by epoch, so wall clock adjustments do not affect it.
var epoch = time.Now()

// Monotonic reads the runtime's monotonic clock.
type Monotonic struct{}

// Default is the clock used when none is configured.
var Default Clock = Monotonic{}

// Now implements [Clock].
func (Monotonic) Now() time.Duration {
	d := time.Since(epoch)
	if d < 0 {
		panic("clock: monotonic clock reading precedes its epoch")
	}

	return d
}

// Sleep implements [Clock].
func (Monotonic) Sleep(d time.Duration) { time.Sleep(d) }

// Simulated is a manually advanced clock for tests.
//
// Each call to Now advances the clock by the configured step, so busy-wait
// loops that poll the clock make progress. Sleep advances the clock by the
// requested duration plus the configured oversleep.
type Simulated struct {
	mu        sync.Mutex
	now       time.Duration
	step      time.Duration
	oversleep time.Duration
	sleeps    []time.Duration
}

// NewSimulated returns a simulated clock reading start.
func NewSimulated(start time.Duration) *Simulated {
	return &Simulated{now: start}
}

// Now implements [Clock].
func (c *Simulated) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now
	c.now += c.step

	return now
}

// Sleep implements [Clock].
func (c *Simulated) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sleeps = append(c.sleeps, d)

	if d > 0 {
		c.now += d + c.oversleep
	}
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *Simulated) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// SetStep sets how far each call to Now advances the clock.
func (c *Simulated) SetStep(d time.Duration) {
	c.mu.Lock()
	c.step = max(d, 0)
	c.mu.Unlock()
}

// SetOversleep sets the extra time added to every Sleep.
func (c *Simulated) SetOversleep(d time.Duration) {
	c.mu.Lock()
	c.oversleep = max(d, 0)
	c.mu.Unlock()
}

// Sleeps returns the durations passed to Sleep, in call order.
func (c *Simulated) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.sleeps...)
}
