package sample

import (
	"context"
	"time"
)

// DefaultPeriod is the default sampling period.
const DefaultPeriod = time.Millisecond

// Ticker is a periodic interrupt source that arms a [Collector].
type Ticker struct {
	// Period is the sampling period. Non-positive selects [DefaultPeriod].
	Period time.Duration
	// Arm is called once per period.
	Arm func()
	// Clock, if set, paces sampling by its readings instead of by wall time,
	// so that a process-CPU-time clock samples only while the program runs.
	// It must be non-decreasing.
	Clock func() time.Duration
}

// Run arms the collector until ctx is done.
func (t Ticker) Run(ctx context.Context) {
	period := t.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	tk := time.NewTicker(period)
	defer tk.Stop()

	var last time.Duration
	if t.Clock != nil {
		last = t.Clock()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-tk.C:
			if t.Clock == nil {
				t.Arm()

				continue
			}

			// One arm per elapsed period; a collector holds a single pending
			// sample, so arming more than once per tick has no effect.
			if now := t.Clock(); now-last >= period {
				last = now - (now-last)%period
				t.Arm()
			}
		}
	}
}
