package delay

import (
	"runtime"
	"time"
)

// spinYield is how many clock polls pass between scheduler yields while
// spinning.
const spinYield = 64

// wait blocks for d and returns the time actually waited. Debts below the
// spin threshold are paid by polling the clock, which is accurate to well
// under a microsecond; larger debts sleep, which may overrun.
func (e *Engine) wait(d time.Duration) time.Duration {
	c := e.cfg.Clock
	start := c.Now()

	if d < e.cfg.SpinThreshold {
		for i := 1; ; i++ {
			elapsed := c.Now() - start
			if elapsed >= d {
				return elapsed
			}

			if i%spinYield == 0 {
				runtime.Gosched()
			}
		}
	}

	c.Sleep(d)

	return c.Now() - start
}
