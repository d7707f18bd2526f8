package sample

import "sync/atomic"

// Collector is the hot-path entry point of the sampler.
type Collector struct {
	table   *Table
	pending atomic.Bool
	armed   atomic.Uint64
	samples atomic.Uint64
}

// NewCollector returns a collector recording into t. A nil table selects a
// new table of [DefaultTableSize].
func NewCollector(t *Table) *Collector {
	if t == nil {
		t = NewTable(DefaultTableSize)
	}

	return &Collector{table: t}
}

// Table returns the collector's discovery table.
func (c *Collector) Table() *Table { return c.table }

// Arm requests that the next visit be sampled. It is safe to call from any
// goroutine, including an interrupt source.
func (c *Collector) Arm() {
	c.armed.Add(1)
	c.pending.Store(true)
}

// Visit records a visit to pc, consuming a pending sample if one is armed.
func (c *Collector) Visit(pc uintptr) {
	vote := c.pending.Load() && c.pending.CompareAndSwap(true, false)
	if c.table.observe(pc, vote) && vote {
		c.samples.Add(1)
	}
}

// Samples returns the number of samples recorded.
func (c *Collector) Samples() uint64 { return c.samples.Load() }

// Armed returns the number of times the collector was armed.
func (c *Collector) Armed() uint64 { return c.armed.Load() }
