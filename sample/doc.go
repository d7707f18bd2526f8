// Package sample selects the candidate code location for each experiment.
//
// Every instrumented visit passes through a [Collector], which records the
// visit's program counter in a fixed-capacity lock-free [Table]. An interrupt
// source ([Ticker], or the Go runtime's CPU profiler through [CPUProfile])
// arms the collector; the next visit on any goroutine consumes the armed
// flag and votes for its own program counter. Neither path allocates or
// takes a lock.
//
// Program counters are resolved to source lines off the hot path, when a
// [Sampler] is asked to select a candidate. [Statistical] draws a candidate in
// proportion to the votes of its lines; [Fixed] always returns one configured
// line.
package sample
