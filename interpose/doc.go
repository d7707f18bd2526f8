// Package interpose connects the profiler to the process around it.
//
// A [Platform] provides three capabilities: a sampling interrupt source,
// goroutine entry wrapping that registers per-goroutine delay state, and
// interception of process termination so that the final profile is always
// flushed. One implementation is compiled per target operating system.
//
// The [Notify], [Ignore] and [Reset] wrappers stand in for their
// [os/signal] counterparts in monitored programs and refuse to touch the
// sampling signal.
package interpose
