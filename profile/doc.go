// Package profile provides optional runtime profiling of the causal command
// itself.
//
// # Overview
//
// This package integrates [github.com/pkg/profile] behind the "pprof" build
// tag. It profiles the CLI process, for example to find where a large
// report spends its time, and is unrelated to the causal profiles the
// command reads and writes.
//
// When built without the tag, [Start] always returns a no-op [Stopper] and
// [Modes] is empty.
//
// # Available Profiling Modes
//
//   - allocs:    Memory allocation profiling (all allocations)
//   - block:     Block (synchronization) profiling
//   - clock:     Wall-clock profiling
//   - cpu:       CPU profiling
//   - goroutine: Goroutine profiling
//   - heap:      Heap memory profiling (live allocations)
//   - mem:       General memory profiling
//   - mutex:     Mutex contention profiling
//   - thread:    Thread creation profiling
//   - trace:     Execution trace profiling
//
// # Usage
//
//	stop := profile.Start(
//	    profile.WithMode("cpu"),
//	    profile.WithPath("/tmp/profiles"),
//	)
//	defer stop.Stop()
//
// Profile files are written to the given directory with names matching the
// mode (e.g., cpu.pprof, mem.pprof) and are read with go tool pprof:
//
//	go build -tags pprof -o causal .
//	./causal --pprof-mode cpu report big.coz
//	go tool pprof -http=: ./causal ~/.cache/causal/pprof/cpu.pprof
//
// The tag also registers the [net/http/pprof] handlers on
// [net/http.DefaultServeMux].
package profile
