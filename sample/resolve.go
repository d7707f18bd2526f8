package sample

import "runtime"

// Frame is a program counter resolved to a source line.
type Frame struct {
	PC       uintptr
	File     string
	Line     int
	Function string
	Entry    uintptr
}

// Resolver maps program counters to source lines.
type Resolver interface {
	Resolve(pc uintptr) (Frame, bool)
}

// RuntimeResolver resolves program counters with the Go runtime's symbol
// table. Program counters are treated as return addresses, as recorded by
// [runtime.Callers].
type RuntimeResolver struct{}

// Resolve implements [Resolver].
func (RuntimeResolver) Resolve(pc uintptr) (Frame, bool) {
	if pc == 0 {
		return Frame{}, false
	}

	frames := runtime.CallersFrames([]uintptr{pc})

	f, _ := frames.Next()
	if f.File == "" || f.Line <= 0 {
		return Frame{}, false
	}

	return Frame{
		PC:       pc,
		File:     f.File,
		Line:     f.Line,
		Function: f.Function,
		Entry:    f.Entry,
	}, true
}

// ResolverFunc adapts a function to the [Resolver] interface.
type ResolverFunc func(pc uintptr) (Frame, bool)

// Resolve implements [Resolver].
func (f ResolverFunc) Resolve(pc uintptr) (Frame, bool) { return f(pc) }
