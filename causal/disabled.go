//go:build nocausal

package causal

import "os"

// Enabled reports whether profiling support is compiled in.
const Enabled = false

// Thread is a no-op; profiling support is not compiled in.
type Thread struct{}

// Window is a no-op.
type Window struct{}

// Start ignores opts and returns nil.
func Start(...Option) error { return nil }

// MustStart does nothing.
func MustStart(...Option) {}

// Running always returns false.
func Running() bool { return false }

// Shutdown does nothing.
func Shutdown() {}

// Exit terminates the process with code. There is no profile to write.
func Exit(code int) { os.Exit(code) }

// Main runs fn, then exits with its result.
func Main(fn func() int) { os.Exit(fn()) }

// ThreadStartup returns a no-op [Thread].
func ThreadStartup() *Thread { return &Thread{} }

// ThreadShutdown does nothing.
func ThreadShutdown(*Thread) {}

// Go runs fn in a new goroutine with a no-op [Thread].
func Go(fn func(*Thread)) { go fn(&Thread{}) }

// Visit does nothing.
func Visit() {}

// Progress does nothing.
func Progress(string) {}

// Begin returns a no-op [Window].
func Begin(string) Window { return Window{} }

// End does nothing.
func End(Window) {}

// Close does nothing.
func (*Thread) Close() {}

// Go runs fn in a new goroutine with a no-op [Thread].
func (*Thread) Go(fn func(*Thread)) { go fn(&Thread{}) }

// Fork returns a no-op [Thread].
func (*Thread) Fork() *Thread { return &Thread{} }

// Visit does nothing.
func (*Thread) Visit() {}

// CatchUp does nothing.
func (*Thread) CatchUp() {}

// Progress does nothing.
func (*Thread) Progress(string) {}

// Begin returns a no-op [Window].
func (*Thread) Begin(string) Window { return Window{} }

// End does nothing.
func (*Thread) End(Window) {}
