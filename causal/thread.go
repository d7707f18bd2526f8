//go:build !nocausal

package causal

import (
	"runtime"

	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/progress"
)

// Thread is a goroutine registered with the profiler. It pays the delay
// injected by experiments each time it visits a probe or progress point. A
// Thread must only be used by the goroutine that owns it.
//
// The zero Thread, and any Thread obtained while the profiler is stopped, is
// a no-op.
type Thread struct {
	p *profiler
	t *delay.Thread
}

// Window is an open latency window.
type Window struct {
	p *profiler
	w progress.Window
}

// ThreadStartup registers the calling goroutine.
func ThreadStartup() *Thread {
	p := current.Load()
	if p == nil {
		return &Thread{}
	}

	return &Thread{p: p, t: p.ThreadStartup(nil)}
}

// ThreadShutdown deregisters t.
func ThreadShutdown(t *Thread) { t.Close() }

// Close deregisters t. It is safe to call more than once.
func (t *Thread) Close() {
	if t.p != nil {
		t.p.ThreadShutdown(t.t)
	}
}

// Go runs fn in a new registered goroutine.
func Go(fn func(*Thread)) {
	p := current.Load()
	if p == nil {
		go fn(&Thread{})

		return
	}

	go p.entry(nil, fn)()
}

// Go runs fn in a new goroutine that inherits t's delay.
func (t *Thread) Go(fn func(*Thread)) {
	if t.p == nil {
		go fn(&Thread{})

		return
	}

	go t.p.entry(t.t, fn)()
}

// Fork registers a thread for a goroutine the caller is about to start. The
// new thread inherits t's delay.
func (t *Thread) Fork() *Thread {
	if t.p == nil {
		return &Thread{}
	}

	return &Thread{p: t.p, t: t.p.ThreadStartup(t.t)}
}

// entry wraps fn for a goroutine registered through the platform.
func (p *profiler) entry(parent *delay.Thread, fn func(*Thread)) func() {
	return p.platform.WrapThreadEntry(p, parent, func(t *delay.Thread) {
		fn(&Thread{p: p, t: t})
	})
}

// Visit marks the calling line as a candidate for speedup, then pays any
// delay owed.
//
//go:noinline
func (t *Thread) Visit() {
	if t.p == nil {
		return
	}

	var pcs [1]uintptr
	if runtime.Callers(2, pcs[:]) > 0 {
		t.p.visit(pcs[0])
	}

	t.p.engine.CatchUp(t.t)
}

// CatchUp pays any delay owed. Call it before blocking so that a waiting
// goroutine does not carry its debt past the wait.
func (t *Thread) CatchUp() {
	if t.p != nil {
		t.p.engine.CatchUp(t.t)
	}
}

// Progress pays any delay owed and counts one visit to the named throughput
// point.
func (t *Thread) Progress(name string) {
	if t.p == nil {
		return
	}

	t.p.engine.CatchUp(t.t)
	t.p.point(name, progress.Throughput).Increment(t.p.registry.Generation())
}

// Begin pays any delay owed and opens a window on the named latency point.
func (t *Thread) Begin(name string) Window {
	if t.p == nil {
		return Window{}
	}

	t.p.engine.CatchUp(t.t)

	return t.p.begin(name)
}

// End pays any delay owed and closes w.
func (t *Thread) End(w Window) {
	if t.p == nil {
		return
	}

	t.p.engine.CatchUp(t.t)
	w.end()
}

// Visit marks the calling line as a candidate for speedup. It never waits;
// delay is paid by registered threads.
//
//go:noinline
func Visit() {
	p := current.Load()
	if p == nil {
		return
	}

	var pcs [1]uintptr
	if runtime.Callers(2, pcs[:]) > 0 {
		p.visit(pcs[0])
	}
}

// Progress counts one visit to the named throughput point on the main
// thread. It must be called from the goroutine that called [Start]; other
// goroutines use [Thread.Progress].
func Progress(name string) {
	if p := current.Load(); p != nil {
		p.main.Progress(name)
	}
}

// Begin opens a window on the named latency point. The window may be closed
// by any goroutine.
func Begin(name string) Window {
	p := current.Load()
	if p == nil {
		return Window{}
	}

	return p.begin(name)
}

// End closes w.
func End(w Window) { w.end() }

func (p *profiler) visit(pc uintptr) {
	p.engine.Visit(pc)
	p.coll.Visit(pc)
}

// begin opens a window, measuring delay as the total injected so that the
// window may close on another goroutine.
func (p *profiler) begin(name string) Window {
	pt := p.point(name, progress.Latency)

	return Window{p: p, w: pt.Begin(p.registry.Generation(), p.clock.Now(), p.engine.Global())}
}

func (w Window) end() {
	if w.p == nil || w.w.Point() == nil {
		return
	}

	w.w.Point().End(w.p.registry.Generation(), w.w, w.p.clock.Now(), w.p.engine.Global())
}
