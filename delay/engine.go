package delay

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/causal/pkg"
)

// selection is the immutable set of program counters exempt from delay,
// together with the source line they share.
type selection struct {
	pcs  []uintptr
	file string
	line int

	lines LineFunc
	// sites caches, per program counter first seen during the experiment,
	// whether it resolves to the selected line.
	sites sync.Map
}

func (s *selection) contains(pc uintptr) bool {
	if s == nil {
		return false
	}

	if slices.Contains(s.pcs, pc) {
		return true
	}

	if s.lines == nil || s.file == "" {
		return false
	}

	if same, ok := s.sites.Load(pc); ok {
		return same.(bool)
	}

	file, line, ok := s.lines(pc)
	same := ok && file == s.file && line == s.line
	s.sites.Store(pc, same)

	return same
}

// epoch holds the delay state of one experiment. Reset replaces it as a
// whole, so a thread never pairs a new epoch with a stale global delay.
type epoch struct {
	id uint64
	// global is the total delay in nanoseconds injected in this epoch. It
	// only grows.
	global         atomic.Int64
	visits         atomic.Uint64
	selectedVisits atomic.Uint64
	paid           atomic.Int64
}

// Engine holds the global delay state.
//
// Visit and CatchUp are safe for concurrent use by any number of goroutines
// and use atomics only. Activate, Deactivate and Reset are called by the
// experiment scheduler at experiment boundaries.
type Engine struct {
	cfg Config

	active   atomic.Bool
	selected atomic.Pointer[selection]
	speedup  atomic.Int32

	current atomic.Pointer[epoch]
	threads atomic.Int64
}

// NewEngine returns an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{cfg: pkg.Make(append([]Option{WithDefaults()}, opts...)...)}
	e.current.Store(&epoch{})

	return e
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.cfg }

// Activate starts injecting delay for speedup percent, exempting visits from
// any of the selected program counters. With a [LineFunc] configured, visit
// sites discovered later on the same source line as the first selected
// program counter are exempt too. An empty selection exempts nothing.
func (e *Engine) Activate(selected []uintptr, speedup int) error {
	if speedup < 0 || speedup > 100 {
		return pkg.ErrInvalidSpeedup.Wrapf("%d", speedup)
	}

	sel := &selection{pcs: slices.Clone(selected), lines: e.cfg.Lines}
	if sel.lines != nil && len(sel.pcs) > 0 {
		if file, line, ok := sel.lines(sel.pcs[0]); ok {
			sel.file, sel.line = file, line
		}
	}

	e.selected.Store(sel)
	e.speedup.Store(int32(speedup))
	e.active.Store(true)

	return nil
}

// Deactivate stops injecting delay. Delay already injected remains owed.
func (e *Engine) Deactivate() {
	e.active.Store(false)
}

// Active reports whether delay is being injected.
func (e *Engine) Active() bool { return e.active.Load() }

// Speedup returns the active speedup percent.
func (e *Engine) Speedup() int { return int(e.speedup.Load()) }

// Reset clears the global delay and visit counters and starts a new epoch, so
// that every thread's local delay is treated as zero. Reset must not be
// called concurrently with itself.
func (e *Engine) Reset() {
	e.current.Store(&epoch{id: e.current.Load().id + 1})
}

// Visit records a visit to the instrumented point at pc.
func (e *Engine) Visit(pc uintptr) {
	if !e.active.Load() {
		return
	}

	if e.selected.Load().contains(pc) {
		e.current.Load().selectedVisits.Add(1)

		return
	}

	// Re-read per visit so a boundary transition takes effect immediately.
	speedup := int64(e.speedup.Load())

	ep := e.current.Load()
	ep.global.Add(int64(e.cfg.BaseUnit) * speedup / 100)
	ep.visits.Add(1)
}

// Global returns the total delay injected in the current epoch.
func (e *Engine) Global() time.Duration { return time.Duration(e.current.Load().global.Load()) }

// Visits returns the number of delayed visits in the current epoch.
func (e *Engine) Visits() uint64 { return e.current.Load().visits.Load() }

// SelectedVisits returns the number of exempt visits in the current epoch.
func (e *Engine) SelectedVisits() uint64 { return e.current.Load().selectedVisits.Load() }

// Paid returns the total time threads spent waiting in the current epoch.
func (e *Engine) Paid() time.Duration { return time.Duration(e.current.Load().paid.Load()) }

// Threads returns the number of live threads.
func (e *Engine) Threads() int64 { return e.threads.Load() }

// CatchUp makes t pay the delay injected since it last caught up, and returns
// the time spent waiting.
//
// On return, t's local delay equals the global delay observed on entry, and
// never exceeds the global delay of t's epoch.
func (e *Engine) CatchUp(t *Thread) time.Duration {
	ep := e.current.Load()
	t.sync(ep.id)

	global := ep.global.Load()

	owed := time.Duration(global - t.local)
	if owed <= 0 {
		return 0
	}

	due := owed - t.excess
	if due <= 0 {
		t.excess -= owed
		t.local = global

		return 0
	}

	t.excess = 0

	actual := e.wait(due)
	ep.paid.Add(int64(actual))

	// A Reset during the wait makes this debt moot.
	if next := e.current.Load(); next != ep {
		t.sync(next.id)

		return actual
	}

	if actual > due {
		t.excess = actual - due
	}

	t.local = global

	return actual
}

// Owed returns the delay t has not yet paid.
func (e *Engine) Owed(t *Thread) time.Duration {
	ep := e.current.Load()
	if t.epoch != ep.id {
		return time.Duration(ep.global.Load())
	}

	return max(time.Duration(ep.global.Load()-t.local), 0)
}
