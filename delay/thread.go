package delay

import "time"

// Thread is the delay state of one goroutine. A Thread must only be used by
// the goroutine that owns it.
type Thread struct {
	engine *Engine
	epoch  uint64
	// local is the global delay value this thread has paid up to.
	local int64
	// excess is time waited beyond what was owed, credited against future
	// debt.
	excess time.Duration
	closed bool
}

// NewThread registers a thread that has observed all delay injected so far.
func (e *Engine) NewThread() *Thread {
	e.threads.Add(1)

	ep := e.current.Load()

	return &Thread{
		engine: e,
		epoch:  ep.id,
		local:  ep.global.Load(),
	}
}

// Fork registers a child thread that inherits t's local delay, so the child
// owes what its parent owed and nothing the parent already paid. Fork must be
// called by t's owner before starting the child.
func (t *Thread) Fork() *Thread {
	t.engine.threads.Add(1)

	return &Thread{
		engine: t.engine,
		epoch:  t.epoch,
		local:  t.local,
	}
}

// Close deregisters t. It is safe to call more than once.
func (t *Thread) Close() {
	if t.closed {
		return
	}

	t.closed = true
	t.engine.threads.Add(-1)
}

// Local returns the delay t has paid in the current epoch.
func (t *Thread) Local() time.Duration {
	if t.epoch != t.engine.current.Load().id {
		return 0
	}

	return time.Duration(t.local)
}

// Excess returns t's credit from waits that overran.
func (t *Thread) Excess() time.Duration { return t.excess }

// sync discards t's delay state if the engine has started a new epoch.
func (t *Thread) sync(epoch uint64) {
	if t.epoch == epoch {
		return
	}

	t.epoch = epoch
	t.local = 0
	t.excess = 0
}
