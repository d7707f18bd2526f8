package progress

import (
	"strings"
	"sync/atomic"
	"time"
)

// Kind distinguishes throughput points from latency points.
type Kind uint8

const (
	Throughput Kind = iota // throughput
	Latency                // latency
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Throughput:
		return "throughput"
	case Latency:
		return "latency"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name. Unrecognized names yield [Throughput].
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), Latency.String()) {
		return Latency
	}

	return Throughput
}

// Point is a named progress counter. The zero value is not usable; points
// are created by [Registry.Register].
type Point struct {
	name string
	kind Kind

	// visits counts throughput visits, or departures of latency windows.
	visits counter
	// arrivals counts latency windows begun.
	arrivals counter
	// window accumulates nanoseconds spent in completed latency windows.
	window atomic.Int64
	stale  atomic.Uint64
	// reset is the clock reading of the last snapshot.
	reset atomic.Int64
}

func newPoint(name string, kind Kind, gen Generation, now time.Duration) *Point {
	p := &Point{name: name, kind: kind}
	p.visits.word.Store(pack(gen, 0))
	p.arrivals.word.Store(pack(gen, 0))
	p.reset.Store(int64(now))

	return p
}

// Name returns the point's name.
func (p *Point) Name() string { return p.name }

// Kind returns the point's kind.
func (p *Point) Kind() Kind { return p.kind }

// Increment counts one visit in generation gen. It reports false if the
// visit was discarded because gen is no longer current.
func (p *Point) Increment(gen Generation) bool {
	if p.visits.add(gen) {
		return true
	}

	p.stale.Add(1)

	return false
}

// Count returns the number of visits recorded in the current generation.
func (p *Point) Count() uint64 {
	_, n := p.visits.load()

	return n
}

// Stale returns the number of increments discarded since the point was
// created.
func (p *Point) Stale() uint64 { return p.stale.Load() }

// Window is an open latency window returned by [Point.Begin].
type Window struct {
	point *Point
	start time.Duration
	delay time.Duration
}

// Point returns the point the window belongs to, or nil for the zero Window.
func (w Window) Point() *Point { return w.point }

// Begin opens a latency window at clock reading now. delay is the delay the
// calling thread had observed when the window opened; it is subtracted from
// the window length when the window ends.
func (p *Point) Begin(gen Generation, now, delay time.Duration) Window {
	if !p.arrivals.add(gen) {
		p.stale.Add(1)
	}

	return Window{point: p, start: now, delay: delay}
}

// End closes w at clock reading now. delay is the delay the calling thread
// has observed so far. The window is credited only if gen is still current.
func (p *Point) End(gen Generation, w Window, now, delay time.Duration) bool {
	if w.point != p {
		return false
	}

	if !p.visits.add(gen) {
		p.stale.Add(1)

		return false
	}

	elapsed := (now - w.start) - (delay - w.delay)
	if elapsed > 0 {
		p.window.Add(int64(elapsed))
	}

	return true
}

// Snapshot is the state of a point read by [Registry.SnapshotAndReset].
type Snapshot struct {
	Name string
	Kind Kind
	// Count is the number of throughput visits, or of completed latency
	// windows.
	Count uint64
	// Arrivals is the number of latency windows begun.
	Arrivals uint64
	// WindowTime is the total time spent in completed latency windows, less
	// any delay injected while they were open.
	WindowTime time.Duration
	// Elapsed is the time since the previous snapshot.
	Elapsed time.Duration
	// Stale is the number of increments discarded so far.
	Stale uint64
}

// Departures returns the number of latency windows completed.
func (s Snapshot) Departures() uint64 { return s.Count }

// Difference returns arrivals minus departures.
func (s Snapshot) Difference() int64 { return int64(s.Arrivals) - int64(s.Count) }

// MeanLatency returns the mean length of a completed window.
func (s Snapshot) MeanLatency() time.Duration {
	if s.Count == 0 {
		return 0
	}

	return s.WindowTime / time.Duration(s.Count)
}

// snapshot reads and zeroes the point, moving it into generation gen.
func (p *Point) snapshot(gen Generation, now time.Duration) Snapshot {
	s := Snapshot{
		Name:  p.name,
		Kind:  p.kind,
		Count: p.visits.swap(gen),
		Stale: p.stale.Load(),
	}

	if p.kind == Latency {
		s.Arrivals = p.arrivals.swap(gen)
		s.WindowTime = time.Duration(p.window.Swap(0))
	}

	s.Elapsed = now - time.Duration(p.reset.Swap(int64(now)))

	return s
}
