package progress

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ardnew/causal/clock"
)

// Registry is a process-wide table of progress points.
//
// Lookups are lock-free. Registration takes a mutex so that concurrent
// registrations of the same name agree on one point.
type Registry struct {
	clock  clock.Clock
	gen    atomic.Uint32
	points sync.Map // string -> *Point
	mu     sync.Mutex
	names  []string
}

// NewRegistry returns an empty registry reading time from c. A nil clock
// selects [clock.Default].
func NewRegistry(c clock.Clock) *Registry {
	if c == nil {
		c = clock.Default
	}

	return &Registry{clock: c}
}

// Generation returns the current experiment generation.
func (r *Registry) Generation() Generation { return Generation(r.gen.Load()) }

// Register returns the point named name, creating it with kind if absent.
// The first registration of a name wins; later kinds are ignored.
func (r *Registry) Register(name string, kind Kind) *Point {
	if p, ok := r.points.Load(name); ok {
		return p.(*Point)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.points.Load(name); ok {
		return p.(*Point)
	}

	p := newPoint(name, kind, r.Generation(), r.clock.Now())
	r.points.Store(name, p)

	i, _ := slices.BinarySearch(r.names, name)
	r.names = slices.Insert(r.names, i, name)

	return p
}

// Lookup returns the point named name.
func (r *Registry) Lookup(name string) (*Point, bool) {
	p, ok := r.points.Load(name)
	if !ok {
		return nil, false
	}

	return p.(*Point), true
}

// Len returns the number of registered points.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.names)
}

// Points returns all registered points sorted by name.
func (r *Registry) Points() []*Point {
	r.mu.Lock()
	names := slices.Clone(r.names)
	r.mu.Unlock()

	points := make([]*Point, 0, len(names))

	for _, name := range names {
		if p, ok := r.Lookup(name); ok {
			points = append(points, p)
		}
	}

	return points
}

// Increment counts one visit to the point named name in the current
// generation, registering a throughput point if needed.
func (r *Registry) Increment(name string) bool {
	return r.Register(name, Throughput).Increment(r.Generation())
}

// SnapshotAndReset reads and zeroes the point named name within the current
// generation. A second call in immediate succession yields a zero count.
func (r *Registry) SnapshotAndReset(name string) (Snapshot, bool) {
	p, ok := r.Lookup(name)
	if !ok {
		return Snapshot{Name: name}, false
	}

	return p.snapshot(r.Generation(), r.clock.Now()), true
}

// SnapshotAll starts a new generation and reads and zeroes every point into
// it. Increments still tagged with the previous generation are discarded.
// Snapshots are sorted by point name.
func (r *Registry) SnapshotAll() []Snapshot {
	var next Generation

	for {
		cur := Generation(r.gen.Load())

		next = cur.Next()
		if r.gen.CompareAndSwap(uint32(cur), uint32(next)) {
			break
		}
	}

	now := r.clock.Now()
	points := r.Points()
	snaps := make([]Snapshot, 0, len(points))

	for _, p := range points {
		snaps = append(snaps, p.snapshot(next, now))
	}

	return snaps
}

// Visited reports whether any point has recorded a visit or arrival in the
// current generation.
func (r *Registry) Visited() bool {
	for _, p := range r.Points() {
		if _, n := p.visits.load(); n > 0 {
			return true
		}

		if _, n := p.arrivals.load(); n > 0 {
			return true
		}
	}

	return false
}

// ParseDeclaration parses a progress point declaration of the form
// "name" or "name:kind", where kind is "throughput" or "latency".
func ParseDeclaration(s string) (string, Kind) {
	name, kind, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return name, Throughput
	}

	return strings.TrimSpace(name), ParseKind(kind)
}

// Stale returns the total number of increments discarded across all points.
func (r *Registry) Stale() uint64 {
	var n uint64
	for _, p := range r.Points() {
		n += p.Stale()
	}

	return n
}
