package sample

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// blockSpan bounds the code attributed to the last visit site discovered in
// a region.
const blockSpan = 1 << 10

// Sampler chooses the candidate for the next experiment.
type Sampler interface {
	// Select returns the candidate to speed up. It returns an error wrapping
	// [pkg.ErrNoCandidate] when no candidate is available yet.
	Select(ctx context.Context) (*Candidate, error)
	// Summary returns the sample count of every in-scope line that has been
	// sampled, most sampled first.
	Summary() []Count
	// Samples returns the samples recorded for c's visit sites.
	Samples(c *Candidate) uint64
	// Unresolved returns the number of program counters that did not resolve
	// to a source line.
	Unresolved() uint64
}

// Count is the number of samples attributed to a source line.
type Count struct {
	Location string
	Samples  uint64
}

// index resolves the program counters in a discovery table into candidate
// lines. Resolution results are cached; each program counter is resolved at
// most once.
type index struct {
	collector *Collector
	resolver  Resolver
	scope     Scope

	mu     sync.Mutex
	frames map[uintptr]*Candidate
	lines  map[string]*Candidate
	blocks *Tree[uintptr]

	unresolved atomic.Uint64
}

func newIndex(c *Collector, r Resolver, s Scope) *index {
	if r == nil {
		r = RuntimeResolver{}
	}

	return &index{
		collector: c,
		resolver:  r,
		scope:     s,
		frames:    make(map[uintptr]*Candidate),
		lines:     make(map[string]*Candidate),
		blocks:    NewTree[uintptr](),
	}
}

// refresh resolves newly discovered program counters and recomputes the
// weight of every candidate. The caller must hold mu.
func (x *index) refresh() {
	weights := make(map[*Candidate]uint64, len(x.lines))

	for pc, votes := range x.collector.table.All() {
		cand, seen := x.frames[pc]
		if !seen {
			cand = x.resolve(pc)
			x.frames[pc] = cand
		}

		if cand != nil {
			weights[cand] += votes
		}
	}

	for _, cand := range x.lines {
		cand.weight.Store(weights[cand])
	}
}

func (x *index) resolve(pc uintptr) *Candidate {
	f, ok := x.resolver.Resolve(pc)
	if !ok {
		x.unresolved.Add(1)

		return nil
	}

	cand := &Candidate{File: f.File, Line: f.Line, Function: f.Function}

	if prev, ok := x.lines[cand.Location()]; ok {
		cand = prev
	} else {
		cand.InScope = x.scope.Contains(f)
		x.lines[cand.Location()] = cand
	}

	cand.PCs = append(cand.PCs, pc)
	x.blocks.Carve(pc, blockSpan, pc)

	return cand
}

// attribute credits n votes for an arbitrary program counter to the visit
// site whose block contains it. The site must belong to the same function.
func (x *index) attribute(pc uintptr, n uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, site, ok := x.blocks.Find(pc)
	if !ok {
		return false
	}

	cand := x.frames[site]
	if cand == nil {
		return false
	}

	if f, ok := x.resolver.Resolve(pc); !ok || f.Function != cand.Function {
		return false
	}

	return x.collector.table.VoteN(site, n)
}

func (x *index) summary() []Count {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.refresh()

	var counts []Count

	for loc, cand := range x.lines {
		if w := cand.Weight(); w > 0 && cand.InScope {
			counts = append(counts, Count{Location: loc, Samples: w})
		}
	}

	slices.SortFunc(counts, func(a, b Count) int {
		if c := cmp.Compare(b.Samples, a.Samples); c != 0 {
			return c
		}

		return cmp.Compare(a.Location, b.Location)
	})

	return counts
}

// Summary implements [Sampler].
func (x *index) Summary() []Count { return x.summary() }

// Samples implements [Sampler].
func (x *index) Samples(c *Candidate) uint64 {
	if c == nil {
		return 0
	}

	var n uint64
	for _, pc := range c.PCs {
		n += x.collector.table.Votes(pc)
	}

	return n
}

// Unresolved implements [Sampler].
func (x *index) Unresolved() uint64 { return x.unresolved.Load() }

// Attribute credits n samples taken at pc to the visit site whose code
// contains it. It reports false if pc cannot be attributed to a discovered
// site.
func (x *index) Attribute(pc uintptr, n uint64) bool { return x.attribute(pc, n) }
