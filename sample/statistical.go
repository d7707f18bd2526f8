package sample

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"

	"github.com/ardnew/causal/pkg"
)

// Statistical selects candidates in proportion to their samples.
type Statistical struct {
	*index
	rand *rand.Rand
}

// NewStatistical returns a sampler drawing from the lines discovered by c.
// A nil resolver selects [RuntimeResolver]; a nil source of randomness
// selects a randomly seeded one.
func NewStatistical(c *Collector, r Resolver, s Scope, rng *rand.Rand) *Statistical {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Statistical{index: newIndex(c, r, s), rand: rng}
}

// Select implements [Sampler].
func (s *Statistical) Select(ctx context.Context) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh()

	var (
		pool  []*Candidate
		total uint64
	)

	for _, cand := range s.lines {
		if w := cand.Weight(); w > 0 && cand.InScope {
			pool = append(pool, cand)
			total += w
		}
	}

	if total == 0 {
		return nil, pkg.ErrNoCandidate.Wrapf("no in-scope samples")
	}

	// Map iteration order is random; sort so a seeded source is repeatable.
	slices.SortFunc(pool, func(a, b *Candidate) int {
		return cmp.Compare(a.Location(), b.Location())
	})

	pick := s.rand.Uint64N(total)

	for _, cand := range pool {
		w := cand.Weight()
		if pick < w {
			return cand.clone(), nil
		}

		pick -= w
	}

	return pool[len(pool)-1].clone(), nil
}
