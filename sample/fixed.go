package sample

import (
	"context"

	"github.com/ardnew/causal/pkg"
)

// Fixed always selects one configured source line.
type Fixed struct {
	*index
	file string
	line int
}

// NewFixed returns a sampler selecting location, given as file:line. The
// file may be any trailing portion of the source path.
func NewFixed(location string, c *Collector, r Resolver) (*Fixed, error) {
	file, line, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	return &Fixed{
		index: newIndex(c, r, NewScope([]string{file}, nil)),
		file:  file,
		line:  line,
	}, nil
}

// Location returns the configured location.
func (f *Fixed) Location() (string, int) { return f.file, f.line }

// Select implements [Sampler]. It returns an error wrapping
// [pkg.ErrNoCandidate] until the configured line has been visited.
func (f *Fixed) Select(ctx context.Context) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.refresh()

	var found *Candidate

	for _, cand := range f.lines {
		if cand.Line != f.line || !fileMatches(cand.File, f.file) {
			continue
		}

		if found == nil {
			found = cand.clone()
			found.InScope = true

			continue
		}

		// The same trailing path may name several files; their sites are
		// all exempt.
		found.PCs = append(found.PCs, cand.PCs...)
		found.weight.Add(cand.Weight())
	}

	if found == nil {
		return nil, pkg.ErrNoCandidate.Wrapf("%s:%d not yet visited", f.file, f.line)
	}

	return found, nil
}
