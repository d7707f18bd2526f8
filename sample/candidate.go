package sample

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ardnew/causal/pkg"
)

// Candidate is a source line eligible for virtual speedup.
type Candidate struct {
	File     string
	Line     int
	Function string
	// PCs are the visit sites discovered on this line.
	PCs     []uintptr
	InScope bool
	weight  atomic.Uint64
}

// Location returns the candidate's identity as file:line.
func (c *Candidate) Location() string {
	if c == nil {
		return "none"
	}

	return c.File + ":" + strconv.Itoa(c.Line)
}

// Weight returns the number of samples attributed to the candidate.
func (c *Candidate) Weight() uint64 { return c.weight.Load() }

// clone returns a copy that does not share PCs with c.
func (c *Candidate) clone() *Candidate {
	d := &Candidate{
		File:     c.File,
		Line:     c.Line,
		Function: c.Function,
		PCs:      append([]uintptr(nil), c.PCs...),
		InScope:  c.InScope,
	}
	d.weight.Store(c.weight.Load())

	return d
}

// ParseLocation splits a file:line location.
func ParseLocation(s string) (file string, line int, err error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", 0, pkg.ErrInvalidLocation.Wrapf("%q", s)
	}

	line, err = strconv.Atoi(s[i+1:])
	if err != nil || line <= 0 {
		return "", 0, pkg.ErrInvalidLocation.Wrapf("%q", s)
	}

	return s[:i], line, nil
}

// fileMatches reports whether path names want. A relative want matches any
// suffix of path that starts at a path separator.
func fileMatches(path, want string) bool {
	if path == want {
		return true
	}

	return !strings.HasPrefix(want, "/") && strings.HasSuffix(path, "/"+want)
}
