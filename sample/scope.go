package sample

import (
	"path"
	"strings"
)

// internalPackages are never candidates: speeding up the profiler itself
// says nothing about the program.
var internalPackages = []string{
	"github.com/ardnew/causal/causal",
	"github.com/ardnew/causal/clock",
	"github.com/ardnew/causal/delay",
	"github.com/ardnew/causal/experiment",
	"github.com/ardnew/causal/interpose",
	"github.com/ardnew/causal/progress",
	"github.com/ardnew/causal/sample",
}

// Scope decides which source files are eligible as candidates.
//
// Patterns are slash-separated globs in the syntax of [path.Match], with "**"
// matching any number of path elements. A pattern that does not start with
// "/" may match any trailing portion of a path, so "pkg/*.go" matches
// "/src/app/pkg/main.go".
type Scope struct {
	include []string
	exclude []string
}

// NewScope returns a scope admitting files that match any include pattern
// and no exclude pattern. With no include patterns, every file outside the
// standard library is admitted.
func NewScope(include, exclude []string) Scope {
	clean := func(patterns []string) []string {
		var out []string

		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}

		return out
	}

	return Scope{include: clean(include), exclude: clean(exclude)}
}

// Contains reports whether the resolved frame is in scope.
func (s Scope) Contains(f Frame) bool {
	pkgPath := packagePath(f.Function)

	for _, internal := range internalPackages {
		if pkgPath == internal {
			return false
		}
	}

	for _, p := range s.exclude {
		if Match(p, f.File) {
			return false
		}
	}

	if len(s.include) == 0 {
		return !standardPackage(pkgPath)
	}

	for _, p := range s.include {
		if Match(p, f.File) {
			return true
		}
	}

	return false
}

// Match reports whether name matches the glob pattern.
func Match(pattern, name string) bool {
	if pattern == "" {
		return false
	}

	pp := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	np := strings.Split(strings.TrimPrefix(name, "/"), "/")

	if strings.HasPrefix(pattern, "/") {
		return matchElems(pp, np)
	}

	for i := range np {
		if matchElems(pp, np[i:]) {
			return true
		}
	}

	return false
}

func matchElems(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for len(pattern) > 0 && pattern[0] == "**" {
				pattern = pattern[1:]
			}

			if len(pattern) == 0 {
				return true
			}

			for i := range name {
				if matchElems(pattern, name[i:]) {
					return true
				}
			}

			return false
		}

		if len(name) == 0 {
			return false
		}

		if ok, err := path.Match(pattern[0], name[0]); err != nil || !ok {
			return false
		}

		pattern, name = pattern[1:], name[1:]
	}

	return len(name) == 0
}

// packagePath returns the import path of the package defining the function
// with the fully qualified name fn.
func packagePath(fn string) string {
	slash := strings.LastIndexByte(fn, '/')

	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return fn
	}

	return fn[:slash+1+dot]
}

// standardPackage reports whether pkgPath belongs to the standard library,
// whose first path element never contains a dot.
func standardPackage(pkgPath string) bool {
	if pkgPath == "main" || pkgPath == "" {
		return false
	}

	first, _, _ := strings.Cut(pkgPath, "/")

	return !strings.Contains(first, ".")
}
