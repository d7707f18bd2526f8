package analysis

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/causal/pkg"
)

// Row is the view of an [Impact] seen by filter expressions.
type Row struct {
	Location    string  `expr:"location"`
	File        string  `expr:"file"`
	Line        int     `expr:"line"`
	Point       string  `expr:"point"`
	Slope       float64 `expr:"slope"`
	MaxProgram  float64 `expr:"max_program"`
	Samples     uint64  `expr:"samples"`
	Experiments int     `expr:"experiments"`
	Speedups    int     `expr:"speedups"`
}

// Row returns the filter view of i.
func (i Impact) Row() Row {
	file, line := splitLocation(i.Location)

	n := 0
	for _, s := range i.Speedups {
		n += s.Experiments
	}

	return Row{
		Location:    i.Location,
		File:        file,
		Line:        line,
		Point:       i.Point,
		Slope:       i.Slope,
		MaxProgram:  i.MaxProgram(),
		Samples:     i.Samples,
		Experiments: n,
		Speedups:    len(i.Speedups),
	}
}

// Filter is a compiled boolean expression over a [Row], such as
//
//	slope > 0.1 && point == "requests" && samples >= 10
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles src. Errors wrap [pkg.ErrInvalidFilter].
func CompileFilter(src string) (*Filter, error) {
	program, err := expr.Compile(src, expr.Env(Row{}), expr.AsBool())
	if err != nil {
		return nil, pkg.ErrInvalidFilter.Wrap(err)
	}

	return &Filter{source: src, program: program}, nil
}

// String returns the filter's source.
func (f *Filter) String() string { return f.source }

// Match reports whether i satisfies the filter. A nil filter matches
// everything.
func (f *Filter) Match(i Impact) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, i.Row())
	if err != nil {
		return false, pkg.ErrInvalidFilter.Wrap(err)
	}

	ok, _ := out.(bool)

	return ok, nil
}

// Where returns the impacts that satisfy f, in order.
func Where(impacts []Impact, f *Filter) ([]Impact, error) {
	var out []Impact

	for _, i := range impacts {
		ok, err := f.Match(i)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, i)
		}
	}

	return out, nil
}

// locations adapts impacts to [fuzzy.Source].
type locations []Impact

func (l locations) String(i int) string { return l[i].Location }
func (l locations) Len() int            { return len(l) }

// Match returns the impacts whose location fuzzily matches pattern, best
// match first. An empty pattern matches everything in order.
func Match(impacts []Impact, pattern string) []Impact {
	if pattern == "" {
		return impacts
	}

	matches := fuzzy.FindFrom(pattern, locations(impacts))
	out := make([]Impact, 0, len(matches))

	for _, m := range matches {
		out = append(out, impacts[m.Index])
	}

	return out
}
