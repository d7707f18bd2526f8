package analysis

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/ardnew/causal/experiment"
	"github.com/ardnew/causal/sample"
)

// None is the selection of an experiment that sped up no line.
const None = "none"

// Speedup is the effect of one line speedup on one progress point.
type Speedup struct {
	// Line is the virtual speedup of the line, from 0 to 1.
	Line float64
	// Program is the relative reduction in the point's period. Negative
	// values are slowdowns.
	Program float64
	// Min and Max bound Program, treating progress counts as Poisson.
	Min, Max float64

	Experiments int
	Delta       uint64
	Duration    time.Duration
}

// Impact is the estimated effect of speeding up one line on one progress
// point.
type Impact struct {
	Location string
	Point    string
	// Slope is the least-squares slope of program speedup against line
	// speedup.
	Slope    float64
	Speedups []Speedup
	Samples  uint64
}

// MaxProgram returns the largest program speedup measured.
func (i Impact) MaxProgram() float64 {
	if len(i.Speedups) == 0 {
		return 0
	}

	return slices.MaxFunc(i.Speedups, func(a, b Speedup) int {
		return cmp.Compare(a.Program, b.Program)
	}).Program
}

// rate accumulates progress over experiments.
type rate struct {
	n        int
	delta    uint64
	duration time.Duration
}

func (r *rate) add(rec experiment.Record) {
	r.n++
	r.delta += rec.Delta
	r.duration += time.Duration(rec.Duration)
}

// period returns the time per unit of progress.
func (r rate) period() float64 {
	return float64(r.duration) / float64(r.delta)
}

// bounds returns the period at one standard deviation more and less
// progress.
func (r rate) bounds() (lo, hi float64) {
	d := float64(r.delta)

	err := math.Sqrt(d)
	if err == 1 {
		err = 0
	}

	return float64(r.duration) / (d + err), float64(r.duration) / (d - err)
}

type (
	lineKey  struct{ location, point string }
	speedKey struct {
		lineKey
		speedup int
	}
)

// Analyze estimates the impact of every profiled line on every progress
// point, most impactful first. Experiments without progress are ignored;
// a point without baseline experiments has no impacts.
func Analyze(p *Profile) []Impact {
	baseline := make(map[string]*rate)
	speedups := make(map[speedKey]*rate)

	for _, rec := range p.Records {
		if rec.Delta == 0 || rec.Duration <= 0 {
			continue
		}

		if rec.Speedup == 0 {
			get(baseline, rec.Point).add(rec)
		}

		if rec.Selected == None {
			continue
		}

		get(speedups, speedKey{lineKey{rec.Selected, rec.Point}, rec.Speedup}).add(rec)
	}

	lines := make(map[lineKey][]Speedup)

	for k, r := range speedups {
		base, ok := baseline[k.point]
		if !ok {
			continue
		}

		lines[k.lineKey] = append(lines[k.lineKey], compare(k.speedup, *r, *base))
	}

	impacts := make([]Impact, 0, len(lines))

	for k, s := range lines {
		slices.SortFunc(s, func(a, b Speedup) int { return cmp.Compare(a.Line, b.Line) })

		impacts = append(impacts, Impact{
			Location: k.location,
			Point:    k.point,
			Slope:    slope(s),
			Speedups: s,
			Samples:  p.Samples[k.location],
		})
	}

	slices.SortFunc(impacts, func(a, b Impact) int {
		if c := cmp.Compare(b.Slope, a.Slope); c != 0 {
			return c
		}

		if c := cmp.Compare(a.Location, b.Location); c != 0 {
			return c
		}

		return cmp.Compare(a.Point, b.Point)
	})

	return impacts
}

func get[K comparable](m map[K]*rate, k K) *rate {
	r, ok := m[k]
	if !ok {
		r = &rate{}
		m[k] = r
	}

	return r
}

// compare measures r against the baseline.
func compare(speedup int, r, base rate) Speedup {
	period, basePeriod := r.period(), base.period()
	lo, hi := r.bounds()
	baseLo, baseHi := base.bounds()

	return Speedup{
		Line:        float64(speedup) / 100,
		Program:     1 - period/basePeriod,
		Min:         1 - hi/baseLo,
		Max:         1 - lo/baseHi,
		Experiments: r.n,
		Delta:       r.delta,
		Duration:    r.duration,
	}
}

// slope fits program speedup to line speedup by least squares.
func slope(s []Speedup) float64 {
	if len(s) < 2 {
		return 0
	}

	var sx, sy float64
	for _, v := range s {
		sx += v.Line
		sy += v.Program
	}

	n := float64(len(s))
	mx, my := sx/n, sy/n

	var cov, vx float64
	for _, v := range s {
		cov += (v.Line - mx) * (v.Program - my)
		vx += (v.Line - mx) * (v.Line - mx)
	}

	if vx == 0 {
		return 0
	}

	return cov / vx
}

// splitLocation returns the file and line of a location, or the location
// and zero if it is not of that form.
func splitLocation(loc string) (string, int) {
	file, line, err := sample.ParseLocation(loc)
	if err != nil {
		return loc, 0
	}

	return file, line
}
