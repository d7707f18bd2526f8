// Package metrics registers the Prometheus collectors for the profiler.
// Collectors are registered with the default registry when the package is
// imported; [Handler] serves them.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source exposes the profiler's live counters. Values are read when metrics
// are scraped, so nothing on the profiler's hot paths touches a collector.
type Source interface {
	Global() time.Duration
	Threads() int64
	Samples() uint64
	Unresolved() uint64
	Stale() uint64
}

var source atomic.Pointer[Source]

// Watch makes s the source of the scrape-time metrics until the returned
// function is called.
func Watch(s Source) (stop func()) {
	p := &s
	source.Store(p)

	return func() { source.CompareAndSwap(p, nil) }
}

func read(get func(Source) float64) func() float64 {
	return func() float64 {
		p := source.Load()
		if p == nil {
			return 0
		}

		return get(*p)
	}
}

var (
	// Experiments counts completed experiments by speedup percent.
	Experiments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causal_experiments_total",
			Help: "Total number of completed experiments, by virtual speedup percent.",
		},
		[]string{"speedup"},
	)

	// ExperimentDuration is the measured length of each experiment, excluding
	// injected delay.
	ExperimentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "causal_experiment_duration_seconds",
			Help:    "Measured experiment duration excluding injected delay.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	// ProgressVisits counts progress credited during measured experiment
	// windows, by progress point.
	ProgressVisits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causal_progress_visits_total",
			Help: "Progress point visits credited during measured experiment windows.",
		},
		[]string{"point"},
	)

	// SelectionMisses counts attempts to start an experiment before any
	// candidate was available.
	SelectionMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "causal_selection_misses_total",
			Help: "Experiment starts deferred because no candidate line was available.",
		},
	)

	// ReportErrors counts profile writes that failed. After the first
	// failure, output is discarded.
	ReportErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "causal_report_write_errors_total",
			Help: "Profile output write failures.",
		},
	)

	_ = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "causal_delay_injected_seconds",
			Help: "Delay injected in the current experiment.",
		},
		read(func(s Source) float64 { return s.Global().Seconds() }),
	)

	_ = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "causal_threads",
			Help: "Live threads registered with the profiler.",
		},
		read(func(s Source) float64 { return float64(s.Threads()) }),
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "causal_samples_total",
			Help: "Samples recorded by the statistical sampler.",
		},
		read(func(s Source) float64 { return float64(s.Samples()) }),
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "causal_unresolved_samples_total",
			Help: "Sampled program counters that resolved to no source line.",
		},
		read(func(s Source) float64 { return float64(s.Unresolved()) }),
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "causal_stale_increments_total",
			Help: "Progress increments discarded at experiment boundaries.",
		},
		read(func(s Source) float64 { return float64(s.Stale()) }),
	)
)

// ObserveExperiment records a completed experiment.
func ObserveExperiment(speedup int, duration time.Duration) {
	Experiments.WithLabelValues(strconv.Itoa(speedup)).Inc()
	ExperimentDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler { return promhttp.Handler() }
