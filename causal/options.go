package causal

import (
	"time"

	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
)

// Defaults of the profiler. They mirror the defaults of the packages that
// implement each concern, so that a nocausal build links none of them.
const (
	// DefaultOutput is the profile written when no output is configured.
	DefaultOutput = "profile.coz"
	DefaultFormat = "text"

	DefaultBaseUnit      = time.Microsecond
	DefaultSpinThreshold = 50 * time.Microsecond
	DefaultSamplePeriod  = time.Millisecond
	DefaultWarmup        = 10 * time.Millisecond
	DefaultMinDuration   = 500 * time.Millisecond

	// NoFixedSpeedup draws the speedup of each experiment at random.
	NoFixedSpeedup = -1
)

// Options configures the profiler.
type Options struct {
	// Scope holds include patterns over source file paths. Empty admits
	// every file outside the Go runtime and the profiler.
	Scope []string
	// Exclude holds patterns of files never selected.
	Exclude []string
	// FixedLine, as file:line, selects the same line for every experiment.
	FixedLine string
	// FixedSpeedup is used for every experiment unless it is
	// [NoFixedSpeedup].
	FixedSpeedup int
	// Progress declares points in advance as name or name:kind.
	Progress []string
	// Output is the profile path; "-" is standard output.
	Output string
	// Format is "text" or "json".
	Format string
	// SampleOnly disables delay injection.
	SampleOnly bool
	// EndToEnd runs a single experiment spanning the whole run.
	EndToEnd bool
	// CPUProfile adds samples from the Go runtime's CPU profiler.
	CPUProfile bool

	BaseUnit      time.Duration
	SpinThreshold time.Duration
	SamplePeriod  time.Duration
	Warmup        time.Duration
	MinDuration   time.Duration

	Log log.Logger
}

// Option configures [Options].
type Option = pkg.Option[Options]

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		FixedSpeedup:  NoFixedSpeedup,
		Output:        DefaultOutput,
		Format:        DefaultFormat,
		BaseUnit:      DefaultBaseUnit,
		SpinThreshold: DefaultSpinThreshold,
		SamplePeriod:  DefaultSamplePeriod,
		Warmup:        DefaultWarmup,
		MinDuration:   DefaultMinDuration,
		Log:           log.Component("causal"),
	}
}

// WithOptions replaces the configuration with o.
func WithOptions(o Options) Option {
	return func(Options) Options { return o }
}

// WithScope adds include patterns.
func WithScope(patterns ...string) Option {
	return func(o Options) Options {
		o.Scope = append(o.Scope, patterns...)

		return o
	}
}

// WithExclude adds exclude patterns.
func WithExclude(patterns ...string) Option {
	return func(o Options) Options {
		o.Exclude = append(o.Exclude, patterns...)

		return o
	}
}

// WithFixedLine selects location, as file:line, for every experiment.
func WithFixedLine(location string) Option {
	return func(o Options) Options {
		o.FixedLine = location

		return o
	}
}

// WithFixedSpeedup fixes the speedup percent of every experiment.
func WithFixedSpeedup(percent int) Option {
	return func(o Options) Options {
		o.FixedSpeedup = percent

		return o
	}
}

// WithProgress declares progress points as name or name:kind.
func WithProgress(decls ...string) Option {
	return func(o Options) Options {
		o.Progress = append(o.Progress, decls...)

		return o
	}
}

// WithOutput sets the profile path.
func WithOutput(path string) Option {
	return func(o Options) Options {
		if path != "" {
			o.Output = path
		}

		return o
	}
}

// WithFormat sets the profile format.
func WithFormat(format string) Option {
	return func(o Options) Options {
		o.Format = format

		return o
	}
}

// WithSampleOnly disables delay injection.
func WithSampleOnly(enable bool) Option {
	return func(o Options) Options {
		o.SampleOnly = enable

		return o
	}
}

// WithEndToEnd runs one experiment spanning the whole run.
func WithEndToEnd(enable bool) Option {
	return func(o Options) Options {
		o.EndToEnd = enable

		return o
	}
}

// WithCPUProfile adds samples from the Go runtime's CPU profiler.
func WithCPUProfile(enable bool) Option {
	return func(o Options) Options {
		o.CPUProfile = enable

		return o
	}
}

// WithBaseUnit sets the delay per visit at 100% speedup.
func WithBaseUnit(d time.Duration) Option {
	return func(o Options) Options {
		o.BaseUnit = d

		return o
	}
}

// WithSpinThreshold sets the largest delay paid by spinning.
func WithSpinThreshold(d time.Duration) Option {
	return func(o Options) Options {
		o.SpinThreshold = d

		return o
	}
}

// WithSamplePeriod sets the sampling period.
func WithSamplePeriod(d time.Duration) Option {
	return func(o Options) Options {
		o.SamplePeriod = d

		return o
	}
}

// WithWarmup sets the settle period before each measurement.
func WithWarmup(d time.Duration) Option {
	return func(o Options) Options {
		o.Warmup = d

		return o
	}
}

// WithMinDuration sets the minimum measurement length.
func WithMinDuration(d time.Duration) Option {
	return func(o Options) Options {
		o.MinDuration = d

		return o
	}
}

// WithLogger sets the profiler's logger.
func WithLogger(l log.Logger) Option {
	return func(o Options) Options {
		o.Log = l

		return o
	}
}

// makeOptions applies opts over the defaults.
func makeOptions(opts ...Option) Options {
	return pkg.Make(append([]Option{WithOptions(DefaultOptions())}, opts...)...)
}
