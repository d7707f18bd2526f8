package experiment

import (
	"math/rand/v2"
	"time"

	"github.com/ardnew/causal/clock"
	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
)

const (
	// DefaultWarmup is the settle period before measurement begins.
	DefaultWarmup = 10 * time.Millisecond
	// DefaultMinDuration is the minimum measurement length.
	DefaultMinDuration = 500 * time.Millisecond
	// DefaultMaxDuration caps adaptive lengthening.
	DefaultMaxDuration = 64 * DefaultMinDuration
	// DefaultTargetDelta is the smallest progress delta considered
	// measurable.
	DefaultTargetDelta = 5
	// DefaultSampleLogEvery is the number of experiments between the first
	// two sample summaries. The interval doubles after each summary.
	DefaultSampleLogEvery = 32
	// DefaultSampleLogInterval is how often sample-only mode logs a summary.
	DefaultSampleLogInterval = 10 * time.Second
)

// NoFixedSpeedup selects a random speedup for each experiment.
const NoFixedSpeedup = -1

// Config holds the scheduler parameters.
type Config struct {
	Warmup      time.Duration
	CoolOff     time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	// FixedSpeedup is used for every experiment unless it is NoFixedSpeedup.
	FixedSpeedup int
	// EndToEnd runs a single experiment spanning the whole run.
	EndToEnd bool
	// SampleOnly disables delay injection and reports sample counts only.
	SampleOnly bool
	// Adaptive lengthens or shortens experiments to keep progress deltas
	// measurable.
	Adaptive          bool
	TargetDelta       uint64
	SampleLogEvery    int
	SampleLogInterval time.Duration

	Clock clock.Clock
	Rand  *rand.Rand
	Log   log.Logger
}

// Option configures a [Scheduler].
type Option = pkg.Option[Config]

// WithDefaults resets all parameters to their defaults.
func WithDefaults() Option {
	return func(Config) Config {
		return Config{
			Warmup:            DefaultWarmup,
			CoolOff:           DefaultWarmup,
			MinDuration:       DefaultMinDuration,
			MaxDuration:       DefaultMaxDuration,
			FixedSpeedup:      NoFixedSpeedup,
			Adaptive:          true,
			TargetDelta:       DefaultTargetDelta,
			SampleLogEvery:    DefaultSampleLogEvery,
			SampleLogInterval: DefaultSampleLogInterval,
			Clock:             clock.Default,
			Log:               log.Component("scheduler"),
		}
	}
}

// WithWarmup sets the settle period before measurement and the cool-off
// between experiments.
func WithWarmup(d time.Duration) Option {
	return func(c Config) Config {
		if d >= 0 {
			c.Warmup, c.CoolOff = d, d
		}

		return c
	}
}

// WithMinDuration sets the minimum measurement length.
func WithMinDuration(d time.Duration) Option {
	return func(c Config) Config {
		if d > 0 {
			c.MinDuration = d
			c.MaxDuration = max(c.MaxDuration, d)
		}

		return c
	}
}

// WithFixedSpeedup fixes the speedup of every experiment. [NoFixedSpeedup]
// restores random draws.
func WithFixedSpeedup(percent int) Option {
	return func(c Config) Config {
		c.FixedSpeedup = percent

		return c
	}
}

// WithEndToEnd enables end-to-end mode.
func WithEndToEnd(enable bool) Option {
	return func(c Config) Config {
		c.EndToEnd = enable

		return c
	}
}

// WithSampleOnly enables sample-only mode.
func WithSampleOnly(enable bool) Option {
	return func(c Config) Config {
		c.SampleOnly = enable

		return c
	}
}

// WithAdaptive enables or disables adaptive experiment length.
func WithAdaptive(enable bool) Option {
	return func(c Config) Config {
		c.Adaptive = enable

		return c
	}
}

// WithClock sets the time source for experiment timing.
func WithClock(clk clock.Clock) Option {
	return func(c Config) Config {
		if clk != nil {
			c.Clock = clk
		}

		return c
	}
}

// WithRand sets the source of randomness for speedup draws.
func WithRand(r *rand.Rand) Option {
	return func(c Config) Config {
		c.Rand = r

		return c
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l log.Logger) Option {
	return func(c Config) Config {
		c.Log = l

		return c
	}
}

// validate reports a configuration that cannot run.
func (c Config) validate() error {
	if c.FixedSpeedup != NoFixedSpeedup && (c.FixedSpeedup < 0 || c.FixedSpeedup > 100) {
		return pkg.ErrInvalidSpeedup.Wrapf("%d", c.FixedSpeedup)
	}

	return nil
}
