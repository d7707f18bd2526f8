package delay

import (
	"time"

	"github.com/ardnew/causal/clock"
	"github.com/ardnew/causal/pkg"
)

const (
	// DefaultBaseUnit is the delay charged per visit at 100% speedup.
	DefaultBaseUnit = time.Microsecond
	// DefaultSpinThreshold is the largest debt paid by spinning; larger debts
	// are paid by sleeping.
	DefaultSpinThreshold = 50 * time.Microsecond
)

// LineFunc resolves a visit site's program counter to its source line.
type LineFunc func(pc uintptr) (file string, line int, ok bool)

// Config holds the tunable parameters of an [Engine].
type Config struct {
	Clock         clock.Clock
	BaseUnit      time.Duration
	SpinThreshold time.Duration
	Lines         LineFunc
}

// Option configures an [Engine].
type Option = pkg.Option[Config]

// WithDefaults resets all parameters to their defaults.
func WithDefaults() Option {
	return func(Config) Config {
		return Config{
			Clock:         clock.Default,
			BaseUnit:      DefaultBaseUnit,
			SpinThreshold: DefaultSpinThreshold,
		}
	}
}

// WithClock sets the time source used to measure waits.
func WithClock(c clock.Clock) Option {
	return func(cfg Config) Config {
		if c != nil {
			cfg.Clock = c
		}

		return cfg
	}
}

// WithBaseUnit sets the delay charged per visit at 100% speedup. Non-positive
// values are ignored.
func WithBaseUnit(d time.Duration) Option {
	return func(cfg Config) Config {
		if d > 0 {
			cfg.BaseUnit = d
		}

		return cfg
	}
}

// WithSpinThreshold sets the largest debt paid by spinning. Zero makes every
// wait sleep; negative values are ignored.
func WithSpinThreshold(d time.Duration) Option {
	return func(cfg Config) Config {
		if d >= 0 {
			cfg.SpinThreshold = d
		}

		return cfg
	}
}

// WithLines sets the resolver used to recognize visit sites on the selected
// line that were not known when the experiment started. Without one, only
// the selected program counters are exempt.
func WithLines(fn LineFunc) Option {
	return func(cfg Config) Config {
		cfg.Lines = fn

		return cfg
	}
}
