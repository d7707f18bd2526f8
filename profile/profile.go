package profile

import "github.com/ardnew/causal/pkg"

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`

// Config selects what to profile and where to write it.
type Config struct {
	Mode  string
	Path  string
	Quiet bool
}

// Option configures a [Config].
type Option = pkg.Option[Config]

// Stopper stops a running profile and flushes it to disk.
type Stopper interface{ Stop() }

// Start begins profiling and returns a Stopper for it.
//
// If build tag pprof or the mode are unset, or the mode is unknown, Start
// returns a no-op implementation. Both Start and Stop are always safely
// callable.
func Start(opts ...Option) Stopper {
	c := pkg.Make(opts...)

	if c.Mode == "" {
		return ignore{}
	}

	return start(c)
}

// WithMode sets the profiling mode. See [Modes].
func WithMode(mode string) Option {
	return func(c Config) Config {
		c.Mode = mode

		return c
	}
}

// WithPath sets the output directory.
func WithPath(path string) Option {
	return func(c Config) Config {
		c.Path = path

		return c
	}
}

// WithQuiet suppresses the profiler's own log lines.
func WithQuiet(quiet bool) Option {
	return func(c Config) Config {
		c.Quiet = quiet

		return c
	}
}

type ignore struct{}

func (ignore) Stop() {}
