package sample

import (
	"bytes"
	"context"
	"log/slog"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"

	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
)

// DefaultProfileWindow is how long each CPU profile runs before its samples
// are attributed.
const DefaultProfileWindow = 250 * time.Millisecond

// Attributor credits samples taken at an arbitrary program counter to a
// discovered visit site.
type Attributor interface {
	Attribute(pc uintptr, n uint64) bool
}

// CPUProfile feeds samples from the Go runtime's CPU profiler, which is
// driven by SIGPROF, into an [Attributor]. Each profile window is decoded and
// every sample is credited to the innermost stack frame that belongs to a
// discovered visit site.
//
// Only one CPU profile may be active per process; Start fails if another is
// running.
type CPUProfile struct {
	Window time.Duration
	Target Attributor
	Log    log.Logger

	buf bytes.Buffer
}

// Start begins the first profile window.
func (p *CPUProfile) Start() error {
	p.buf.Reset()

	if err := pprof.StartCPUProfile(&p.buf); err != nil {
		return pkg.ErrInstallSampler.Wrap(err)
	}

	return nil
}

// Run rotates profile windows until ctx is done, then stops profiling and
// attributes the final window. Start must have succeeded.
func (p *CPUProfile) Run(ctx context.Context) {
	window := p.Window
	if window <= 0 {
		window = DefaultProfileWindow
	}

	tk := time.NewTicker(window)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			pprof.StopCPUProfile()
			p.attribute()

			return

		case <-tk.C:
			pprof.StopCPUProfile()
			p.attribute()

			if err := p.Start(); err != nil {
				p.Log.Warn("cpu profile sampling stopped", slog.Any("error", err))

				return
			}
		}
	}
}

// attribute decodes the buffered profile and credits its samples.
func (p *CPUProfile) attribute() {
	if p.buf.Len() == 0 {
		return
	}

	prof, err := profile.Parse(&p.buf)
	if err != nil {
		p.Log.Warn("cpu profile discarded", slog.Any("error", pkg.ErrParseProfile.Wrap(err)))

		return
	}

	credited, dropped := Attribute(prof, p.Target)

	p.Log.Trace("cpu profile attributed",
		slog.Uint64("credited", credited),
		slog.Uint64("dropped", dropped))
}

// Attribute credits every sample in prof to target and returns the number of
// samples credited and dropped.
func Attribute(prof *profile.Profile, target Attributor) (credited, dropped uint64) {
	for _, s := range prof.Sample {
		if len(s.Value) == 0 || s.Value[0] <= 0 {
			continue
		}

		n := uint64(s.Value[0])
		ok := false

		for _, loc := range s.Location {
			if ok = target.Attribute(uintptr(loc.Address), n); ok {
				break
			}
		}

		if ok {
			credited += n
		} else {
			dropped += n
		}
	}

	return credited, dropped
}
