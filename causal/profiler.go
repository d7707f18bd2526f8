//go:build !nocausal

package causal

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/causal/clock"
	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/experiment"
	"github.com/ardnew/causal/interpose"
	"github.com/ardnew/causal/metrics"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
	"github.com/ardnew/causal/sample"
)

// Enabled reports whether profiling support is compiled in.
const Enabled = true

var (
	_ interpose.Lifecycle = (*profiler)(nil)
	_ metrics.Source      = (*profiler)(nil)
)

// current is the running profiler, or nil.
var current atomic.Pointer[profiler]

// profiler owns every process-wide piece of profiler state.
type profiler struct {
	opts     Options
	clock    clock.Clock
	engine   *delay.Engine
	registry *progress.Registry
	sampler  sample.Sampler
	coll     *sample.Collector
	reporter *experiment.Reporter
	sched    *experiment.Scheduler
	platform interpose.Platform
	main     *Thread

	cancel      context.CancelFunc
	sampling    sync.WaitGroup
	scheduling  sync.WaitGroup
	stopSignals func()
	stopMetrics func()
	once        sync.Once
}

// Start starts the profiler. Setup failures are returned wrapped in
// [pkg.ErrOpenOutput] or [pkg.ErrInstallSampler]; profiling cannot proceed
// after either. The calling goroutine becomes the main thread used by
// package-level progress points.
func Start(opts ...Option) error {
	if Running() {
		return pkg.ErrAlreadyRunning
	}

	o := makeOptions(opts...)

	p, err := newProfiler(o, interpose.Current())
	if err != nil {
		return err
	}

	if !current.CompareAndSwap(nil, p) {
		p.abort()

		return pkg.ErrAlreadyRunning
	}

	p.start()

	return nil
}

// MustStart is like Start but logs the error and exits with status 2 if the
// profiler cannot start.
func MustStart(opts ...Option) {
	if err := Start(opts...); err != nil {
		makeOptions(opts...).Log.Error("profiler failed to start", slog.Any("error", err))
		os.Exit(2)
	}
}

// sourceLine resolves a visit site the same way the samplers do.
func sourceLine(pc uintptr) (string, int, bool) {
	f, ok := sample.RuntimeResolver{}.Resolve(pc)

	return f.File, f.Line, ok
}

func newProfiler(o Options, plat interpose.Platform) (*profiler, error) {
	format, err := experiment.ParseFormat(o.Format)
	if err != nil {
		return nil, err
	}

	p := &profiler{
		opts:     o,
		clock:    clock.Default,
		platform: plat,
		engine: delay.NewEngine(
			delay.WithBaseUnit(o.BaseUnit),
			delay.WithSpinThreshold(o.SpinThreshold),
			delay.WithLines(sourceLine),
		),
		coll: sample.NewCollector(nil),
	}
	p.registry = progress.NewRegistry(p.clock)

	for _, decl := range o.Progress {
		name, kind := progress.ParseDeclaration(decl)
		if name != "" {
			p.registry.Register(name, kind)
		}
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	if o.FixedLine != "" {
		if p.sampler, err = sample.NewFixed(o.FixedLine, p.coll, nil); err != nil {
			return nil, err
		}
	} else {
		p.sampler = sample.NewStatistical(p.coll, nil, sample.NewScope(o.Scope, o.Exclude), rng)
	}

	if p.reporter, err = experiment.OpenReporter(o.Output, format, o.Log.Component("reporter")); err != nil {
		return nil, err
	}

	p.sched, err = experiment.New(p.engine, p.registry, p.sampler, p.reporter,
		experiment.WithClock(p.clock),
		experiment.WithRand(rng),
		experiment.WithWarmup(o.Warmup),
		experiment.WithMinDuration(o.MinDuration),
		experiment.WithFixedSpeedup(o.FixedSpeedup),
		experiment.WithSampleOnly(o.SampleOnly),
		experiment.WithEndToEnd(o.EndToEnd),
		experiment.WithLogger(o.Log.Component("scheduler")),
	)
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if err != nil {
		p.abort()

		return nil, err
	}

	if err := plat.InstallSamplingSignal(ctx, o.SamplePeriod, p.coll.Arm); err != nil {
		p.abort()

		return nil, err
	}

	if o.CPUProfile {
		cpu := &sample.CPUProfile{
			Target: p.sampler.(sample.Attributor),
			Log:    o.Log.Component("sampler"),
		}

		if err := cpu.Start(); err != nil {
			p.abort()

			return nil, err
		}

		p.sampling.Go(func() { cpu.Run(ctx) })
	}

	p.main = &Thread{p: p, t: p.engine.NewThread()}

	return p, nil
}

// start begins experimenting.
func (p *profiler) start() {
	p.stopSignals = p.platform.InterceptTermination(p)
	p.stopMetrics = metrics.Watch(p)

	p.scheduling.Go(func() {
		if err := p.sched.Run(context.Background()); err != nil {
			p.opts.Log.Warn("scheduler stopped", slog.Any("error", err))
		}
	})

	p.opts.Log.Info("profiler started",
		slog.String("version", pkg.Version()),
		slog.String("output", p.opts.Output),
		slog.Int("points", p.registry.Len()))
}

// abort releases the resources of a profiler that never started.
func (p *profiler) abort() {
	p.cancel()
	p.sampling.Wait()

	if err := p.reporter.Close(); err != nil {
		p.opts.Log.Warn("profile output close failed", slog.Any("error", err))
	}
}

// shutdown tears down in order: sampler, scheduler and its final report,
// reporter, metrics.
func (p *profiler) shutdown() {
	p.once.Do(func() {
		p.cancel()
		p.sampling.Wait()
		p.sched.Shutdown()
		p.scheduling.Wait()
		p.stopMetrics()
		p.stopSignals()
		p.main.Close()
	})
}

// ThreadStartup implements [interpose.Lifecycle].
func (p *profiler) ThreadStartup(parent *delay.Thread) *delay.Thread {
	if parent != nil {
		return parent.Fork()
	}

	return p.engine.NewThread()
}

// ThreadShutdown implements [interpose.Lifecycle].
func (p *profiler) ThreadShutdown(t *delay.Thread) {
	if t != nil {
		t.Close()
	}
}

// Shutdown implements [interpose.Lifecycle].
func (p *profiler) Shutdown() {
	current.CompareAndSwap(p, nil)
	p.shutdown()
}

// Global implements [metrics.Source].
func (p *profiler) Global() time.Duration { return p.engine.Global() }

// Threads implements [metrics.Source].
func (p *profiler) Threads() int64 { return p.engine.Threads() }

// Samples implements [metrics.Source].
func (p *profiler) Samples() uint64 { return p.coll.Samples() }

// Unresolved implements [metrics.Source].
func (p *profiler) Unresolved() uint64 { return p.sampler.Unresolved() }

// Stale implements [metrics.Source].
func (p *profiler) Stale() uint64 { return p.registry.Stale() }

// point returns the named point, registering it with kind on first use.
func (p *profiler) point(name string, kind progress.Kind) *progress.Point {
	if pt, ok := p.registry.Lookup(name); ok {
		return pt
	}

	return p.registry.Register(name, kind)
}

// Running reports whether the profiler is running.
func Running() bool { return current.Load() != nil }

// Shutdown stops experimenting and writes the final profile. It blocks until
// the profile is flushed and is safe to call more than once.
func Shutdown() {
	if p := current.Swap(nil); p != nil {
		p.shutdown()
	}
}

// Exit writes the final profile and terminates the process with code.
func Exit(code int) {
	if p := current.Load(); p != nil {
		p.platform.Exit(p, code)
	}

	os.Exit(code)
}

// Main runs fn, then exits with its result after writing the final profile.
// A panic in fn also writes the profile before the panic continues.
func Main(fn func() int) {
	defer func() {
		if r := recover(); r != nil {
			Shutdown()
			panic(r)
		}
	}()

	Exit(fn())
}
