package experiment

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/metrics"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
	"github.com/ardnew/causal/sample"
)

// Scheduler runs experiments. Run drives the cycle from a single goroutine;
// Shutdown may be called from any goroutine.
type Scheduler struct {
	cfg      Config
	engine   *delay.Engine
	registry *progress.Registry
	sampler  sample.Sampler
	reporter *Reporter
	rand     *rand.Rand

	state  atomic.Int32
	seq    atomic.Uint64
	length time.Duration
	start  time.Duration

	running    atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	finishOnce sync.Once

	logEvery     int
	logCountdown int
}

// New returns a scheduler driving engine and registry with candidates from
// sampler, writing to reporter.
func New(
	engine *delay.Engine,
	registry *progress.Registry,
	sampler sample.Sampler,
	reporter *Reporter,
	opts ...Option,
) (*Scheduler, error) {
	cfg := pkg.Make(append([]Option{WithDefaults()}, opts...)...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Scheduler{
		cfg:          cfg,
		engine:       engine,
		registry:     registry,
		sampler:      sampler,
		reporter:     reporter,
		rand:         cfg.Rand,
		length:       cfg.MinDuration,
		start:        cfg.Clock.Now(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logEvery:     cfg.SampleLogEvery,
		logCountdown: cfg.SampleLogEvery,
	}, nil
}

// State returns the current state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.cfg.Log.Trace("state", slog.String("state", st.String()))
}

// Length returns the current planned measurement length.
func (s *Scheduler) Length() time.Duration { return s.length }

// Run executes experiments until ctx is done or Shutdown is called, then
// reports the experiment in flight and finishes. Run may be called once, and
// not after Shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}

	defer close(s.done)
	defer s.finish()

	ctx, cancel := s.withStop(ctx)
	defer cancel()

	s.reporter.Startup(time.Now())
	s.cfg.Log.Info("profiling started",
		slog.Bool("end_to_end", s.cfg.EndToEnd),
		slog.Bool("sample_only", s.cfg.SampleOnly))

	if !s.awaitProgressPoints(ctx) {
		return nil
	}

	switch {
	case s.cfg.SampleOnly:
		s.sampleOnly(ctx)
	case s.cfg.EndToEnd:
		s.endToEnd(ctx)
	default:
		s.loop(ctx)
	}

	return nil
}

// Shutdown ends the experiment in flight, reports its partial window and
// flushes the final summary. It blocks until the summary is written and is
// safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })

	// A scheduler that never ran finishes here and cannot be run later.
	if s.running.CompareAndSwap(false, true) {
		s.finish()
		close(s.done)

		return
	}

	<-s.done
}

// Done is closed when a running scheduler has finished.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// awaitProgressPoints waits until at least one progress point is registered.
func (s *Scheduler) awaitProgressPoints(ctx context.Context) bool {
	for s.registry.Len() == 0 {
		if !s.sleep(ctx, s.retryInterval()) {
			return false
		}
	}

	return true
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		x, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			metrics.SelectionMisses.Inc()

			if !s.sleep(ctx, s.retryInterval()) {
				return
			}

			continue
		}

		out := s.run(ctx, x)
		if !out.complete {
			return
		}

		if d, ok := minDelta(out.snaps); ok && s.cfg.Adaptive {
			s.length = nextLength(s.length, s.cfg.MinDuration, s.cfg.MaxDuration, d, s.cfg.TargetDelta)
		}

		s.logSamplesPeriodically()
		s.setState(Idle)

		if !s.sleep(ctx, s.cfg.CoolOff) {
			return
		}
	}
}

// endToEnd runs one experiment spanning the whole run.
func (s *Scheduler) endToEnd(ctx context.Context) {
	x := Experiment{Speedup: max(s.cfg.FixedSpeedup, 0)}

	if _, fixed := s.sampler.(*sample.Fixed); fixed {
		for {
			cand, err := s.sampler.Select(ctx)
			if err == nil {
				x.Candidate = cand

				break
			}

			if !s.sleep(ctx, s.retryInterval()) {
				return
			}
		}
	}

	x.Sequence = s.seq.Add(1)
	x.MinDuration = -1

	s.run(ctx, x)
}

// sampleOnly records samples without experimenting, logging a summary
// periodically.
func (s *Scheduler) sampleOnly(ctx context.Context) {
	for s.sleep(ctx, s.cfg.SampleLogInterval) {
		s.reporter.Samples(s.sampler.Summary())
	}
}

// Next selects the candidate and speedup of the next experiment.
func (s *Scheduler) Next(ctx context.Context) (Experiment, error) {
	cand, err := s.sampler.Select(ctx)
	if err != nil {
		return Experiment{}, err
	}

	speedup := s.cfg.FixedSpeedup
	if speedup == NoFixedSpeedup {
		speedup = DrawSpeedup(s.rand)
	}

	return Experiment{
		Sequence:    s.seq.Add(1),
		Candidate:   cand,
		Speedup:     speedup,
		MinDuration: s.length,
	}, nil
}

// RunOnce performs experiment x outside the Run cycle and returns its
// records. x is assigned the next sequence number. A non-positive
// MinDuration measures until ctx is done or Shutdown is called.
func (s *Scheduler) RunOnce(ctx context.Context, x Experiment) ([]Record, error) {
	if x.Speedup < 0 || x.Speedup > 100 {
		return nil, pkg.ErrInvalidSpeedup.Wrapf("%d", x.Speedup)
	}

	ctx, cancel := s.withStop(ctx)
	defer cancel()

	x.Sequence = s.seq.Add(1)

	return s.run(ctx, x).records, nil
}

// outcome is the result of one experiment.
type outcome struct {
	records  []Record
	snaps    []progress.Snapshot
	complete bool
}

// run performs one experiment through Warmup, Measuring and Reporting.
// The outcome is incomplete if ctx ended before the planned duration.
func (s *Scheduler) run(ctx context.Context, x Experiment) outcome {
	clk := s.cfg.Clock

	s.setState(Warmup)
	s.engine.Reset()

	if !s.cfg.SampleOnly {
		if err := s.engine.Activate(x.PCs(), x.Speedup); err != nil {
			s.cfg.Log.Error("experiment skipped", slog.Any("error", err))

			return outcome{complete: ctx.Err() == nil}
		}
	}

	// If warmup is interrupted, the partial window is measured from here.
	s.registry.SnapshotAll()

	x.Start = clk.Now()
	samples0 := s.sampler.Samples(x.Candidate)
	delay0 := s.engine.Global()
	visits0 := s.engine.Visits()

	complete := s.sleep(ctx, s.cfg.Warmup)
	if complete {
		s.registry.SnapshotAll()

		x.Start = clk.Now()
		samples0 = s.sampler.Samples(x.Candidate)
		delay0 = s.engine.Global()
		visits0 = s.engine.Visits()

		s.setState(Measuring)

		if x.MinDuration > 0 {
			complete = s.sleep(ctx, x.MinDuration)
		} else {
			<-ctx.Done()

			complete = false
		}
	}

	s.setState(Reporting)
	s.engine.Deactivate()

	snaps := s.registry.SnapshotAll()
	elapsed := clk.Now() - x.Start
	injected := s.engine.Global() - delay0
	duration := max(elapsed-injected, 0)
	selected := s.sampler.Samples(x.Candidate) - samples0
	delayed := s.engine.Visits() - visits0

	records := make([]Record, 0, len(snaps))

	for _, snap := range snaps {
		rec := makeRecord(x, snap, duration)
		rec.SelectedSamples = selected
		rec.Delay = int64(injected)
		rec.DelayedVisits = delayed
		records = append(records, rec)

		metrics.ProgressVisits.WithLabelValues(snap.Name).Add(float64(snap.Count))
	}

	s.reporter.Experiment(records)

	metrics.ObserveExperiment(x.Speedup, duration)
	s.cfg.Log.Debug("experiment",
		slog.Uint64("id", x.Sequence),
		slog.String("selected", x.Selected()),
		slog.Int("speedup", x.Speedup),
		slog.Duration("duration", duration),
		slog.Bool("complete", complete))

	return outcome{records: records, snaps: snaps, complete: complete}
}

// logSamplesPeriodically writes a sample summary after a number of
// experiments that doubles each time.
func (s *Scheduler) logSamplesPeriodically() {
	if s.logEvery <= 0 {
		return
	}

	if s.logCountdown--; s.logCountdown > 0 {
		return
	}

	s.reporter.Samples(s.sampler.Summary())

	s.logEvery *= 2
	s.logCountdown = s.logEvery
}

// finish writes the final summary exactly once.
func (s *Scheduler) finish() {
	s.finishOnce.Do(func() {
		s.engine.Deactivate()
		s.setState(Finished)

		elapsed := s.cfg.Clock.Now() - s.start

		s.reporter.Runtime(elapsed)
		s.reporter.Samples(s.sampler.Summary())

		if err := s.reporter.Close(); err != nil {
			s.cfg.Log.Warn("profile output close failed", slog.Any("error", err))
		}

		s.cfg.Log.Info("profiling finished",
			slog.Uint64("experiments", s.seq.Load()),
			slog.Duration("runtime", elapsed))
	})
}

// withStop returns a context that is also cancelled by Shutdown.
func (s *Scheduler) withStop(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// minRetryInterval bounds how often an unavailable resource is polled.
const minRetryInterval = time.Millisecond

func (s *Scheduler) retryInterval() time.Duration {
	return max(s.cfg.CoolOff, minRetryInterval)
}

// sleep waits for d, returning false if ctx is done first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
