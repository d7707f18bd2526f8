package experiment

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/causal/clock"
	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
	"github.com/ardnew/causal/sample"
)

const (
	selectedPC = uintptr(0x20)
	otherPC    = uintptr(0x10)
)

var testFrames = sample.ResolverFunc(func(pc uintptr) (sample.Frame, bool) {
	switch pc {
	case selectedPC:
		return sample.Frame{PC: pc, File: "/src/app/b.go", Line: 2, Function: "main.b"}, true
	case otherPC:
		return sample.Frame{PC: pc, File: "/src/app/a.go", Line: 1, Function: "main.a"}, true
	}

	return sample.Frame{}, false
})

// syncBuffer is a bytes.Buffer safe for a writer and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type rig struct {
	clock     *clock.Simulated
	engine    *delay.Engine
	registry  *progress.Registry
	collector *sample.Collector
	out       *syncBuffer
	sched     *Scheduler
}

func newRig(t *testing.T, sampler func(*sample.Collector) sample.Sampler, opts ...Option) *rig {
	t.Helper()

	r := &rig{
		clock:     clock.NewSimulated(0),
		engine:    delay.NewEngine(delay.WithBaseUnit(time.Microsecond)),
		collector: sample.NewCollector(nil),
		out:       &syncBuffer{},
	}
	r.registry = progress.NewRegistry(r.clock)
	r.collector.Table().Touch(otherPC)
	r.collector.Table().Touch(selectedPC)

	base := []Option{WithClock(r.clock), WithWarmup(time.Millisecond), WithLogger(quiet)}

	s, err := New(r.engine, r.registry, sampler(r.collector),
		NewReporter(r.out, FormatText, quiet), append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	r.sched = s

	return r
}

func fixedSampler(t *testing.T) func(*sample.Collector) sample.Sampler {
	return func(c *sample.Collector) sample.Sampler {
		f, err := sample.NewFixed("app/b.go:2", c, testFrames)
		if err != nil {
			t.Fatal(err)
		}

		return f
	}
}

func statisticalSampler(c *sample.Collector) sample.Sampler {
	return sample.NewStatistical(c, testFrames, sample.NewScope(nil, nil), nil)
}

// reached polls until s reaches st, reporting false on timeout.
func reached(s *Scheduler, st State) bool {
	deadline := time.Now().Add(5 * time.Second)
	for s.State() != st {
		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(100 * time.Microsecond)
	}

	return true
}

func TestNew_InvalidSpeedup(t *testing.T) {
	_, err := New(delay.NewEngine(), progress.NewRegistry(nil),
		statisticalSampler(sample.NewCollector(nil)), NewReporter(&bytes.Buffer{}, FormatText, quiet),
		WithFixedSpeedup(101))
	if !errors.Is(err, pkg.ErrInvalidSpeedup) {
		t.Errorf("New() error = %v", err)
	}
}

func TestScheduler_RunOnce_SubtractsInjectedDelay(t *testing.T) {
	r := newRig(t, fixedSampler(t))
	r.registry.Register("requests", progress.Throughput)

	cand, err := r.sched.sampler.Select(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		if !reached(r.sched, Measuring) {
			t.Error("measurement never began")

			return
		}

		for range 10 {
			r.engine.Visit(otherPC)
			r.registry.Increment("requests")
		}

		for range 3 {
			r.engine.Visit(selectedPC)
		}

		r.collector.Arm()
		r.collector.Visit(selectedPC)
		r.clock.Advance(100 * time.Millisecond)
	}()

	records, err := r.sched.RunOnce(context.Background(), Experiment{
		Candidate:   cand,
		Speedup:     50,
		MinDuration: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	<-done

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]

	want := Record{
		Type:            "experiment",
		Experiment:      1,
		Selected:        "/src/app/b.go:2",
		Speedup:         50,
		Duration:        int64(100*time.Millisecond - 5*time.Microsecond),
		Point:           "requests",
		Kind:            "throughput",
		Delta:           10,
		SelectedSamples: 1,
		Delay:           int64(5 * time.Microsecond),
		DelayedVisits:   10,
	}

	if rec != want {
		t.Errorf("record =\n%+v\nwant\n%+v", rec, want)
	}

	if r.engine.Active() {
		t.Error("engine still active after experiment")
	}
	if r.sched.State() != Reporting {
		t.Errorf("State() = %v, want reporting", r.sched.State())
	}
}

func TestScheduler_RunOnce_SequenceIncreases(t *testing.T) {
	r := newRig(t, statisticalSampler)
	r.registry.Register("requests", progress.Throughput)

	var last uint64

	for range 3 {
		records, err := r.sched.RunOnce(context.Background(), Experiment{MinDuration: time.Millisecond})
		if err != nil {
			t.Fatal(err)
		}

		if len(records) != 1 || records[0].Experiment <= last {
			t.Fatalf("records = %+v after sequence %d", records, last)
		}

		last = records[0].Experiment
	}

	if _, err := r.sched.RunOnce(context.Background(), Experiment{Speedup: -1}); !errors.Is(err, pkg.ErrInvalidSpeedup) {
		t.Errorf("RunOnce() error = %v", err)
	}
}

func TestScheduler_Shutdown_FlushesPartialExperiment(t *testing.T) {
	r := newRig(t, fixedSampler(t), WithMinDuration(time.Hour), WithFixedSpeedup(0))
	r.registry.Register("requests", progress.Throughput)

	errc := make(chan error, 1)

	go func() { errc <- r.sched.Run(context.Background()) }()

	if !reached(r.sched, Measuring) {
		t.Fatal("measurement never began")
	}

	for range 4 {
		r.registry.Increment("requests")
	}

	r.sched.Shutdown()

	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	r.sched.Shutdown()

	out := r.out.String()

	if !strings.Contains(out, "1,/src/app/b.go:2,0,") || !strings.Contains(out, ",requests,4\n") {
		t.Errorf("partial experiment not reported:\n%s", out)
	}
	if n := strings.Count(out, "# runtime"); n != 1 {
		t.Errorf("runtime written %d times:\n%s", n, out)
	}
	if r.sched.State() != Finished {
		t.Errorf("State() = %v, want finished", r.sched.State())
	}

	if err := r.sched.Run(context.Background()); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v", err)
	}
}

func TestScheduler_Shutdown_BeforeRun(t *testing.T) {
	r := newRig(t, statisticalSampler)
	r.sched.Shutdown()

	if n := strings.Count(r.out.String(), "# runtime"); n != 1 {
		t.Errorf("runtime written %d times:\n%s", n, r.out.String())
	}
}

func TestScheduler_Run_SampleOnly(t *testing.T) {
	r := newRig(t, statisticalSampler, WithSampleOnly(true))
	r.registry.Register("requests", progress.Throughput)
	r.collector.Table().VoteN(selectedPC, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := r.sched.Run(ctx); err != nil {
		t.Fatal(err)
	}

	out := r.out.String()

	if !strings.Contains(out, "# samples location=/src/app/b.go:2 count=3") {
		t.Errorf("sample summary missing:\n%s", out)
	}
	if strings.Contains(out, ",requests,") {
		t.Errorf("sample-only mode reported an experiment:\n%s", out)
	}
	if r.engine.Global() != 0 {
		t.Errorf("sample-only mode injected %v", r.engine.Global())
	}
}

func TestScheduler_Run_EndToEnd(t *testing.T) {
	r := newRig(t, fixedSampler(t), WithEndToEnd(true), WithFixedSpeedup(20))
	r.registry.Register("requests", progress.Throughput)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() { errc <- r.sched.Run(ctx) }()

	if !reached(r.sched, Measuring) {
		t.Fatal("measurement never began")
	}

	if !r.engine.Active() || r.engine.Speedup() != 20 {
		t.Errorf("engine active=%v speedup=%d", r.engine.Active(), r.engine.Speedup())
	}

	r.registry.Increment("requests")
	cancel()

	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	out := r.out.String()

	if n := strings.Count(out, ",requests,"); n != 1 {
		t.Errorf("end-to-end wrote %d records, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, "1,/src/app/b.go:2,20,") {
		t.Errorf("end-to-end record missing selection:\n%s", out)
	}
}

func TestScheduler_Run_AwaitsProgressPoints(t *testing.T) {
	r := newRig(t, statisticalSampler)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.sched.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if r.sched.seq.Load() != 0 {
		t.Errorf("ran %d experiments without progress points", r.sched.seq.Load())
	}
}

func TestScheduler_Run_Loop(t *testing.T) {
	logEveryExperiment := func(c Config) Config {
		c.SampleLogEvery = 1

		return c
	}

	trace := &syncBuffer{}

	r := newRig(t, statisticalSampler,
		WithMinDuration(time.Millisecond),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(log.Make(trace, log.WithLevel(log.LevelTrace))),
		logEveryExperiment,
	)
	r.registry.Register("requests", progress.Throughput)
	r.collector.Table().VoteN(selectedPC, 3)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() { errc <- r.sched.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for r.sched.seq.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	cancel()

	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	var speedups []int

	for line := range strings.Lines(r.out.String()) {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) != 6 || fields[4] != "requests" {
			continue
		}

		speedup, err := strconv.Atoi(fields[2])
		if err != nil {
			t.Fatalf("malformed record %q", line)
		}

		speedups = append(speedups, speedup)
	}

	if len(speedups) < 4 {
		t.Fatalf("got %d experiments, want at least 4:\n%s", len(speedups), r.out.String())
	}

	for _, s := range speedups {
		if s < 0 || s > 100 || s%(100/SpeedupDivisions) != 0 {
			t.Errorf("drawn speedup %d outside the speedup grid", s)
		}
	}

	// No visits to the progress point means every delta is below target, so
	// each completed experiment doubled the length.
	got := r.sched.Length()
	if n := got / time.Millisecond; got < 8*time.Millisecond || got%time.Millisecond != 0 || n&(n-1) != 0 {
		t.Errorf("Length() = %v after %d experiments, want doubled from 1ms", got, len(speedups))
	}

	// Each completed experiment cools off idle before the next warmup.
	if n := strings.Count(trace.String(), "state=idle"); n < 3 {
		t.Errorf("cooled off %d time(s), want at least 3", n)
	}

	// Summaries after the first and third experiments, and once at finish.
	const summary = "# samples location=/src/app/b.go:2 count=3"
	if n := strings.Count(r.out.String(), summary); n < 3 {
		t.Errorf("got %d sample summaries, want at least 3:\n%s", n, r.out.String())
	}
}
