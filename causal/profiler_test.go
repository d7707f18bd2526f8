//go:build !nocausal

package causal

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/experiment"
	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/sample"
)

func testOptions(t *testing.T, opts ...Option) (string, []Option) {
	t.Helper()

	out := filepath.Join(t.TempDir(), "profile.coz")

	return out, append([]Option{
		WithOutput(out),
		WithLogger(log.Make(io.Discard)),
		WithWarmup(time.Millisecond),
		WithMinDuration(10 * time.Millisecond),
	}, opts...)
}

// measuring waits until the running profiler's scheduler is measuring.
func measuring(t *testing.T) {
	t.Helper()

	p := current.Load()
	if p == nil {
		t.Fatal("profiler not running")
	}

	deadline := time.Now().Add(5 * time.Second)
	for p.sched.State() != experiment.Measuring {
		if time.Now().After(deadline) {
			t.Fatal("measurement never began")
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func TestStart_EndToEnd(t *testing.T) {
	out, opts := testOptions(t, WithEndToEnd(true), WithFixedSpeedup(0),
		WithProgress("requests"))

	if err := Start(opts...); err != nil {
		t.Fatal(err)
	}
	defer Shutdown()

	if !Running() {
		t.Fatal("Running() = false after Start")
	}

	measuring(t)

	var wg sync.WaitGroup

	for range 4 {
		wg.Add(1)

		Go(func(th *Thread) {
			defer wg.Done()

			for range 25 {
				th.Visit()
				th.Progress("requests")
			}
		})
	}

	wg.Wait()
	Shutdown()

	if Running() {
		t.Error("Running() = true after Shutdown")
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	text := string(b)

	for _, want := range []string{"# startup", "1,none,0,", ",requests,100\n", "# runtime"} {
		if !strings.Contains(text, want) {
			t.Errorf("profile missing %q:\n%s", want, text)
		}
	}
}

func TestStart_LatencyJSON(t *testing.T) {
	out, opts := testOptions(t, WithEndToEnd(true), WithFixedSpeedup(0),
		WithFormat("json"))

	if err := Start(opts...); err != nil {
		t.Fatal(err)
	}

	measuring(t)

	th := ThreadStartup()

	for range 3 {
		w := th.Begin("queue")
		time.Sleep(time.Millisecond)
		th.End(w)
	}

	w := Begin("queue")

	ThreadShutdown(th)
	Shutdown()

	// Closing after shutdown is harmless.
	End(w)

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rec experiment.Record

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r experiment.Record
		if err := jsoniter.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatal(err)
		}

		if r.Type == "experiment" && r.Point == "queue" {
			rec = r
		}
	}

	if rec.Kind != "latency" || rec.Arrivals != 4 || rec.Departures != 3 || rec.Difference != 1 {
		t.Errorf("latency record = %+v", rec)
	}
	if rec.MeanLatency < int64(time.Millisecond) {
		t.Errorf("mean latency %v below the window length", time.Duration(rec.MeanLatency))
	}
}

func TestStart_Errors(t *testing.T) {
	quiet := WithLogger(log.Make(io.Discard))

	if err := Start(quiet, WithOutput(filepath.Join(t.TempDir(), "missing", "p.coz"))); !errors.Is(err, pkg.ErrOpenOutput) {
		t.Errorf("Start() with bad output error = %v", err)
	}

	if err := Start(quiet, WithFormat("xml")); !errors.Is(err, pkg.ErrInvalidFormat) {
		t.Errorf("Start() with bad format error = %v", err)
	}

	if err := Start(quiet, WithFixedLine("main.go")); !errors.Is(err, pkg.ErrInvalidLocation) {
		t.Errorf("Start() with bad line error = %v", err)
	}

	if Running() {
		t.Fatal("profiler running after failed starts")
	}

	_, opts := testOptions(t)
	if err := Start(opts...); err != nil {
		t.Fatal(err)
	}
	defer Shutdown()

	if err := Start(opts...); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v", err)
	}
}

func TestStopped_IsNoop(t *testing.T) {
	Visit()
	Progress("requests")
	End(Begin("queue"))
	Shutdown()

	th := ThreadStartup()
	th.Visit()
	th.Progress("requests")
	th.End(th.Begin("queue"))
	th.CatchUp()

	done := make(chan struct{})

	th.Go(func(child *Thread) {
		child.Visit()
		close(done)
	})

	<-done
	ThreadShutdown(th)
}

func TestThread_Fork_InheritsDelay(t *testing.T) {
	_, opts := testOptions(t, WithSampleOnly(true))

	if err := Start(opts...); err != nil {
		t.Fatal(err)
	}
	defer Shutdown()

	p := current.Load()
	parent := ThreadStartup()
	threads := p.engine.Threads()

	child := parent.Fork()

	if p.engine.Threads() != threads+1 {
		t.Errorf("Threads() = %d after Fork, want %d", p.engine.Threads(), threads+1)
	}
	if child.t.Local() != parent.t.Local() {
		t.Errorf("child local %v, parent %v", child.t.Local(), parent.t.Local())
	}

	child.Close()
	child.Close()
	parent.Close()

	if p.engine.Threads() != threads-1 {
		t.Errorf("Threads() = %d after Close, want %d", p.engine.Threads(), threads-1)
	}
}

func TestDefaultOptions_MatchPackages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		got, want any
	}{
		{"format", DefaultFormat, experiment.FormatText.String()},
		{"fixed_speedup", NoFixedSpeedup, experiment.NoFixedSpeedup},
		{"base_unit", DefaultBaseUnit, delay.DefaultBaseUnit},
		{"spin_threshold", DefaultSpinThreshold, delay.DefaultSpinThreshold},
		{"sample_period", DefaultSamplePeriod, sample.DefaultPeriod},
		{"warmup", DefaultWarmup, experiment.DefaultWarmup},
		{"min_duration", DefaultMinDuration, experiment.DefaultMinDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}
