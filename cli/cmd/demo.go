package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/causal/causal"
	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/metrics"
)

// demoPoint is the progress point visited once per round.
const demoPoint = "round"

// visitStride is the number of loop iterations between visits.
const visitStride = 1024

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Demo profiles a toy workload of two unequal loops that run concurrently
// and join before each round's progress point. Only the longer loop limits
// throughput, so only its lines should show an impact.
type Demo struct {
	Profiler Profiler `embed:"" group:"profiler" prefix:"profile-"`

	Rounds      int           `default:"0"       help:"Rounds to run (0 runs until the duration elapses)."`
	Duration    time.Duration `default:"30s"     help:"Stop after this long (0 runs until interrupted)."`
	Work        int           `default:"4000000" help:"Iterations of the longer loop per round."`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address." placeholder:"HOST:PORT"`

	// served receives the metrics listener address once it is bound.
	served chan<- net.Addr `kong:"-"`
}

// Run executes the demo command.
func (d *Demo) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if d.Duration > 0 {
		var stop context.CancelFunc

		ctx, stop = context.WithTimeout(ctx, d.Duration)
		defer stop()
	}

	err = causal.Start(d.Profiler.options()...)
	if err != nil {
		return ErrStartProfile.Wrap(err)
	}
	defer causal.Shutdown()

	work, done := context.WithCancel(ctx)
	defer done()

	group, gctx := errgroup.WithContext(work)

	if d.MetricsAddr != "" {
		ln, err := net.Listen("tcp", d.MetricsAddr)
		if err != nil {
			return ErrServeMetrics.
				With(slog.String("addr", d.MetricsAddr)).
				Wrap(err)
		}

		srv := &http.Server{
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: shutdownTimeout,
		}

		if d.served != nil {
			d.served <- ln.Addr()
		}

		log.InfoContext(ctx, "serving metrics",
			slog.String("addr", ln.Addr().String()))

		group.Go(func() error {
			err := srv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return ErrServeMetrics.Wrap(err)
		})

		group.Go(func() error {
			<-gctx.Done()

			sctx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer stop()

			return srv.Shutdown(sctx)
		})
	}

	var rounds, checksum atomic.Int64

	group.Go(func() error {
		defer done()

		return d.workload(gctx, &rounds, &checksum)
	})

	err = group.Wait()

	log.InfoContext(ctx, "demo finished",
		slog.Int64("rounds", rounds.Load()),
		slog.Int64("checksum", checksum.Load()),
		slog.String("profile", d.Profiler.Output),
	)

	return err
}

// workload runs rounds until ctx is done or the round limit is reached.
// Cancellation ends the round in flight and is not an error.
func (d *Demo) workload(
	ctx context.Context,
	rounds *atomic.Int64,
	checksum *atomic.Int64,
) error {
	t := causal.ThreadStartup()
	defer t.Close()

	for d.Rounds <= 0 || rounds.Load() < int64(d.Rounds) {
		round, rctx := errgroup.WithContext(ctx)

		a, b := t.Fork(), t.Fork()

		round.Go(func() error {
			defer a.Close()

			sum, err := loopA(rctx, a, d.Work)
			checksum.Add(int64(sum))

			return err
		})

		round.Go(func() error {
			defer b.Close()

			sum, err := loopB(rctx, b, d.Work/2)
			checksum.Add(int64(sum))

			return err
		})

		err := round.Wait()
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			return err
		}

		t.Progress(demoPoint)
		rounds.Add(1)
	}

	return nil
}

// loopA sums the first n integers, stopping early if ctx is done.
//
//go:noinline
func loopA(ctx context.Context, t *causal.Thread, n int) (sum int, err error) {
	for i := range n {
		sum += i

		if i%visitStride == 0 {
			t.Visit()

			if err = ctx.Err(); err != nil {
				return sum, err
			}
		}
	}

	return sum, nil
}

// loopB folds the first n integers with xor, stopping early if ctx is done.
//
//go:noinline
func loopB(ctx context.Context, t *causal.Thread, n int) (sum int, err error) {
	for i := range n {
		sum ^= i

		if i%visitStride == 0 {
			t.Visit()

			if err = ctx.Err(); err != nil {
				return sum, err
			}
		}
	}

	return sum, nil
}
