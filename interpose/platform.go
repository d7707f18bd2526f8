package interpose

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardnew/causal/delay"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/sample"
)

// Lifecycle is implemented by the profiler to receive goroutine and process
// lifecycle events.
type Lifecycle interface {
	// ThreadStartup registers a goroutine. A non-nil parent is forked so the
	// new goroutine inherits the delay its parent has already paid.
	ThreadStartup(parent *delay.Thread) *delay.Thread
	// ThreadShutdown deregisters a goroutine.
	ThreadShutdown(t *delay.Thread)
	// Shutdown writes the final profile. It must be safe to call more than
	// once.
	Shutdown()
}

// Platform is the set of operating system capabilities the profiler needs.
type Platform interface {
	// InstallSamplingSignal calls arm once per sampling period until ctx is
	// done. It fails, wrapping [pkg.ErrInstallSampler], if no interrupt
	// source is available.
	InstallSamplingSignal(ctx context.Context, period time.Duration, arm func()) error
	// WrapThreadEntry returns fn wrapped to run as a registered goroutine.
	WrapThreadEntry(l Lifecycle, parent *delay.Thread, fn func(*delay.Thread)) func()
	// InterceptTermination runs l.Shutdown before the process terminates on
	// an interrupt or termination signal, until stop is called.
	InterceptTermination(l Lifecycle) (stop func())
	// Exit runs l.Shutdown and terminates the process with code.
	Exit(l Lifecycle, code int)
}

// Current returns the platform of the running operating system.
func Current() Platform { return current }

// raiseGrace is how long a re-raised signal has to terminate the process
// before it exits directly.
const raiseGrace = time.Second

// platform implements [Platform] with per-OS hooks.
type platform struct {
	// cpuTime reads the process CPU time. Nil paces sampling by wall time.
	cpuTime func() (time.Duration, error)
	// raise delivers sig to the process with its default disposition.
	raise func(sig os.Signal)
	exit  func(code int)

	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
	reset  func(sig ...os.Signal)
}

func (p *platform) InstallSamplingSignal(ctx context.Context, period time.Duration, arm func()) error {
	t := sample.Ticker{Period: period, Arm: arm}

	if p.cpuTime != nil {
		last, err := p.cpuTime()
		if err != nil {
			return pkg.ErrInstallSampler.Wrap(err)
		}

		var mu sync.Mutex

		t.Clock = func() time.Duration {
			mu.Lock()
			defer mu.Unlock()

			if now, err := p.cpuTime(); err == nil && now > last {
				last = now
			}

			return last
		}
	}

	go t.Run(ctx)

	return nil
}

func (p *platform) WrapThreadEntry(l Lifecycle, parent *delay.Thread, fn func(*delay.Thread)) func() {
	return func() {
		t := l.ThreadStartup(parent)
		defer l.ThreadShutdown(t)

		defer func() {
			if r := recover(); r != nil {
				l.Shutdown()
				panic(r)
			}
		}()

		fn(t)
	}
}

func (p *platform) InterceptTermination(l Lifecycle) (stop func()) {
	c := make(chan os.Signal, 1)
	done := make(chan struct{})

	p.notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-c:
			l.Shutdown()
			p.reset(sig)
			p.raise(sig)
			time.Sleep(raiseGrace)
			p.exit(exitCode(sig))

		case <-done:
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			p.stop(c)
			close(done)
		})
	}
}

func (p *platform) Exit(l Lifecycle, code int) {
	l.Shutdown()
	p.exit(code)
}

// exitCode is the shell convention for termination by sig.
func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}

	return 1
}

// withSignals sets the signal hooks shared by every platform.
func withSignals(p *platform) *platform {
	p.notify = signal.Notify
	p.stop = signal.Stop
	p.reset = signal.Reset

	return p
}
