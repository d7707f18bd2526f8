//go:build linux

package interpose

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var current = withSignals(&platform{
	cpuTime: processCPUTime,
	raise:   raise,
	exit:    unix.Exit,
})

// samplingSignal drives the Go runtime's CPU profiler.
var samplingSignal os.Signal = unix.SIGPROF

// catchable lists the signals affected by a wrapper called with none.
var catchable = []os.Signal{
	unix.SIGHUP, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM, unix.SIGUSR1,
	unix.SIGUSR2, unix.SIGPIPE, unix.SIGALRM, unix.SIGCHLD, unix.SIGCONT,
	unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU, unix.SIGURG, unix.SIGXCPU,
	unix.SIGXFSZ, unix.SIGVTALRM, unix.SIGWINCH, unix.SIGIO, unix.SIGPWR,
}

func processCPUTime() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_PROCESS_CPUTIME_ID, &ts); err != nil {
		return 0, err
	}

	return time.Duration(unix.TimespecToNsec(ts)), nil
}

func raise(sig os.Signal) {
	if s, ok := sig.(syscall.Signal); ok {
		_ = unix.Kill(unix.Getpid(), s)
	}
}
