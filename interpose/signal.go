package interpose

import (
	"os"
	"os/signal"
	"slices"
)

// Notify is [signal.Notify] without the sampling signal. With no signals,
// every catchable signal except the sampling signal is relayed.
func Notify(c chan<- os.Signal, sig ...os.Signal) {
	if sig, ok := strip(sig); ok {
		signal.Notify(c, sig...)
	}
}

// Ignore is [signal.Ignore] without the sampling signal.
func Ignore(sig ...os.Signal) {
	if sig, ok := strip(sig); ok {
		signal.Ignore(sig...)
	}
}

// Reset is [signal.Reset] without the sampling signal.
func Reset(sig ...os.Signal) {
	if sig, ok := strip(sig); ok {
		signal.Reset(sig...)
	}
}

// strip removes the sampling signal from sig. An empty list stands for every
// catchable signal. It reports false if nothing is left.
func strip(sig []os.Signal) ([]os.Signal, bool) {
	switch {
	case samplingSignal == nil:
		return sig, true
	case len(sig) == 0:
		return catchable, true
	}

	sig = slices.DeleteFunc(slices.Clone(sig), func(s os.Signal) bool {
		return s == samplingSignal
	})

	return sig, len(sig) > 0
}
