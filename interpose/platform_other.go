//go:build !linux && !darwin

package interpose

import "os"

// Sampling is paced by wall time and a caught signal cannot be re-raised.
var current = withSignals(&platform{
	raise: func(os.Signal) {},
	exit:  os.Exit,
})

var samplingSignal os.Signal

var catchable []os.Signal
