package experiment

import (
	"time"

	"github.com/ardnew/causal/sample"
)

// State is the scheduler's position in the experiment cycle.
type State int32

const (
	Idle State = iota
	Warmup
	Measuring
	Reporting
	Finished
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Warmup:
		return "warmup"
	case Measuring:
		return "measuring"
	case Reporting:
		return "reporting"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Experiment is one measurement of a virtual speedup.
type Experiment struct {
	Sequence uint64
	// Candidate is the line sped up, or nil for a baseline.
	Candidate *sample.Candidate
	Speedup   int
	// Start is the clock reading when measurement began.
	Start time.Duration
	// MinDuration is the planned measurement length.
	MinDuration time.Duration
}

// Selected returns the selected line as file:line, or "none".
func (x Experiment) Selected() string { return x.Candidate.Location() }

// PCs returns the program counters exempt from delay.
func (x Experiment) PCs() []uintptr {
	if x.Candidate == nil {
		return nil
	}

	return x.Candidate.PCs
}
