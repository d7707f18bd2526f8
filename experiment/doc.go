// Package experiment drives the sequence of causal profiling experiments.
//
// A [Scheduler] repeatedly selects a candidate line and a virtual speedup,
// lets the program settle, measures progress for a minimum duration and
// reports one [Record] per progress point:
//
//	Idle → Warmup → Measuring → Reporting → Idle
//
// On shutdown the experiment in flight is reported with its partial window
// and the scheduler moves to Finished.
package experiment
