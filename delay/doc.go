// Package delay implements delay injection for virtual speedups.
//
// While an experiment is active, every visit to an instrumented point other
// than the selected one adds a fixed amount of delay to a global counter.
// Each [Thread] tracks how much of that delay it has already paid; before a
// thread's progress is credited it calls [Engine.CatchUp], which waits out the
// difference. Since every thread except those executing the selected point
// pays the same delay, the selected point appears faster relative to the rest
// of the program.
package delay
