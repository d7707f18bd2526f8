// Package causal is the probe API of the causal profiler.
//
// A program is profiled by starting the profiler, marking the code whose
// speedup should be studied with [Visit], and marking units of useful work
// with progress points:
//
//	func main() {
//		causal.MustStart(causal.WithOutput("profile.coz"))
//		defer causal.Shutdown()
//
//		for req := range requests {
//			causal.Go(func(t *causal.Thread) {
//				t.Visit()
//				handle(req)
//				t.Progress("requests")
//			})
//		}
//	}
//
// The profiler repeatedly picks a line that calls Visit and a speedup
// percent, and slows every other goroutine down in proportion so that the
// chosen line appears faster relative to the rest of the program. The effect
// on each progress point is written to the output as one record per
// experiment.
//
// Delay is paid by goroutines that run under a [Thread] handle, either
// started with [Go] or [Thread.Go] or registered with [ThreadStartup].
// Progress, Begin and End at package level use the thread of the goroutine
// that called [Start].
//
// Building with the nocausal tag replaces every function with a no-op.
package causal
