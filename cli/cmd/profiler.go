package cmd

import (
	"time"

	"github.com/ardnew/causal/causal"
	"github.com/ardnew/causal/log"
)

// Profiler holds the causal profiler options exposed as flags.
type Profiler struct {
	Output string `default:"profile.coz" help:"Profile output path or '-' for stdout."`
	Format string `default:"text"        enum:"text,json" help:"Profile format (${enum})."`

	Scope        []string `help:"Source file patterns eligible for selection."  placeholder:"GLOB"`
	Exclude      []string `help:"Source file patterns never selected."          placeholder:"GLOB"`
	Progress     []string `help:"Declare progress points in advance."           placeholder:"NAME[:KIND]"`
	FixedLine    string   `help:"Select only this line in every experiment."   placeholder:"FILE:LINE"`
	FixedSpeedup int      `default:"-1"                                         help:"Speedup percent for every experiment (-1 draws at random)."`

	SampleOnly bool `help:"Collect samples without injecting delays."`
	EndToEnd   bool `help:"Run one experiment spanning the whole run."`
	CPUProfile bool `help:"Add samples from the Go CPU profiler."       name:"cpu-profile"`

	BaseUnit      time.Duration `default:"1us"   help:"Delay injected per visit at 100% speedup."`
	SpinThreshold time.Duration `default:"50us"  help:"Delays below this are paid by spinning."`
	SamplePeriod  time.Duration `default:"1ms"   help:"CPU time between samples."`
	Warmup        time.Duration `default:"10ms"  help:"Warmup and cool-off between experiments."`
	MinDuration   time.Duration `default:"500ms" help:"Initial experiment length."`
}

// options returns the causal options for the flag values.
func (p *Profiler) options() []causal.Option {
	return []causal.Option{
		causal.WithOutput(p.Output),
		causal.WithFormat(p.Format),
		causal.WithScope(p.Scope...),
		causal.WithExclude(p.Exclude...),
		causal.WithProgress(p.Progress...),
		causal.WithFixedLine(p.FixedLine),
		causal.WithFixedSpeedup(p.FixedSpeedup),
		causal.WithSampleOnly(p.SampleOnly),
		causal.WithEndToEnd(p.EndToEnd),
		causal.WithCPUProfile(p.CPUProfile),
		causal.WithBaseUnit(p.BaseUnit),
		causal.WithSpinThreshold(p.SpinThreshold),
		causal.WithSamplePeriod(p.SamplePeriod),
		causal.WithWarmup(p.Warmup),
		causal.WithMinDuration(p.MinDuration),
		causal.WithLogger(log.Component("causal")),
	}
}
