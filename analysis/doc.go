// Package analysis reads causal profiles and estimates the impact of each
// profiled line on each progress point.
//
// For every line and speedup percent, the period of a progress point (time
// per unit of progress, with injected delay removed) is compared against its
// period in baseline experiments at zero speedup. The relative reduction is
// the program speedup that a real speedup of the line would produce. The
// slope of program speedup against line speedup ranks lines by impact.
//
// Profiles from several runs may be concatenated; text and JSON formats are
// detected per line.
package analysis
