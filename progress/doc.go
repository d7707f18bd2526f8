// Package progress implements the registry of named progress points.
//
// A throughput point counts visits. A latency point counts arrivals and
// departures of begin/end windows and accumulates the time spent inside
// completed windows.
//
// Every counter is a single atomic word holding an experiment generation in
// its high bits and a count in its low bits. The experiment scheduler starts
// a new generation when it takes a snapshot; an increment tagged with an
// older generation is discarded rather than credited to the wrong
// experiment.
package progress
