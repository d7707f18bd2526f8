package experiment

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/metrics"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
	"github.com/ardnew/causal/sample"
)

// Format is a profile output format.
type Format int

const (
	FormatText Format = iota // text
	FormatJSON               // json
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "Format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Formats returns the names of all formats.
func Formats() []string {
	return []string{FormatText.String(), FormatJSON.String()}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, pkg.ErrInvalidFormat.Wrapf(
			"%q (valid: %s)", s, strings.Join(Formats(), ", "))
	}
}

// Header names the fields of a text record.
var Header = []string{
	"experiment_id",
	"selected_point",
	"speedup_percent",
	"duration_ns",
	"progress_point_name",
	"delta_count",
}

// Record is the measurement of one progress point in one experiment.
type Record struct {
	Type       string `json:"type"`
	Experiment uint64 `json:"experiment"`
	Selected   string `json:"selected"`
	Speedup    int    `json:"speedup"`
	// Duration is the measured time less the delay injected.
	Duration int64  `json:"duration_ns"`
	Point    string `json:"point"`
	Kind     string `json:"kind"`
	// Delta is the number of throughput visits or completed latency windows.
	Delta uint64 `json:"delta"`

	Arrivals    uint64 `json:"arrivals,omitempty"`
	Departures  uint64 `json:"departures,omitempty"`
	Difference  int64  `json:"difference,omitempty"`
	MeanLatency int64  `json:"mean_latency_ns,omitempty"`

	SelectedSamples uint64 `json:"selected_samples"`
	Delay           int64  `json:"delay_ns"`
	DelayedVisits   uint64 `json:"delayed_visits"`
}

// makeRecord builds the record of snapshot s taken at the end of x.
func makeRecord(x Experiment, s progress.Snapshot, duration time.Duration) Record {
	r := Record{
		Type:       "experiment",
		Experiment: x.Sequence,
		Selected:   x.Selected(),
		Speedup:    x.Speedup,
		Duration:   int64(duration),
		Point:      s.Name,
		Kind:       s.Kind.String(),
		Delta:      s.Count,
	}

	if s.Kind == progress.Latency {
		r.Arrivals = s.Arrivals
		r.Departures = s.Departures()
		r.Difference = s.Difference()
		r.MeanLatency = int64(s.MeanLatency())
	}

	return r
}

type sampleLine struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Count    uint64 `json:"count"`
}

type runtimeLine struct {
	Type    string `json:"type"`
	Runtime int64  `json:"runtime_ns"`
}

type startupLine struct {
	Type    string `json:"type"`
	Time    int64  `json:"time_unix_ns"`
	Version string `json:"version"`
}

// json encodes report lines the way encoding/json would.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes experiment records.
//
// A write failure is logged once, after which all output is discarded.
// Profiling continues either way. Reporter is safe for concurrent use.
type Reporter struct {
	mu      sync.Mutex
	format  Format
	buf     *bufio.Writer
	csv     *csv.Writer
	enc     *jsoniter.Encoder
	closer  io.Closer
	log     log.Logger
	failed  bool
	records uint64
}

// NewReporter returns a reporter writing format to w. If w is also an
// [io.Closer], Close closes it.
func NewReporter(w io.Writer, format Format, l log.Logger) *Reporter {
	r := &Reporter{format: format, log: l}
	r.reset(w)

	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		r.closer = c
	}

	return r
}

// OpenReporter opens path for appending, creating it if needed. The path "-"
// selects standard output. Failure to open is fatal for profiling and
// returned wrapped in [pkg.ErrOpenOutput].
func OpenReporter(path string, format Format, l log.Logger) (*Reporter, error) {
	if path == "-" {
		return NewReporter(os.Stdout, format, l), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, pkg.ErrOpenOutput.Wrap(err)
	}

	return NewReporter(f, format, l), nil
}

func (r *Reporter) reset(w io.Writer) {
	r.buf = bufio.NewWriter(w)
	r.csv = csv.NewWriter(r.buf)
	r.enc = json.NewEncoder(r.buf)
}

// Degraded reports whether output is being discarded after a write failure.
func (r *Reporter) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failed
}

// Records returns the number of experiment records written.
func (r *Reporter) Records() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.records
}

// Startup writes the profile header.
func (r *Reporter) Startup(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.format {
	case FormatJSON:
		r.encode(startupLine{Type: "startup", Time: t.UnixNano(), Version: pkg.Version()})
	default:
		r.comment(fmt.Sprintf("startup time=%d version=%s", t.UnixNano(), pkg.Version()))
		r.comment(strings.Join(Header, ","))
	}

	r.flush()
}

// Experiment writes the records of one experiment and flushes them.
func (r *Reporter) Experiment(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		switch r.format {
		case FormatJSON:
			r.encode(rec)
		default:
			r.write([]string{
				strconv.FormatUint(rec.Experiment, 10),
				rec.Selected,
				strconv.Itoa(rec.Speedup),
				strconv.FormatInt(rec.Duration, 10),
				rec.Point,
				strconv.FormatUint(rec.Delta, 10),
			})
		}

		r.records++
	}

	r.flush()
}

// Samples writes the sample count of each line.
func (r *Reporter) Samples(counts []sample.Count) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range counts {
		switch r.format {
		case FormatJSON:
			r.encode(sampleLine{Type: "samples", Location: c.Location, Count: c.Samples})
		default:
			r.comment(fmt.Sprintf("samples location=%s count=%d", c.Location, c.Samples))
		}
	}

	r.flush()
}

// Runtime writes the total profiled runtime.
func (r *Reporter) Runtime(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.format {
	case FormatJSON:
		r.encode(runtimeLine{Type: "runtime", Runtime: int64(d)})
	default:
		r.comment(fmt.Sprintf("runtime time=%d", int64(d)))
	}

	r.flush()
}

// Close flushes buffered output and closes the destination.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flush()

	if r.closer == nil {
		return nil
	}

	c := r.closer
	r.closer = nil

	return c.Close()
}

func (r *Reporter) write(fields []string) {
	if err := r.csv.Write(fields); err != nil {
		r.fail(err)
	}
}

func (r *Reporter) comment(s string) {
	r.csv.Flush()

	if _, err := r.buf.WriteString("# " + s + "\n"); err != nil {
		r.fail(err)
	}
}

func (r *Reporter) encode(v any) {
	if err := r.enc.Encode(v); err != nil {
		r.fail(err)
	}
}

func (r *Reporter) flush() {
	r.csv.Flush()

	if err := r.csv.Error(); err != nil {
		r.fail(err)

		return
	}

	if err := r.buf.Flush(); err != nil {
		r.fail(err)
	}
}

// fail switches the reporter to discarding output.
func (r *Reporter) fail(err error) {
	if r.failed {
		return
	}

	r.failed = true
	r.reset(io.Discard)

	metrics.ReportErrors.Inc()
	r.log.Warn("profile output failed; discarding further records",
		slog.Any("error", err))
}

// minDelta returns the smallest progress delta among the snapshots, counting
// both arrivals and departures of latency points.
func minDelta(snaps []progress.Snapshot) (uint64, bool) {
	if len(snaps) == 0 {
		return 0, false
	}

	deltas := make([]uint64, 0, 2*len(snaps))

	for _, s := range snaps {
		deltas = append(deltas, s.Count)
		if s.Kind == progress.Latency {
			deltas = append(deltas, s.Arrivals)
		}
	}

	return slices.Min(deltas), true
}
