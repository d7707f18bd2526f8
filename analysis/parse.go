package analysis

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ardnew/causal/experiment"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLine bounds the length of a profile line.
const maxLine = 1 << 20

// Profile is the content of one or more profile runs.
type Profile struct {
	Records []experiment.Record
	// Samples is the sample count of each line, summed over summaries.
	// Summaries are cumulative within a run, so only the last of each run is
	// counted.
	Samples map[string]uint64
	Runtime time.Duration
	Runs    int

	runSamples map[string]uint64
	open       bool
}

// Parse reads a profile in either output format.
func Parse(r io.Reader) (*Profile, error) {
	p := &Profile{
		Samples:    make(map[string]uint64),
		runSamples: make(map[string]uint64),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var err error

		p.open = true

		switch {
		case strings.HasPrefix(line, "{"):
			err = p.parseJSON(line)
		case strings.HasPrefix(line, "#"):
			err = p.parseComment(strings.TrimSpace(line[1:]))
		default:
			err = p.parseRecord(line)
		}

		if err != nil {
			return nil, pkg.ErrParseProfile.Wrapf("line %d: %w", n, err)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, pkg.ErrParseProfile.Wrap(err)
	}

	p.endRun()

	return p, nil
}

// jsonLine is the union of every JSON line type.
type jsonLine struct {
	experiment.Record

	Location string `json:"location"`
	Count    uint64 `json:"count"`
	Runtime  int64  `json:"runtime_ns"`
}

func (p *Profile) parseJSON(line string) error {
	var l jsonLine
	if err := json.UnmarshalFromString(line, &l); err != nil {
		return err
	}

	switch l.Type {
	case "experiment":
		if l.Kind == "" {
			l.Kind = progress.Throughput.String()
		}

		p.Records = append(p.Records, l.Record)
	case "samples":
		p.runSamples[l.Location] = l.Count
	case "runtime":
		p.Runtime += time.Duration(l.Runtime)
		p.endRun()
	}

	return nil
}

func (p *Profile) parseComment(line string) error {
	kind, rest, _ := strings.Cut(line, " ")
	fields := keyValues(rest)

	switch kind {
	case "samples":
		count, err := strconv.ParseUint(fields["count"], 10, 64)
		if err != nil {
			return err
		}

		p.runSamples[fields["location"]] = count
	case "runtime":
		ns, err := strconv.ParseInt(fields["time"], 10, 64)
		if err != nil {
			return err
		}

		p.Runtime += time.Duration(ns)
		p.endRun()
	}

	return nil
}

func (p *Profile) parseRecord(line string) error {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = len(experiment.Header)

	f, err := r.Read()
	if err != nil {
		return err
	}

	rec := experiment.Record{
		Type:     "experiment",
		Selected: f[1],
		Point:    f[4],
		Kind:     progress.Throughput.String(),
	}

	if rec.Experiment, err = strconv.ParseUint(f[0], 10, 64); err != nil {
		return err
	}

	if rec.Speedup, err = strconv.Atoi(f[2]); err != nil {
		return err
	}

	if rec.Duration, err = strconv.ParseInt(f[3], 10, 64); err != nil {
		return err
	}

	if rec.Delta, err = strconv.ParseUint(f[5], 10, 64); err != nil {
		return err
	}

	p.Records = append(p.Records, rec)

	return nil
}

// endRun folds the latest sample summary of a run into the totals.
func (p *Profile) endRun() {
	if !p.open {
		return
	}

	for loc, n := range p.runSamples {
		p.Samples[loc] += n
	}

	clear(p.runSamples)
	p.Runs++
	p.open = false
}

// keyValues parses space-separated key=value pairs.
func keyValues(s string) map[string]string {
	kv := make(map[string]string)

	for _, f := range strings.Fields(s) {
		if k, v, ok := strings.Cut(f, "="); ok {
			kv[k] = v
		}
	}

	return kv
}
