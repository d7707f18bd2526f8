package experiment

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/causal/log"
	"github.com/ardnew/causal/pkg"
	"github.com/ardnew/causal/progress"
	"github.com/ardnew/causal/sample"
)

var quiet = log.Make(io.Discard)

func testRecords() []Record {
	x := Experiment{
		Sequence:  7,
		Candidate: &sample.Candidate{File: "/src/app/b.go", Line: 2},
		Speedup:   25,
	}

	return []Record{
		makeRecord(x, progress.Snapshot{Name: "requests", Count: 40}, time.Second),
		makeRecord(x, progress.Snapshot{
			Name:       "queue",
			Kind:       progress.Latency,
			Count:      3,
			Arrivals:   5,
			WindowTime: 30 * time.Millisecond,
		}, time.Second),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{" JSON ", FormatJSON, false},
		{"yaml", FormatText, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}

		if tt.wantErr && !errors.Is(err, pkg.ErrInvalidFormat) {
			t.Errorf("ParseFormat(%q) error %v is not ErrInvalidFormat", tt.in, err)
		}
	}
}

func TestReporter_Text(t *testing.T) {
	var buf bytes.Buffer

	r := NewReporter(&buf, FormatText, quiet)
	r.Startup(time.Unix(0, 1234))
	r.Experiment(testRecords())
	r.Samples([]sample.Count{{Location: "/src/app/b.go:2", Samples: 9}})
	r.Runtime(3 * time.Second)

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"# startup time=1234 version=" + pkg.Version(),
		"# " + strings.Join(Header, ","),
		"7,/src/app/b.go:2,25,1000000000,requests,40",
		"7,/src/app/b.go:2,25,1000000000,queue,3",
		"# samples location=/src/app/b.go:2 count=9",
		"# runtime time=3000000000",
		"",
	}, "\n")

	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}

	if r.Records() != 2 {
		t.Errorf("Records() = %d, want 2", r.Records())
	}
}

func TestReporter_JSON(t *testing.T) {
	var buf bytes.Buffer

	r := NewReporter(&buf, FormatJSON, quiet)
	r.Experiment(testRecords())
	r.Runtime(time.Second)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}

	var rec Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}

	if rec.Point != "queue" || rec.Kind != "latency" || rec.Arrivals != 5 ||
		rec.Departures != 3 || rec.Difference != 2 ||
		rec.MeanLatency != int64(10*time.Millisecond) {
		t.Errorf("latency record = %+v", rec)
	}

	if !strings.Contains(lines[0], `"selected":"/src/app/b.go:2"`) ||
		strings.Contains(lines[0], "arrivals") {
		t.Errorf("throughput record = %s", lines[0])
	}

	if lines[2] != `{"type":"runtime","runtime_ns":1000000000}` {
		t.Errorf("runtime line = %s", lines[2])
	}
}

// failWriter fails every write after the first n bytes.
type failWriter struct {
	n      int
	writes int
}

func (w *failWriter) Write(p []byte) (int, error) {
	w.writes++

	if len(p) > w.n {
		n := w.n
		w.n = 0

		return n, errors.New("disk full")
	}

	w.n -= len(p)

	return len(p), nil
}

func TestReporter_DegradesOnWriteFailure(t *testing.T) {
	var logs bytes.Buffer

	w := &failWriter{n: 10}
	r := NewReporter(w, FormatText, log.Make(&logs))

	r.Experiment(testRecords())

	if !r.Degraded() {
		t.Fatal("reporter not degraded after write failure")
	}

	writes := w.writes

	r.Experiment(testRecords())
	r.Runtime(time.Second)

	if w.writes != writes {
		t.Errorf("degraded reporter wrote %d more times", w.writes-writes)
	}

	if n := strings.Count(logs.String(), "profile output failed"); n != 1 {
		t.Errorf("failure logged %d times, want 1:\n%s", n, logs.String())
	}
}

func TestOpenReporter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.coz")

	for range 2 {
		r, err := OpenReporter(path, FormatText, quiet)
		if err != nil {
			t.Fatal(err)
		}

		r.Runtime(time.Second)

		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if n := strings.Count(string(b), "# runtime"); n != 2 {
		t.Errorf("file holds %d runtime lines, want 2", n)
	}
}

func TestOpenReporter_Error(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "profile.coz")

	if _, err := OpenReporter(path, FormatText, quiet); !errors.Is(err, pkg.ErrOpenOutput) {
		t.Errorf("OpenReporter() error = %v", err)
	}
}

func TestMinDelta(t *testing.T) {
	if _, ok := minDelta(nil); ok {
		t.Error("minDelta(nil) reported a value")
	}

	snaps := []progress.Snapshot{
		{Name: "a", Count: 9},
		{Name: "b", Kind: progress.Latency, Count: 6, Arrivals: 4},
	}

	if d, ok := minDelta(snaps); !ok || d != 4 {
		t.Errorf("minDelta() = %d, %v, want 4", d, ok)
	}
}
