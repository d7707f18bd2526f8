package progress

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/causal/clock"
)

func TestRegistry_Register_FirstWins(t *testing.T) {
	r := NewRegistry(clock.NewSimulated(0))

	a := r.Register("requests", Throughput)
	b := r.Register("requests", Latency)

	if a != b {
		t.Fatal("second registration returned a different point")
	}
	if b.Kind() != Throughput {
		t.Errorf("kind = %v, want throughput", b.Kind())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Points_SortedByName(t *testing.T) {
	r := NewRegistry(nil)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(name, Throughput)
	}

	var names []string
	for _, p := range r.Points() {
		names = append(names, p.Name())
	}

	if !slices.Equal(names, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("Points() order = %v", names)
	}
}

func TestRegistry_SnapshotAndReset_SecondCallIsZero(t *testing.T) {
	c := clock.NewSimulated(0)
	r := NewRegistry(c)

	for range 7 {
		r.Increment("ops")
	}

	c.Advance(time.Second)

	first, ok := r.SnapshotAndReset("ops")
	if !ok {
		t.Fatal("SnapshotAndReset reported missing point")
	}
	if first.Count != 7 {
		t.Errorf("first count = %d, want 7", first.Count)
	}
	if first.Elapsed != time.Second {
		t.Errorf("first elapsed = %v, want 1s", first.Elapsed)
	}

	second, _ := r.SnapshotAndReset("ops")
	if second.Count != 0 {
		t.Errorf("second count = %d, want 0", second.Count)
	}
	if second.Elapsed != 0 {
		t.Errorf("second elapsed = %v, want 0", second.Elapsed)
	}

	if _, ok := r.SnapshotAndReset("missing"); ok {
		t.Error("SnapshotAndReset found an unregistered point")
	}
}

func TestRegistry_SnapshotAll_DiscardsStaleGeneration(t *testing.T) {
	r := NewRegistry(clock.NewSimulated(0))
	p := r.Register("ops", Throughput)

	old := r.Generation()
	if !p.Increment(old) {
		t.Fatal("increment in current generation was discarded")
	}

	snaps := r.SnapshotAll()
	if len(snaps) != 1 || snaps[0].Count != 1 {
		t.Fatalf("SnapshotAll() = %+v", snaps)
	}

	if p.Increment(old) {
		t.Error("increment tagged with the previous generation was counted")
	}
	if p.Stale() != 1 {
		t.Errorf("Stale() = %d, want 1", p.Stale())
	}

	if !p.Increment(r.Generation()) {
		t.Error("increment in new generation was discarded")
	}
	if p.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.Count())
	}
}

func TestRegistry_ConcurrentIncrements_NoLossNoDoubleCount(t *testing.T) {
	r := NewRegistry(nil)
	p := r.Register("ops", Throughput)

	const (
		workers = 8
		perW    = 5000
	)

	var (
		wg       sync.WaitGroup
		credited [workers]uint64
		total    uint64
		mu       sync.Mutex
	)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}

			var sum uint64
			for _, s := range r.SnapshotAll() {
				sum += s.Count
			}

			mu.Lock()
			total += sum
			mu.Unlock()
		}
	}()

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perW {
				if p.Increment(r.Generation()) {
					credited[w]++
				}
			}
		}()
	}

	wg.Wait()
	close(done)

	mu.Lock()
	defer mu.Unlock()

	for _, s := range r.SnapshotAll() {
		total += s.Count
	}

	var want uint64
	for _, n := range credited {
		want += n
	}

	if total != want {
		t.Errorf("snapshots counted %d, increments credited %d", total, want)
	}
	if want+p.Stale() != workers*perW {
		t.Errorf("credited %d + stale %d != %d", want, p.Stale(), workers*perW)
	}
}

func TestPoint_LatencyWindow_SubtractsDelay(t *testing.T) {
	c := clock.NewSimulated(0)
	r := NewRegistry(c)
	p := r.Register("request", Latency)
	gen := r.Generation()

	w := p.Begin(gen, 10*time.Millisecond, 1*time.Millisecond)
	if !p.End(gen, w, 30*time.Millisecond, 4*time.Millisecond) {
		t.Fatal("End discarded a current window")
	}

	p.Begin(gen, 31*time.Millisecond, 0)

	s, _ := r.SnapshotAndReset("request")

	if s.Arrivals != 2 || s.Departures() != 1 {
		t.Errorf("arrivals=%d departures=%d", s.Arrivals, s.Departures())
	}
	if s.Difference() != 1 {
		t.Errorf("Difference() = %d, want 1", s.Difference())
	}
	// 20ms window less 3ms of delay observed while it was open.
	if s.MeanLatency() != 17*time.Millisecond {
		t.Errorf("MeanLatency() = %v, want 17ms", s.MeanLatency())
	}
}

func TestPoint_End_ForeignWindow(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register("a", Latency)
	b := r.Register("b", Latency)

	w := a.Begin(r.Generation(), 0, 0)
	if b.End(r.Generation(), w, time.Second, 0) {
		t.Error("End accepted a window from another point")
	}
}

func TestGeneration_Next_Wraps(t *testing.T) {
	if got := Generation(genMask).Next(); got != 0 {
		t.Errorf("Next() at mask = %d, want 0", got)
	}
	if got := Generation(5).Next(); got != 6 {
		t.Errorf("Next() = %d, want 6", got)
	}
}

func TestCounter_Saturates(t *testing.T) {
	var c counter
	c.word.Store(pack(3, countMask))

	if c.add(3) {
		t.Error("add succeeded on a saturated counter")
	}
	if g, n := c.load(); g != 3 || n != countMask {
		t.Errorf("load() = %d, %d", g, n)
	}
}

func TestParseDeclaration(t *testing.T) {
	tests := []struct {
		in   string
		name string
		kind Kind
	}{
		{"requests", "requests", Throughput},
		{"requests:latency", "requests", Latency},
		{" rows : throughput ", "rows", Throughput},
		{"rows:bogus", "rows", Throughput},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, kind := ParseDeclaration(tt.in)
			if name != tt.name || kind != tt.kind {
				t.Errorf("ParseDeclaration(%q) = %q, %v", tt.in, name, kind)
			}
		})
	}
}

func BenchmarkPoint_Increment(b *testing.B) {
	r := NewRegistry(nil)
	p := r.Register("ops", Throughput)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p.Increment(r.Generation())
		}
	})
}
