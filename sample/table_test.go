package sample

import (
	"sync"
	"testing"
)

func TestTable_TouchAndVote(t *testing.T) {
	tb := NewTable(64)

	if tb.Cap() != 64 {
		t.Fatalf("Cap() = %d, want 64", tb.Cap())
	}

	tb.Touch(0x10)
	tb.Vote(0x20)
	tb.VoteN(0x20, 4)

	if got := tb.Votes(0x10); got != 0 {
		t.Errorf("Votes(0x10) = %d, want 0", got)
	}
	if got := tb.Votes(0x20); got != 5 {
		t.Errorf("Votes(0x20) = %d, want 5", got)
	}
	if got := tb.Votes(0x30); got != 0 {
		t.Errorf("Votes(absent) = %d, want 0", got)
	}
	if tb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tb.Len())
	}
	if tb.Touch(0) {
		t.Error("Touch(0) succeeded")
	}
}

func TestTable_Full_DropsExcess(t *testing.T) {
	tb := NewTable(1)

	for pc := uintptr(1); pc <= 40; pc++ {
		tb.Touch(pc * 16)
	}

	if tb.Len() != tb.Cap() {
		t.Errorf("Len() = %d, want %d", tb.Len(), tb.Cap())
	}
	if tb.Dropped() != uint64(40-tb.Cap()) {
		t.Errorf("Dropped() = %d, want %d", tb.Dropped(), 40-tb.Cap())
	}
}

func TestTable_ConcurrentVotes(t *testing.T) {
	tb := NewTable(DefaultTableSize)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 1000 {
				tb.Vote(uintptr(0x1000 + 8*(i%10)))
			}
		}()
	}

	wg.Wait()

	var total uint64

	for pc, votes := range tb.All() {
		if votes != 800 {
			t.Errorf("pc %#x has %d votes, want 800", pc, votes)
		}

		total += votes
	}

	if tb.Len() != 10 || total != 8000 {
		t.Errorf("Len() = %d, total = %d", tb.Len(), total)
	}
}

func TestCollector_VisitConsumesOneSample(t *testing.T) {
	c := NewCollector(nil)

	c.Visit(0x10)
	if c.Samples() != 0 {
		t.Fatal("unarmed visit was sampled")
	}

	c.Arm()
	c.Arm()
	c.Visit(0x20)
	c.Visit(0x30)

	if c.Samples() != 1 {
		t.Errorf("Samples() = %d, want 1", c.Samples())
	}
	if c.Armed() != 2 {
		t.Errorf("Armed() = %d, want 2", c.Armed())
	}
	if c.Table().Votes(0x20) != 1 || c.Table().Votes(0x30) != 0 {
		t.Error("sample credited to the wrong visit")
	}
	if c.Table().Len() != 3 {
		t.Errorf("discovered %d sites, want 3", c.Table().Len())
	}
}

func BenchmarkCollector_Visit(b *testing.B) {
	c := NewCollector(nil)

	b.RunParallel(func(pb *testing.PB) {
		pc := uintptr(0x4000)
		for pb.Next() {
			c.Visit(pc)
			pc = 0x4000 + (pc+8)%512
		}
	})
}
