package sample

import (
	"iter"
	"math/bits"
	"sync/atomic"
)

// DefaultTableSize is the default capacity of a [Table].
const DefaultTableSize = 1 << 14

// maxProbe bounds the linear probe sequence of a [Table] lookup.
const maxProbe = 32

// Table is a fixed-capacity open-addressing hash table from program counter
// to vote count. Keys are claimed with compare-and-swap and never removed.
// All methods are safe for concurrent use, never allocate, and never block.
type Table struct {
	keys    []atomic.Uintptr
	votes   []atomic.Uint64
	shift   uint
	mask    uint64
	dropped atomic.Uint64
}

// NewTable returns a table with capacity rounded up to a power of two.
func NewTable(capacity int) *Table {
	if capacity < maxProbe {
		capacity = maxProbe
	}

	n := bits.Len(uint(capacity - 1))
	size := 1 << n

	return &Table{
		keys:  make([]atomic.Uintptr, size),
		votes: make([]atomic.Uint64, size),
		shift: uint(64 - n),
		mask:  uint64(size - 1),
	}
}

// Cap returns the number of slots in the table.
func (t *Table) Cap() int { return len(t.keys) }

// hash is Fibonacci hashing; program counters share low-order alignment, so
// the high bits of the product are used.
func (t *Table) hash(pc uintptr) uint64 {
	return (uint64(pc) * 0x9e3779b97f4a7c15) >> t.shift
}

// slot returns the index holding pc, claiming an empty slot if pc is absent.
func (t *Table) slot(pc uintptr) (int, bool) {
	if pc == 0 {
		return 0, false
	}

	h := t.hash(pc)

	for i := range uint64(maxProbe) {
		idx := (h + i) & t.mask

		switch k := t.keys[idx].Load(); k {
		case pc:
			return int(idx), true
		case 0:
			if t.keys[idx].CompareAndSwap(0, pc) || t.keys[idx].Load() == pc {
				return int(idx), true
			}
		}
	}

	t.dropped.Add(1)

	return 0, false
}

// Touch records that pc has been visited without voting for it.
func (t *Table) Touch(pc uintptr) bool {
	_, ok := t.slot(pc)

	return ok
}

// Vote adds one vote for pc.
func (t *Table) Vote(pc uintptr) bool { return t.VoteN(pc, 1) }

// VoteN adds n votes for pc.
func (t *Table) VoteN(pc uintptr, n uint64) bool {
	idx, ok := t.slot(pc)
	if ok {
		t.votes[idx].Add(n)
	}

	return ok
}

// observe records a visit to pc, voting for it if vote is set.
func (t *Table) observe(pc uintptr, vote bool) bool {
	idx, ok := t.slot(pc)
	if ok && vote {
		t.votes[idx].Add(1)
	}

	return ok
}

// Votes returns the votes recorded for pc.
func (t *Table) Votes(pc uintptr) uint64 {
	if pc == 0 {
		return 0
	}

	h := t.hash(pc)

	for i := range uint64(maxProbe) {
		idx := (h + i) & t.mask

		switch t.keys[idx].Load() {
		case pc:
			return t.votes[idx].Load()
		case 0:
			return 0
		}
	}

	return 0
}

// Dropped returns the number of program counters that found no free slot.
func (t *Table) Dropped() uint64 { return t.dropped.Load() }

// All iterates over every recorded program counter and its votes, in slot
// order. Entries added during iteration may or may not be seen.
func (t *Table) All() iter.Seq2[uintptr, uint64] {
	return func(yield func(uintptr, uint64) bool) {
		for i := range t.keys {
			pc := t.keys[i].Load()
			if pc == 0 {
				continue
			}

			if !yield(pc, t.votes[i].Load()) {
				return
			}
		}
	}
}

// Len returns the number of recorded program counters.
func (t *Table) Len() int {
	n := 0
	for range t.All() {
		n++
	}

	return n
}
