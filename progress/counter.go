package progress

import "sync/atomic"

const (
	countBits = 40
	genBits   = 24

	countMask = 1<<countBits - 1
	genMask   = 1<<genBits - 1
)

// Generation identifies the experiment window a counter belongs to. Only the
// low 24 bits are significant.
type Generation uint32

func (g Generation) masked() uint64 { return uint64(g) & genMask }

// Next returns the generation that follows g, wrapping at 24 bits.
func (g Generation) Next() Generation { return Generation((g.masked() + 1) & genMask) }

// counter packs a generation and a count into one atomic word.
type counter struct {
	word atomic.Uint64
}

func pack(gen Generation, count uint64) uint64 {
	return gen.masked()<<countBits | count&countMask
}

func unpack(w uint64) (Generation, uint64) {
	return Generation(w >> countBits), w & countMask
}

// add increments the count if the word carries gen. It reports false when the
// word belongs to another generation, or when the count is saturated.
func (c *counter) add(gen Generation) bool {
	for {
		old := c.word.Load()

		g, n := unpack(old)
		if g != Generation(gen.masked()) || n == countMask {
			return false
		}

		if c.word.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// swap resets the counter into gen and returns the count it held.
func (c *counter) swap(gen Generation) uint64 {
	_, n := unpack(c.word.Swap(pack(gen, 0)))

	return n
}

func (c *counter) load() (Generation, uint64) { return unpack(c.word.Load()) }
