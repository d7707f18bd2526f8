package sample

import "iter"

// Interval is a half-open range of program counters [Lo, Hi).
type Interval struct {
	Lo, Hi uintptr
}

// Contains reports whether pc lies in the interval.
func (i Interval) Contains(pc uintptr) bool { return i.Lo <= pc && pc < i.Hi }

// nilNode marks an absent child.
const nilNode int32 = -1

type treeNode[V any] struct {
	Interval
	val         V
	prio        uint64
	left, right int32
}

// Tree maps disjoint program counter intervals to values.
//
// Nodes live in a single arena slice and refer to their children by index.
// The tree is a treap whose priorities are a hash of each interval's start,
// so its shape depends only on the set of intervals inserted. A Tree is not
// safe for concurrent use.
type Tree[V any] struct {
	nodes []treeNode[V]
	root  int32
}

// NewTree returns an empty tree.
func NewTree[V any]() *Tree[V] {
	return &Tree[V]{root: nilNode}
}

// Len returns the number of intervals in the tree.
func (t *Tree[V]) Len() int { return len(t.nodes) }

// Find returns the interval containing pc and its value.
func (t *Tree[V]) Find(pc uintptr) (Interval, V, bool) {
	if n := t.floor(pc); n != nilNode && t.nodes[n].Contains(pc) {
		return t.nodes[n].Interval, t.nodes[n].val, true
	}

	var zero V

	return Interval{}, zero, false
}

// Insert adds [lo, hi) with value v. It reports false, leaving the tree
// unchanged, if the interval is empty or overlaps an existing one.
func (t *Tree[V]) Insert(lo, hi uintptr, v V) bool {
	if hi <= lo {
		return false
	}

	if n := t.floor(lo); n != nilNode && t.nodes[n].Hi > lo {
		return false
	}

	if n := t.ceiling(lo); n != nilNode && t.nodes[n].Lo < hi {
		return false
	}

	t.add(lo, hi, v)

	return true
}

// Carve adds an interval starting at lo with value v, splitting or
// shortening its neighbors so intervals stay disjoint:
//
//   - if lo falls inside an existing interval [a, b), that interval becomes
//     [a, lo) and the new interval is [lo, b);
//   - otherwise the new interval extends span bytes from lo, stopping at the
//     start of the next interval.
//
// It reports false if an interval already starts at lo.
func (t *Tree[V]) Carve(lo, span uintptr, v V) bool {
	if span == 0 {
		return false
	}

	hi := lo + span
	if hi < lo {
		hi = ^uintptr(0)
	}

	if n := t.floor(lo); n != nilNode {
		switch {
		case t.nodes[n].Lo == lo:
			return false
		case t.nodes[n].Hi > lo:
			hi = t.nodes[n].Hi
			t.nodes[n].Hi = lo
			t.add(lo, hi, v)

			return true
		}
	}

	if n := t.ceiling(lo); n != nilNode && t.nodes[n].Lo < hi {
		hi = t.nodes[n].Lo
	}

	t.add(lo, hi, v)

	return true
}

// All iterates over the intervals in ascending order.
func (t *Tree[V]) All() iter.Seq2[Interval, V] {
	return func(yield func(Interval, V) bool) {
		t.walk(t.root, yield)
	}
}

func (t *Tree[V]) walk(n int32, yield func(Interval, V) bool) bool {
	if n == nilNode {
		return true
	}

	node := &t.nodes[n]

	return t.walk(node.left, yield) &&
		yield(node.Interval, node.val) &&
		t.walk(node.right, yield)
}

// floor returns the node with the greatest Lo not above pc.
func (t *Tree[V]) floor(pc uintptr) int32 {
	best := nilNode

	for n := t.root; n != nilNode; {
		if t.nodes[n].Lo <= pc {
			best, n = n, t.nodes[n].right
		} else {
			n = t.nodes[n].left
		}
	}

	return best
}

// ceiling returns the node with the least Lo above pc.
func (t *Tree[V]) ceiling(pc uintptr) int32 {
	best := nilNode

	for n := t.root; n != nilNode; {
		if t.nodes[n].Lo > pc {
			best, n = n, t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}

	return best
}

func (t *Tree[V]) add(lo, hi uintptr, v V) {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, treeNode[V]{
		Interval: Interval{Lo: lo, Hi: hi},
		val:      v,
		prio:     mix(uint64(lo)),
		left:     nilNode,
		right:    nilNode,
	})
	t.root = t.insert(t.root, idx)
}

func (t *Tree[V]) insert(n, idx int32) int32 {
	if n == nilNode {
		return idx
	}

	if t.nodes[idx].Lo < t.nodes[n].Lo {
		t.nodes[n].left = t.insert(t.nodes[n].left, idx)
		if t.nodes[t.nodes[n].left].prio > t.nodes[n].prio {
			n = t.rotateRight(n)
		}
	} else {
		t.nodes[n].right = t.insert(t.nodes[n].right, idx)
		if t.nodes[t.nodes[n].right].prio > t.nodes[n].prio {
			n = t.rotateLeft(n)
		}
	}

	return n
}

func (t *Tree[V]) rotateRight(n int32) int32 {
	l := t.nodes[n].left
	t.nodes[n].left = t.nodes[l].right
	t.nodes[l].right = n

	return l
}

func (t *Tree[V]) rotateLeft(n int32) int32 {
	r := t.nodes[n].right
	t.nodes[n].right = t.nodes[r].left
	t.nodes[r].left = n

	return r
}

// depth returns the height of the tree.
func (t *Tree[V]) depth(n int32) int {
	if n == nilNode {
		return 0
	}

	return 1 + max(t.depth(t.nodes[n].left), t.depth(t.nodes[n].right))
}

// mix is the SplitMix64 finalizer.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31

	return x
}
