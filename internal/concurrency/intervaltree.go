package concurrency

import (
	"math"
	"slices"
	"time"
)

// Interval is the half-open span [Start, End) of one trial in unix nanoseconds.
type Interval struct {
	Start int64
	End   int64
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UnixNano(), End: end.UnixNano()}
}

func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End - iv.Start)
}

func (iv Interval) empty() bool {
	return iv.End <= iv.Start
}

// Tree is a static interval tree: the intervals sorted by start form an
// implicit balanced search tree in which every node also keeps the largest
// end of its subtree.
type Tree struct {
	ivs    []Interval
	maxEnd []int64
}

// NewTree builds a tree over ivs. Empty intervals can never overlap a query
// and are dropped.
func NewTree(ivs []Interval) *Tree {
	kept := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.empty() {
			kept = append(kept, iv)
		}
	}
	slices.SortFunc(kept, func(a, b Interval) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		switch {
		case a.End < b.End:
			return -1
		case a.End > b.End:
			return 1
		}
		return 0
	})

	t := &Tree{ivs: kept, maxEnd: make([]int64, len(kept))}
	t.build(0, len(kept))
	return t
}

func (t *Tree) Len() int {
	return len(t.ivs)
}

func (t *Tree) build(lo, hi int) int64 {
	if lo >= hi {
		return math.MinInt64
	}
	mid := int(uint(lo+hi) >> 1)
	m := max(t.ivs[mid].End, t.build(lo, mid), t.build(mid+1, hi))
	t.maxEnd[mid] = m
	return m
}

// CountOverlap returns how many intervals overlap the half-open range [a, b).
func (t *Tree) CountOverlap(a, b int64) int {
	if b <= a {
		return 0
	}
	return t.count(0, len(t.ivs), a, b)
}

// CountAt returns how many intervals contain the instant at.
func (t *Tree) CountAt(at int64) int {
	return t.CountOverlap(at, at+1)
}

func (t *Tree) count(lo, hi int, a, b int64) int {
	if lo >= hi {
		return 0
	}
	mid := int(uint(lo+hi) >> 1)
	if t.maxEnd[mid] <= a {
		return 0
	}

	n := t.count(lo, mid, a, b)
	iv := t.ivs[mid]
	if iv.Start < b {
		if iv.End > a {
			n++
		}
		n += t.count(mid+1, hi, a, b)
	}
	return n
}
