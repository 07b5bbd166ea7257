// Package intervalmap implements the sub-range interval map (C2): a
// container over records whose domain is an ordered linear type, refined
// into disjoint sub-ranges so that every point covered by any record has
// exactly one sub-range per covering record.
//
// Used by the symbol table (C12) for address-keyed symbol lookup; the
// laned-register registry (C13) and heritage (C7) do not use it.
package intervalmap

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// piece is one disjoint sub-range plus the set of records that cover it.
type piece[K constraints.Ordered, R comparable] struct {
	first, last K
	covering    []entry[K, R]
}

type entry[K constraints.Ordered, R comparable] struct {
	rec          R
	subsort      int64
	origF, origL K
}

// Map is a sub-range interval map over domain K holding comparable records
// of type R (records are compared by value/pointer identity to find "the
// same record" again on Erase). It is not safe for concurrent use; callers
// serialize access the way every other C-series store in this engine is
// single-threaded per function (see spec §5).
type Map[K constraints.Ordered, R comparable] struct {
	pieces []*piece[K, R] // kept sorted by first, disjoint
	byRec  map[R][2]K     // record -> its inserted [first,last], for erase
}

// New constructs an empty sub-range map.
func New[K constraints.Ordered, R comparable]() *Map[K, R] {
	return &Map[K, R]{byRec: make(map[R][2]K)}
}

// Insert adds record rec covering [a,b] (inclusive), splitting any
// existing sub-ranges that straddle a or b (the "unzip" operation) and
// synthesizing fresh pieces for any part of [a,b] not already covered by
// an existing piece, so every point in [a,b] ends up in exactly one piece.
func (m *Map[K, R]) Insert(rec R, a, b K, subsort int64) {
	m.unzipAt(a)
	m.unzipAt(succOrSelf(b))
	m.byRec[rec] = [2]K{a, b}

	e := entry[K, R]{rec: rec, subsort: subsort, origF: a, origL: b}

	lo, hi := m.boundsIndex(a, b)
	cursor := a
	var fresh []*piece[K, R]
	for i := lo; i < hi; i++ {
		p := m.pieces[i]
		if cursor < p.first {
			fresh = append(fresh, &piece[K, R]{first: cursor, last: predOf(p.first), covering: []entry[K, R]{e}})
		}
		p.covering = append(p.covering, e)
		cursor = succOrSelf(p.last)
	}
	if !(b < cursor) {
		// Trailing (or, when lo==hi, entire) portion of [a,b] has no
		// existing piece: cover it with a fresh one.
		fresh = append(fresh, &piece[K, R]{first: cursor, last: b, covering: []entry[K, R]{e}})
	}
	for _, np := range fresh {
		m.insertPiece(np)
	}
}

// unzipAt ensures a sub-range boundary exists exactly at point p (splitting
// the piece that currently straddles p, if any).
func (m *Map[K, R]) unzipAt(p K) {
	idx := m.findIndex(p)
	if idx < 0 {
		return
	}
	pc := m.pieces[idx]
	if pc.first == p {
		return // boundary already exists
	}
	if p > pc.last {
		return // p is past this piece: it's a new boundary beyond all pieces, nothing to split
	}
	left := &piece[K, R]{first: pc.first, last: predOf(p), covering: cloneCovering(pc.covering)}
	right := &piece[K, R]{first: p, last: pc.last, covering: cloneCovering(pc.covering)}
	m.pieces = append(m.pieces[:idx], append([]*piece[K, R]{left, right}, m.pieces[idx+1:]...)...)
}

func cloneCovering[K constraints.Ordered, R comparable](src []entry[K, R]) []entry[K, R] {
	out := make([]entry[K, R], len(src))
	copy(out, src)
	return out
}

// findIndex returns the index of the piece containing p, or -1.
func (m *Map[K, R]) findIndex(p K) int {
	i := sort.Search(len(m.pieces), func(i int) bool { return m.pieces[i].last >= p })
	if i < len(m.pieces) && m.pieces[i].first <= p {
		return i
	}
	return -1
}

// boundsIndex returns the half-open index range [lo,hi) of pieces fully
// within [a,b] after boundaries at a and succ(b) have been unzipped.
func (m *Map[K, R]) boundsIndex(a, b K) (lo, hi int) {
	lo = sort.Search(len(m.pieces), func(i int) bool { return m.pieces[i].first >= a })
	hi = lo
	for hi < len(m.pieces) && m.pieces[hi].last <= b {
		hi++
	}
	return lo, hi
}

func (m *Map[K, R]) insertPiece(np *piece[K, R]) {
	i := sort.Search(len(m.pieces), func(i int) bool { return m.pieces[i].first >= np.first })
	m.pieces = append(m.pieces, nil)
	copy(m.pieces[i+1:], m.pieces[i:])
	m.pieces[i] = np
}

// Erase removes every sub-range contribution of rec, fusing adjacent
// pieces that end up with identical covering sets (the "zip" operation) —
// but only when no other record still requires a split at that boundary.
func (m *Map[K, R]) Erase(rec R) {
	bounds, ok := m.byRec[rec]
	if !ok {
		return
	}
	delete(m.byRec, rec)
	a, b := bounds[0], bounds[1]
	for _, p := range m.pieces {
		if p.first > b || p.last < a {
			continue
		}
		filtered := p.covering[:0:0]
		for _, e := range p.covering {
			if e.rec != rec {
				filtered = append(filtered, e)
			}
		}
		p.covering = filtered
	}
	m.dropEmptyAndZip()
}

func (m *Map[K, R]) dropEmptyAndZip() {
	kept := m.pieces[:0]
	for _, p := range m.pieces {
		if len(p.covering) > 0 {
			kept = append(kept, p)
		}
	}
	m.pieces = kept
	m.zipAdjacent()
}

// zipAdjacent fuses neighboring pieces whose covering record sets are
// identical (regardless of order) and which are contiguous in K.
func (m *Map[K, R]) zipAdjacent() {
	out := m.pieces[:0:0]
	for _, p := range m.pieces {
		if len(out) > 0 {
			last := out[len(out)-1]
			if succOrSelf(last.last) == p.first && sameCovering(last.covering, p.covering) {
				last.last = p.last
				continue
			}
		}
		out = append(out, p)
	}
	m.pieces = out
}

func sameCovering[K constraints.Ordered, R comparable](a, b []entry[K, R]) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[R]bool, len(a))
	for _, e := range a {
		seen[e.rec] = true
	}
	for _, e := range b {
		if !seen[e.rec] {
			return false
		}
	}
	return true
}

// Bound is the [Begin,End] sub-range pair returned by Find.
type Bound[K constraints.Ordered] struct {
	Begin, End K
	Found      bool
}

// Find returns the sub-range bounding point p, and every record covering
// it.
func (m *Map[K, R]) Find(p K) (Bound[K], []R) {
	idx := m.findIndex(p)
	if idx < 0 {
		return Bound[K]{}, nil
	}
	pc := m.pieces[idx]
	recs := make([]R, len(pc.covering))
	for i, e := range pc.covering {
		recs[i] = e.rec
	}
	return Bound[K]{Begin: pc.first, End: pc.last, Found: true}, recs
}

// FindOverlap returns the first record (in piece order) whose interval
// intersects [a,b], or the zero value and false if none does.
func (m *Map[K, R]) FindOverlap(a, b K) (R, bool) {
	for _, p := range m.pieces {
		if p.first > b {
			break
		}
		if p.last < a {
			continue
		}
		if len(p.covering) > 0 {
			return p.covering[0].rec, true
		}
	}
	var zero R
	return zero, false
}

// Len returns the number of disjoint sub-ranges currently stored.
func (m *Map[K, R]) Len() int { return len(m.pieces) }

// succOrSelf and predOf approximate successor/predecessor for an ordered
// domain with no generic ++/-- operator. Only int, int64, uint64 and
// uint32 keys get a true successor and predecessor; for any other Ordered
// type (other integer widths, floats, strings) both return v unchanged.
func succOrSelf[K constraints.Ordered](v K) K {
	switch x := any(v).(type) {
	case int:
		return any(x + 1).(K)
	case int64:
		return any(x + 1).(K)
	case uint64:
		return any(x + 1).(K)
	case uint32:
		return any(x + 1).(K)
	default:
		return v
	}
}

func predOf[K constraints.Ordered](v K) K {
	switch x := any(v).(type) {
	case int:
		return any(x - 1).(K)
	case int64:
		return any(x - 1).(K)
	case uint64:
		return any(x - 1).(K)
	case uint32:
		return any(x - 1).(K)
	default:
		return v
	}
}
