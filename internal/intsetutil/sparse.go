// Package intsetutil adapts golang.org/x/tools/container/intsets.Sparse
// into the small surface the block graph (C5) needs for reachability
// bookkeeping, in place of a hand-rolled
// map[int]bool — grounded on the teacher's own declared (if unexercised)
// dependency on golang.org/x/tools.
package intsetutil

import "golang.org/x/tools/container/intsets"

// Sparse is a set of non-negative integers, backed by a sparse bit vector.
type Sparse struct {
	s intsets.Sparse
}

func NewSparse() *Sparse { return &Sparse{} }

func (s *Sparse) Insert(v int) bool { return s.s.Insert(v) }
func (s *Sparse) Remove(v int) bool { return s.s.Remove(v) }
func (s *Sparse) Has(v int) bool    { return s.s.Has(v) }
func (s *Sparse) Len() int          { return s.s.Len() }

// Union merges o's members into s.
func (s *Sparse) Union(o *Sparse) { s.s.UnionWith(&o.s) }

// Clear empties the set for reuse, the "scoped mark guard" pattern spec.md
// §9 asks for: callers clear a Sparse at the end of a traversal rather
// than leaking marks across passes.
func (s *Sparse) Clear() { s.s.Clear() }

// Each calls f once per member, in ascending order.
func (s *Sparse) Each(f func(v int)) {
	var buf [64]int
	for _, v := range s.s.AppendTo(buf[:0]) {
		f(v)
	}
}
