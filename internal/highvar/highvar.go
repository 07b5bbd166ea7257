package highvar

import "github.com/decompile/core/internal/varnode"

// HighVariable is an ordered set of value cells that must share a single
// storage name in printed output (spec.md §3).
type HighVariable struct {
	id       uint64
	Cells    []*varnode.Varnode
	DataType interface{}
	Symbol   interface{}
	Cover    *Cover
	Mark     bool
	Piece    *HighVariable // links to a composite whole, if this is a piece of one
}

func (h *HighVariable) ID() uint64 { return h.id }

// Index owns every HighVariable for a function from setHighLevel() onward
// (spec.md §4.8), plus the cover-intersection cache.
type Index struct {
	nextID  uint64
	highs   []*HighVariable
	byCell  map[*varnode.Varnode]*HighVariable
	cache   map[pairKey]bool
	started bool
}

func NewIndex() *Index {
	return &Index{byCell: make(map[*varnode.Varnode]*HighVariable), cache: make(map[pairKey]bool)}
}

// SetHighLevel marks the index as started (see Started). It records no
// creation index and assigns no HighVariables itself; Assign creates one
// per cell on demand (spec.md §4.8).
func (ix *Index) SetHighLevel() { ix.started = true }

// Started reports whether SetHighLevel has run.
func (ix *Index) Started() bool { return ix.started }

// Assign creates (or returns the existing) HighVariable for cell v.
func (ix *Index) Assign(v *varnode.Varnode) *HighVariable {
	if h, ok := ix.byCell[v]; ok {
		return h
	}
	ix.nextID++
	h := &HighVariable{id: ix.nextID, Cells: []*varnode.Varnode{v}, Cover: NewCover()}
	ix.byCell[v] = h
	ix.highs = append(ix.highs, h)
	return h
}

func (ix *Index) HighOf(v *varnode.Varnode) (*HighVariable, bool) {
	h, ok := ix.byCell[v]
	return h, ok
}

func (ix *Index) All() []*HighVariable { return ix.highs }

type pairKey struct{ a, b uint64 }

func keyFor(a, b *HighVariable) pairKey {
	if a.id > b.id {
		a, b = b, a
	}
	return pairKey{a.id, b.id}
}

// CopyShadowTest reports whether, within a touching pair, the two specific
// cells touching at a boundary point are related by a COPY (or a partial
// COPY at a matching offset) — in which case they do not count as
// intersecting (spec.md §4.8).
type CopyShadowTest func(a, b *varnode.Varnode) bool

// Intersects tests whether high-variables a and b's covers intersect,
// consulting (and populating) the pair cache. shadow implements the
// copy-shadowing exception at exact-boundary touches.
func (ix *Index) Intersects(a, b *HighVariable, shadow CopyShadowTest) bool {
	if a == b {
		return true
	}
	key := keyFor(a, b)
	if v, ok := ix.cache[key]; ok && !a.Cover.IsDirty() && !b.Cover.IsDirty() {
		return v
	}

	result := false
	switch coarseIntersect(a.Cover, b.Cover) {
	case touchOverlap:
		result = true
	case touchBoundary:
		result = !allTouchesShadowed(a, b, shadow)
	case touchNone:
		result = false
	}
	ix.cache[key] = result
	return result
}

func allTouchesShadowed(a, b *HighVariable, shadow CopyShadowTest) bool {
	if shadow == nil {
		return false
	}
	for _, ca := range a.Cells {
		for _, cb := range b.Cells {
			if !shadow(ca, cb) {
				return false
			}
		}
	}
	return true
}

// invalidate eagerly purges every cache entry that mentions h, so none can
// serve a stale true/false. Nothing calls it: Intersects instead ignores a
// cached entry whenever either cover is dirty and recomputes it.
func (ix *Index) invalidate(h *HighVariable) {
	for k := range ix.cache {
		if k.a == h.id || k.b == h.id {
			delete(ix.cache, k)
		}
	}
}

// Merge folds b into a: every cell in b is reassigned to a, b's cache
// entries are carried over per spec.md §4.8's merge-move rule (a cached
// true survives as {a,x}=true; a cached false survives only if {a,x} was
// also false; anything else is left absent for lazy recheck), and b is
// dropped from the index.
func (ix *Index) Merge(a, b *HighVariable) {
	if a == b {
		return
	}
	for _, c := range b.Cells {
		ix.byCell[c] = a
	}
	a.Cells = append(a.Cells, b.Cells...)
	a.Cover.dirty = true // union of covers must be recomputed

	type carried struct {
		other uint64
		val   bool
	}
	var toCarry []carried
	for k, bVal := range ix.cache {
		if k.a != b.id && k.b != b.id {
			continue
		}
		other := k.a
		if other == b.id {
			other = k.b
		}
		delete(ix.cache, k)
		if other != a.id {
			toCarry = append(toCarry, carried{other: other, val: bVal})
		}
	}
	for _, c := range toCarry {
		newKey := pairKey{a.id, c.other}
		if newKey.a > newKey.b {
			newKey.a, newKey.b = newKey.b, newKey.a
		}
		if c.val {
			// A b-side true entry survives as {a,x}=true, per spec.md §4.8's
			// merge-move rule and worked scenario 5.
			ix.cache[newKey] = true
		} else if existing, ok := ix.cache[newKey]; ok && !existing {
			// Both sides agreed false: keep it false.
			ix.cache[newKey] = false
		} else if !ok {
			// No entry on the a-side yet: leave absent for lazy recheck,
			// do not manufacture a false.
		} else {
			// a-side was true, b-side was false: disagreement, drop to absent.
			delete(ix.cache, newKey)
		}
	}

	for i, h := range ix.highs {
		if h == b {
			ix.highs = append(ix.highs[:i], ix.highs[i+1:]...)
			break
		}
	}
}
