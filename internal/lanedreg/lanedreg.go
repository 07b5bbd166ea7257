// Package lanedreg implements the laned-register registry (C13): which
// storage ranges may be viewed as parallel independent lanes, and which
// lane widths (in bytes) are admissible for each.
package lanedreg

import (
	"sort"

	"github.com/decompile/core/internal/addr"
)

// WidthMask is a bitmask over admissible lane widths, bit i set means a
// width of (1<<i) bytes is admissible (covers 1,2,4,8,16-byte lanes).
type WidthMask uint32

func MaskFor(widths ...int) WidthMask {
	var m WidthMask
	for _, w := range widths {
		if bit := widthBit(w); bit >= 0 {
			m |= 1 << uint(bit)
		}
	}
	return m
}

func widthBit(w int) int {
	switch w {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	default:
		return -1
	}
}

// Widths returns the admissible widths encoded in m, ascending.
func (m WidthMask) Widths() []int {
	var out []int
	for bit, w := range []int{1, 2, 4, 8, 16} {
		if m&(1<<uint(bit)) != 0 {
			out = append(out, w)
		}
	}
	return out
}

type record struct {
	storage addr.Storage
	mask    WidthMask
}

// Registry maps storage ranges to admissible lane-width bitmasks.
type Registry struct {
	records []record
}

func New() *Registry { return &Registry{} }

// Register declares that st may be split into lanes of any width flagged
// in mask.
func (r *Registry) Register(st addr.Storage, mask WidthMask) {
	r.records = append(r.records, record{storage: st, mask: mask})
}

// Lookup returns the admissible width mask for storage overlapping st,
// unioning across every registered record that overlaps it (a wide
// register may be covered by more than one declaration, e.g. a general
// register plus its aliasing sub-register names).
func (r *Registry) Lookup(st addr.Storage) WidthMask {
	var out WidthMask
	for _, rec := range r.records {
		if rec.storage.Overlaps(st) {
			out |= rec.mask
		}
	}
	return out
}

// AdmissibleWidths returns the admissible lane widths for st, ascending.
func (r *Registry) AdmissibleWidths(st addr.Storage) []int {
	widths := r.Lookup(st).Widths()
	sort.Ints(widths)
	return widths
}
