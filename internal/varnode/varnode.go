// Package varnode owns every SSA value cell for a function (C3). A
// Varnode is the source-language "cell" of spec.md §3: a storage location
// plus at most one defining operation, a set of uses, flags, data-type,
// and the consume/non-zero masks the rewrite and type-propagation passes
// maintain.
package varnode

import (
	"sort"

	"github.com/decompile/core/internal/addr"
)

// Flag is a bitmask of Varnode attributes (spec.md §3).
type Flag uint32

const (
	FlagAddrTied Flag = 1 << iota
	FlagAddrForce
	FlagInput
	FlagConstant
	FlagAnnotation
	FlagPersistent
	FlagIndirectCreation
	FlagSpacebase
	FlagVolatile
	FlagTypelock
	FlagNamelock
	FlagReadonly
	FlagMark
	FlagImplicit
	FlagExplicit
	FlagFree // set by New; cleared by SetInput, but not when Def is set (see IsFree)
)

// DefRef is an opaque reference to the defining/using operation, kept as
// an interface to avoid an import cycle between varnode and pcode: the
// pcode package implements it on *pcode.Op.
type DefRef interface {
	SeqNum() addr.SeqNum
}

// Varnode is one SSA value cell.
type Varnode struct {
	id      uint64
	Storage addr.Storage
	Def     DefRef   // nil for inputs, constants, and free cells
	Uses    []DefRef // back-pointers to every reading op
	Flags   Flag

	DataType    interface{} // opaque data-type handle (C16 type-db contract)
	NonZeroMask uint64
	ConsumeMask uint64

	High   interface{} // *highvar.HighVariable once assigned, else nil
	Symbol interface{} // symbol-table entry, if named
}

func (v *Varnode) ID() uint64 { return v.id }

// IsInput reports whether this cell has no definition and is not a
// constant (spec.md §3 invariant: exactly one definition, or none for
// inputs/constants/free cells).
func (v *Varnode) IsInput() bool { return v.Def == nil && v.Flags&FlagConstant == 0 }

// IsFree reports whether the cell has been created but not yet connected
// to a def, input, or constant role.
func (v *Varnode) IsFree() bool { return v.Flags&FlagFree != 0 && v.Def == nil }

func (v *Varnode) AddUse(u DefRef) { v.Uses = append(v.Uses, u) }

// RemoveUse deletes the first use equal to u (by sequence number), leaving
// order of the remaining uses intact.
func (v *Varnode) RemoveUse(u DefRef) {
	for i, x := range v.Uses {
		if x.SeqNum() == u.SeqNum() {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// Store owns every Varnode for one function. It keeps one ordered index,
// loc (by space, offset and size), plus the list of input cells; it has no
// def index and no op-code-class index.
type Store struct {
	cells      []*Varnode
	nextID     uint64
	loc        []*Varnode // sorted by locKey, rebuilt lazily
	locDirty   bool
	inputs     []*Varnode // cells flagged FlagInput, for overlap checks
	constSpace addr.Space
}

func NewStore() *Store {
	return &Store{constSpace: addr.Space{ID: -1, Name: "const", Kind: addr.SpaceConstant}}
}

// New allocates a free Varnode with the given storage; callers make it an
// input via SetInput, or defined by setting Def through the pcode editing
// API. Constant cells are allocated by NewConstant instead.
func (s *Store) New(st addr.Storage) *Varnode {
	s.nextID++
	v := &Varnode{id: s.nextID, Storage: st, Flags: FlagFree}
	s.cells = append(s.cells, v)
	s.locDirty = true
	return v
}

// NewConstant allocates a constant cell (lives in the constant space per
// spec.md §3; has no definition).
func (s *Store) NewConstant(sizeBytes int, value uint64) *Varnode {
	v := s.New(addr.Storage{Addr: addr.Address{Space: &s.constSpace, Offset: value}, Size: sizeBytes})
	v.Flags = FlagConstant
	return v
}

// SetInput marks v as an SSA input. Per spec.md §4.3: a cell overlapping
// an existing input is rejected unless storage matches exactly — callers
// must split the existing input via SUBPIECE instead.
func (s *Store) SetInput(v *Varnode) error {
	for _, in := range s.inputs {
		if in == v {
			return nil
		}
		if in.Storage.Overlaps(v.Storage) && in.Storage != v.Storage {
			return errOverlappingInput{existing: in.Storage, incoming: v.Storage}
		}
	}
	v.Flags = (v.Flags &^ FlagFree) | FlagInput
	s.inputs = append(s.inputs, v)
	return nil
}

type errOverlappingInput struct{ existing, incoming addr.Storage }

func (e errOverlappingInput) Error() string {
	return "varnode: new input " + e.incoming.String() + " overlaps existing input " + e.existing.String() + " without matching storage"
}

// Destroy removes v from the store entirely. Callers must have already
// unlinked it from every def/use slot (pcode's editing API enforces this).
func (s *Store) Destroy(v *Varnode) {
	for i, c := range s.cells {
		if c == v {
			s.cells = append(s.cells[:i], s.cells[i+1:]...)
			break
		}
	}
	for i, in := range s.inputs {
		if in == v {
			s.inputs = append(s.inputs[:i], s.inputs[i+1:]...)
			break
		}
	}
	s.locDirty = true
}

// All returns every live cell, in creation order.
func (s *Store) All() []*Varnode { return s.cells }

// Inputs returns every cell flagged FlagInput.
func (s *Store) Inputs() []*Varnode { return s.inputs }

func (s *Store) rebuildLoc() {
	if !s.locDirty {
		return
	}
	s.loc = append(s.loc[:0], s.cells...)
	sort.Slice(s.loc, func(i, j int) bool {
		a, b := s.loc[i], s.loc[j]
		if a.Storage.Addr.Space != b.Storage.Addr.Space {
			return spaceID(a.Storage.Addr.Space) < spaceID(b.Storage.Addr.Space)
		}
		if a.Storage.Addr.Offset != b.Storage.Addr.Offset {
			return a.Storage.Addr.Offset < b.Storage.Addr.Offset
		}
		return a.Storage.Size < b.Storage.Size
	})
	s.locDirty = false
}

func spaceID(sp *addr.Space) int {
	if sp == nil {
		return -1
	}
	return sp.ID
}

// RangeExact returns every cell with storage exactly equal to st.
func (s *Store) RangeExact(st addr.Storage) []*Varnode {
	s.rebuildLoc()
	var out []*Varnode
	for _, v := range s.loc {
		if v.Storage == st {
			out = append(out, v)
		}
	}
	return out
}

// RangeOverlap returns every cell whose storage overlaps st, in address
// order.
func (s *Store) RangeOverlap(st addr.Storage) []*Varnode {
	s.rebuildLoc()
	var out []*Varnode
	for _, v := range s.loc {
		if v.Storage.Addr.Space == st.Addr.Space && v.Storage.Overlaps(st) {
			out = append(out, v)
		}
	}
	return out
}

// RangeSpace returns every cell in the given address space.
func (s *Store) RangeSpace(sp *addr.Space) []*Varnode {
	s.rebuildLoc()
	var out []*Varnode
	for _, v := range s.loc {
		if v.Storage.Addr.Space == sp {
			out = append(out, v)
		}
	}
	return out
}
