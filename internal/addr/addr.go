// Package addr implements the address and interval primitives (C1):
// byte-addressed positions within named address spaces, inclusive ranges,
// and the ordering used throughout the engine to key stores and maps.
package addr

import "fmt"

// SpaceKind classifies an address space by the storage it models.
type SpaceKind int

const (
	SpaceConstant SpaceKind = iota
	SpaceUnique             // unique/temp space, SSA-only values
	SpaceCode               // instruction memory
	SpaceData               // RAM / data memory
	SpaceStack              // stack-relative storage
	SpaceIOP                // operation-reference space (points at an Op)
	SpaceFspec              // call-spec-reference space
)

func (k SpaceKind) String() string {
	switch k {
	case SpaceConstant:
		return "const"
	case SpaceUnique:
		return "unique"
	case SpaceCode:
		return "code"
	case SpaceData:
		return "ram"
	case SpaceStack:
		return "stack"
	case SpaceIOP:
		return "iop"
	case SpaceFspec:
		return "fspec"
	default:
		return "space?"
	}
}

// Space is a named, typed address space. Spaces are created once by the
// architecture handle and referenced by id from every Address.
type Space struct {
	ID        int
	Name      string
	Kind      SpaceKind
	WordSize  int // bytes per addressable unit, usually 1
	BigEndian bool
}

// Address is a byte offset within a Space. Addresses are totally ordered
// within a single space; cross-space comparisons order by space id first.
type Address struct {
	Space  *Space
	Offset uint64
}

// Invalid reports whether this is the zero Address (no space assigned).
func (a Address) Invalid() bool { return a.Space == nil }

// Compare returns -1, 0, or 1 comparing a to b, ordering first by space id
// then by offset.
func (a Address) Compare(b Address) int {
	as, bs := spaceID(a.Space), spaceID(b.Space)
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

func spaceID(s *Space) int {
	if s == nil {
		return -1
	}
	return s.ID
}

// Less reports whether a sorts before b, for sort.Interface style
// comparators that need a total order over addresses.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// Equal reports whether a and b name the same byte.
func (a Address) Equal(b Address) bool { return a.Compare(b) == 0 }

// Add returns the address delta bytes after a, within the same space.
func (a Address) Add(delta int64) Address {
	return Address{Space: a.Space, Offset: uint64(int64(a.Offset) + delta)}
}

func (a Address) String() string {
	if a.Invalid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s:%#x", a.Space.Name, a.Offset)
}

// Range is an inclusive [First, Last] byte range within a single space.
type Range struct {
	First, Last Address
}

// Contains reports whether p falls within the inclusive range.
func (r Range) Contains(p Address) bool {
	return !r.First.Space.overlapsDifferentSpace(p.Space) &&
		r.First.Compare(p) <= 0 && p.Compare(r.Last) <= 0
}

func (s *Space) overlapsDifferentSpace(o *Space) bool {
	if s == nil || o == nil {
		return s != o
	}
	return s.ID != o.ID
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	if r.First.Space != o.First.Space {
		return false
	}
	return r.First.Compare(o.Last) <= 0 && o.First.Compare(r.Last) <= 0
}

// Size returns the number of bytes spanned by the range.
func (r Range) Size() uint64 {
	if r.First.Space != r.Last.Space {
		return 0
	}
	return r.Last.Offset - r.First.Offset + 1
}

// SeqNum disambiguates multiple operations generated at the same address
// (e.g. one machine instruction lowering to several p-code ops).
type SeqNum struct {
	Addr  Address
	Order uint32
}

// Compare orders sequence numbers by address, then by order.
func (s SeqNum) Compare(o SeqNum) int {
	if c := s.Addr.Compare(o.Addr); c != 0 {
		return c
	}
	switch {
	case s.Order < o.Order:
		return -1
	case s.Order > o.Order:
		return 1
	default:
		return 0
	}
}

func (s SeqNum) Less(o SeqNum) bool { return s.Compare(o) < 0 }

func (s SeqNum) String() string { return fmt.Sprintf("%s.%d", s.Addr, s.Order) }

// Storage identifies a value cell's home location: an address plus a size
// in bytes. Two cells alias iff their storages overlap.
type Storage struct {
	Addr Address
	Size int
}

// Range returns the inclusive byte range covered by this storage.
func (s Storage) Range() Range {
	return Range{First: s.Addr, Last: s.Addr.Add(int64(s.Size) - 1)}
}

// Overlaps reports whether two storages share at least one byte.
func (s Storage) Overlaps(o Storage) bool { return s.Range().Overlaps(o.Range()) }

// Contains reports whether o's storage is entirely contained within s.
func (s Storage) Contains(o Storage) bool {
	sr, or := s.Range(), o.Range()
	return sr.First.Compare(or.First) <= 0 && or.Last.Compare(sr.Last) <= 0
}

func (s Storage) String() string { return fmt.Sprintf("%s:%d", s.Addr, s.Size) }
