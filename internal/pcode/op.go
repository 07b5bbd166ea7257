package pcode

import (
	"sort"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/varnode"
)

// Flag is a bitmask of Op attributes (spec.md §3).
type Flag uint32

const (
	FlagStartBasic Flag = 1 << iota
	FlagStartMark
	FlagNoCollapse
	FlagNonPrinting
	FlagIndirectCreation
	FlagCallOutput
	FlagWarning
	FlagBooleanFlip
	FlagSpacebasePtr
	FlagSpecialPrint
	FlagSpecialProp
	FlagDead
	FlagMark
)

// BlockRef is implemented by *block.Block; kept as an interface here to
// avoid a pcode<->block import cycle (a block owns ops, an op points back
// at its parent block).
type BlockRef interface {
	Index() int
}

// Op is one p-code operation: a fixed op-code, ordered inputs, an
// optional output cell, a sequence number, and a parent block.
type Op struct {
	seq    addr.SeqNum
	Code   OpCode
	Inputs []*varnode.Varnode
	Output *varnode.Varnode
	Block  BlockRef
	Flags  Flag

	alive bool // true while on Store's alive list
}

// SeqNum implements varnode.DefRef.
func (o *Op) SeqNum() addr.SeqNum { return o.seq }

func (o *Op) IsPhi() bool    { return o.Code == OpMultiequal }
func (o *Op) IsDead() bool   { return o.Flags&FlagDead != 0 }
func (o *Op) IsAlive() bool  { return o.alive }
func (o *Op) IsIndirect() bool { return o.Code == OpIndirect }

// Store owns every Op for one function: an alive list, a dead list, a
// sequence-ordered global list, and address/op-code indexes (spec.md
// §4.4). Creation always yields a dead op; the editing API
// (funcdata.NewOp) calls MarkAlive right after creating it, before the op
// is linked into any block.
type Store struct {
	all      []*Op
	alive    []*Op
	dead     []*Op
	nextOrd  uint32
	byAddr   map[addr.Address][]*Op
	byCode   map[OpCode][]*Op
}

func NewStore() *Store {
	return &Store{byAddr: make(map[addr.Address][]*Op), byCode: make(map[OpCode][]*Op)}
}

// New allocates a dead op with a fresh sequence number at addr a.
func (s *Store) New(a addr.Address, code OpCode, inputs []*varnode.Varnode, output *varnode.Varnode) *Op {
	s.nextOrd++
	o := &Op{seq: addr.SeqNum{Addr: a, Order: s.nextOrd}, Code: code, Inputs: inputs, Output: output, Flags: FlagDead}
	s.all = append(s.all, o)
	s.dead = append(s.dead, o)
	s.byAddr[a] = append(s.byAddr[a], o)
	s.byCode[code] = append(s.byCode[code], o)
	if output != nil {
		output.Def = o
	}
	for _, in := range inputs {
		if in != nil {
			in.AddUse(o)
		}
	}
	return o
}

// MarkAlive moves o from the dead list to the alive list without
// destroying it. Idempotent.
func (s *Store) MarkAlive(o *Op) {
	if o.alive {
		return
	}
	o.alive = true
	o.Flags &^= FlagDead
	removeOp(&s.dead, o)
	s.alive = append(s.alive, o)
}

// MarkDead moves o from the alive list to the dead list.
func (s *Store) MarkDead(o *Op) {
	if !o.alive {
		return
	}
	o.alive = false
	o.Flags |= FlagDead
	removeOp(&s.alive, o)
	s.dead = append(s.dead, o)
}

// Destroy frees o permanently. Forbidden while o is alive: callers must
// MarkDead (after unlinking from its block) first.
func (s *Store) Destroy(o *Op) error {
	if o.alive {
		return errDestroyAlive{o}
	}
	removeOp(&s.dead, o)
	removeOp(&s.all, o)
	if bucket := s.byAddr[o.seq.Addr]; bucket != nil {
		s.byAddr[o.seq.Addr] = removeOpSlice(bucket, o)
	}
	if bucket := s.byCode[o.Code]; bucket != nil {
		s.byCode[o.Code] = removeOpSlice(bucket, o)
	}
	return nil
}

type errDestroyAlive struct{ op *Op }

func (e errDestroyAlive) Error() string { return "pcode: cannot destroy an alive op; unlink it first" }

func removeOp(list *[]*Op, o *Op) {
	*list = removeOpSlice(*list, o)
}

func removeOpSlice(list []*Op, o *Op) []*Op {
	for i, x := range list {
		if x == o {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Alive returns every alive op, in no particular guaranteed order beyond
// "stable for one pass" (spec.md §5 "op visitation order is deterministic
// given the live-list order").
func (s *Store) Alive() []*Op { return s.alive }

// Dead returns every op currently in the holding pen.
func (s *Store) Dead() []*Op { return s.dead }

// ByAddress returns every op at address a, in creation order (their
// relative order is the disambiguating SeqNum.Order).
func (s *Store) ByAddress(a addr.Address) []*Op {
	out := append([]*Op(nil), s.byAddr[a]...)
	sort.Slice(out, func(i, j int) bool { return out[i].seq.Less(out[j].seq) })
	return out
}

// ByAddressRange returns every op whose address falls within [a,b].
func (s *Store) ByAddressRange(a, b addr.Address) []*Op {
	var out []*Op
	for adr, bucket := range s.byAddr {
		if a.Compare(adr) <= 0 && adr.Compare(b) <= 0 {
			out = append(out, bucket...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq.Less(out[j].seq) })
	return out
}

// ByCode returns every op (alive or dead) with the given op-code.
func (s *Store) ByCode(c OpCode) []*Op { return s.byCode[c] }
