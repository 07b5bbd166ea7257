// Package datatype implements data-type propagation and the
// union/partial-union resolution cache (C9): a per-op-code typing-rule
// table, a fixed-point propagation loop, and a resolved-union edge map
// keyed by (union type, operation sequence, slot).
package datatype

import (
	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

// Strategy selects which propagation policy a typing rule should apply
// (e.g. "normal" vs "hard" casts at ABI boundaries); left opaque here,
// defined by the caller's architecture handle.
type Strategy int

// Type is an opaque data-type handle, resolved through the C16 type
// database contract. The engine never inspects it beyond identity and
// the few predicates TypeQuery exposes.
type Type = interface{}

// TypeQuery is the narrow slice of the C16 type-database contract that
// union resolution needs, kept separate from the full iface.TypeDatabase
// to avoid importing iface here (datatype has no other external need).
type TypeQuery interface {
	IsUnion(t Type) bool
	UnionFieldCount(t Type) int
	UnionFieldType(t Type, field int) Type
}

// Rule is the per-op-code typing-rule object spec.md §4.9 describes.
type Rule struct {
	GetInputCast  func(op *pcode.Op, slot int, strat Strategy) (Type, bool)
	GetOutputToken func(op *pcode.Op, strat Strategy) Type
	PropagateType func(alt Type, op *pcode.Op, in, out *varnode.Varnode, inSlot, outSlot int) (Type, bool)
}

// Table maps op-codes to their typing rule.
type Table struct {
	rules map[pcode.OpCode]Rule
}

func NewTable() *Table { return &Table{rules: make(map[pcode.OpCode]Rule)} }

func (t *Table) Register(code pcode.OpCode, r Rule) { t.rules[code] = r }

func (t *Table) RuleFor(code pcode.OpCode) (Rule, bool) {
	r, ok := t.rules[code]
	return r, ok
}

// unionKey is (union_type_id, operation_seq, slot) from spec.md §4.9.
// Union types are compared by identity (via a caller-supplied numeric id)
// since Type itself is opaque here.
type unionKey struct {
	unionTypeID int64
	seq         addr.SeqNum
	slot        int
}

// Resolution is the chosen field for one resolved-union edge, plus
// whether it is locked by a user-supplied facet symbol.
type Resolution struct {
	Field int
	Locked bool
}

// UnionCache is the resolved-union edge map.
type UnionCache struct {
	entries map[unionKey]Resolution
}

func NewUnionCache() *UnionCache { return &UnionCache{entries: make(map[unionKey]Resolution)} }

// Resolve returns the cached field choice for (unionTypeID, seq, slot), or
// false if no decision has been made yet.
func (c *UnionCache) Resolve(unionTypeID int64, seq addr.SeqNum, slot int) (Resolution, bool) {
	r, ok := c.entries[unionKey{unionTypeID, seq, slot}]
	return r, ok
}

// Set records a field choice. A locked entry is never overwritten
// (spec.md §4.9 "locked entries are never overwritten").
func (c *UnionCache) Set(unionTypeID int64, seq addr.SeqNum, slot int, field int, locked bool) {
	k := unionKey{unionTypeID, seq, slot}
	if existing, ok := c.entries[k]; ok && existing.Locked {
		return
	}
	c.entries[k] = Resolution{Field: field, Locked: locked}
}

// SetPhiUniform populates every input slot of a phi op identically when
// multiple input slots hold the same value cell and the phi's type is a
// union (spec.md §4.9).
func (c *UnionCache) SetPhiUniform(unionTypeID int64, op *pcode.Op, field int, locked bool) {
	for slot := range op.Inputs {
		c.Set(unionTypeID, op.SeqNum(), slot, field, locked)
	}
}

// Propagator runs the fixed-point type-propagation loop (spec.md §4.9)
// over every alive op it is given; it does not seed the loop from locked
// cells.
type Propagator struct {
	Table *Table
	Cap   int // iteration cap; 0 means a sane default
}

// Run sweeps the typing rules over every alive op in ops until no cell's type
// changes, or the iteration cap is hit (in which case ok is false and the
// caller should raise a fatal per spec.md §5 "Cancellation").
func (p *Propagator) Run(ops []*pcode.Op) (iterations int, ok bool) {
	capN := p.Cap
	if capN <= 0 {
		capN = 1000
	}
	for iterations = 0; iterations < capN; iterations++ {
		changed := false
		for _, op := range ops {
			if op.IsDead() {
				continue
			}
			rule, has := p.Table.RuleFor(op.Code)
			if !has || rule.PropagateType == nil {
				continue
			}
			for inSlot, in := range op.Inputs {
				if in == nil || op.Output == nil {
					continue
				}
				newType, changedOne := rule.PropagateType(nil, op, in, op.Output, inSlot, 0)
				if changedOne && op.Output.DataType != newType {
					op.Output.DataType = newType
					changed = true
				}
			}
		}
		if !changed {
			return iterations, true
		}
	}
	return iterations, false
}

// PickPtrOffset consults the referenced composite data-type to pick a
// component offset for PTRADD/PTRSUB, per spec.md §4.9. componentAt is
// supplied by the caller's type-database binding (C16).
func PickPtrOffset(componentAt func(composite Type, byteOffset int64, size int) (Type, bool), composite Type, byteOffset int64, size int) (Type, bool) {
	if componentAt == nil {
		return nil, false
	}
	return componentAt(composite, byteOffset, size)
}
