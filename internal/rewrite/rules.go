package rewrite

import (
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

// Mutator is the funcdata editing surface rules actually call to change
// the IR (opSetOpcode/opSetInput/newOp/newConstant/...). It embeds Editor;
// rules reach it by type-asserting the Editor they are given, and
// funcdata.Function implements it. Kept minimal here so these rule bodies
// compile against any editor that can allocate cells/ops.
type Mutator interface {
	Editor
	NewConstant(size int, value uint64) *varnode.Varnode
	NewOp(code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op
	ReplaceOutput(old *pcode.Op, newOp *pcode.Op) error
	SetInput(op *pcode.Op, slot int, v *varnode.Varnode) error
	SetOpcode(op *pcode.Op, code pcode.OpCode) error
}

// ConcatWithZero implements spec.md §8 scenario 1: PIECE(hi, 0) becomes
// zext(hi) followed by a left shift of hi's bit width, when the low input
// is the constant zero.
var ConcatWithZero = Rule{
	Name:   "concat-with-zero",
	Filter: []pcode.OpCode{pcode.OpPiece},
	Apply: func(op *pcode.Op, ed Editor) bool {
		m, ok := ed.(Mutator)
		if !ok || len(op.Inputs) != 2 {
			return false
		}
		hi, lo := op.Inputs[0], op.Inputs[1]
		if lo == nil || lo.Flags&varnode.FlagConstant == 0 || lo.Storage.Addr.Offset != 0 {
			return false
		}
		shiftAmount := uint64(hi.Storage.Size) * 8
		zext := m.NewOp(pcode.OpIntZext, []*varnode.Varnode{hi}, nil)
		shiftConst := m.NewConstant(lo.Storage.Size, shiftAmount)
		_ = m.SetOpcode(op, pcode.OpIntLeft)
		_ = m.SetInput(op, 0, zext.Output)
		_ = m.SetInput(op, 1, shiftConst)
		return true
	},
}

// OverflowSafeSignedCompare computes whether rewriting `x <= c` into
// `x < c+1` would overflow for a signed c at INT_MAX, guarding scenario 2
// of spec.md §8.
func OverflowSafeSignedCompare(signed bool, c uint64, size int) bool {
	if !signed {
		return true
	}
	maxSigned := uint64(1)<<(uint(size)*8-1) - 1
	return c != maxSigned
}

// LessEqualToLessThan implements spec.md §8 scenario 2: `uleq(x,c)` (or
// signed sleq) against a constant c is rewritten to strict less-than
// against c+1, skipped when that would overflow a signed max.
var LessEqualToLessThan = Rule{
	Name:   "leq-to-lt",
	Filter: []pcode.OpCode{pcode.OpIntLessEqual, pcode.OpIntSlessEqual},
	Apply: func(op *pcode.Op, ed Editor) bool {
		m, ok := ed.(Mutator)
		if !ok || len(op.Inputs) != 2 {
			return false
		}
		x, c := op.Inputs[0], op.Inputs[1]
		if c == nil || c.Flags&varnode.FlagConstant == 0 {
			return false
		}
		signed := op.Code == pcode.OpIntSlessEqual
		if !OverflowSafeSignedCompare(signed, c.Storage.Addr.Offset, c.Storage.Size) {
			return false
		}
		newConst := m.NewConstant(c.Storage.Size, c.Storage.Addr.Offset+1)
		newCode := pcode.OpIntLess
		if signed {
			newCode = pcode.OpIntSless
		}
		_ = m.SetOpcode(op, newCode)
		_ = m.SetInput(op, 0, x)
		_ = m.SetInput(op, 1, newConst)
		return true
	},
}

// CoefficientCollapse implements spec.md §4.6's `(c*x)*k -> (c*k)*x`:
// folding two constant integer multiplies into one when the inner
// multiply's non-constant operand feeds the outer multiply directly.
var CoefficientCollapse = Rule{
	Name:   "coefficient-collapse",
	Filter: []pcode.OpCode{pcode.OpIntMult},
	Apply: func(op *pcode.Op, ed Editor) bool {
		m, ok := ed.(Mutator)
		if !ok || len(op.Inputs) != 2 {
			return false
		}
		for slot, in := range op.Inputs {
			other := op.Inputs[1-slot]
			if other == nil || other.Flags&varnode.FlagConstant == 0 {
				continue
			}
			inner, isOp := in.Def.(*pcode.Op)
			if !isOp || inner.Code != pcode.OpIntMult || len(inner.Inputs) != 2 {
				continue
			}
			var x, innerConst *varnode.Varnode
			for _, ii := range inner.Inputs {
				if ii.Flags&varnode.FlagConstant != 0 {
					innerConst = ii
				} else {
					x = ii
				}
			}
			if x == nil || innerConst == nil {
				continue
			}
			folded := m.NewConstant(other.Storage.Size, innerConst.Storage.Addr.Offset*other.Storage.Addr.Offset)
			_ = m.SetInput(op, slot, folded)
			_ = m.SetInput(op, 1-slot, x)
			return true
		}
		return false
	},
}

// DistributeMultiplyOverAdd implements spec.md §4.6: distribute a
// constant integer multiplier across an addition when the addition's
// inputs are free or constant, i.e. `k*(a+b) -> k*a + k*b` only when that
// cannot re-trigger itself pointlessly (both a and b are leaves).
var DistributeMultiplyOverAdd = Rule{
	Name:   "distribute-mult-over-add",
	Filter: []pcode.OpCode{pcode.OpIntMult},
	Apply: func(op *pcode.Op, ed Editor) bool {
		m, ok := ed.(Mutator)
		if !ok || len(op.Inputs) != 2 {
			return false
		}
		for slot, k := range op.Inputs {
			add := op.Inputs[1-slot]
			if k == nil || k.Flags&varnode.FlagConstant == 0 {
				continue
			}
			addOp, isOp := add.Def.(*pcode.Op)
			if !isOp || addOp.Code != pcode.OpIntAdd || len(addOp.Inputs) != 2 {
				continue
			}
			a, b := addOp.Inputs[0], addOp.Inputs[1]
			if !isLeaf(a) || !isLeaf(b) {
				continue
			}
			ka := m.NewOp(pcode.OpIntMult, []*varnode.Varnode{a, k}, nil)
			kb := m.NewOp(pcode.OpIntMult, []*varnode.Varnode{b, k}, nil)
			_ = m.SetOpcode(op, pcode.OpIntAdd)
			_ = m.SetInput(op, 0, ka.Output)
			_ = m.SetInput(op, 1, kb.Output)
			return true
		}
		return false
	},
}

func isLeaf(v *varnode.Varnode) bool {
	return v.Def == nil || v.Flags&varnode.FlagConstant != 0
}

// DefaultGroup is the "default" action group (spec.md §4.6) run over
// every function pass.
func DefaultGroup() *Group {
	return &Group{
		Name: "default",
		Actions: []*Action{{
			Name: "simplify",
			Rules: []Rule{
				ConcatWithZero,
				LessEqualToLessThan,
				CoefficientCollapse,
				DistributeMultiplyOverAdd,
			},
		}},
		IterCap: 2000,
	}
}
