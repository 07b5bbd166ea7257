package pcode

import (
	"testing"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/varnode"
)

var codeSpace = &addr.Space{ID: 0, Name: "code", Kind: addr.SpaceCode}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	if got := OpIntAdd.String(); got != "INT_ADD" {
		t.Errorf("got %q, want INT_ADD", got)
	}
	if got := OpCode(9999).String(); got != "OP?" {
		t.Errorf("got %q, want OP? for an out-of-range code", got)
	}
}

func TestOpCodeIsBranch(t *testing.T) {
	branchLike := []OpCode{OpBranch, OpCbranch, OpBranchind, OpCall, OpCallind, OpReturn}
	for _, c := range branchLike {
		if !c.IsBranch() {
			t.Errorf("%s: expected IsBranch() true", c)
		}
	}
	notBranch := []OpCode{OpCopy, OpIntAdd, OpLoad, OpCallother}
	for _, c := range notBranch {
		if c.IsBranch() {
			t.Errorf("%s: expected IsBranch() false", c)
		}
	}
}

func TestOpCodeIsConditional(t *testing.T) {
	if !OpCbranch.IsConditional() {
		t.Errorf("CBRANCH should be conditional")
	}
	if OpBranch.IsConditional() || OpCall.IsConditional() {
		t.Errorf("unconditional branch/call forms should not report IsConditional")
	}
}

func TestStoreNewYieldsDeadOpWiredToCells(t *testing.T) {
	ops := NewStore()
	cells := varnode.NewStore()

	a := cells.New(addr.Storage{Addr: addr.Address{Space: codeSpace, Offset: 8}, Size: 4})
	b := cells.NewConstant(4, 1)
	out := cells.New(addr.Storage{Addr: addr.Address{Space: codeSpace, Offset: 16}, Size: 4})

	at := addr.Address{Space: codeSpace, Offset: 0x1000}
	op := ops.New(at, OpIntAdd, []*varnode.Varnode{a, b}, out)

	if op.IsAlive() {
		t.Errorf("a freshly created op should start dead")
	}
	if !op.IsDead() {
		t.Errorf("a freshly created op should carry FlagDead")
	}
	if out.Def != op {
		t.Errorf("output's Def should point back at the defining op")
	}
	if len(a.Uses) != 1 || a.Uses[0] != op {
		t.Errorf("input a should record op as a use")
	}
	if len(ops.Dead()) != 1 || len(ops.Alive()) != 0 {
		t.Errorf("expected one dead op and zero alive ops, got dead=%d alive=%d", len(ops.Dead()), len(ops.Alive()))
	}
}

func TestStoreMarkAliveIsIdempotent(t *testing.T) {
	ops := NewStore()
	op := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpCopy, nil, nil)

	ops.MarkAlive(op)
	if !op.IsAlive() || op.IsDead() {
		t.Fatalf("expected op alive and not dead after MarkAlive")
	}
	if len(ops.Alive()) != 1 || len(ops.Dead()) != 0 {
		t.Fatalf("expected 1 alive, 0 dead; got alive=%d dead=%d", len(ops.Alive()), len(ops.Dead()))
	}

	ops.MarkAlive(op) // idempotent: no duplicate insert into alive list
	if len(ops.Alive()) != 1 {
		t.Errorf("second MarkAlive should not duplicate the alive entry, got %d", len(ops.Alive()))
	}
}

func TestStoreMarkDeadMovesBackToDeadList(t *testing.T) {
	ops := NewStore()
	op := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpCopy, nil, nil)
	ops.MarkAlive(op)

	ops.MarkDead(op)
	if op.IsAlive() || !op.IsDead() {
		t.Fatalf("expected op dead and not alive after MarkDead")
	}
	if len(ops.Alive()) != 0 || len(ops.Dead()) != 1 {
		t.Fatalf("expected 0 alive, 1 dead; got alive=%d dead=%d", len(ops.Alive()), len(ops.Dead()))
	}

	ops.MarkDead(op) // idempotent
	if len(ops.Dead()) != 1 {
		t.Errorf("second MarkDead should not duplicate the dead entry, got %d", len(ops.Dead()))
	}
}

func TestStoreDestroyRejectsAliveOp(t *testing.T) {
	ops := NewStore()
	op := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpCopy, nil, nil)
	ops.MarkAlive(op)

	if err := ops.Destroy(op); err == nil {
		t.Fatalf("expected an error destroying an alive op")
	}

	ops.MarkDead(op)
	if err := ops.Destroy(op); err != nil {
		t.Fatalf("unexpected error destroying a dead op: %v", err)
	}
	if len(ops.Dead()) != 0 {
		t.Errorf("expected the dead list empty after Destroy, got %d", len(ops.Dead()))
	}
	if len(ops.ByCode(OpCopy)) != 0 {
		t.Errorf("expected the by-code index cleared after Destroy, got %d", len(ops.ByCode(OpCopy)))
	}
}

func TestStoreByAddressOrdersBySeqNum(t *testing.T) {
	ops := NewStore()
	at := addr.Address{Space: codeSpace, Offset: 0x2000}
	op1 := ops.New(at, OpCopy, nil, nil)
	op2 := ops.New(at, OpIntAdd, nil, nil)

	got := ops.ByAddress(at)
	if len(got) != 2 || got[0] != op1 || got[1] != op2 {
		t.Fatalf("expected [op1, op2] in creation order, got %v", got)
	}
}

func TestStoreByAddressRange(t *testing.T) {
	ops := NewStore()
	low := addr.Address{Space: codeSpace, Offset: 0x1000}
	mid := addr.Address{Space: codeSpace, Offset: 0x1010}
	high := addr.Address{Space: codeSpace, Offset: 0x2000}

	opLow := ops.New(low, OpCopy, nil, nil)
	opMid := ops.New(mid, OpIntAdd, nil, nil)
	ops.New(high, OpReturn, nil, nil)

	got := ops.ByAddressRange(low, mid)
	if len(got) != 2 {
		t.Fatalf("expected 2 ops in [low,mid], got %d", len(got))
	}
	if got[0] != opLow || got[1] != opMid {
		t.Errorf("expected [opLow, opMid] in address order, got %v", got)
	}
}

func TestOpIsPhiAndIsIndirect(t *testing.T) {
	ops := NewStore()
	phi := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpMultiequal, nil, nil)
	ind := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpIndirect, nil, nil)
	plain := ops.New(addr.Address{Space: codeSpace, Offset: 0}, OpCopy, nil, nil)

	if !phi.IsPhi() || ind.IsPhi() || plain.IsPhi() {
		t.Errorf("IsPhi should be true only for OpMultiequal")
	}
	if !ind.IsIndirect() || phi.IsIndirect() || plain.IsIndirect() {
		t.Errorf("IsIndirect should be true only for OpIndirect")
	}
}
