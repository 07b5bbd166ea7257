package heritage

import (
	"testing"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/block"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

var ramSpace = &addr.Space{ID: 2, Name: "ram", Kind: addr.SpaceData}

// buildDiamond constructs entry -> {left, right} -> join, with a def of
// the same storage location in both entry and left/right, matching the
// textbook case that needs exactly one phi at join.
func buildDiamond(t *testing.T) (*block.Graph, *pcode.Store, *varnode.Store, *block.Block) {
	t.Helper()
	g := block.NewGraph()
	ops := pcode.NewStore()
	cells := varnode.NewStore()

	entry := g.NewBlockBasic()
	left := g.NewBlockBasic()
	right := g.NewBlockBasic()
	join := g.NewBlockBasic()

	g.AddEdge(entry, left)
	g.AddEdge(entry, right)
	g.AddEdge(left, join)
	g.AddEdge(right, join)

	st := addr.Storage{Addr: addr.Address{Space: ramSpace, Offset: 0x1000}, Size: 4}

	defIn := func(b *block.Block, value uint64) *varnode.Varnode {
		c := cells.NewConstant(4, value)
		out := cells.New(st)
		op := ops.New(addr.Address{Space: ramSpace, Offset: 0x1000}, pcode.OpCopy, []*varnode.Varnode{c}, out)
		ops.MarkAlive(op)
		op.Block = b
		b.Ops = append(b.Ops, op)
		return out
	}
	defIn(entry, 0)
	defIn(left, 1)
	defIn(right, 2)

	return g, ops, cells, join
}

func TestHeritagePlacesSinglePhiAtJoin(t *testing.T) {
	g, ops, cells, join := buildDiamond(t)
	nextID := uint64(0)
	newCell := func(st addr.Storage) *varnode.Varnode { return cells.New(st) }
	newOp := func(a addr.Address, code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op {
		nextID++
		o := ops.New(a, code, inputs, out)
		ops.MarkAlive(o)
		return o
	}

	b := NewBuilder(g, ops, cells, newOp, newCell)
	if diagErr := b.Heritage(); diagErr != nil {
		t.Fatalf("heritage failed: %v", diagErr)
	}

	phis := join.Phis()
	if len(phis) != 1 {
		t.Fatalf("got %d phis at join, want 1", len(phis))
	}
	if phis[0].Code != pcode.OpMultiequal {
		t.Errorf("phi has wrong opcode %s", phis[0].Code)
	}
	if len(phis[0].Inputs) != len(join.In) {
		t.Errorf("phi has %d inputs, want %d (one per predecessor)", len(phis[0].Inputs), len(join.In))
	}
}

func TestDeferBoundsRetries(t *testing.T) {
	g, ops, cells, _ := buildDiamond(t)
	newCell := func(st addr.Storage) *varnode.Varnode { return cells.New(st) }
	newOp := func(a addr.Address, code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op {
		o := ops.New(a, code, inputs, out)
		ops.MarkAlive(o)
		return o
	}
	b := NewBuilder(g, ops, cells, newOp, newCell)

	v := cells.New(addr.Storage{Addr: addr.Address{Space: ramSpace, Offset: 0x2000}, Size: 4})
	guard := b.RecordGuard(nil, addr.Range{
		First: addr.Address{Space: ramSpace, Offset: 0x2000},
		Last:  addr.Address{Space: ramSpace, Offset: 0x2003},
	})
	_ = guard

	for i := 0; i < MaxDeferrals; i++ {
		shouldDefer, exceeded := b.Defer(v)
		if exceeded {
			t.Fatalf("deferral bound exceeded too early on iteration %d", i)
		}
		if !shouldDefer {
			t.Fatalf("expected defer on iteration %d while guard is unresolved", i)
		}
	}
	if _, exceeded := b.Defer(v); !exceeded {
		t.Errorf("expected deferral bound to be exceeded after %d retries", MaxDeferrals)
	}
}
