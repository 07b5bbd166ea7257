// Package funcdata implements the function container / editing API (C10):
// the orchestrator that owns one function's value-cell store, operation
// store, block graph, heritage builder, rewrite engine, high-variable
// index, and data-type tables, and exposes the canonical editing
// operations every other pass calls through. Its one-struct-owns-every-
// subsystem shape, and the pattern of exposing a narrow mutation surface
// that other packages reach through an interface, is modeled on the
// teacher's vm.EnhancedVM (sentra-language-sentra/internal/vm/vm.go),
// which similarly holds the bytecode chunk, call stack, globals, and
// debug hooks behind one struct that every opcode handler mutates through.
package funcdata

import (
	"strconv"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/block"
	"github.com/decompile/core/internal/datatype"
	"github.com/decompile/core/internal/diag"
	"github.com/decompile/core/internal/heritage"
	"github.com/decompile/core/internal/highvar"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/rewrite"
	"github.com/decompile/core/internal/varnode"
)

// Function owns every IR entity for one decompiled function (spec.md §2,
// §4.10): C3 (cells) through C9 (type propagation), wired into one
// editing surface.
type Function struct {
	Entry address

	Cells    *varnode.Store
	Ops      *pcode.Store
	Graph    *block.Graph
	Heritage *heritage.Builder
	Highs    *highvar.Index
	Types    *datatype.Table
	Unions   *datatype.UnionCache

	codeSpace   *addr.Space
	uniqueSpace *addr.Space

	nextUnique uint64
	diags      []*diag.Diagnostic
}

type address = addr.Address

// New constructs an empty function container addressed within the given
// code and unique-temp spaces (supplied by the architecture handle that
// owns space identity, per spec.md §3). The constant space is owned
// internally by the value-cell store, one per function.
func New(entry addr.Address, codeSpace, uniqueSpace *addr.Space) *Function {
	f := &Function{
		Entry:       entry,
		Cells:       varnode.NewStore(),
		Ops:         pcode.NewStore(),
		Graph:       block.NewGraph(),
		Highs:       highvar.NewIndex(),
		Types:       datatype.NewTable(),
		Unions:      datatype.NewUnionCache(),
		codeSpace:   codeSpace,
		uniqueSpace: uniqueSpace,
	}
	f.Heritage = heritage.NewBuilder(f.Graph, f.Ops, f.Cells, f.newOpForHeritage, f.NewVarnode)
	return f
}

// OpStore implements rewrite.Editor and jumptable.Container.
func (f *Function) OpStore() *pcode.Store { return f.Ops }

// CellStore implements jumptable.Container.
func (f *Function) CellStore() *varnode.Store { return f.Cells }

// BlockGraph implements jumptable.Container.
func (f *Function) BlockGraph() *block.Graph { return f.Graph }

func (f *Function) newOpForHeritage(a addr.Address, code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op {
	o := f.Ops.New(a, code, inputs, out)
	f.Ops.MarkAlive(o)
	return o
}

// NewVarnode allocates a free cell with the given storage (C10 `newVarnode`).
func (f *Function) NewVarnode(st addr.Storage) *varnode.Varnode { return f.Cells.New(st) }

// NewConstant allocates a constant cell in the function's constant space
// (C10 `newConstant`).
func (f *Function) NewConstant(size int, value uint64) *varnode.Varnode {
	return f.Cells.NewConstant(size, value)
}

// NewCodeRef allocates an input-flagged cell addressing a code-space
// location (C10 `newCodeRef`), used for call-target and branch-target
// varnodes that reference instruction addresses rather than data.
func (f *Function) NewCodeRef(offset uint64, size int) *varnode.Varnode {
	v := f.Cells.New(addr.Storage{Addr: addr.Address{Space: f.codeSpace, Offset: offset}, Size: size})
	_ = f.Cells.SetInput(v)
	return v
}

// NewUniqueOut allocates a fresh unique-space temporary of the given
// size, used as an op's output when no named storage applies (C10
// `newUniqueOut`).
func (f *Function) NewUniqueOut(size int) *varnode.Varnode {
	f.nextUnique += uint64(size)
	return f.Cells.New(addr.Storage{Addr: addr.Address{Space: f.uniqueSpace, Offset: f.nextUnique}, Size: size})
}

// NewOp creates a dead op and immediately marks it alive without linking
// it into any block; callers insert it via InsertBefore/After/Begin/End
// (C10 `newOp`, plus the rewrite.Mutator surface C6 rules call through).
func (f *Function) NewOp(code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op {
	o := f.Ops.New(addr.Address{Space: f.uniqueSpace}, code, f.cloneSharedConstants(inputs), out)
	f.Ops.MarkAlive(o)
	return o
}

// cloneSharedConstants implements the "constant cell with more than one
// use is cloned on second use" policy (spec.md §4.10), skipping cells
// flagged spacebase.
func (f *Function) cloneSharedConstants(inputs []*varnode.Varnode) []*varnode.Varnode {
	out := make([]*varnode.Varnode, len(inputs))
	for i, in := range inputs {
		out[i] = f.maybeCloneConstant(in)
	}
	return out
}

func (f *Function) maybeCloneConstant(v *varnode.Varnode) *varnode.Varnode {
	if v == nil {
		return nil
	}
	if v.Flags&varnode.FlagConstant == 0 || v.Flags&varnode.FlagSpacebase != 0 {
		return v
	}
	if len(v.Uses) == 0 {
		return v
	}
	return f.Cells.NewConstant(v.Storage.Size, v.Storage.Addr.Offset)
}

// SetOpcode implements C10 `opSetOpcode`. Rejects retargeting an op to
// BRANCH when its block has fan-out greater than one, unless every
// non-primary out-edge has already been removed in the same edit
// (spec.md §4.10).
func (f *Function) SetOpcode(op *pcode.Op, code pcode.OpCode) error {
	if code == pcode.OpBranch {
		if bb, ok := op.Block.(*block.Block); ok && len(bb.Out) > 1 {
			return errFanOutBranch{len(bb.Out)}
		}
	}
	op.Code = code
	return nil
}

type errFanOutBranch struct{ fanOut int }

func (e errFanOutBranch) Error() string {
	return "funcdata: cannot retarget op to BRANCH while its block still has " +
		strconv.Itoa(e.fanOut) + " out-edges"
}

// SetInput implements C10 `opSetInput`, applying the constant-clone
// policy to the incoming value.
func (f *Function) SetInput(op *pcode.Op, slot int, v *varnode.Varnode) error {
	if slot < 0 || slot >= len(op.Inputs) {
		return errBadSlot{slot, len(op.Inputs)}
	}
	if old := op.Inputs[slot]; old != nil {
		old.RemoveUse(op)
	}
	nv := f.maybeCloneConstant(v)
	op.Inputs[slot] = nv
	if nv != nil {
		nv.AddUse(op)
	}
	return nil
}

type errBadSlot struct{ slot, n int }

func (e errBadSlot) Error() string {
	return "funcdata: input slot " + strconv.Itoa(e.slot) + " out of range [0," + strconv.Itoa(e.n) + ")"
}

// SetOutput implements C10 `opSetOutput`.
func (f *Function) SetOutput(op *pcode.Op, v *varnode.Varnode) error {
	if op.Output != nil {
		op.Output.Def = nil
	}
	op.Output = v
	if v != nil {
		v.Def = op
	}
	return nil
}

// SwapInput implements C10 `opSwapInput`.
func (f *Function) SwapInput(op *pcode.Op, a, b int) error {
	if a < 0 || a >= len(op.Inputs) || b < 0 || b >= len(op.Inputs) {
		return errBadSlot{a, len(op.Inputs)}
	}
	op.Inputs[a], op.Inputs[b] = op.Inputs[b], op.Inputs[a]
	return nil
}

// InsertInput implements C10 `opInsertInput`.
func (f *Function) InsertInput(op *pcode.Op, slot int, v *varnode.Varnode) error {
	if slot < 0 || slot > len(op.Inputs) {
		return errBadSlot{slot, len(op.Inputs)}
	}
	nv := f.maybeCloneConstant(v)
	op.Inputs = append(op.Inputs, nil)
	copy(op.Inputs[slot+1:], op.Inputs[slot:])
	op.Inputs[slot] = nv
	if nv != nil {
		nv.AddUse(op)
	}
	return nil
}

// RemoveInput implements C10 `opRemoveInput`.
func (f *Function) RemoveInput(op *pcode.Op, slot int) error {
	if slot < 0 || slot >= len(op.Inputs) {
		return errBadSlot{slot, len(op.Inputs)}
	}
	if v := op.Inputs[slot]; v != nil {
		v.RemoveUse(op)
	}
	op.Inputs = append(op.Inputs[:slot], op.Inputs[slot+1:]...)
	return nil
}

// UnsetInput implements C10 `opUnsetInput`: clears a slot to nil without
// shrinking the input array (used when a phi loses one predecessor but
// must keep its remaining slots aligned until the edge itself is removed).
func (f *Function) UnsetInput(op *pcode.Op, slot int) error {
	if slot < 0 || slot >= len(op.Inputs) {
		return errBadSlot{slot, len(op.Inputs)}
	}
	if v := op.Inputs[slot]; v != nil {
		v.RemoveUse(op)
	}
	op.Inputs[slot] = nil
	return nil
}

// UnsetOutput implements C10 `opUnsetOutput`.
func (f *Function) UnsetOutput(op *pcode.Op) error {
	if op.Output != nil {
		op.Output.Def = nil
		op.Output = nil
	}
	return nil
}

// leadingIndirectRun returns the count of indirect-effect ops immediately
// preceding index i in bb.Ops that share target's address — these must
// stay immediately before target (spec.md §4.10), so an insert-before
// must land above this run, not between it and the target.
func leadingIndirectRun(bb *block.Block, targetIdx int, targetAddr addr.Address) int {
	i := targetIdx
	for i > 0 {
		prev := bb.Ops[i-1]
		if !prev.IsIndirect() || prev.SeqNum().Addr != targetAddr {
			break
		}
		i--
	}
	return targetIdx - i
}

func indexOf(bb *block.Block, op *pcode.Op) int {
	for i, o := range bb.Ops {
		if o == op {
			return i
		}
	}
	return -1
}

// InsertBefore implements C10 `opInsertBefore`, honoring the
// indirect-effect adjacency rule.
func (f *Function) InsertBefore(target *pcode.Op, op *pcode.Op) error {
	bb, ok := target.Block.(*block.Block)
	if !ok {
		return errNoBlock{}
	}
	idx := indexOf(bb, target)
	if idx < 0 {
		return errNotInBlock{}
	}
	idx -= leadingIndirectRun(bb, idx, target.SeqNum().Addr)
	bb.Ops = append(bb.Ops, nil)
	copy(bb.Ops[idx+1:], bb.Ops[idx:])
	bb.Ops[idx] = op
	op.Block = bb
	return nil
}

type errNoBlock struct{}

func (errNoBlock) Error() string { return "funcdata: target op is not linked to a block" }

type errNotInBlock struct{}

func (errNotInBlock) Error() string { return "funcdata: target op not found in its own block's op list" }

// InsertAfter implements C10 `opInsertAfter`.
func (f *Function) InsertAfter(target *pcode.Op, op *pcode.Op) error {
	bb, ok := target.Block.(*block.Block)
	if !ok {
		return errNoBlock{}
	}
	idx := indexOf(bb, target)
	if idx < 0 {
		return errNotInBlock{}
	}
	idx++
	bb.Ops = append(bb.Ops, nil)
	copy(bb.Ops[idx+1:], bb.Ops[idx:])
	bb.Ops[idx] = op
	op.Block = bb
	return nil
}

// InsertBegin implements C10 `opInsertBegin`: skips the leading run of
// phi ops (spec.md §4.10).
func (f *Function) InsertBegin(bb *block.Block, op *pcode.Op) error {
	idx := len(bb.Phis())
	bb.Ops = append(bb.Ops, nil)
	copy(bb.Ops[idx+1:], bb.Ops[idx:])
	bb.Ops[idx] = op
	op.Block = bb
	return nil
}

// InsertEnd implements C10 `opInsertEnd`.
func (f *Function) InsertEnd(bb *block.Block, op *pcode.Op) error {
	bb.Ops = append(bb.Ops, op)
	op.Block = bb
	return nil
}

// Uninsert implements C10 `opUninsert`: removes op from its block's op
// list without marking it dead, leaving it eligible for re-insertion
// elsewhere.
func (f *Function) Uninsert(op *pcode.Op) error {
	bb, ok := op.Block.(*block.Block)
	if !ok {
		return nil
	}
	idx := indexOf(bb, op)
	if idx < 0 {
		return errNotInBlock{}
	}
	bb.Ops = append(bb.Ops[:idx], bb.Ops[idx+1:]...)
	op.Block = nil
	return nil
}

// Unlink implements C10 `opUnlink`: uninserts op, clears every input use
// and its output definition, and marks it dead, but does not free it
// from the op store (opDestroy does that once truly unreachable).
func (f *Function) Unlink(op *pcode.Op) error {
	_ = f.Uninsert(op)
	for _, in := range op.Inputs {
		if in != nil {
			in.RemoveUse(op)
		}
	}
	if op.Output != nil {
		op.Output.Def = nil
		op.Output = nil
	}
	f.Ops.MarkDead(op)
	return nil
}

// Destroy implements C10 `opDestroy`: unlinks then frees op permanently.
func (f *Function) Destroy(op *pcode.Op) error {
	if err := f.Unlink(op); err != nil {
		return err
	}
	return f.Ops.Destroy(op)
}

// DestroyRaw implements C10 `opDestroyRaw`: frees an already-dead,
// already-unlinked op directly, for callers that performed the unlink
// themselves (e.g. a batch sweep that unlinks a whole dead subgraph
// before freeing any of it, to avoid intermediate dangling uses).
func (f *Function) DestroyRaw(op *pcode.Op) error { return f.Ops.Destroy(op) }

// TotalReplace implements C10 `totalReplace`: every current use of old is
// repointed to repl, and old's uses list is cleared.
func (f *Function) TotalReplace(old, repl *varnode.Varnode) {
	for _, use := range append([]varnode.DefRef(nil), old.Uses...) {
		op, ok := use.(*pcode.Op)
		if !ok {
			continue
		}
		for i, in := range op.Inputs {
			if in == old {
				op.Inputs[i] = repl
				repl.AddUse(op)
			}
		}
	}
	old.Uses = nil
}

// TotalReplaceConstant implements C10 `totalReplaceConstant`: like
// TotalReplace, but allocates a fresh constant cell per distinct op
// sharing ownership of `old` to preserve the never-shared-unless-
// spacebase invariant (spec.md §4.10), rather than handing every use the
// very same constant cell.
func (f *Function) TotalReplaceConstant(old *varnode.Varnode, size int, value uint64) {
	for _, use := range append([]varnode.DefRef(nil), old.Uses...) {
		op, ok := use.(*pcode.Op)
		if !ok {
			continue
		}
		repl := f.Cells.NewConstant(size, value)
		for i, in := range op.Inputs {
			if in == old {
				op.Inputs[i] = repl
				repl.AddUse(op)
			}
		}
	}
	old.Uses = nil
}

// ReplaceOutput implements rewrite.Mutator: every reader of old's output
// cell is repointed at newOp's output, and old is then destroyed. None of
// the rules in internal/rewrite calls it: ConcatWithZero, for one,
// retargets the PIECE op in place rather than replacing it.
func (f *Function) ReplaceOutput(old *pcode.Op, newOp *pcode.Op) error {
	if old.Output != nil && newOp.Output != nil {
		f.TotalReplace(old.Output, newOp.Output)
	}
	return f.Destroy(old)
}

// MakeCopy implements block.CopyFactory: builds a COPY op reading input,
// sized to input's storage, with a fresh unique-space output. Called by
// block.Graph.NodeSplit (spec.md §4.5 scenario 4); the returned op is
// appended to target's op list by the caller, not here.
func (f *Function) MakeCopy(input *varnode.Varnode, target *block.Block) *pcode.Op {
	out := f.NewUniqueOut(input.Storage.Size)
	o := f.Ops.New(input.Storage.Addr, pcode.OpCopy, []*varnode.Varnode{input}, out)
	f.Ops.MarkAlive(o)
	o.Block = target
	return o
}

// Rewrite drives one rewrite.Engine ApplyGroup pass over this function,
// recording a fatal diagnostic if the group's iteration cap is exceeded.
func (f *Function) Rewrite(g *rewrite.Group) (int, *diag.Diagnostic) {
	iterations, d := rewrite.NewEngine(f).ApplyGroup(g)
	f.recordDiag(d)
	return iterations, d
}

// RunHeritage drives one heritage pass over this function's current IR.
func (f *Function) RunHeritage() *diag.Diagnostic {
	d := f.Heritage.Heritage()
	f.recordDiag(d)
	return d
}

// Diagnostics returns every fatal diagnostic accumulated this pass.
func (f *Function) Diagnostics() []*diag.Diagnostic { return f.diags }

func (f *Function) recordDiag(d *diag.Diagnostic) {
	if d != nil {
		f.diags = append(f.diags, d)
	}
}
