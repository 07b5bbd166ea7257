// Package jumptable implements jump-table recovery (C11): the early-fail
// check, partial-function cloning, targeted simplification, destination
// extraction, and staged re-recovery spec.md §4.11 describes for an
// indirect branch. The partial clone copies arenas as value-typed
// snapshots and rewrites cross-references through an id-remapping table
// rather than deep-copying linked structures in place, per spec.md's
// REDESIGN FLAGS note on partial-function cloning; the shape mirrors the
// pack's go/tools ssa package's own use of a fresh value arena per
// function rather than mutating the original in place.
package jumptable

import (
	"github.com/google/uuid"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/block"
	"github.com/decompile/core/internal/diag"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/rewrite"
	"github.com/decompile/core/internal/varnode"
)

// Stage is a jump table's recovery progress (spec.md §4.11 step 5).
type Stage int

const (
	StageUntried Stage = iota
	StagePartial
	StageComplete
)

// ErrCode is the error code returned to the driver (spec.md §4.11).
type ErrCode int

const (
	ErrSuccess     ErrCode = 0
	ErrGeneric     ErrCode = 1
	ErrLikelyThunk ErrCode = 2
	ErrUnreachable ErrCode = 3
)

// Table is one indirect branch's recovered destination set.
type Table struct {
	Branch       *pcode.Op
	Override     []addr.Address
	Targets      []addr.Address
	DefaultIndex int
	Stage        Stage

	// CloneID is a fresh random id generated for the recovery attempt
	// (partial clone) that built this table; no diagnostic text includes it.
	CloneID uuid.UUID
}

// Registry keeps one Table per indirect-branch op, persisted across
// passes so a stage-1 table can be reconsulted on the next outer pass
// (spec.md §4.11 step 5, §3 "jump tables persist once recovered unless
// the branch itself is eliminated").
type Registry struct {
	tables map[*pcode.Op]*Table
}

func NewRegistry() *Registry { return &Registry{tables: make(map[*pcode.Op]*Table)} }

func (r *Registry) Get(branch *pcode.Op) (*Table, bool) {
	t, ok := r.tables[branch]
	return t, ok
}

func (r *Registry) Put(t *Table) { r.tables[t.Branch] = t }

// Forget drops a table, used when the branch op itself is destroyed.
func (r *Registry) Forget(branch *pcode.Op) { delete(r.tables, branch) }

// Container is the narrow slice of a function's editing surface jump
// table recovery needs, kept as an interface to avoid an import cycle
// between jumptable and funcdata (funcdata.Function satisfies this
// structurally without either package importing the other).
type Container interface {
	OpStore() *pcode.Store
	CellStore() *varnode.Store
	BlockGraph() *block.Graph
	Rewrite(g *rewrite.Group) (int, *diag.Diagnostic)
}

// CloneFactory builds a fresh, empty Container sharing the original
// function's address-space identity, supplied by the driver since only
// it knows how to construct one (funcdata.New bound to the same
// code/unique spaces).
type CloneFactory func() Container

// maxEarlyFailWalk bounds the backward walk spec.md §4.11 step 1 and §8
// scenario 6 both describe as "within eight ops".
const maxEarlyFailWalk = 8

// isWriteCandidate reports the op-codes step 1 treats as potential writers of
// the branch's target storage: calls (which may clobber through an
// unmodeled side effect) and direct stores, plus CALLOTHER user-ops that
// were not inlined away by an earlier simplification pass.
func isWriteCandidate(op *pcode.Op) bool {
	switch op.Code {
	case pcode.OpCall, pcode.OpCallind, pcode.OpStore:
		return true
	case pcode.OpCallother:
		return op.Flags&pcode.FlagSpecialProp == 0
	default:
		return false
	}
}

// branchTargetStorage returns the storage location whose value feeds the
// branch's destination computation.
func branchTargetStorage(branch *pcode.Op) addr.Storage {
	if len(branch.Inputs) == 0 || branch.Inputs[0] == nil {
		return addr.Storage{}
	}
	return branch.Inputs[0].Storage
}

// earlyFail implements spec.md §4.11 step 1: walking backward from the
// branch within its block, a call/store/non-inlined-user-op writing to
// storage intersecting the branch target aborts recovery before any
// clone is built.
func earlyFail(branch *pcode.Op, target addr.Storage) bool {
	bb, ok := branch.Block.(*block.Block)
	if !ok {
		return false
	}
	idx := indexInBlock(bb, branch)
	if idx < 0 {
		return false
	}
	for i, steps := idx-1, 0; i >= 0 && steps < maxEarlyFailWalk; i, steps = i-1, steps+1 {
		op := bb.Ops[i]
		if !isWriteCandidate(op) {
			continue
		}
		if op.Output != nil && op.Output.Storage.Overlaps(target) {
			return true
		}
	}
	return false
}

func indexInBlock(bb *block.Block, op *pcode.Op) int {
	for i, o := range bb.Ops {
		if o == op {
			return i
		}
	}
	return -1
}

// Recover runs the full pipeline of spec.md §4.11 for one indirect
// branch. newClone builds the scratch container the partial simplification
// runs against; group is the "jumptable" action group (spec.md §4.6).
func Recover(orig Container, branch *pcode.Op, newClone CloneFactory, group *rewrite.Group, reg *Registry) (*Table, ErrCode, *diag.Diagnostic) {
	if branch.Code != pcode.OpBranchind {
		return nil, ErrGeneric, diag.NewRecoveryFailure(branch.SeqNum().Addr, "jump-table recovery requires a BRANCHIND op, got %s", branch.Code)
	}

	if existing, ok := reg.Get(branch); ok && existing.Stage == StageComplete {
		return existing, ErrSuccess, nil
	}

	target := branchTargetStorage(branch)
	if earlyFail(branch, target) {
		return nil, ErrGeneric, nil
	}

	branchBlock, ok := branch.Block.(*block.Block)
	if !ok {
		return nil, ErrGeneric, diag.NewRecoveryFailure(branch.SeqNum().Addr, "branch is not linked into a block")
	}

	clone := newClone()
	cloneID := uuid.New()

	cellMap := make(map[*varnode.Varnode]*varnode.Varnode)
	blockMap := cloneTruncatedFlow(orig, clone, branchBlock, cellMap)
	opMap := make(map[*pcode.Op]*pcode.Op)
	copyDeadOps(orig, clone, cellMap, opMap)

	clonedBranch := findClonedOp(clone, blockMap[branchBlock], branch)
	if clonedBranch == nil {
		return nil, ErrGeneric, diag.NewRecoveryFailure(branch.SeqNum().Addr, "clone did not retain the branch op")
	}

	if _, d := clone.Rewrite(group); d != nil {
		return nil, ErrGeneric, d
	}

	for _, removed := range clone.BlockGraph().RemoveUnreachable() {
		if removed == blockMap[branchBlock] {
			return nil, ErrUnreachable, nil
		}
	}

	targets, defaultIdx, code := extractAddresses(clonedBranch, branch, reg)
	if code != ErrSuccess {
		return nil, code, nil
	}

	t := &Table{Branch: branch, Targets: targets, DefaultIndex: defaultIdx, CloneID: cloneID}
	if existing, ok := reg.Get(branch); ok {
		t.Override = existing.Override
	}
	if len(t.Override) > 0 && len(t.Override) < len(targets) {
		// Conservative rule (spec.md open question): an override supplying
		// fewer targets than the clone found replaces the clone's targets
		// and leaves the table partial; the successors it does not map are
		// not flagged GotoOut, here or elsewhere.
		t.Targets = t.Override
		t.Stage = StagePartial
	} else {
		t.Stage = StageComplete
	}
	reg.Put(t)
	return t, ErrSuccess, nil
}

// cloneTruncatedFlow copies every block that can reach branchBlock
// (inclusive) into clone, preserving intra-scope edges but installing no
// out-edges from branchBlock itself: the clone's flow ends at the
// indirect branch's own block, whose successors are not copied
// (spec.md §4.11 step 2).
func cloneTruncatedFlow(orig Container, clone Container, branchBlock *block.Block, cellMap map[*varnode.Varnode]*varnode.Varnode) map[*block.Block]*block.Block {
	entry := orig.BlockGraph().Entry()
	var rawScope []*block.Block
	if entry != nil {
		rawScope = orig.BlockGraph().CollectReachableBackward(branchBlock, entry)
	} else {
		rawScope = []*block.Block{branchBlock}
	}
	var scope []*block.Block
	seen := make(map[*block.Block]bool, len(rawScope))
	for _, bb := range rawScope {
		if !seen[bb] {
			seen[bb] = true
			scope = append(scope, bb)
		}
	}

	blockMap := make(map[*block.Block]*block.Block, len(scope))
	for _, bb := range scope {
		blockMap[bb] = clone.BlockGraph().NewBlockBasic()
	}

	for _, bb := range scope {
		nb := blockMap[bb]
		for _, op := range bb.Ops {
			nb.Ops = append(nb.Ops, cloneOp(clone, op, cellMap, nb))
		}
		if bb == branchBlock {
			continue // truncated: no out-edges copied past the branch
		}
		for _, e := range bb.Out {
			if to, ok := blockMap[e.To]; ok {
				clone.BlockGraph().AddEdge(nb, to)
			}
		}
	}
	return blockMap
}

// cloneOp builds a value-typed copy of op in clone's op store, remapping
// every input/output varnode through cellMap (allocating a fresh clone
// cell on first reference) so the two functions share no mutable state.
func cloneOp(clone Container, op *pcode.Op, cellMap map[*varnode.Varnode]*varnode.Varnode, bb *block.Block) *pcode.Op {
	inputs := make([]*varnode.Varnode, len(op.Inputs))
	for i, in := range op.Inputs {
		inputs[i] = cloneCell(clone, in, cellMap)
	}
	var out *varnode.Varnode
	if op.Output != nil {
		out = cloneCell(clone, op.Output, cellMap)
	}
	no := clone.OpStore().New(op.SeqNum().Addr, op.Code, inputs, out)
	clone.OpStore().MarkAlive(no)
	no.Flags = op.Flags
	no.Block = bb
	return no
}

func cloneCell(clone Container, v *varnode.Varnode, cellMap map[*varnode.Varnode]*varnode.Varnode) *varnode.Varnode {
	if v == nil {
		return nil
	}
	if nv, ok := cellMap[v]; ok {
		return nv
	}
	var nv *varnode.Varnode
	if v.Flags&varnode.FlagConstant != 0 {
		nv = clone.CellStore().NewConstant(v.Storage.Size, v.Storage.Addr.Offset)
	} else {
		nv = clone.CellStore().New(v.Storage)
		nv.Flags = v.Flags &^ varnode.FlagFree
		if v.Flags&varnode.FlagInput != 0 {
			_ = clone.CellStore().SetInput(nv)
		}
	}
	cellMap[v] = nv
	return nv
}

// copyDeadOps copies the original function's dead-list ops into the
// clone's dead list (spec.md §4.11 step 2): analysis already discarded
// these from the live flow, but the targeted simplification group may
// still want their defining context when re-deriving a load expression
// that an earlier pass partly folded away.
func copyDeadOps(orig Container, clone Container, cellMap map[*varnode.Varnode]*varnode.Varnode, opMap map[*pcode.Op]*pcode.Op) {
	for _, op := range orig.OpStore().Dead() {
		inputs := make([]*varnode.Varnode, len(op.Inputs))
		for i, in := range op.Inputs {
			inputs[i] = cloneCell(clone, in, cellMap)
		}
		var out *varnode.Varnode
		if op.Output != nil {
			out = cloneCell(clone, op.Output, cellMap)
		}
		no := clone.OpStore().New(op.SeqNum().Addr, op.Code, inputs, out)
		opMap[op] = no
	}
}

func findClonedOp(clone Container, cloneBlock *block.Block, orig *pcode.Op) *pcode.Op {
	if cloneBlock == nil {
		return nil
	}
	for _, o := range cloneBlock.Ops {
		if o.Code == orig.Code && o.SeqNum().Addr == orig.SeqNum().Addr {
			return o
		}
	}
	return nil
}

// extractAddresses implements spec.md §4.11 step 4: follow the simplified
// branch's pointer expression.
//
// Shapes are tried in this order: a phi merging only constant inputs is a
// genuine bounded switch where every arm's address propagated through to
// the branch, and its inputs become the table (the last arm,
// conventionally the fall-through case, is taken as the default edge);
// failing that, a caller-supplied override is used as the table; failing
// both, a single resolved constant means the simplifier collapsed the
// whole computation to one fixed destination, the shape a
// jump-through-GOT/PLT thunk produces rather than a real switch, so it is
// reported as "likely a thunk" instead of a one-entry table. Anything else
// crosses the truncation boundary and cannot be resolved by this
// conservative extractor.
func extractAddresses(clonedBranch, origBranch *pcode.Op, reg *Registry) ([]addr.Address, int, ErrCode) {
	src := clonedBranch.Inputs[0]
	if src != nil {
		if phi, ok := src.Def.(*pcode.Op); ok && phi.IsPhi() && len(phi.Inputs) > 0 {
			targets := make([]addr.Address, 0, len(phi.Inputs))
			for _, in := range phi.Inputs {
				if in == nil || in.Flags&varnode.FlagConstant == 0 {
					targets = nil
					break
				}
				targets = append(targets, addr.Address{Space: in.Storage.Addr.Space, Offset: in.Storage.Addr.Offset})
			}
			if targets != nil {
				return targets, len(targets) - 1, ErrSuccess
			}
		}
	}
	if existing, ok := reg.Get(origBranch); ok && len(existing.Override) > 0 {
		return existing.Override, len(existing.Override) - 1, ErrSuccess
	}
	if src != nil && src.Flags&varnode.FlagConstant != 0 {
		return []addr.Address{{Space: src.Storage.Addr.Space, Offset: src.Storage.Addr.Offset}}, 0, ErrLikelyThunk
	}
	return nil, 0, ErrGeneric
}
