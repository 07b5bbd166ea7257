// Package heritage implements the SSA builder (C7): dominance-frontier
// phi placement, a rename pass establishing single-definition form per
// storage location, and the load/store alias guards later passes consult.
// The worklist shape (per-space pass state, dominance-frontier phi
// insertion, a block-recursive rename with a scoped copy of the current
// definition map) is grounded on the classic Cytron-et-al renaming
// algorithm as shown in the pack's go/tools ssa/lift.go reference, adapted
// onto this repo's addr.Space/block.Graph/varnode.Store model instead of
// an alloc/BasicBlock one.
package heritage

import (
	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/block"
	"github.com/decompile/core/internal/diag"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

// SpaceState is the per-address-space bookkeeping spec.md §4.7 names.
type SpaceState struct {
	PassCount        int
	DeadRemovalDelay int
	SeenDead         bool
}

// Guard pairs a symbolic load/store op with the value range its pointer
// can take, used by later passes to conservatively invalidate aliasing
// cells (spec.md §4.7).
type Guard struct {
	Op        *pcode.Op
	Range     addr.Range
	Resolved  bool
	Deferrals int
}

// MaxDeferrals bounds how many times a guard may be re-tried before its
// cell is reported as not-yet-heritaged (spec.md §4.7 "bounded number of
// deferrals").
const MaxDeferrals = 8

// NewOpFunc allocates a fresh op in the caller's pcode.Store; supplied by
// funcdata since only it owns both the op and varnode stores a phi
// insertion needs.
type NewOpFunc func(a addr.Address, code pcode.OpCode, inputs []*varnode.Varnode, out *varnode.Varnode) *pcode.Op

// NewCellFunc allocates a fresh varnode with the given storage; supplied
// by funcdata.
type NewCellFunc func(st addr.Storage) *varnode.Varnode

// Builder drives one function's heritage pass.
type Builder struct {
	Graph   *block.Graph
	Ops     *pcode.Store
	Cells   *varnode.Store
	NewOp   NewOpFunc
	NewCell NewCellFunc

	spaces map[*addr.Space]*SpaceState
	guards []*Guard
}

func NewBuilder(g *block.Graph, ops *pcode.Store, cells *varnode.Store, newOp NewOpFunc, newCell NewCellFunc) *Builder {
	return &Builder{
		Graph: g, Ops: ops, Cells: cells, NewOp: newOp, NewCell: newCell,
		spaces: make(map[*addr.Space]*SpaceState),
	}
}

func (b *Builder) stateFor(sp *addr.Space) *SpaceState {
	st, ok := b.spaces[sp]
	if !ok {
		st = &SpaceState{}
		b.spaces[sp] = st
	}
	return st
}

// NotifyDead marks that a dead cell was observed in sp's space (SeenDead);
// it does not consult DeadRemovalDelay.
func (b *Builder) NotifyDead(sp *addr.Space) { b.stateFor(sp).SeenDead = true }

// RequestDeadRemovalDelay extends sp's grace period before dead cells in
// that space may be reclaimed.
func (b *Builder) RequestDeadRemovalDelay(sp *addr.Space, delay int) {
	st := b.stateFor(sp)
	if delay > st.DeadRemovalDelay {
		st.DeadRemovalDelay = delay
	}
}

// storageKey groups cells that heritage treats as one renaming target:
// same space and same exact [addr,size) footprint.
type storageKey struct {
	sp     *addr.Space
	offset uint64
	size   int
}

// Heritage runs one heritage pass over every storage footprint (same
// space, offset and size) with more than one defining cell: computes
// dominance frontiers, places phis, and renames to single-definition form
// (spec.md §4.7). Footprints are matched exactly; a write that only
// partially overlaps another footprint is not split.
func (b *Builder) Heritage() *diag.Diagnostic {
	b.Graph.ComputeDominators()
	df := b.Graph.DominanceFrontier()

	locations := b.collectMultiDefLocations()
	for _, key := range locations {
		b.stateFor(key.sp).PassCount++
		defBlocks := b.defBlocksFor(key)
		phiBlocks := b.placePhis(key, defBlocks, df)
		renaming := make(map[*block.Block]*varnode.Varnode)
		b.rename(b.Graph.Entry(), key, phiBlocks, renaming, make(map[*block.Block]bool))
	}
	return nil
}

// collectMultiDefLocations finds every storage footprint with more than
// one definer among the function's live cells — candidates for phi
// placement. Single-definer locations are already in SSA form and are
// skipped.
func (b *Builder) collectMultiDefLocations() []storageKey {
	counts := make(map[storageKey]int)
	for _, v := range b.Cells.All() {
		if v.Flags&varnode.FlagConstant != 0 || v.Def == nil {
			continue
		}
		k := storageKey{sp: v.Storage.Addr.Space, offset: v.Storage.Addr.Offset, size: v.Storage.Size}
		counts[k]++
	}
	var out []storageKey
	for k, n := range counts {
		if n > 1 {
			out = append(out, k)
		}
	}
	return out
}

func (b *Builder) defBlocksFor(key storageKey) []*block.Block {
	var out []*block.Block
	for _, v := range b.Cells.All() {
		if v.Storage.Addr.Space != key.sp || v.Storage.Addr.Offset != key.offset || v.Storage.Size != key.size {
			continue
		}
		op, ok := v.Def.(*pcode.Op)
		if !ok {
			continue
		}
		if bb, ok := op.Block.(*block.Block); ok {
			out = appendUniqueBlock(out, bb)
		}
	}
	return out
}

func appendUniqueBlock(list []*block.Block, b *block.Block) []*block.Block {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}

// placePhis computes the standard iterated dominance frontier closure and
// inserts a MULTIEQUAL op at the head of each target block, returning the
// set of blocks that received one.
func (b *Builder) placePhis(key storageKey, defBlocks []*block.Block, df map[int][]*block.Block) map[*block.Block]*pcode.Op {
	hasPhi := make(map[*block.Block]*pcode.Op)
	worklist := append([]*block.Block(nil), defBlocks...)
	everOnWorklist := make(map[*block.Block]bool)
	for _, bb := range worklist {
		everOnWorklist[bb] = true
	}
	for len(worklist) > 0 {
		d := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, target := range df[d.Index()] {
			if hasPhi[target] != nil {
				continue
			}
			st := b.NewCell(addr.Storage{Addr: addr.Address{Space: key.sp, Offset: key.offset}, Size: key.size})
			inputs := make([]*varnode.Varnode, len(target.In))
			phi := b.NewOp(addr.Address{Space: key.sp, Offset: key.offset}, pcode.OpMultiequal, inputs, st)
			phi.Flags |= pcode.FlagStartMark
			phi.Block = target
			target.Ops = append([]*pcode.Op{phi}, target.Ops...)
			hasPhi[target] = phi
			if !everOnWorklist[target] {
				everOnWorklist[target] = true
				worklist = append(worklist, target)
			}
		}
	}
	return hasPhi
}

// rename implements the Cytron-et-al renaming walk: u is visited with the
// current definition map for key (one value per predecessor slot is
// resolved as each successor's phi input is filled), recursing over u's
// dominator-tree children in CFG order.
func (b *Builder) rename(u *block.Block, key storageKey, phis map[*block.Block]*pcode.Op, current map[*block.Block]*varnode.Varnode, visited map[*block.Block]bool) {
	if visited[u] {
		return
	}
	visited[u] = true

	if phi, ok := phis[u]; ok {
		current[u] = phi.Output
	}
	for _, op := range u.Ops {
		if op.IsPhi() || op.Output == nil {
			continue
		}
		s := op.Output.Storage
		if s.Addr.Space == key.sp && s.Addr.Offset == key.offset && s.Size == key.size {
			current[u] = op.Output
		}
	}

	for _, e := range u.Out {
		succ := e.To
		if phi, ok := phis[succ]; ok {
			slot := succ.InEdgeIndex(e)
			if slot >= 0 && slot < len(phi.Inputs) {
				phi.Inputs[slot] = latestDef(current, u)
			}
		}
	}

	for _, child := range dominatorChildren(b.Graph, u) {
		childCurrent := make(map[*block.Block]*varnode.Varnode, len(current))
		for k, v := range current {
			childCurrent[k] = v
		}
		b.rename(child, key, phis, childCurrent, visited)
	}
}

// dominatorChildren returns every block whose immediate dominator is u,
// in graph creation order.
func dominatorChildren(g *block.Graph, u *block.Block) []*block.Block {
	var out []*block.Block
	for _, bb := range g.Blocks() {
		if bb == u {
			continue
		}
		if bb.Dominator == u {
			out = append(out, bb)
		}
	}
	return out
}

func latestDef(current map[*block.Block]*varnode.Varnode, from *block.Block) *varnode.Varnode {
	for b := from; b != nil; b = b.Dominator {
		if v, ok := current[b]; ok {
			return v
		}
		if b.Dominator == b {
			break
		}
	}
	return nil
}

// RecordGuard registers a symbolic load/store's alias guard.
func (b *Builder) RecordGuard(op *pcode.Op, r addr.Range) *Guard {
	g := &Guard{Op: op, Range: r}
	b.guards = append(b.guards, g)
	return g
}

// ResolveGuard marks g resolved so cells intersecting it may now be
// heritaged.
func (b *Builder) ResolveGuard(g *Guard) { g.Resolved = true }

// Defer reports whether v's storage intersects an unresolved guard; if so
// it increments that guard's deferral count and returns true (caller must
// refrain from replacing v's reads with constants this pass) unless the
// deferral bound has been exceeded, in which case it returns false so the
// caller can report the cell not-yet-heritaged and proceed anyway
// (spec.md §4.7 "bounded number of deferrals").
func (b *Builder) Defer(v *varnode.Varnode) (shouldDefer bool, exceeded bool) {
	for _, g := range b.guards {
		if g.Resolved {
			continue
		}
		if !intersectsGuard(v, g) {
			continue
		}
		g.Deferrals++
		if g.Deferrals > MaxDeferrals {
			return false, true
		}
		return true, false
	}
	return false, false
}

func intersectsGuard(v *varnode.Varnode, g *Guard) bool {
	return g.Range.Overlaps(v.Storage.Range())
}
