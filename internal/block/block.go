// Package block implements the basic-block graph (C5): blocks, edges,
// and the two hierarchies the function container owns — the raw CFG and
// a structured tree recomputed from it after every edit.
package block

import (
	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/intsetutil"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

// Flag is a bitmask of Block attributes (spec.md §3).
type Flag uint32

const (
	FlagEntry Flag = 1 << iota
	FlagDead
	FlagSwitchOut
	FlagDuplicate
	FlagJoined
	FlagDefaultSwitchTarget
)

// Edge connects two blocks. GotoOut marks an edge that the structuring
// pass renders as a goto instead of following it. Nothing in this module
// sets it: neither the structuring pass nor jump-table recovery flags an
// edge GotoOut.
type Edge struct {
	From, To     *Block
	GotoOut      bool
	GotoBranch   bool // structured-tree "goto" rendering hint per out-edge
}

// Block is a contiguous run of operations with one predecessor list and
// one successor list.
type Block struct {
	index int
	Ops   []*pcode.Op
	In    []*Edge
	Out   []*Edge

	Dominator   *Block
	LoopHeaders []*Block
	Cover       addr.Range
	Flags       Flag
}

// Index implements pcode.BlockRef.
func (b *Block) Index() int { return b.index }

// Phis returns the leading run of phi ops (spec.md §3 invariant: phi ops
// precede all non-phi ops).
func (b *Block) Phis() []*pcode.Op {
	var out []*pcode.Op
	for _, op := range b.Ops {
		if !op.IsPhi() {
			break
		}
		out = append(out, op)
	}
	return out
}

// LastOp returns the block's terminal op, or nil if empty.
func (b *Block) LastOp() *pcode.Op {
	if len(b.Ops) == 0 {
		return nil
	}
	return b.Ops[len(b.Ops)-1]
}

// InEdgeIndex returns the index of e within b.In, or -1.
func (b *Block) InEdgeIndex(e *Edge) int {
	for i, x := range b.In {
		if x == e {
			return i
		}
	}
	return -1
}

// Graph owns every block and edge of one function's CFG, plus the
// structured tree rebuilt lazily from it.
type Graph struct {
	blocks    []*Block
	nextIndex int
	entry     *Block

	structureDirty bool
	root           *StructNode
}

func NewGraph() *Graph { return &Graph{structureDirty: true} }

// NewBlockBasic allocates an empty block and appends it to the graph.
func (g *Graph) NewBlockBasic() *Block {
	b := &Block{index: g.nextIndex}
	g.nextIndex++
	g.blocks = append(g.blocks, b)
	if g.entry == nil {
		b.Flags |= FlagEntry
		g.entry = b
	}
	g.structureDirty = true
	return b
}

func (g *Graph) Entry() *Block   { return g.entry }
func (g *Graph) Blocks() []*Block { return g.blocks }

// AddEdge connects from->to, appending to both edge lists.
func (g *Graph) AddEdge(from, to *Block) *Edge {
	e := &Edge{From: from, To: to}
	from.Out = append(from.Out, e)
	to.In = append(to.In, e)
	g.structureDirty = true
	return e
}

// RemoveEdge deletes e from both endpoints' edge lists. Does not patch
// phi ops; callers needing the phi-preserving removal use RemoveFromFlow.
func (g *Graph) RemoveEdge(e *Edge) {
	e.From.Out = removeEdge(e.From.Out, e)
	e.To.In = removeEdge(e.To.In, e)
	g.structureDirty = true
}

func removeEdge(list []*Edge, e *Edge) []*Edge {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// SwitchEdge repoints e's destination (or source, if isOut is false) to
// newBlock, maintaining both endpoints' edge lists.
func (g *Graph) SwitchEdge(e *Edge, newBlock *Block, isOut bool) {
	if isOut {
		e.To.In = removeEdge(e.To.In, e)
		e.To = newBlock
		newBlock.In = append(newBlock.In, e)
	} else {
		e.From.Out = removeEdge(e.From.Out, e)
		e.From = newBlock
		newBlock.Out = append(newBlock.Out, e)
	}
	g.structureDirty = true
}

// MoveOutEdge relocates an out-edge of src to instead originate at dst,
// preserving its destination and GotoOut/GotoBranch flags.
func (g *Graph) MoveOutEdge(src, dst *Block, e *Edge) {
	src.Out = removeEdge(src.Out, e)
	e.From = dst
	dst.Out = append(dst.Out, e)
	g.structureDirty = true
}

// RemoveFromFlow deletes b from the graph, rewiring each predecessor
// directly to each successor (straight-line collapse), and patches phi
// ops in successors per spec.md §4.5: the dropped in-edge's slot is
// removed from every phi, and one input per new bypass edge is appended,
// in b's in-edge order, the same order the bypass edges are appended to
// the successor's In list. If b itself defined the dropped value via one
// of its own phis, that phi's inputs are the appended ones, so data-flow
// survives the removal.
func (g *Graph) RemoveFromFlow(b *Block) {
	for _, succEdge := range append([]*Edge(nil), b.Out...) {
		succ := succEdge.To
		slot := succ.InEdgeIndex(succEdge)
		if slot < 0 {
			continue
		}
		for _, phi := range succ.Phis() {
			dropped := phi.Inputs[slot]
			var repl []*varnode.Varnode
			// If the dropped value was itself defined by a phi in b, that
			// phi's inputs (one per b in-edge) replace the dropped slot.
			if def, ok := dropped.Def.(*pcode.Op); ok && def.IsPhi() && def.Block == b {
				repl = def.Inputs
			} else {
				// dropped isn't defined in b, so it reaches succ unchanged no
				// matter which of b's predecessors is taken: one copy of it
				// per bypass edge b's removal creates below, so phi arity
				// stays equal to succ's in-edge count.
				repl = make([]*varnode.Varnode, len(b.In))
				for i := range repl {
					repl[i] = dropped
				}
			}
			phi.Inputs = append(removeSlot(phi.Inputs, slot), repl...)
		}
		succ.In = removeEdge(succ.In, succEdge)
	}

	for _, predEdge := range append([]*Edge(nil), b.In...) {
		pred := predEdge.From
		pred.Out = removeEdge(pred.Out, predEdge)
		for _, succEdge := range b.Out {
			g.AddEdge(pred, succEdge.To)
		}
	}

	g.removeBlockOnly(b)
}

func removeSlot[T any](s []T, i int) []T {
	if i < 0 || i >= len(s) {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

func spliceSlot[T any](s []T, i int, repl []T) []T {
	if i < 0 || i >= len(s) {
		return s
	}
	out := append([]T{}, s[:i]...)
	out = append(out, repl...)
	out = append(out, s[i+1:]...)
	return out
}

// RemoveBlock deletes an already-unreachable block (no in/out edges left
// to rewire) from the graph. Use RemoveFromFlow when b still has edges
// that need phi-preserving collapse.
func (g *Graph) RemoveBlock(b *Block) { g.removeBlockOnly(b) }

func (g *Graph) removeBlockOnly(b *Block) {
	for i, x := range g.blocks {
		if x == b {
			g.blocks = append(g.blocks[:i], g.blocks[i+1:]...)
			break
		}
	}
	g.structureDirty = true
}

// CopyFactory builds a COPY op reading input and appends it to the
// caller's op store/varnode store, returning the finished op. Supplied by
// funcdata, which alone owns the varnode/pcode stores needed to allocate
// a new output cell and sequence number.
type CopyFactory func(input *varnode.Varnode, target *Block) *pcode.Op

// NodeSplit duplicates b's single in-edge at index inedge onto a fresh
// clone block; each phi in b contributes a COPY of its corresponding
// input to the clone (via mkCopy) and loses that input slot in the
// original (spec.md §4.5, scenario 4). NodeSplit performs only this
// edge/phi surgery: the clone receives the COPY ops and nothing else, so
// b's non-phi ops are not duplicated into it and no caller copies them.
func (g *Graph) NodeSplit(b *Block, inedge int, mkCopy CopyFactory) (*Block, error) {
	if inedge < 0 || inedge >= len(b.In) {
		return nil, errBadInEdge{inedge}
	}
	clone := g.NewBlockBasic()
	clone.Flags |= FlagDuplicate

	movedEdge := b.In[inedge]
	g.SwitchEdge(movedEdge, clone, true)

	for _, phi := range b.Phis() {
		input := phi.Inputs[inedge]
		cp := mkCopy(input, clone)
		clone.Ops = append(clone.Ops, cp)
		phi.Inputs = removeSlot(phi.Inputs, inedge)
	}

	g.structureDirty = true
	return clone, nil
}

type errBadInEdge struct{ inedge int }

func (e errBadInEdge) Error() string { return "block: in-edge index out of range for node split" }

// CollectReachable returns every block reachable from start, using a
// sparse bit-set (golang.org/x/tools/container/intsets.Sparse) keyed by
// block index rather than a map[int]bool.
func (g *Graph) CollectReachable(start *Block) []*Block {
	seen := intsetutil.NewSparse()
	var order []*Block
	stack := []*Block{start}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Has(b.index) {
			continue
		}
		seen.Insert(b.index)
		order = append(order, b)
		for _, e := range b.Out {
			if !seen.Has(e.To.index) {
				stack = append(stack, e.To)
			}
		}
	}
	return order
}

// RemoveUnreachable deletes every block not reachable from the entry,
// returning the set removed.
func (g *Graph) RemoveUnreachable() []*Block {
	if g.entry == nil {
		return nil
	}
	reach := intsetutil.NewSparse()
	for _, b := range g.CollectReachable(g.entry) {
		reach.Insert(b.index)
	}
	var dead []*Block
	for _, b := range append([]*Block(nil), g.blocks...) {
		if !reach.Has(b.index) {
			dead = append(dead, b)
			b.Flags |= FlagDead
			for _, e := range append([]*Edge(nil), b.Out...) {
				g.RemoveEdge(e)
			}
			for _, e := range append([]*Edge(nil), b.In...) {
				g.RemoveEdge(e)
			}
			g.removeBlockOnly(b)
		}
	}
	return dead
}
