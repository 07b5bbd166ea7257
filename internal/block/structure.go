package block

// StructKind enumerates the composite node kinds the structuring pass
// assembles the CFG into (spec.md §3 "Block graph").
type StructKind int

const (
	StructSequence StructKind = iota
	StructIfThen
	StructIfElse
	StructWhile
	StructDoWhile
	StructSwitch
	StructInfiniteLoop
	StructGoto
	StructLeaf // wraps a single raw Block
)

// StructNode is one node of the structured tree. Leaf nodes wrap a single
// basic block; composite nodes wrap their structured children in
// evaluation/appearance order.
type StructNode struct {
	Kind     StructKind
	Block    *Block // set only for StructLeaf
	Children []*StructNode
}

// StructureLoops rebuilds the structured tree from the current CFG. Any
// control-flow edit invalidates the cached tree (spec.md §4.5); this is
// the lazy recompute entry point queried on next Structured() call.
func (g *Graph) StructureLoops() *StructNode {
	g.DetectLoops()
	g.root = g.structureFrom(g.entry, map[*Block]bool{})
	g.structureDirty = false
	return g.root
}

// Structured returns the structured tree, rebuilding it first if any edit
// has invalidated it since the last call.
func (g *Graph) Structured() *StructNode {
	if g.structureDirty || g.root == nil {
		return g.StructureLoops()
	}
	return g.root
}

// structureFrom performs a simple recursive region-matching pass: loop
// headers become While nodes wrapping their body (InfiniteLoop when the
// body is empty),
// two-way branches become IfThen/IfElse, and anything left over is a
// Sequence of Leaf/Goto nodes. This is not a full interval-based
// structuring algorithm (out of scope per spec.md §1's "pretty-printer
// formatting rules" non-goal boundary) — it produces a tree sufficient for
// the pretty-printer contract (C16) to walk, not a minimal one.
func (g *Graph) structureFrom(start *Block, visited map[*Block]bool) *StructNode {
	var seq []*StructNode
	b := start
	for b != nil && !visited[b] {
		visited[b] = true
		if isLoopHeader(b) {
			body := g.structureLoopBody(b, visited)
			seq = append(seq, body)
			b = exitOf(b)
			continue
		}
		if len(b.Out) == 2 {
			seq = append(seq, g.structureBranch(b, visited))
			return sequenceOf(seq)
		}
		seq = append(seq, &StructNode{Kind: StructLeaf, Block: b})
		if len(b.Out) == 1 {
			nb := b.Out[0].To
			if b.Out[0].GotoOut || visited[nb] {
				if visited[nb] {
					seq = append(seq, &StructNode{Kind: StructGoto, Block: nb})
				}
				break
			}
			b = nb
			continue
		}
		break
	}
	return sequenceOf(seq)
}

func isLoopHeader(b *Block) bool {
	for _, h := range b.LoopHeaders {
		if h == b {
			return true
		}
	}
	return false
}

func exitOf(header *Block) *Block {
	for _, e := range header.Out {
		inLoop := false
		for _, h := range e.To.LoopHeaders {
			if h == header {
				inLoop = true
				break
			}
		}
		if !inLoop {
			return e.To
		}
	}
	return nil
}

func (g *Graph) structureLoopBody(header *Block, visited map[*Block]bool) *StructNode {
	body := &StructNode{Kind: StructWhile, Block: header}
	for _, e := range header.Out {
		for _, h := range e.To.LoopHeaders {
			if h == header && !visited[e.To] {
				body.Children = append(body.Children, g.structureFrom(e.To, visited))
			}
		}
	}
	if len(body.Children) == 0 {
		body.Kind = StructInfiniteLoop
	}
	return body
}

func (g *Graph) structureBranch(b *Block, visited map[*Block]bool) *StructNode {
	thenB, elseB := b.Out[0].To, b.Out[1].To
	node := &StructNode{Kind: StructIfElse, Block: b}
	if !visited[thenB] {
		node.Children = append(node.Children, g.structureFrom(thenB, visited))
	}
	if !visited[elseB] {
		node.Children = append(node.Children, g.structureFrom(elseB, visited))
	} else {
		node.Kind = StructIfThen
	}
	return node
}

func sequenceOf(nodes []*StructNode) *StructNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &StructNode{Kind: StructSequence, Children: nodes}
}
