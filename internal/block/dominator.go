package block

// ComputeDominators runs the standard iterative dominator algorithm
// (Cooper/Harvey/Kennedy) over the graph and stores each block's
// immediate dominator in Block.Dominator. Required before heritage can
// compute dominance frontiers (spec.md §4.7).
func (g *Graph) ComputeDominators() {
	if g.entry == nil {
		return
	}
	order := g.reversePostorder()
	rpoIndex := make(map[*Block]int, len(order))
	for i, b := range order {
		rpoIndex[b] = i
	}

	g.entry.Dominator = g.entry
	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == g.entry {
				continue
			}
			var newIdom *Block
			for _, e := range b.In {
				pred := e.From
				if pred.Dominator == nil {
					continue
				}
				if newIdom == nil {
					newIdom = pred
					continue
				}
				newIdom = intersect(newIdom, pred, rpoIndex)
			}
			if newIdom != b.Dominator {
				b.Dominator = newIdom
				changed = true
			}
		}
	}
	g.entry.Dominator = nil // entry has no dominator, by convention
}

func intersect(a, b *Block, rpo map[*Block]int) *Block {
	for a != b {
		for rpo[a] > rpo[b] {
			a = a.Dominator
		}
		for rpo[b] > rpo[a] {
			b = b.Dominator
		}
	}
	return a
}

func (g *Graph) reversePostorder() []*Block {
	visited := make(map[*Block]bool, len(g.blocks))
	var post []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range b.Out {
			visit(e.To)
		}
		post = append(post, b)
	}
	visit(g.entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// DominanceFrontier computes the dominance frontier set for every block,
// keyed by block index, using the standard Cytron et al. algorithm. Used
// by heritage to decide where phi nodes are required.
func (g *Graph) DominanceFrontier() map[int][]*Block {
	df := make(map[int][]*Block)
	for _, b := range g.blocks {
		if len(b.In) < 2 {
			continue
		}
		for _, e := range b.In {
			runner := e.From
			for runner != nil && runner != b.Dominator {
				df[runner.index] = appendUnique(df[runner.index], b)
				runner = runner.Dominator
			}
		}
	}
	return df
}

func appendUnique(list []*Block, b *Block) []*Block {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}

// DetectLoops finds every back edge (an edge whose destination dominates
// its source) and adds that edge's destination, the loop header, to
// Block.LoopHeaders of every block in the loop's body.
func (g *Graph) DetectLoops() {
	for _, b := range g.blocks {
		b.LoopHeaders = nil
	}
	for _, b := range g.blocks {
		for _, e := range b.Out {
			if dominates(e.To, b) {
				for _, body := range g.CollectReachableBackward(b, e.To) {
					body.LoopHeaders = appendUnique(body.LoopHeaders, e.To)
				}
			}
		}
	}
}

func dominates(a, b *Block) bool {
	for c := b; c != nil; c = c.Dominator {
		if c == a {
			return true
		}
		if c.Dominator == c {
			break
		}
	}
	return a == b
}

// CollectReachableBackward walks predecessors from tail back to head
// (inclusive), collecting the natural loop body.
func (g *Graph) CollectReachableBackward(tail, head *Block) []*Block {
	seen := map[*Block]bool{head: true, tail: true}
	stack := []*Block{tail}
	order := []*Block{head, tail}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range b.In {
			if !seen[e.From] {
				seen[e.From] = true
				order = append(order, e.From)
				stack = append(stack, e.From)
			}
		}
	}
	return order
}
