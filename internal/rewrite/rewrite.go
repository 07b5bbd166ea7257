// Package rewrite implements the rewrite-rule framework (C6): op-code
// keyed local rewrite rules grouped into actions, applied iteratively to
// a fixed point. Scheduling shape is modeled on the teacher's
// vm.DebugHook callback (sentra-language-sentra/internal/vm/vm.go,
// OnInstruction returning a bool), generalized into Rule.Apply returning
// whether it changed the IR and should trigger a re-visit.
package rewrite

import (
	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/diag"
	"github.com/decompile/core/internal/pcode"
)

// Editor is the narrow slice of the function container's mutation API
// (C10, spec.md §4.10) that rules are allowed to call. Kept as an
// interface here to avoid a rewrite<->funcdata import cycle: funcdata
// implements Editor and passes itself into the rewrite Engine.
type Editor interface {
	OpStore() *pcode.Store
}

// Rule matches one or more op-codes and attempts a local rewrite.
type Rule struct {
	Name    string
	Filter  []pcode.OpCode
	Apply   func(op *pcode.Op, ed Editor) (changed bool)
}

func (r Rule) handles(code pcode.OpCode) bool {
	for _, c := range r.Filter {
		if c == code {
			return true
		}
	}
	return false
}

// Action is an ordered collection of rules and sub-actions.
type Action struct {
	Name  string
	Rules []Rule
	Subs  []*Action
}

// flatten returns every rule reachable from a, in registration order
// (rules first, then sub-action rules depth-first), matching spec.md
// §4.6's "rules... in registration order".
func (a *Action) flatten() []Rule {
	out := append([]Rule(nil), a.Rules...)
	for _, s := range a.Subs {
		out = append(out, s.flatten()...)
	}
	return out
}

// Group is a named, ordered collection of actions (spec.md §4.6 "action
// group", e.g. "default", "jumptable").
type Group struct {
	Name       string
	Actions    []*Action
	IterCap    int // per-group iteration cap; a pass exceeding it is fatal
}

// Engine drives one or more groups over a function's op store to a fixed
// point.
type Engine struct {
	ed Editor
}

func NewEngine(ed Editor) *Engine { return &Engine{ed: ed} }

// ApplyGroup runs every action in g against the editor's alive ops until
// a full sweep makes no changes, or the iteration cap is hit (in which
// case it returns a fatal diag.Diagnostic per spec.md §5 "Cancellation").
func (e *Engine) ApplyGroup(g *Group) (iterations int, diagErr *diag.Diagnostic) {
	iterCap := g.IterCap
	if iterCap <= 0 {
		iterCap = 10000
	}
	var rules []Rule
	for _, a := range g.Actions {
		rules = append(rules, a.flatten()...)
	}
	byCode := make(map[pcode.OpCode][]Rule)
	for _, r := range rules {
		for _, c := range r.Filter {
			byCode[c] = append(byCode[c], r)
		}
	}

	for iterations = 0; iterations < iterCap; iterations++ {
		changedAny := false
		for _, op := range e.ed.OpStore().Alive() {
			for _, r := range byCode[op.Code] {
				if r.Apply(op, e.ed) {
					changedAny = true
				}
			}
		}
		if !changedAny {
			return iterations, nil
		}
	}
	return iterations, diag.IterationCapExceeded(g.Name, iterations, iterCap, addr.Address{})
}
