// Package symbol implements the symbol table and nested scopes (C12).
// Scope shape is modeled on the teacher's vm.ScopeFrame
// (sentra-language-sentra/internal/vm/vm.go: a name->value map plus a
// parent pointer) generalized with an address-keyed range tree and a
// dense-id purge/renumber pass.
package symbol

import (
	"sort"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/intervalmap"
)

// Kind classifies a Symbol (spec.md §4.12: typed-locked, name-locked,
// dynamic, equate, union-facet, function).
type Kind int

const (
	KindNormal Kind = iota
	KindFunction
	KindEquate
	KindUnionFacet
	KindDynamic
)

// Symbol is one named entity in a Scope.
type Symbol struct {
	ID         int
	Name       string
	Scope      *Scope
	Kind       Kind
	DataType   interface{}
	Storage    addr.Storage // zero value for dynamic symbols
	TypeLocked bool
	NameLocked bool
	Savable    bool // false => purged by Scope.Purge

	// Dynamic symbols have no stable storage; they're looked up by
	// (code address, hash-of-local-dataflow) instead (spec.md §4.12).
	DynAddr addr.Address
	DynHash uint64
}

// Scope is a node in the rooted scope tree: a name-ordered symbol map and
// an address-ordered range map (via intervalmap, C2), plus a hash index
// for dynamic symbols.
type Scope struct {
	ID       int
	Name     string
	Parent   *Scope
	Children []*Scope

	byName map[string]*Symbol
	byAddr *intervalmap.Map[uint64, *Symbol]
	byDyn  map[dynKey]*Symbol

	nextSymID int
}

type dynKey struct {
	addr uint64
	hash uint64
}

func newScope(id int, name string, parent *Scope) *Scope {
	return &Scope{
		ID: id, Name: name, Parent: parent,
		byName: make(map[string]*Symbol),
		byAddr: intervalmap.New[uint64, *Symbol](),
		byDyn:  make(map[dynKey]*Symbol),
	}
}

// Table owns the scope tree, rooted at Global, plus the current-scope
// cursor addScope/popScope manipulate.
type Table struct {
	Global       *Scope
	current      *Scope
	nextScopeID  int
}

func NewTable() *Table {
	t := &Table{}
	t.Global = newScope(0, "global", nil)
	t.nextScopeID = 1
	t.current = t.Global
	return t
}

func (t *Table) Current() *Scope { return t.current }

// AddScope pushes a new child scope under the current one and makes it
// current.
func (t *Table) AddScope(name string) *Scope {
	s := newScope(t.nextScopeID, name, t.current)
	t.nextScopeID++
	t.current.Children = append(t.current.Children, s)
	t.current = s
	return s
}

// PopScope returns to the parent of the current scope. No-op at the root.
func (t *Table) PopScope() {
	if t.current.Parent != nil {
		t.current = t.current.Parent
	}
}

// AddSymbol creates and inserts a symbol named name with storage st into
// scope s.
func (s *Scope) AddSymbol(name string, st addr.Storage, dt interface{}) *Symbol {
	sym := &Symbol{ID: s.nextSymID, Name: name, Scope: s, DataType: dt, Storage: st, Savable: true}
	s.nextSymID++
	s.byName[name] = sym
	s.byAddr.Insert(sym, st.Addr.Offset, st.Addr.Add(int64(st.Size)-1).Offset, int64(sym.ID))
	return sym
}

// AddDynamicSymbol creates a symbol with no stable storage, keyed by
// (code address, hash) instead (spec.md §4.12).
func (s *Scope) AddDynamicSymbol(name string, at addr.Address, hash uint64, dt interface{}) *Symbol {
	sym := &Symbol{ID: s.nextSymID, Name: name, Scope: s, Kind: KindDynamic, DataType: dt, DynAddr: at, DynHash: hash, Savable: true}
	s.nextSymID++
	s.byName[name] = sym
	s.byDyn[dynKey{addr: at.Offset, hash: hash}] = sym
	return sym
}

// Lookup walks from s up through parent scopes looking for name, stopping
// at the first hit (spec.md §4.12 "Symbol lookup walks parent scopes
// until a hit").
func (s *Scope) Lookup(name string) *Symbol {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.byName[name]; ok {
			return sym
		}
	}
	return nil
}

// LookupAddr finds a symbol whose storage covers offset within s (not
// walking to parent scopes: address-keyed lookup is scope-local).
func (s *Scope) LookupAddr(offset uint64) *Symbol {
	_, recs := s.byAddr.Find(offset)
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// LookupDynamic finds a dynamic symbol by (code address, hash).
func (s *Scope) LookupDynamic(at addr.Address, hash uint64) *Symbol {
	return s.byDyn[dynKey{addr: at.Offset, hash: hash}]
}

// Purge removes unsavable symbols (subtable locals of unused macros, empty
// scopes) from the subtree rooted at t.Global, then renumbers every
// remaining scope and symbol so ids stay dense starting from 0
// (spec.md §4.12).
func (t *Table) Purge() {
	var scopes []*Scope
	var walk func(s *Scope)
	walk = func(s *Scope) {
		kept := s.Children[:0]
		for _, c := range s.Children {
			walk(c)
			if !(len(c.byName) == 0 && len(c.Children) == 0) {
				kept = append(kept, c)
				scopes = append(scopes, c)
			}
		}
		s.Children = kept
		for name, sym := range s.byName {
			if !sym.Savable {
				delete(s.byName, name)
				s.byAddr.Erase(sym)
				if sym.Kind == KindDynamic {
					delete(s.byDyn, dynKey{addr: sym.DynAddr.Offset, hash: sym.DynHash})
				}
			}
		}
	}
	walk(t.Global)
	scopes = append(scopes, t.Global)

	sort.Slice(scopes, func(i, j int) bool { return scopes[i].ID < scopes[j].ID })
	for i, s := range scopes {
		s.ID = i
	}
	t.nextScopeID = len(scopes)

	nextID := 0
	var renumSyms func(s *Scope)
	renumSyms = func(s *Scope) {
		names := make([]string, 0, len(s.byName))
		for n := range s.byName {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			s.byName[n].ID = nextID
			nextID++
		}
		for _, c := range s.Children {
			renumSyms(c)
		}
	}
	renumSyms(t.Global)
}
