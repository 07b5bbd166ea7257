package symbol

import (
	"testing"

	"github.com/decompile/core/internal/addr"
)

var codeSpace = &addr.Space{ID: 0, Name: "code", Kind: addr.SpaceCode}

func storageAt(offset uint64, size int) addr.Storage {
	return addr.Storage{Addr: addr.Address{Space: codeSpace, Offset: offset}, Size: size}
}

func TestNewTableStartsAtGlobal(t *testing.T) {
	tab := NewTable()
	if tab.Current() != tab.Global {
		t.Fatalf("expected the cursor to start at Global")
	}
	if tab.Global.Name != "global" || tab.Global.Parent != nil {
		t.Errorf("expected Global to be the unparented root scope")
	}
}

func TestAddScopeAndPopScope(t *testing.T) {
	tab := NewTable()
	child := tab.AddScope("func1")
	if tab.Current() != child {
		t.Fatalf("expected AddScope to make the new scope current")
	}
	if child.Parent != tab.Global {
		t.Fatalf("expected the new scope's parent to be Global")
	}
	if len(tab.Global.Children) != 1 || tab.Global.Children[0] != child {
		t.Fatalf("expected Global to list the child scope")
	}

	tab.PopScope()
	if tab.Current() != tab.Global {
		t.Fatalf("expected PopScope to return to Global")
	}

	tab.PopScope() // no-op at the root
	if tab.Current() != tab.Global {
		t.Fatalf("expected PopScope at the root to be a no-op")
	}
}

func TestScopeLookupWalksToParent(t *testing.T) {
	tab := NewTable()
	tab.Global.AddSymbol("globalVar", storageAt(0, 4), nil)
	child := tab.AddScope("func1")
	child.AddSymbol("localVar", storageAt(100, 4), nil)

	if sym := child.Lookup("localVar"); sym == nil || sym.Name != "localVar" {
		t.Fatalf("expected to find localVar directly in the child scope")
	}
	if sym := child.Lookup("globalVar"); sym == nil || sym.Name != "globalVar" {
		t.Fatalf("expected Lookup to walk up to Global for globalVar")
	}
	if sym := child.Lookup("neverDeclared"); sym != nil {
		t.Fatalf("expected a lookup miss to return nil, got %v", sym)
	}
	if sym := tab.Global.Lookup("localVar"); sym != nil {
		t.Fatalf("expected Global to not see a child-scope-only symbol")
	}
}

func TestScopeLookupAddrIsScopeLocal(t *testing.T) {
	tab := NewTable()
	tab.Global.AddSymbol("globalVar", storageAt(0, 4), nil)
	child := tab.AddScope("func1")
	child.AddSymbol("localVar", storageAt(100, 4), nil)

	if sym := child.LookupAddr(102); sym == nil || sym.Name != "localVar" {
		t.Fatalf("expected LookupAddr(102) to find localVar covering [100,103]")
	}
	if sym := child.LookupAddr(0); sym != nil {
		t.Fatalf("expected LookupAddr to not walk to the parent scope, got %v", sym)
	}
	if sym := child.LookupAddr(200); sym != nil {
		t.Fatalf("expected a miss outside any symbol's storage, got %v", sym)
	}
}

func TestScopeDynamicSymbolLookup(t *testing.T) {
	tab := NewTable()
	at := addr.Address{Space: codeSpace, Offset: 0x400}
	tab.Global.AddDynamicSymbol("dyn1", at, 0xabc, nil)

	sym := tab.Global.LookupDynamic(at, 0xabc)
	if sym == nil || sym.Name != "dyn1" || sym.Kind != KindDynamic {
		t.Fatalf("expected to find the dynamic symbol by (addr, hash), got %v", sym)
	}
	if sym.Storage != (addr.Storage{}) {
		t.Errorf("expected a dynamic symbol to carry zero-value Storage")
	}
	if got := tab.Global.LookupDynamic(at, 0xdef); got != nil {
		t.Errorf("expected a hash mismatch to miss, got %v", got)
	}
}

func TestPurgeRemovesUnsavableSymbolsAndEmptyScopes(t *testing.T) {
	tab := NewTable()
	keep := tab.Global.AddSymbol("keepMe", storageAt(0, 4), nil)
	drop := tab.Global.AddSymbol("dropMe", storageAt(100, 4), nil)
	drop.Savable = false

	empty := tab.AddScope("emptyFunc")
	tab.PopScope()
	_ = empty

	tab.Purge()

	if tab.Global.Lookup("keepMe") == nil {
		t.Errorf("expected a savable symbol to survive Purge")
	}
	if tab.Global.Lookup("dropMe") != nil {
		t.Errorf("expected an unsavable symbol to be purged")
	}
	if len(tab.Global.Children) != 0 {
		t.Errorf("expected the empty child scope to be pruned, got %d children", len(tab.Global.Children))
	}
	if keep.ID != 0 {
		t.Errorf("expected the sole surviving symbol renumbered to id 0, got %d", keep.ID)
	}
	if tab.Global.ID != 0 {
		t.Errorf("expected Global renumbered to id 0, got %d", tab.Global.ID)
	}
}

func TestPurgeKeepsNonEmptyScopeWithChildren(t *testing.T) {
	tab := NewTable()
	mid := tab.AddScope("mid")
	mid.AddSymbol("nested", storageAt(0, 4), nil)
	tab.PopScope()

	tab.Purge()

	if len(tab.Global.Children) != 1 {
		t.Fatalf("expected the non-empty scope to survive Purge, got %d children", len(tab.Global.Children))
	}
	if tab.Global.Children[0].Lookup("nested") == nil {
		t.Errorf("expected the nested symbol to survive Purge")
	}
}
