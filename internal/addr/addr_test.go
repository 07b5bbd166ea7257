package addr

import "testing"

var (
	codeSpace = &Space{ID: 0, Name: "code", Kind: SpaceCode}
	dataSpace = &Space{ID: 1, Name: "ram", Kind: SpaceData}
)

func TestAddressCompareOrdersBySpaceThenOffset(t *testing.T) {
	a := Address{Space: codeSpace, Offset: 10}
	b := Address{Space: codeSpace, Offset: 20}
	c := Address{Space: dataSpace, Offset: 5}

	if a.Compare(b) >= 0 {
		t.Errorf("expected a < b within the same space")
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected b > a within the same space")
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected a == a")
	}
	// Different spaces order by space id, independent of offset.
	if a.Compare(c) >= 0 {
		t.Errorf("expected code space (id 0) to sort before ram space (id 1)")
	}
	if !a.Less(b) || a.Less(a) || b.Less(a) {
		t.Errorf("Less disagrees with Compare")
	}
	if !a.Equal(a) || a.Equal(b) {
		t.Errorf("Equal disagrees with Compare")
	}
}

func TestAddressInvalidIsZeroValue(t *testing.T) {
	var zero Address
	if !zero.Invalid() {
		t.Errorf("zero-value Address should be Invalid")
	}
	if (Address{Space: codeSpace}).Invalid() {
		t.Errorf("an Address with a space should not be Invalid")
	}
	if zero.String() != "<invalid>" {
		t.Errorf("got %q, want <invalid>", zero.String())
	}
}

func TestAddressAdd(t *testing.T) {
	a := Address{Space: codeSpace, Offset: 100}
	if got := a.Add(5); got.Offset != 105 {
		t.Errorf("Add(5): got offset %d, want 105", got.Offset)
	}
	if got := a.Add(-5); got.Offset != 95 {
		t.Errorf("Add(-5): got offset %d, want 95", got.Offset)
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{First: Address{Space: codeSpace, Offset: 10}, Last: Address{Space: codeSpace, Offset: 20}}
	inside := Address{Space: codeSpace, Offset: 15}
	before := Address{Space: codeSpace, Offset: 9}
	after := Address{Space: codeSpace, Offset: 21}
	other := Address{Space: dataSpace, Offset: 15}

	if !r.Contains(inside) {
		t.Errorf("expected range to contain midpoint")
	}
	if r.Contains(before) || r.Contains(after) {
		t.Errorf("expected range to exclude points outside [First, Last]")
	}
	if r.Contains(other) {
		t.Errorf("expected range in one space to exclude a point in another space")
	}
	// Boundaries are inclusive.
	if !r.Contains(r.First) || !r.Contains(r.Last) {
		t.Errorf("expected range to contain its own endpoints")
	}
}

func TestRangeOverlaps(t *testing.T) {
	r1 := Range{First: Address{Space: codeSpace, Offset: 10}, Last: Address{Space: codeSpace, Offset: 20}}
	r2 := Range{First: Address{Space: codeSpace, Offset: 20}, Last: Address{Space: codeSpace, Offset: 30}}
	r3 := Range{First: Address{Space: codeSpace, Offset: 21}, Last: Address{Space: codeSpace, Offset: 30}}
	r4 := Range{First: Address{Space: dataSpace, Offset: 10}, Last: Address{Space: dataSpace, Offset: 20}}

	if !r1.Overlaps(r2) {
		t.Errorf("ranges sharing a boundary byte (20) should overlap")
	}
	if r1.Overlaps(r3) {
		t.Errorf("disjoint ranges should not overlap")
	}
	if r1.Overlaps(r4) {
		t.Errorf("ranges in different spaces should never overlap")
	}
}

func TestRangeSize(t *testing.T) {
	r := Range{First: Address{Space: codeSpace, Offset: 100}, Last: Address{Space: codeSpace, Offset: 103}}
	if got := r.Size(); got != 4 {
		t.Errorf("got size %d, want 4", got)
	}
	cross := Range{First: Address{Space: codeSpace, Offset: 0}, Last: Address{Space: dataSpace, Offset: 0}}
	if got := cross.Size(); got != 0 {
		t.Errorf("cross-space range should report size 0, got %d", got)
	}
}

func TestSeqNumCompareOrdersByAddrThenOrder(t *testing.T) {
	a := SeqNum{Addr: Address{Space: codeSpace, Offset: 100}, Order: 0}
	b := SeqNum{Addr: Address{Space: codeSpace, Offset: 100}, Order: 1}
	c := SeqNum{Addr: Address{Space: codeSpace, Offset: 101}, Order: 0}

	if !a.Less(b) {
		t.Errorf("expected same-address seqnums to order by Order")
	}
	if !b.Less(c) {
		t.Errorf("expected lower address to sort first regardless of Order")
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected a seqnum to compare equal to itself")
	}
}

func TestStorageOverlaps(t *testing.T) {
	s1 := Storage{Addr: Address{Space: codeSpace, Offset: 0}, Size: 4}
	s2 := Storage{Addr: Address{Space: codeSpace, Offset: 2}, Size: 4}
	s3 := Storage{Addr: Address{Space: codeSpace, Offset: 4}, Size: 4}

	if !s1.Overlaps(s2) {
		t.Errorf("[0,3] and [2,5] should overlap")
	}
	if !s2.Overlaps(s3) {
		t.Errorf("[2,5] and [4,7] should overlap (share byte 4-5)")
	}
	if s1.Overlaps(s3) {
		t.Errorf("[0,3] and [4,7] should not overlap")
	}
}

func TestStorageContains(t *testing.T) {
	outer := Storage{Addr: Address{Space: codeSpace, Offset: 0}, Size: 8}
	inner := Storage{Addr: Address{Space: codeSpace, Offset: 2}, Size: 4}
	straddling := Storage{Addr: Address{Space: codeSpace, Offset: 6}, Size: 4}

	if !outer.Contains(inner) {
		t.Errorf("expected [0,7] to contain [2,5]")
	}
	if outer.Contains(straddling) {
		t.Errorf("expected [0,7] to not contain [6,9], which extends past the end")
	}
	if !outer.Contains(outer) {
		t.Errorf("expected a storage to contain itself")
	}
}
