package intervalmap

import "testing"

func TestFindOnEmptyMap(t *testing.T) {
	m := New[int64, string]()
	bound, recs := m.Find(5)
	if bound.Found {
		t.Errorf("expected no bound in an empty map")
	}
	if len(recs) != 0 {
		t.Errorf("expected no records in an empty map, got %v", recs)
	}
}

func TestInsertSingleRangeFind(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 10, 20, 0)

	bound, recs := m.Find(15)
	if !bound.Found || bound.Begin != 10 || bound.End != 20 {
		t.Fatalf("got bound %+v, want [10,20]", bound)
	}
	if len(recs) != 1 || recs[0] != "a" {
		t.Fatalf("got recs %v, want [a]", recs)
	}

	if _, recs := m.Find(9); len(recs) != 0 {
		t.Errorf("point before the range should find nothing, got %v", recs)
	}
	if _, recs := m.Find(21); len(recs) != 0 {
		t.Errorf("point after the range should find nothing, got %v", recs)
	}
	if m.Len() != 1 {
		t.Errorf("got Len() %d, want 1", m.Len())
	}
}

// TestInsertOverlapSplits is the "sub-range insertion/zip" scenario
// spec.md §8 names: a second, straddling record unzips the first range
// into disjoint sub-ranges, each covered by the correct record set.
func TestInsertOverlapSplits(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 0, 99, 0)
	m.Insert("b", 50, 149, 0)

	// [0,49]: only a.
	_, recs := m.Find(25)
	assertRecs(t, recs, "a")

	// [50,99]: both a and b.
	_, recs = m.Find(75)
	assertRecs(t, recs, "a", "b")

	// [100,149]: only b.
	_, recs = m.Find(125)
	assertRecs(t, recs, "b")

	if m.Len() != 3 {
		t.Errorf("expected 3 disjoint sub-ranges after the straddling insert, got %d", m.Len())
	}
}

func assertRecs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got recs %v, want %v", got, want)
	}
	seen := make(map[string]bool, len(got))
	for _, r := range got {
		seen[r] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Fatalf("got recs %v, missing %q", got, w)
		}
	}
}

// TestEraseZipsAdjacentPieces is the erase half of the "sub-range
// insertion/zip" scenario spec.md §8 names: removing the straddling record
// should fuse the sub-ranges back into one piece covered only by the
// surviving record.
func TestEraseZipsAdjacentPieces(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 0, 99, 0)
	m.Insert("b", 50, 149, 0)

	m.Erase("b")

	if m.Len() != 1 {
		t.Fatalf("expected erase to zip back to 1 piece, got %d", m.Len())
	}
	bound, recs := m.Find(75)
	if !bound.Found || bound.Begin != 0 || bound.End != 99 {
		t.Fatalf("got bound %+v, want [0,99]", bound)
	}
	assertRecs(t, recs, "a")
}

func TestEraseUnknownRecordIsNoop(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 0, 10, 0)
	m.Erase("never-inserted")
	if m.Len() != 1 {
		t.Errorf("erasing an unknown record should not disturb existing pieces")
	}
}

func TestFindOverlap(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 10, 20, 0)
	m.Insert("b", 100, 110, 0)

	if rec, ok := m.FindOverlap(15, 16); !ok || rec != "a" {
		t.Errorf("got (%q, %v), want (a, true)", rec, ok)
	}
	if rec, ok := m.FindOverlap(18, 105); !ok {
		t.Errorf("expected a range spanning both records to find one of them, got ok=%v", ok)
	} else if rec != "a" && rec != "b" {
		t.Errorf("got unexpected record %q", rec)
	}
	if _, ok := m.FindOverlap(30, 40); ok {
		t.Errorf("expected no overlap in the gap between inserted ranges")
	}
}

func TestErasePartialCoverageKeepsOthers(t *testing.T) {
	m := New[int64, string]()
	m.Insert("a", 0, 99, 0)
	m.Insert("b", 50, 149, 0)
	m.Insert("c", 200, 299, 0)

	m.Erase("a")

	if _, recs := m.Find(25); len(recs) != 0 {
		t.Errorf("expected a's exclusive sub-range to be emptied, got %v", recs)
	}
	_, recs := m.Find(75)
	assertRecs(t, recs, "b")
	_, recs = m.Find(250)
	assertRecs(t, recs, "c")
}
