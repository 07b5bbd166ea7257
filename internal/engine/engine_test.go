package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/funcdata"
)

var (
	testCodeSpace   = &addr.Space{ID: 0, Name: "code", Kind: addr.SpaceCode}
	testUniqueSpace = &addr.Space{ID: 2, Name: "unique", Kind: addr.SpaceUnique}
)

func testJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			Entry:       addr.Address{Space: testCodeSpace, Offset: uint64(0x400000 + i*0x100)},
			CodeSpace:   testCodeSpace,
			UniqueSpace: testUniqueSpace,
		}
	}
	return jobs
}

// TestRunBatchCollectsResults covers spec.md §5's "independent engines
// with disjoint containers": every job gets its own Function, run
// concurrently, with results returned in job order.
func TestRunBatchCollectsResults(t *testing.T) {
	jobs := testJobs(5)
	results, err := RunBatch(context.Background(), jobs, func(ctx context.Context, f *funcdata.Function) error {
		f.Graph.NewBlockBasic()
		if d := f.RunHeritage(); d != nil {
			return d
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.Function == nil {
			t.Fatalf("result %d has no function", i)
		}
		if r.Job.Entry != jobs[i].Entry {
			t.Errorf("result %d entry mismatch: got %v want %v", i, r.Job.Entry, jobs[i].Entry)
		}
		if r.Function.Entry != jobs[i].Entry {
			t.Errorf("result %d function entry mismatch: got %v want %v", i, r.Function.Entry, jobs[i].Entry)
		}
	}
}

// TestRunBatchPropagatesFirstError covers the errgroup failure path: one
// failing pipeline aborts the batch and its error reaches the caller.
func TestRunBatchPropagatesFirstError(t *testing.T) {
	jobs := testJobs(4)
	wantErr := errors.New("boom")

	_, err := RunBatch(context.Background(), jobs, func(ctx context.Context, f *funcdata.Function) error {
		if f.Entry.Offset == jobs[2].Entry.Offset {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestCancelledReportsContextState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if Cancelled(ctx) {
		t.Fatalf("expected not cancelled before cancel()")
	}
	cancel()
	if !Cancelled(ctx) {
		t.Fatalf("expected cancelled after cancel()")
	}
}
