// Package engine implements the multi-function batch driver spec.md §5
// describes: "independent engines with disjoint containers" run
// concurrently, each owning its own funcdata.Function and touching no
// shared mutable state, so no locking is required within a batch.
// Concurrency is provided by golang.org/x/sync/errgroup, mirroring the
// fan-out-and-collect shape used elsewhere in the pack for independent
// per-item work.
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/diag"
	"github.com/decompile/core/internal/funcdata"
)

// Job names one function to analyze: its entry point and the address
// spaces its cells and temporaries live in.
type Job struct {
	Entry       addr.Address
	CodeSpace   *addr.Space
	UniqueSpace *addr.Space
}

// Pipeline runs one function's full analysis against a freshly
// constructed container. Per spec.md §5, no step within a pipeline
// suspends; ctx is offered only so a pipeline can check for
// caller-requested cancellation between action groups, the one point
// spec.md names as interruptible ("callers may interrupt between action
// groups").
type Pipeline func(ctx context.Context, f *funcdata.Function) error

// Result pairs one job's finished container with the diagnostics its
// pipeline accumulated.
type Result struct {
	Job         Job
	Function    *funcdata.Function
	Diagnostics []*diag.Diagnostic
}

// RunBatch runs pipeline over every job concurrently, each against its
// own funcdata.Function, and returns one Result per job in job order.
// The first pipeline error cancels ctx for the others (errgroup's usual
// behavior) and is returned once every goroutine has stopped; results
// already computed by sibling goroutines are discarded in that case,
// since a partially-run batch offers no useful partial contract in
// spec.md's per-function-independent model.
func RunBatch(ctx context.Context, jobs []Job, pipeline Pipeline) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]Result, len(jobs))

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			f := funcdata.New(job.Entry, job.CodeSpace, job.UniqueSpace)
			if err := pipeline(gctx, f); err != nil {
				return err
			}
			results[i] = Result{Job: job, Function: f, Diagnostics: f.Diagnostics()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Cancelled reports whether ctx has been cancelled, for a pipeline to
// check between action groups without importing context error handling
// itself at every call site.
func Cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
