// Command decompile is a minimal usage harness for the analysis core,
// not a command-line tool in its own right: spec.md §6 declares the CLI
// and environment out of scope and the core is invoked as a library.
// This binary wires one toy function through the pipeline — heritage,
// then the default rewrite group — and prints whatever diagnostics come
// out, the smallest thing that exercises every layer end to end.
package main

import (
	"fmt"
	"os"

	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/funcdata"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/rewrite"
	"github.com/decompile/core/internal/varnode"
)

func main() {
	codeSpace := &addr.Space{ID: 0, Name: "code", Kind: addr.SpaceCode}
	uniqueSpace := &addr.Space{ID: 1, Name: "unique", Kind: addr.SpaceUnique}

	f := funcdata.New(addr.Address{Space: codeSpace, Offset: 0x400000}, codeSpace, uniqueSpace)
	bb := f.Graph.NewBlockBasic()

	// x <= 41  -->  x < 42, the leq-to-lt scenario from spec.md §8.
	x := f.NewVarnode(addr.Storage{Addr: addr.Address{Space: uniqueSpace, Offset: 8}, Size: 4})
	c := f.NewConstant(4, 41)
	out := f.NewUniqueOut(1)
	op := f.NewOp(pcode.OpIntLessEqual, []*varnode.Varnode{x, c}, out)
	if err := f.InsertEnd(bb, op); err != nil {
		fmt.Fprintln(os.Stderr, "insert:", err)
		os.Exit(1)
	}

	if d := f.RunHeritage(); d != nil {
		fmt.Fprintln(os.Stderr, "heritage:", d)
		os.Exit(1)
	}

	iterations, d := f.Rewrite(rewrite.DefaultGroup())
	if d != nil {
		fmt.Fprintln(os.Stderr, "rewrite:", d)
		os.Exit(1)
	}

	fmt.Printf("rewrite converged in %d iteration(s)\n", iterations)
	fmt.Printf("op now reads: %s\n", op.Code)
	for _, w := range f.Diagnostics() {
		fmt.Println(w)
	}
}
