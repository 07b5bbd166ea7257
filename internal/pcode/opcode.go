// Package pcode owns every operation for a function (C4): the p-code
// op-code enum, the Op type, and the alive/dead/address/op-code indexed
// store. Modeled on the teacher's bytecode.OpCode constant-table shape
// (sentra-language-sentra/internal/bytecode/opcodes.go), extended to 70
// op-codes across the categories spec.md §3 names.
package pcode

// OpCode enumerates the p-code operation forms spec.md §3 describes:
// arithmetic, comparison, load/store, branch, call, phi/merge, copy,
// piece/subpiece, multi-extend, indirect effect, and user-defined ops.
type OpCode int

const (
	OpCopy OpCode = iota
	OpLoad
	OpStore
	OpBranch
	OpCbranch
	OpBranchind
	OpCall
	OpCallind
	OpCallother // user-op
	OpReturn

	// Integer arithmetic.
	OpIntAdd
	OpIntSub
	OpIntMult
	OpIntDiv
	OpIntSdiv
	OpIntRem
	OpIntSrem
	OpIntNegate
	OpInt2Comp
	OpIntXor
	OpIntAnd
	OpIntOr
	OpIntLeft
	OpIntRight
	OpIntSright
	OpIntCarry
	OpIntScarry
	OpIntSborrow

	// Integer comparison.
	OpIntEqual
	OpIntNotEqual
	OpIntLess
	OpIntSless
	OpIntLessEqual
	OpIntSlessEqual

	// Boolean.
	OpBoolNegate
	OpBoolXor
	OpBoolAnd
	OpBoolOr

	// Floating point.
	OpFloatAdd
	OpFloatSub
	OpFloatMult
	OpFloatDiv
	OpFloatNeg
	OpFloatAbs
	OpFloatSqrt
	OpFloatEqual
	OpFloatNotEqual
	OpFloatLess
	OpFloatLessEqual
	OpFloatNan
	OpFloat2Float
	OpTrunc
	OpCeil
	OpFloor
	OpRound
	OpInt2Float
	OpFloat2Int

	// Extension / composition.
	OpIntZext
	OpIntSext
	OpPiece
	OpSubpiece

	// SSA scaffolding.
	OpMultiequal // phi
	OpIndirect   // indirect effect annotation

	// Pointer arithmetic.
	OpPtradd
	OpPtrsub

	// Cast / misc.
	OpCast
	OpSegmentOp
	OpCpoolref
	OpNew
	OpPopcount

	opCodeCount
)

var opNames = map[OpCode]string{
	OpCopy: "COPY", OpLoad: "LOAD", OpStore: "STORE",
	OpBranch: "BRANCH", OpCbranch: "CBRANCH", OpBranchind: "BRANCHIND",
	OpCall: "CALL", OpCallind: "CALLIND", OpCallother: "CALLOTHER", OpReturn: "RETURN",
	OpIntAdd: "INT_ADD", OpIntSub: "INT_SUB", OpIntMult: "INT_MULT",
	OpIntDiv: "INT_DIV", OpIntSdiv: "INT_SDIV", OpIntRem: "INT_REM", OpIntSrem: "INT_SREM",
	OpIntNegate: "INT_NEGATE", OpInt2Comp: "INT_2COMP",
	OpIntXor: "INT_XOR", OpIntAnd: "INT_AND", OpIntOr: "INT_OR",
	OpIntLeft: "INT_LEFT", OpIntRight: "INT_RIGHT", OpIntSright: "INT_SRIGHT",
	OpIntCarry: "INT_CARRY", OpIntScarry: "INT_SCARRY", OpIntSborrow: "INT_SBORROW",
	OpIntEqual: "INT_EQUAL", OpIntNotEqual: "INT_NOTEQUAL",
	OpIntLess: "INT_LESS", OpIntSless: "INT_SLESS",
	OpIntLessEqual: "INT_LESSEQUAL", OpIntSlessEqual: "INT_SLESSEQUAL",
	OpBoolNegate: "BOOL_NEGATE", OpBoolXor: "BOOL_XOR", OpBoolAnd: "BOOL_AND", OpBoolOr: "BOOL_OR",
	OpFloatAdd: "FLOAT_ADD", OpFloatSub: "FLOAT_SUB", OpFloatMult: "FLOAT_MULT", OpFloatDiv: "FLOAT_DIV",
	OpFloatNeg: "FLOAT_NEG", OpFloatAbs: "FLOAT_ABS", OpFloatSqrt: "FLOAT_SQRT",
	OpFloatEqual: "FLOAT_EQUAL", OpFloatNotEqual: "FLOAT_NOTEQUAL",
	OpFloatLess: "FLOAT_LESS", OpFloatLessEqual: "FLOAT_LESSEQUAL", OpFloatNan: "FLOAT_NAN",
	OpFloat2Float: "FLOAT2FLOAT", OpTrunc: "TRUNC", OpCeil: "CEIL", OpFloor: "FLOOR", OpRound: "ROUND",
	OpInt2Float: "INT2FLOAT", OpFloat2Int: "FLOAT2INT",
	OpIntZext: "INT_ZEXT", OpIntSext: "INT_SEXT", OpPiece: "PIECE", OpSubpiece: "SUBPIECE",
	OpMultiequal: "MULTIEQUAL", OpIndirect: "INDIRECT",
	OpPtradd: "PTRADD", OpPtrsub: "PTRSUB",
	OpCast: "CAST", OpSegmentOp: "SEGMENTOP", OpCpoolref: "CPOOLREF", OpNew: "NEW", OpPopcount: "POPCOUNT",
}

func (c OpCode) String() string {
	if n, ok := opNames[c]; ok {
		return n
	}
	return "OP?"
}

// IsBranch reports whether c terminates a basic block as a branch/call
// form (spec.md §3 "a branch/call/return op is the last op of its block").
func (c OpCode) IsBranch() bool {
	switch c {
	case OpBranch, OpCbranch, OpBranchind, OpCall, OpCallind, OpReturn:
		return true
	}
	return false
}

// IsConditional reports whether c has two out-edges when live.
func (c OpCode) IsConditional() bool { return c == OpCbranch }
