// Package iface defines the narrow collaborator contracts spec.md §6
// names at the boundary of the analysis engine: the p-code emitter the
// disassembler drives, the loader that supplies raw bytes, the type
// database queried during propagation, the pretty-printer visitor that
// consumes the finished structured tree, and the stream codec used for
// persisted state. None of these are implemented here — per spec.md §1
// the disassembler, type database, and pretty-printer are explicitly out
// of scope collaborators; this package only states the shape the engine
// expects of them, the way the teacher states `vm.DebugHook` as a bare
// function type without ever supplying more than a test double for it.
package iface

import (
	"github.com/decompile/core/internal/addr"
	"github.com/decompile/core/internal/block"
	"github.com/decompile/core/internal/datatype"
	"github.com/decompile/core/internal/pcode"
	"github.com/decompile/core/internal/varnode"
)

// Emit is the p-code emitter callback (spec.md §6): invoked once per
// decoded operation, in instruction order. output is nil for operations
// with no result cell. The engine is responsible for allocating a cell
// for any (address, size) pair not already known and for starting a new
// basic block whenever startBasic is set, mirroring the `startbasic`
// flag on a block's first op.
type Emit func(seq addr.SeqNum, opcode pcode.OpCode, output *varnode.Varnode, inputs []*varnode.Varnode, startBasic bool)

// PcodeEmitter is implemented by a disassembler front-end that drives one
// function's worth of Emit calls.
type PcodeEmitter interface {
	EmitFunction(entry addr.Address, emit Emit) error
}

// Loader is the raw-byte supplier contract (spec.md §6 `load_fill`). A
// false return means the bytes are unavailable at this address, which
// per spec.md's edge-case table causes read-only constant folding to
// abandon the rewrite for that cell and mark it writable rather than
// fail the whole pass.
type Loader interface {
	LoadFill(buf []byte, at addr.Address) (ok bool)
}

// TypeDatabase is the C9 type-propagation and C16 boundary contract
// (spec.md §6). Every method is required to be deterministic and
// side-effect-free within one analysis pass, since C9's fixed-point loop
// may query the same (size, metatype) or (composite, offset, size) pair
// many times while converging.
type TypeDatabase interface {
	GetBase(size int, metatype string) datatype.Type
	GetPointer(size int, element datatype.Type, wordSize int) datatype.Type
	GetTypedefImmediate(t datatype.Type) (datatype.Type, bool)
	GetExactPiece(composite datatype.Type, byteOffset, size int) (datatype.Type, bool)
}

// PrettyPrinter is the output visitor contract (spec.md §6). The
// per-op-code `opXxx(op)` callback family the spec describes collapses
// here into one dispatch method, Op, with the op-code available on the
// argument — the visitor implementation is expected to switch on
// op.Code internally, the same shape the teacher's single
// `OnInstruction(vm, instr) bool` debug hook uses instead of one method
// per bytecode instruction. Expressions are pushed in reverse evaluation
// order so a shunting-yard-style consumer can emit infix tokens as it
// pops them.
type PrettyPrinter interface {
	Op(op *pcode.Op)
	PushAtom(text string)
	PushOp(op *pcode.Op)
	PushScope(kind block.StructKind)
	PopScope()
}

// Encoder and Decoder are the opaque persisted-state stream codec pair
// (spec.md §6). Tag is one of the element names the spec requires to be
// carried verbatim for compatibility: "function", "localdb", "prototype",
// "jumptablelist", "jumptable", "ast", "varnodes", "block", "blockedge",
// "highlist", "type", "typeref", "def", "symbol_table", "scope", plus the
// per-symbol-kind headers ("userop_head", "value_sym_head",
// "subtable_sym_head", ...).
type Tag string

const (
	TagFunction       Tag = "function"
	TagLocalDB        Tag = "localdb"
	TagPrototype      Tag = "prototype"
	TagJumpTableList  Tag = "jumptablelist"
	TagJumpTable      Tag = "jumptable"
	TagAST            Tag = "ast"
	TagVarnodes       Tag = "varnodes"
	TagBlock          Tag = "block"
	TagBlockEdge      Tag = "blockedge"
	TagHighList       Tag = "highlist"
	TagType           Tag = "type"
	TagTypeRef        Tag = "typeref"
	TagDef            Tag = "def"
	TagSymbolTable    Tag = "symbol_table"
	TagScope          Tag = "scope"
	TagUserOpHead     Tag = "userop_head"
	TagValueSymHead   Tag = "value_sym_head"
	TagSubtableHead   Tag = "subtable_sym_head"
)

// Attr is one of the encoded-form attribute names the spec requires
// where present: "id", "name", "size", "metatype", "core", "varlength",
// "format", "label", "nocode", "scopesize", "symbolsize".
type Attr string

const (
	AttrID         Attr = "id"
	AttrName       Attr = "name"
	AttrSize       Attr = "size"
	AttrMetatype   Attr = "metatype"
	AttrCore       Attr = "core"
	AttrVarLength  Attr = "varlength"
	AttrFormat     Attr = "format"
	AttrLabel      Attr = "label"
	AttrNoCode     Attr = "nocode"
	AttrScopeSize  Attr = "scopesize"
	AttrSymbolSize Attr = "symbolsize"
)

// Encoder writes one tagged element with its attributes; callers open a
// tag, write zero or more attributes and nested elements, then close it.
type Encoder interface {
	OpenElement(tag Tag) error
	WriteAttr(attr Attr, value string) error
	CloseElement(tag Tag) error
}

// Decoder is Encoder's read-side counterpart: PeekElement reports the
// next tag without consuming it, so a caller can dispatch before
// deciding whether to descend.
type Decoder interface {
	PeekElement() (Tag, error)
	OpenElement() (Tag, error)
	ReadAttr(attr Attr) (string, bool)
	CloseElement() error
}
