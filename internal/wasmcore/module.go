// Package wasmcore implements the data model and instantiation logic of the
// runtime core (spec.md §2-§5): the Module Descriptor (C1), Tunables (C8),
// Resolver & Import Linker (C9), Instance (C10), and Store (C11). Code
// generation, Code Memory, the Linker proper, and the Call Bridge live in
// the sibling internal/codegen package; wasmcore only owns the VM-visible
// data shapes and the bookkeeping of turning a Module + Resolver into a
// running Instance.
package wasmcore

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/wafoundation/wasmer/api"
)

// Index is a dense index into one of a Module's index spaces (functions,
// memories, tables, globals), using the classic Wasm two-space convention:
// imports occupy the low indices, locally defined entries follow.
type Index = uint32

// ModuleID uniquely identifies a Module for engine-side caching. It is
// derived from the module's descriptor content so that two structurally
// identical modules compiled independently share a compiled-module cache
// entry.
type ModuleID uint64

// ConstExpr is an evaluated-at-instantiation-time constant expression:
// i32.const, i64.const, f32.const, f64.const, or global.get of an imported
// global (spec.md §4.5 step 4 and the Global initialization note in the
// original source).
type ConstExprOp byte

const (
	ConstExprI32Const ConstExprOp = iota
	ConstExprI64Const
	ConstExprF32Const
	ConstExprF64Const
	ConstExprGlobalGet
)

type ConstExpr struct {
	Op     ConstExprOp
	I32Val int32
	I64Val int64
	F32Val float32
	F64Val float64
	// GlobalIndex is valid when Op == ConstExprGlobalGet: it must reference
	// an imported global, per the Wasm 1.0 restriction on constant
	// expressions (spec.md §4.5 note).
	GlobalIndex Index
}

// Import describes one entry of a Module's import list. Exactly one of the
// Func/Memory/Table/Global fields is meaningful, selected by Type.
type Import struct {
	Module string
	Field  string
	Type   api.ExternType

	FuncTypeIndex Index
	MemoryType    api.MemoryType
	TableType     api.TableType
	GlobalType    api.GlobalType
}

// Export maps a name to an index in the joint index space (imports then
// locals) of the kind named by Type.
type Export struct {
	Name  string
	Type  api.ExternType
	Index Index
}

// ElementSegment initializes a range of a table with a sequence of function
// indices (funcref only; spec.md does not extend this to externref tables).
type ElementSegment struct {
	TableIndex Index
	Offset     ConstExpr
	FuncIndex  []Index
}

// DataSegment initializes a range of a memory with a byte payload.
type DataSegment struct {
	MemoryIndex Index
	Offset      ConstExpr
	Init        []byte
}

// LocalDecl is a run of locals of one type, as encoded in a function body.
type LocalDecl struct {
	Count uint32
	Type  api.ValueType
}

// HostFunc is the Go-side callable backing a host-module function
// definition. Kind selects which of the Static or Dynamic fields is used.
// Static functions are called directly by Function.Call, bypassing the
// reverse trampoline (spec.md §4.7); Dynamic functions are invoked through
// the reverse trampoline with a uniform []api.Val.
type HostFuncKind int

const (
	HostFuncStatic HostFuncKind = iota
	HostFuncDynamic
)

type HostFunc struct {
	Kind HostFuncKind
	Type api.FunctionType

	// StaticFn holds the callable for the Static kind. Function.Call invokes
	// it directly only when it is a func([]api.Val) ([]api.Val, error); any
	// other value falls through to a CallBridge dispatch. wasmcore itself
	// only threads StaticFn and StaticEnv through instantiation.
	StaticFn  interface{}
	StaticEnv uintptr

	// Dynamic holds the boxed callable taking a uniform value array, used
	// by the reverse trampoline.
	DynamicFn func(params []api.Val) ([]api.Val, error)
}

// CodeBody is one locally defined function's Wasm-encoded body, prior to
// code generation.
type CodeBody struct {
	Locals []LocalDecl
	Body   []byte // raw Wasm instruction bytes.
}

// Module is the immutable, post-validation description of a Wasm module
// (C1). Every field is populated before a Module is handed to the code
// generator; nothing here is mutated after construction, which is what lets
// a single Module be compiled once and instantiated many times concurrently.
type Module struct {
	// Name is the optional module name from the name custom section.
	Name string

	TypeSection []api.FunctionType

	// ImportSection precedes locally defined entries when computing joint
	// indexing (spec.md §3 invariant). ImportFunctionCount/.../ count how
	// many of ImportSection's entries are of each kind, letting callers
	// translate a joint function/memory/table/global index into "imported"
	// vs "local" without rescanning ImportSection.
	ImportSection        []Import
	ImportFunctionCount  Index
	ImportMemoryCount    Index
	ImportTableCount     Index
	ImportGlobalCount    Index

	// FunctionSection[i] is the TypeSection index of local function i.
	FunctionSection []Index
	CodeSection     []CodeBody

	MemorySection []api.MemoryType
	TableSection  []api.TableType

	GlobalSection []GlobalDecl

	ExportSection []Export

	ElementSection []ElementSegment
	DataSection    []DataSegment

	// StartFunc is the joint-space function index of the start function, or
	// nil if the module declares none.
	StartFunc *Index

	// HostFuncs is non-nil only for a synthetic host module: one produced
	// by the embedder to exist purely as an import source, never compiled
	// to machine code itself (spec.md §4.7's "static host functions").
	HostFuncs []HostFunc

	id                  ModuleID
	idOK                bool
	importFuncPosCache  []Index
}

// GlobalDecl is a locally defined global: its type plus the constant
// expression that initializes it.
type GlobalDecl struct {
	Type api.GlobalType
	Init ConstExpr
}

// IsHostModule reports whether this Module exists only to export host
// functions (no Wasm bytecode, no linear memory of its own defined here).
func (m *Module) IsHostModule() bool { return m.HostFuncs != nil }

// ID returns a content-derived identifier for m, memoized after first
// computation. Two Modules built from the same descriptor content (by
// value, not pointer) hash identically, which is what lets the compiled
// module cache (internal/codegen) share an artifact between them.
func (m *Module) ID() ModuleID {
	if m.idOK {
		return m.id
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%d|%d|%d", m.Name, len(m.TypeSection), len(m.FunctionSection), len(m.ExportSection))
	for _, t := range m.TypeSection {
		fmt.Fprintf(h, "%s;", t.Key())
	}
	for _, imp := range m.ImportSection {
		fmt.Fprintf(h, "%s.%s/%d;", imp.Module, imp.Field, imp.Type)
	}
	for _, c := range m.CodeSection {
		h.Write(c.Body)
	}
	m.id = ModuleID(h.Sum64())
	m.idOK = true
	return m.id
}

// TypeOf returns the signature of the function at joint index idx.
func (m *Module) TypeOf(idx Index) *api.FunctionType {
	if idx < m.ImportFunctionCount {
		return &m.TypeSection[m.ImportSection[m.importFuncPositions()[idx]].FuncTypeIndex]
	}
	local := idx - m.ImportFunctionCount
	return &m.TypeSection[m.FunctionSection[local]]
}

// importFuncPositions returns the subsequence of ImportSection indices that
// are function imports, in order. Joint function index i < ImportFunctionCount
// refers to the i-th entry of that subsequence.
func (m *Module) importFuncPositions() []Index {
	if m.importFuncPosCache != nil {
		return m.importFuncPosCache
	}
	out := make([]Index, 0, m.ImportFunctionCount)
	for i, imp := range m.ImportSection {
		if imp.Type == api.ExternTypeFunc {
			out = append(out, Index(i))
		}
	}
	m.importFuncPosCache = out
	return out
}

// Validate checks the cross-reference invariants spec.md §3 requires of a
// Module Descriptor: every referenced signature/function/memory/table/
// global index must be in range. This is a structural sanity check, not
// full Wasm validation (binary decoding/validation is an external
// collaborator per spec.md §1).
func (m *Module) Validate() error {
	numFuncs := m.ImportFunctionCount + Index(len(m.FunctionSection))
	numMems := m.ImportMemoryCount + Index(len(m.MemorySection))
	numTables := m.ImportTableCount + Index(len(m.TableSection))
	numGlobals := m.ImportGlobalCount + Index(len(m.GlobalSection))

	for i, typIdx := range m.FunctionSection {
		if int(typIdx) >= len(m.TypeSection) {
			return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("function[%d]: type index %d out of range", i, typIdx)}
		}
	}
	for i, exp := range m.ExportSection {
		var max Index
		switch exp.Type {
		case api.ExternTypeFunc:
			max = numFuncs
		case api.ExternTypeMemory:
			max = numMems
		case api.ExternTypeTable:
			max = numTables
		case api.ExternTypeGlobal:
			max = numGlobals
		}
		if exp.Index >= max {
			return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("export[%d] %q: index %d out of range", i, exp.Name, exp.Index)}
		}
	}
	for i, el := range m.ElementSection {
		if el.TableIndex >= numTables {
			return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("element[%d]: table index %d out of range", i, el.TableIndex)}
		}
		for _, fi := range el.FuncIndex {
			if fi >= numFuncs {
				return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("element[%d]: func index %d out of range", i, fi)}
			}
		}
	}
	for i, d := range m.DataSection {
		if d.MemoryIndex >= numMems {
			return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("data[%d]: memory index %d out of range", i, d.MemoryIndex)}
		}
	}
	if m.StartFunc != nil && *m.StartFunc >= numFuncs {
		return &CompileError{Kind: CompileErrorValidate, Message: fmt.Sprintf("start function index %d out of range", *m.StartFunc)}
	}
	return nil
}
