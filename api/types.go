// Package api holds the value and type vocabulary shared between the
// embedder-facing root package and the internal runtime packages.
//
// Nothing in this package allocates executable memory or touches a VM
// context; it only describes the shapes that cross the host/guest boundary.
package api

import "fmt"

// ValueType is a Wasm value type as used in signatures, locals, and globals.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeFuncref is a first-class reference to a function, represented
	// at runtime as a checked-anyfunc triple.
	ValueTypeFuncref ValueType = 0x70
	// ValueTypeExternref is an opaque host reference, represented at
	// runtime as a raw uintptr.
	ValueTypeExternref ValueType = 0x6f
)

// String implements fmt.Stringer, matching the WebAssembly text format names.
func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(t))
	}
}

// ExternType classifies an import or export.
type ExternType byte

const (
	ExternTypeFunc ExternType = iota
	ExternTypeTable
	ExternTypeMemory
	ExternTypeGlobal
)

func (t ExternType) String() string {
	switch t {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Mutability describes whether a Global can be assigned after creation.
type Mutability byte

const (
	Immutable Mutability = iota
	Mutable
)

// FunctionType is a function signature: ordered parameter and result value
// types. Equality is structural (see Equals), which is the basis for the
// Signature Registry's canonicalization (internal/signature).
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equals reports whether ft and other describe the same signature.
func (ft *FunctionType) Equals(other *FunctionType) bool {
	if other == nil {
		return false
	}
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i, p := range ft.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range ft.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

// Key returns a string that is equal iff the two FunctionTypes are
// structurally equal. Used by the Signature Registry to canonicalize.
func (ft *FunctionType) Key() string {
	buf := make([]byte, 0, len(ft.Params)+len(ft.Results)+2)
	for _, p := range ft.Params {
		buf = append(buf, byte(p))
	}
	buf = append(buf, '-')
	for _, r := range ft.Results {
		buf = append(buf, byte(r))
	}
	return string(buf)
}

func (ft *FunctionType) String() string {
	return fmt.Sprintf("%v -> %v", ft.Params, ft.Results)
}

// MemoryType declares the bounds of a linear memory, in 64KiB pages.
type MemoryType struct {
	Minimum uint32
	Maximum *uint32 // nil means unbounded (up to the implementation ceiling).
}

// TableType declares the bounds and element type of a table. Only Funcref
// is supported by the indirect-call mechanism; Externref tables may be
// created and read/written but never used as call_indirect targets.
type TableType struct {
	Element ValueType
	Minimum uint32
	Maximum *uint32
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	ValType    ValueType
	Mutability Mutability
}

// Pages is a linear-memory size expressed in 64KiB pages.
type Pages uint32

// PageSize is the fixed size of a linear-memory page, per the Wasm spec.
const PageSize = 65536

// Bytes converts a page count to a byte count.
func (p Pages) Bytes() uint64 { return uint64(p) * PageSize }
