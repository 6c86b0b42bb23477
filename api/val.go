package api

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValSlotSize is the width of one slot in the uniform value-array ABI the
// Call Bridge marshals through. 16 bytes is wide enough for any scalar
// value type plus tag padding, matching the engine-jit trampoline contract.
const ValSlotSize = 16

// Val is a dynamically-typed Wasm value as seen by an embedder: the type is
// carried alongside the bits instead of being implied by position, which is
// what lets Function.Call accept and return a uniform []Val regardless of
// signature.
type Val struct {
	ty  ValueType
	lo  uint64
	ptr uintptr // used only when ty == ValueTypeExternref.
}

func I32(v int32) Val    { return Val{ty: ValueTypeI32, lo: uint64(uint32(v))} }
func I64(v int64) Val    { return Val{ty: ValueTypeI64, lo: uint64(v)} }
func F32(v float32) Val  { return Val{ty: ValueTypeF32, lo: uint64(math.Float32bits(v))} }
func F64(v float64) Val  { return Val{ty: ValueTypeF64, lo: math.Float64bits(v)} }
func Funcref(v uint64) Val {
	return Val{ty: ValueTypeFuncref, lo: v}
}
func Externref(p uintptr) Val { return Val{ty: ValueTypeExternref, ptr: p} }

func (v Val) Type() ValueType { return v.ty }
func (v Val) I32() int32      { return int32(uint32(v.lo)) }
func (v Val) I64() int64      { return int64(v.lo) }
func (v Val) F32() float32    { return math.Float32frombits(uint32(v.lo)) }
func (v Val) F64() float64    { return math.Float64frombits(v.lo) }
func (v Val) FuncrefBits() uint64 { return v.lo }
func (v Val) ExternrefPtr() uintptr { return v.ptr }

func (v Val) String() string {
	switch v.ty {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case ValueTypeF32:
		return fmt.Sprintf("f32:%g", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("f64:%g", v.F64())
	case ValueTypeFuncref:
		return fmt.Sprintf("funcref:%#x", v.lo)
	case ValueTypeExternref:
		return fmt.Sprintf("externref:%#x", v.ptr)
	default:
		return "invalid"
	}
}

// WriteValueTo marshals v into a ValSlotSize-byte slot in little-endian
// byte order, whatever the host's native order. This is the host-side half of the forward
// trampoline's calling convention (spec.md §4.7): the generated code on the
// other side reads raw machine words out of the same slot.
func WriteValueTo(v Val, slot []byte) {
	if len(slot) < ValSlotSize {
		panic("BUG: slot shorter than ValSlotSize")
	}
	switch v.ty {
	case ValueTypeExternref:
		binary.LittleEndian.PutUint64(slot[:8], uint64(v.ptr))
	default:
		binary.LittleEndian.PutUint64(slot[:8], v.lo)
	}
	// Upper 8 bytes are reserved/zeroed: no value type defined by this
	// runtime needs more than 64 bits of payload (V128 is out of scope).
	binary.LittleEndian.PutUint64(slot[8:16], 0)
}

// ReadValueFrom is the inverse of WriteValueTo: it reinterprets the bytes in
// slot as a value of type ty. Round-tripping an arbitrary Val of type ty
// through WriteValueTo then ReadValueFrom(ty) always yields an equal Val.
func ReadValueFrom(ty ValueType, slot []byte) Val {
	if len(slot) < ValSlotSize {
		panic("BUG: slot shorter than ValSlotSize")
	}
	bits := binary.LittleEndian.Uint64(slot[:8])
	switch ty {
	case ValueTypeExternref:
		return Val{ty: ty, ptr: uintptr(bits)}
	default:
		return Val{ty: ty, lo: bits}
	}
}
