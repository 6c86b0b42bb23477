package wasmcore

import (
	"sync/atomic"

	"github.com/wafoundation/wasmer/api"
)

// GlobalInstance is the engine-owned record backing an api.Global extern.
// Val is stored as a 64-bit pattern regardless of declared type, mirroring
// the teacher's own GlobalInstance.Val representation; mutable globals are
// accessed through atomics since, unlike linear memory, a single word is
// cheap to make race-free and the spec does not forbid it.
type GlobalInstance struct {
	Type api.GlobalType
	val  uint64
}

func NewGlobalInstance(t api.GlobalType, initial api.Val) *GlobalInstance {
	return &GlobalInstance{Type: t, val: rawBitsOf(initial)}
}

func rawBitsOf(v api.Val) uint64 {
	if v.Type() == api.ValueTypeExternref {
		return uint64(v.ExternrefPtr())
	}
	slot := make([]byte, api.ValSlotSize)
	api.WriteValueTo(v, slot)
	return uint64(slot[0]) | uint64(slot[1])<<8 | uint64(slot[2])<<16 | uint64(slot[3])<<24 |
		uint64(slot[4])<<32 | uint64(slot[5])<<40 | uint64(slot[6])<<48 | uint64(slot[7])<<56
}

// Get reads the current value.
func (g *GlobalInstance) Get() api.Val {
	bits := atomic.LoadUint64(&g.val)
	slot := make([]byte, api.ValSlotSize)
	slot[0] = byte(bits)
	slot[1] = byte(bits >> 8)
	slot[2] = byte(bits >> 16)
	slot[3] = byte(bits >> 24)
	slot[4] = byte(bits >> 32)
	slot[5] = byte(bits >> 40)
	slot[6] = byte(bits >> 48)
	slot[7] = byte(bits >> 56)
	return api.ReadValueFrom(g.Type.ValType, slot)
}

// Set assigns a new value. Callers (the Global extern surface) are
// responsible for rejecting writes to an Immutable global and for type
// checking val against g.Type.ValType (spec.md §4.6).
func (g *GlobalInstance) Set(val api.Val) {
	atomic.StoreUint64(&g.val, rawBitsOf(val))
}
