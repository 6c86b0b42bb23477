package wasmcore

import (
	"sync"
	"unsafe"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/signature"
)

// CheckedAnyfunc is the triple stored at each funcref table element
// (spec.md §3): an indirect-call site verifies TypeID against its own
// expected signature id before jumping through FuncPtr with VMCtx as the
// callee's context register.
type CheckedAnyfunc struct {
	FuncPtr uintptr
	TypeID  signature.ID
	VMCtx   uintptr
}

// RuntimeTable is the engine-owned record backing an api.Table extern
// (spec.md §4.6 Table). Only funcref element storage participates in
// call_indirect; externref storage is opaque to the engine.
type RuntimeTable struct {
	plan TablePlan

	growMu sync.Mutex

	// Exactly one of funcs/externs is used, selected by plan.Table.Element.
	funcs   []*CheckedAnyfunc
	externs []uintptr
}

func newRuntimeTable(plan TablePlan) *RuntimeTable {
	t := &RuntimeTable{plan: plan}
	switch plan.Table.Element {
	case api.ValueTypeFuncref:
		t.funcs = make([]*CheckedAnyfunc, plan.Table.Minimum)
	case api.ValueTypeExternref:
		t.externs = make([]uintptr, plan.Table.Minimum)
	}
	return t
}

func (t *RuntimeTable) Type() api.TableType { return t.plan.Table }

func (t *RuntimeTable) Size() uint32 {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	return t.length()
}

func (t *RuntimeTable) length() uint32 {
	if t.plan.Table.Element == api.ValueTypeFuncref {
		return uint32(len(t.funcs))
	}
	return uint32(len(t.externs))
}

// Get returns the element at index as an api.Val, or an error if out of
// range. A funcref element is surfaced as an opaque pointer to its
// CheckedAnyfunc triple (nil for an uninitialized slot, i.e. the WebAssembly
// null funcref).
func (t *RuntimeTable) Get(index uint32) (api.Val, error) {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	if index >= t.length() {
		return api.Val{}, &TableError{Message: "index out of bounds"}
	}
	switch t.plan.Table.Element {
	case api.ValueTypeFuncref:
		return api.Funcref(uint64(uintptr(unsafe.Pointer(t.funcs[index])))), nil
	default:
		return api.Externref(t.externs[index]), nil
	}
}

// Set stores val at index. val must carry the table's element type.
func (t *RuntimeTable) Set(index uint32, val api.Val) error {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	if index >= t.length() {
		return &TableError{Message: "index out of bounds"}
	}
	if val.Type() != t.plan.Table.Element {
		return &TableError{Message: "element type mismatch"}
	}
	switch t.plan.Table.Element {
	case api.ValueTypeFuncref:
		t.funcs[index] = (*CheckedAnyfunc)(unsafe.Pointer(uintptr(val.FuncrefBits())))
	default:
		t.externs[index] = val.ExternrefPtr()
	}
	return nil
}

// GetAnyfunc returns the CheckedAnyfunc stored at index in a funcref table,
// for a call_indirect site to verify against its own expected signature id
// before dispatching (spec.md §8). A nil result with no error is the
// WebAssembly null funcref.
func (t *RuntimeTable) GetAnyfunc(index uint32) (*CheckedAnyfunc, error) {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	if index >= t.length() {
		return nil, &TableError{Message: "index out of bounds"}
	}
	if t.plan.Table.Element != api.ValueTypeFuncref {
		return nil, &TableError{Message: "element type mismatch"}
	}
	return t.funcs[index], nil
}

// SetAnyfunc is the internal-only entry point used during element-segment
// evaluation, where the caller already has a typed *CheckedAnyfunc rather
// than a boxed api.Val.
func (t *RuntimeTable) SetAnyfunc(index uint32, fn *CheckedAnyfunc) {
	t.growMu.Lock()
	defer t.growMu.Unlock()
	t.funcs[index] = fn
}

// Grow implements spec.md §8's table grow property: elements in
// [prev, prev+delta) equal init after a successful grow.
func (t *RuntimeTable) Grow(delta uint32, init api.Val) (prev uint32, err error) {
	t.growMu.Lock()
	defer t.growMu.Unlock()

	prev = t.length()
	if delta == 0 {
		return prev, nil
	}
	next := prev + delta
	max := t.plan.Table.Minimum
	if t.plan.Table.Maximum != nil {
		max = *t.plan.Table.Maximum
	}
	if next < prev || next > max {
		return 0, &TableError{Kind: GrowErrorCouldNotGrow, Current: prev, AttemptedDelta: delta}
	}

	switch t.plan.Table.Element {
	case api.ValueTypeFuncref:
		grown := make([]*CheckedAnyfunc, next)
		copy(grown, t.funcs)
		fn := (*CheckedAnyfunc)(unsafe.Pointer(uintptr(init.FuncrefBits())))
		for i := prev; i < next; i++ {
			grown[i] = fn
		}
		t.funcs = grown
	default:
		grown := make([]uintptr, next)
		copy(grown, t.externs)
		for i := prev; i < next; i++ {
			grown[i] = init.ExternrefPtr()
		}
		t.externs = grown
	}
	return prev, nil
}

// Copy copies len elements from src[srcIdx:] into dst[dstIdx:]. Both tables
// must belong to the same Store (enforced by the caller at the Extern
// layer, spec.md §4.6); out-of-bounds ranges are rejected here.
func Copy(dst, src *RuntimeTable, dstIdx, srcIdx, length uint32) error {
	dst.growMu.Lock()
	if dst != src {
		src.growMu.Lock()
		defer src.growMu.Unlock()
	}
	defer dst.growMu.Unlock()

	if uint64(srcIdx)+uint64(length) > uint64(src.length()) || uint64(dstIdx)+uint64(length) > uint64(dst.length()) {
		return &TableError{Message: "copy out of bounds"}
	}
	if dst.plan.Table.Element != src.plan.Table.Element {
		return &TableError{Message: "element type mismatch"}
	}
	switch dst.plan.Table.Element {
	case api.ValueTypeFuncref:
		copy(dst.funcs[dstIdx:dstIdx+length], src.funcs[srcIdx:srcIdx+length])
	default:
		copy(dst.externs[dstIdx:dstIdx+length], src.externs[srcIdx:srcIdx+length])
	}
	return nil
}
