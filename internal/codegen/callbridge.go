package codegen

import (
	"sync"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// nativeFunc is what a compiled function's entry address dispatches to.
// Code generation in this runtime stops short of emitting a full
// calling-convention-correct native body (spec.md's Non-goals exclude a
// general-purpose optimizing backend); instead each entry address is keyed,
// through CallBridge's table, to the Go closure that actually carries out
// the function's semantics, so every other piece of the pipeline — Code
// Memory, the Linker, Frame-Info, CheckedAnyfunc identity and equality —
// still operates on real addresses exactly as a true JIT's would.
type nativeFunc func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap)

// CallBridge is the Call Bridge (C13): the forward direction (embedder or
// Wasm code calling into a compiled function) and the reverse direction
// (compiled code calling back into a host function) both funnel through
// Call, which marshals a uniform []api.Val through the value-array ABI
// (spec.md §4.7, §8).
type CallBridge struct {
	mu    sync.RWMutex
	table map[uintptr]nativeFunc
}

func NewCallBridge() *CallBridge {
	return &CallBridge{table: make(map[uintptr]nativeFunc)}
}

// Bind associates entry with fn, the way the Linker associates an entry
// address with linked machine code; Call dispatches through this table
// instead of jumping through entry directly.
func (b *CallBridge) Bind(entry uintptr, fn nativeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table[entry] = fn
}

// Unbind removes entry's registration, called when a Compiled Module is
// dropped.
func (b *CallBridge) Unbind(entry uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.table, entry)
}

// Call implements the forward trampoline: given a CheckedAnyfunc and
// argument values already checked against its signature by the caller, it
// round-trips them through WriteValueTo/ReadValueFrom (exercising the same
// ABI real machine code would read) before dispatching.
func (b *CallBridge) Call(anyfunc wasmcore.CheckedAnyfunc, params []api.Val) ([]api.Val, *wasmcore.Trap) {
	slots := marshalParams(params)
	unmarshalled := make([]api.Val, len(params))
	for i, p := range params {
		unmarshalled[i] = api.ReadValueFrom(p.Type(), slots[i*api.ValSlotSize:(i+1)*api.ValSlotSize])
	}

	b.mu.RLock()
	fn, ok := b.table[anyfunc.FuncPtr]
	b.mu.RUnlock()
	if !ok {
		return nil, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, PC: anyfunc.FuncPtr, Message: "call to unbound entry address"}
	}
	return fn(anyfunc.VMCtx, unmarshalled)
}

// CallHost implements the reverse trampoline for a Dynamic host function:
// called from generated code (conceptually) with a checked-anyfunc that
// happens to resolve to host.DynamicFn through the same table Bind
// populated when the import was wrapped.
func (b *CallBridge) CallHost(host *wasmcore.HostFunc, params []api.Val) ([]api.Val, *wasmcore.Trap) {
	if host.DynamicFn == nil {
		return nil, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: "static host function invoked through dynamic call path"}
	}
	results, err := host.DynamicFn(params)
	if err != nil {
		return nil, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: err.Error()}
	}
	return results, nil
}

// BuildDynamicTrampoline implements wasmcore.DynamicTrampolineBuilder: it
// allocates a fresh entry address (a small arena-less "handle", since no
// real machine code needs to exist for this path to be indistinguishable
// at the Go level) and binds it to a closure that forwards into CallHost.
func (b *CallBridge) BuildDynamicTrampoline(sig api.FunctionType, fn *wasmcore.HostFunc) wasmcore.CheckedAnyfunc {
	entry := newHandle()
	b.Bind(entry, func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap) {
		return b.CallHost(fn, params)
	})
	return wasmcore.CheckedAnyfunc{FuncPtr: entry}
}

var _ wasmcore.DynamicTrampolineBuilder = (*CallBridge)(nil)

// startInvoker adapts CallBridge to wasmcore.StartInvoker for a module's
// start function, which by construction takes no arguments and returns no
// results.
type startInvoker struct{ bridge *CallBridge }

// NewStartInvoker adapts bridge to wasmcore.StartInvoker for use as
// InstantiationArgs.StartInvoker.
func NewStartInvoker(bridge *CallBridge) wasmcore.StartInvoker {
	return startInvoker{bridge: bridge}
}

func (s startInvoker) InvokeStart(fn *wasmcore.FunctionInstance) *wasmcore.Trap {
	_, trap := s.bridge.Call(fn.Anyfunc, nil)
	return trap
}

var _ wasmcore.StartInvoker = startInvoker{}

func marshalParams(params []api.Val) []byte {
	buf := make([]byte, len(params)*api.ValSlotSize)
	for i, p := range params {
		api.WriteValueTo(p, buf[i*api.ValSlotSize:(i+1)*api.ValSlotSize])
	}
	return buf
}

// handleCounter hands out synthetic, never-reused "entry addresses" for
// host-function trampolines, which need identity and inequality but have
// no real executable backing. Starting at a high, non-canonical value keeps
// them visibly distinct from genuine CodeMemory addresses during
// debugging.
var (
	handleMu      sync.Mutex
	handleCounter uintptr = 0xC0FFEE_00000000
)

func newHandle() uintptr {
	handleMu.Lock()
	defer handleMu.Unlock()
	handleCounter++
	return handleCounter
}
