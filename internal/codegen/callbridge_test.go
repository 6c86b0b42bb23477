package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

func TestCallBridge_BindAndCallRoundTrips(t *testing.T) {
	b := NewCallBridge()
	entry := uintptr(0x1234)
	b.Bind(entry, func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap) {
		return []api.Val{api.I32(params[0].I32() + params[1].I32())}, nil
	})

	results, trap := b.Call(wasmcore.CheckedAnyfunc{FuncPtr: entry}, []api.Val{api.I32(3), api.I32(4)})
	require.Nil(t, trap)
	require.Equal(t, int32(7), results[0].I32())
}

func TestCallBridge_CallUnboundEntryTraps(t *testing.T) {
	b := NewCallBridge()
	_, trap := b.Call(wasmcore.CheckedAnyfunc{FuncPtr: 0xdead}, nil)
	require.NotNil(t, trap)
	require.Equal(t, wasmcore.TrapCodeUnreachable, trap.Code)
}

func TestCallBridge_UnbindRemovesEntry(t *testing.T) {
	b := NewCallBridge()
	entry := uintptr(0x5555)
	b.Bind(entry, func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap) { return nil, nil })
	b.Unbind(entry)

	_, trap := b.Call(wasmcore.CheckedAnyfunc{FuncPtr: entry}, nil)
	require.NotNil(t, trap)
}

func TestCallBridge_CallHostDynamicFunction(t *testing.T) {
	b := NewCallBridge()
	host := &wasmcore.HostFunc{
		Kind: wasmcore.HostFuncDynamic,
		Type: api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		DynamicFn: func(params []api.Val) ([]api.Val, error) {
			return []api.Val{api.I32(params[0].I32() * 2)}, nil
		},
	}
	results, trap := b.CallHost(host, []api.Val{api.I32(21)})
	require.Nil(t, trap)
	require.Equal(t, int32(42), results[0].I32())
}

func TestCallBridge_CallHostStaticFunctionTraps(t *testing.T) {
	b := NewCallBridge()
	host := &wasmcore.HostFunc{Kind: wasmcore.HostFuncStatic}
	_, trap := b.CallHost(host, nil)
	require.NotNil(t, trap)
}

func TestCallBridge_CallHostErrorBecomesTrap(t *testing.T) {
	b := NewCallBridge()
	host := &wasmcore.HostFunc{
		Kind: wasmcore.HostFuncDynamic,
		DynamicFn: func(params []api.Val) ([]api.Val, error) {
			return nil, errBoom
		},
	}
	_, trap := b.CallHost(host, nil)
	require.NotNil(t, trap)
	require.Contains(t, trap.Message, "boom")
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }

func TestCallBridge_BuildDynamicTrampolineProducesDistinctHandles(t *testing.T) {
	b := NewCallBridge()
	host := &wasmcore.HostFunc{Kind: wasmcore.HostFuncDynamic, DynamicFn: func(params []api.Val) ([]api.Val, error) {
		return nil, nil
	}}

	a1 := b.BuildDynamicTrampoline(api.FunctionType{}, host)
	a2 := b.BuildDynamicTrampoline(api.FunctionType{}, host)
	require.NotEqual(t, a1.FuncPtr, a2.FuncPtr)

	_, trap := b.Call(a1, nil)
	require.Nil(t, trap)
}

func TestStartInvoker_InvokesThroughBridge(t *testing.T) {
	b := NewCallBridge()
	entry := uintptr(0x9000)
	ran := false
	b.Bind(entry, func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap) {
		ran = true
		return nil, nil
	})

	invoker := NewStartInvoker(b)
	fn := &wasmcore.FunctionInstance{Anyfunc: wasmcore.CheckedAnyfunc{FuncPtr: entry}}
	trap := invoker.InvokeStart(fn)
	require.Nil(t, trap)
	require.True(t, ran)
}
