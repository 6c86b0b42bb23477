package wasmer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
)

func TestHostModuleBuilder_InstantiatedHostFunctionIsCallable(t *testing.T) {
	sig := api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	hostDesc := NewHostModuleBuilder("env").
		NewFunction("inc", sig, func(params []api.Val) ([]api.Val, error) {
			return []api.Val{api.I32(params[0].I32() + 1)}, nil
		}).
		Build()

	engine, err := NewEngine(nil)
	require.NoError(t, err)
	hostMod, err := engine.CompileModule(hostDesc)
	require.NoError(t, err)

	store := NewStore(engine)
	hostInst, err := store.Instantiate(hostMod, nil)
	require.NoError(t, err)

	fn := hostInst.GetFunction("inc")
	require.NotNil(t, fn)
	results, err := fn.Call([]api.Val{api.I32(41)})
	require.NoError(t, err)
	require.Equal(t, int32(42), results[0].I32())
}

func TestHostModuleBuilder_MultipleFunctionsKeepDistinctIndices(t *testing.T) {
	sig := api.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	hostDesc := NewHostModuleBuilder("env").
		NewFunction("one", sig, func([]api.Val) ([]api.Val, error) { return []api.Val{api.I32(1)}, nil }).
		NewFunction("two", sig, func([]api.Val) ([]api.Val, error) { return []api.Val{api.I32(2)}, nil }).
		Build()

	require.Len(t, hostDesc.ExportSection, 2)
	require.Equal(t, "one", hostDesc.ExportSection[0].Name)
	require.Equal(t, "two", hostDesc.ExportSection[1].Name)
	require.Equal(t, uint32(0), hostDesc.ExportSection[0].Index)
	require.Equal(t, uint32(1), hostDesc.ExportSection[1].Index)
}
