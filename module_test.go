package wasmer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

func TestModule_NameReturnsDescriptorName(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	m, err := engine.CompileModule(addSigModule())
	require.NoError(t, err)
	require.Equal(t, "engine-test-module", m.Name())
}

func TestModule_NameEmptyWhenUnset(t *testing.T) {
	desc := addSigModule()
	desc.Name = ""
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	m, err := engine.CompileModule(desc)
	require.NoError(t, err)
	require.Equal(t, "", m.Name())
}

func TestModule_ImportsReportsDeclaredImportsAndIsACopy(t *testing.T) {
	desc := &wasmcore.Module{
		TypeSection: []api.FunctionType{{}},
		ImportSection: []wasmcore.Import{
			{Module: "env", Field: "f", Type: api.ExternTypeFunc, FuncTypeIndex: 0},
		},
		ImportFunctionCount: 1,
	}
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	m, err := engine.CompileModule(desc)
	require.NoError(t, err)

	imports := m.Imports()
	require.Len(t, imports, 1)
	require.Equal(t, "env", imports[0].Module)

	imports[0].Module = "mutated"
	require.Equal(t, "env", m.desc.ImportSection[0].Module)
}
