package wasmer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

func TestEngine_CompileModuleSharesCompiledModuleAcrossCalls(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	desc := addSigModule()
	m1, err := engine.CompileModule(desc)
	require.NoError(t, err)
	m2, err := engine.CompileModule(desc)
	require.NoError(t, err)
	require.Same(t, m1.compiled, m2.compiled)
}

func TestEngine_CompileToArtifactRoundTripsThroughDeserialize(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	desc := addSigModule()
	blob, err := engine.CompileToArtifact(desc)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	cm, ok, err := engine.core.Deserialize(desc, bytes.NewReader(blob))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cm.FunctionPointers(), 1)
}

func TestEngine_EvictModuleForcesRecompile(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	desc := addSigModule()
	m1, err := engine.CompileModule(desc)
	require.NoError(t, err)

	engine.EvictModule(desc)

	m2, err := engine.CompileModule(desc)
	require.NoError(t, err)
	require.NotSame(t, m1.compiled, m2.compiled)
}

func addSigModule() *wasmcore.Module {
	sig := api.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	return &wasmcore.Module{
		Name:            "engine-test-module",
		TypeSection:     []api.FunctionType{sig},
		FunctionSection: []wasmcore.Index{0},
		CodeSection:     []wasmcore.CodeBody{{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}}},
		ExportSection:   []wasmcore.Export{{Name: "add", Type: api.ExternTypeFunc, Index: 0}},
	}
}
