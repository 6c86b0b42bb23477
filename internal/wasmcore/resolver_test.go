package wasmcore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
)

func TestResolveImports_MemoryCompatibility(t *testing.T) {
	declaredMax := uint32(10)
	m := &Module{
		ImportSection: []Import{
			{Module: "env", Field: "mem", Type: api.ExternTypeMemory, MemoryType: api.MemoryType{Minimum: 2, Maximum: &declaredMax}},
		},
		ImportMemoryCount: 1,
	}

	actualMaxTooSmall := uint32(5)
	tooSmallMem, err := newLinearMemory(MemoryPlan{Memory: api.MemoryType{Minimum: 1, Maximum: &actualMaxTooSmall}, Style: MemoryStyleDynamic})
	require.NoError(t, err)

	_, err = resolveImports(m, ResolverFunc(func(string, string) (ExternVal, bool) {
		return ExternVal{Type: api.ExternTypeMemory, Memory: tooSmallMem}, true
	}), nil)
	require.Error(t, err)

	actualOK := uint32(8)
	okMem, err := newLinearMemory(MemoryPlan{Memory: api.MemoryType{Minimum: 4, Maximum: &actualOK}, Style: MemoryStyleDynamic})
	require.NoError(t, err)

	resolved, err := resolveImports(m, ResolverFunc(func(string, string) (ExternVal, bool) {
		return ExternVal{Type: api.ExternTypeMemory, Memory: okMem}, true
	}), nil)
	require.NoError(t, err)
	require.Same(t, okMem, resolved.memories[0])
}

func TestResolveImports_GlobalTypeMismatchFails(t *testing.T) {
	m := &Module{
		ImportSection: []Import{
			{Module: "env", Field: "g", Type: api.ExternTypeGlobal, GlobalType: api.GlobalType{ValType: api.ValueTypeI32, Mutability: api.Immutable}},
		},
		ImportGlobalCount: 1,
	}
	mismatched := NewGlobalInstance(api.GlobalType{ValType: api.ValueTypeI64, Mutability: api.Immutable}, api.I64(0))
	_, err := resolveImports(m, ResolverFunc(func(string, string) (ExternVal, bool) {
		return ExternVal{Type: api.ExternTypeGlobal, Global: mismatched}, true
	}), nil)
	require.Error(t, err)
}

func TestResolveImports_ExternKindMismatchFails(t *testing.T) {
	m := &Module{
		ImportSection:       []Import{{Module: "env", Field: "f", Type: api.ExternTypeFunc}},
		ImportFunctionCount: 1,
	}
	_, err := resolveImports(m, ResolverFunc(func(string, string) (ExternVal, bool) {
		return ExternVal{Type: api.ExternTypeGlobal, Global: &GlobalInstance{}}, true
	}), nil)
	require.Error(t, err)
}

func TestChainResolvers_FallsThroughInOrder(t *testing.T) {
	first := ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false })
	hit := ExternVal{Type: api.ExternTypeGlobal, Global: &GlobalInstance{}}
	second := ResolverFunc(func(string, string) (ExternVal, bool) { return hit, true })

	chained := ChainResolvers(first, second)
	ev, ok := chained.Resolve("env", "g")
	require.True(t, ok)
	require.Equal(t, hit, ev)
}
