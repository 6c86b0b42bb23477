package wasmer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// externsModule declares one memory, one table, and one mutable global, all
// exported, with a data segment to exercise memory reads after
// instantiation.
func externsModule() *wasmcore.Module {
	max32 := uint32(4)
	maxTbl := uint32(4)
	return &wasmcore.Module{
		Name:          "externs",
		MemorySection: []api.MemoryType{{Minimum: 1, Maximum: &max32}},
		TableSection:  []api.TableType{{Element: api.ValueTypeFuncref, Minimum: 2, Maximum: &maxTbl}},
		GlobalSection: []wasmcore.GlobalDecl{
			{Type: api.GlobalType{ValType: api.ValueTypeI32, Mutability: api.Mutable}, Init: wasmcore.ConstExpr{Op: wasmcore.ConstExprI32Const, I32Val: 7}},
		},
		ExportSection: []wasmcore.Export{
			{Name: "mem", Type: api.ExternTypeMemory, Index: 0},
			{Name: "tbl", Type: api.ExternTypeTable, Index: 0},
			{Name: "g", Type: api.ExternTypeGlobal, Index: 0},
		},
		DataSection: []wasmcore.DataSegment{
			{MemoryIndex: 0, Offset: wasmcore.ConstExpr{Op: wasmcore.ConstExprI32Const, I32Val: 0}, Init: []byte{1, 2, 3, 4}},
		},
	}
}

func TestExterns_MemoryTableGlobalRoundTrip(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	mod, err := engine.CompileModule(externsModule())
	require.NoError(t, err)

	store := NewStore(engine)
	inst, err := store.Instantiate(mod, nil)
	require.NoError(t, err)

	mem := inst.GetMemory("mem")
	require.NotNil(t, mem)
	require.Equal(t, []byte{1, 2, 3, 4}, mem.Data()[:4])
	require.Equal(t, api.Pages(1), mem.Size())
	prev, err := mem.Grow(1)
	require.NoError(t, err)
	require.Equal(t, api.Pages(1), prev)
	require.Equal(t, api.Pages(2), mem.Size())

	tbl := inst.GetTable("tbl")
	require.NotNil(t, tbl)
	require.Equal(t, uint32(2), tbl.Size())

	g := inst.GetGlobal("g")
	require.NotNil(t, g)
	require.Equal(t, int32(7), g.Get().I32())
	require.NoError(t, g.Set(api.I32(9)))
	require.Equal(t, int32(9), g.Get().I32())

	err = g.Set(api.I64(1))
	require.Error(t, err)
}

func TestExterns_ImmutableGlobalRejectsSet(t *testing.T) {
	m := &wasmcore.Module{
		GlobalSection: []wasmcore.GlobalDecl{
			{Type: api.GlobalType{ValType: api.ValueTypeI32, Mutability: api.Immutable}, Init: wasmcore.ConstExpr{Op: wasmcore.ConstExprI32Const, I32Val: 1}},
		},
		ExportSection: []wasmcore.Export{{Name: "g", Type: api.ExternTypeGlobal, Index: 0}},
	}
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	mod, err := engine.CompileModule(m)
	require.NoError(t, err)
	store := NewStore(engine)
	inst, err := store.Instantiate(mod, nil)
	require.NoError(t, err)

	g := inst.GetGlobal("g")
	require.Error(t, g.Set(api.I32(2)))
}

func TestExterns_CopyTableRejectsCrossStore(t *testing.T) {
	m := externsModule()
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	mod, err := engine.CompileModule(m)
	require.NoError(t, err)

	s1 := NewStore(engine)
	inst1, err := s1.Instantiate(mod, nil)
	require.NoError(t, err)

	mod2, err := engine.CompileModule(externsModule())
	require.NoError(t, err)
	s2 := NewStore(engine)
	inst2, err := s2.Instantiate(mod2, nil)
	require.NoError(t, err)

	err = CopyTable(inst1.GetTable("tbl"), inst2.GetTable("tbl"), 0, 0, 1)
	require.Error(t, err)
}

func TestHostModuleBuilder_BuildExposesFunctionExport(t *testing.T) {
	sig := api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	hm := NewHostModuleBuilder("env").
		NewFunction("inc", sig, func(params []api.Val) ([]api.Val, error) {
			return []api.Val{api.I32(params[0].I32() + 1)}, nil
		}).
		Build()

	require.Len(t, hm.ExportSection, 1)
	require.Equal(t, "inc", hm.ExportSection[0].Name)
	require.Equal(t, api.ExternTypeFunc, hm.ExportSection[0].Type)
	require.Len(t, hm.HostFuncs, 1)
	require.Equal(t, wasmcore.HostFuncDynamic, hm.HostFuncs[0].Kind)
}

func TestImportsBuilder_DefineInstanceWiresAllExports(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	mod, err := engine.CompileModule(externsModule())
	require.NoError(t, err)
	store := NewStore(engine)
	producer, err := store.Instantiate(mod, nil)
	require.NoError(t, err)

	imports := NewImports().DefineInstance("env", producer).Build()
	_, ok := imports.coreResolver().Resolve("env", "mem")
	require.True(t, ok)
	_, ok = imports.coreResolver().Resolve("env", "missing")
	require.False(t, ok)
}
