package wasmcore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/signature"
)

// i32i32Type returns (i32) -> i32, the signature used throughout these
// tests.
func i32i32Type() api.FunctionType {
	return api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
}

func registerAll(reg *signature.Registry, types []api.FunctionType) []signature.ID {
	ids := make([]signature.ID, len(types))
	for i, t := range types {
		ids[i] = reg.Register(t)
	}
	return ids
}

// noImportModule builds a module with one local memory, one local table,
// one local global, one local function, an export of each, and an element
// segment that installs the local function into the table at index 0.
func noImportModule() *Module {
	max32 := uint32(32)
	maxTbl := uint32(4)
	return &Module{
		Name:          "m",
		TypeSection:   []api.FunctionType{i32i32Type()},
		FunctionSection: []Index{0},
		CodeSection:   []CodeBody{{Body: []byte{0x00}}},
		MemorySection: []api.MemoryType{{Minimum: 1, Maximum: &max32}},
		TableSection:  []api.TableType{{Element: api.ValueTypeFuncref, Minimum: 2, Maximum: &maxTbl}},
		GlobalSection: []GlobalDecl{{Type: api.GlobalType{ValType: api.ValueTypeI32, Mutability: api.Mutable}, Init: ConstExpr{Op: ConstExprI32Const, I32Val: 7}}},
		ExportSection: []Export{
			{Name: "f", Type: api.ExternTypeFunc, Index: 0},
			{Name: "mem", Type: api.ExternTypeMemory, Index: 0},
			{Name: "tbl", Type: api.ExternTypeTable, Index: 0},
			{Name: "g", Type: api.ExternTypeGlobal, Index: 0},
		},
		ElementSection: []ElementSegment{
			{TableIndex: 0, Offset: ConstExpr{Op: ConstExprI32Const, I32Val: 0}, FuncIndex: []Index{0}},
		},
		DataSection: []DataSegment{
			{MemoryIndex: 0, Offset: ConstExpr{Op: ConstExprI32Const, I32Val: 0}, Init: []byte{1, 2, 3, 4}},
		},
	}
}

func TestInstantiate_NoImports(t *testing.T) {
	reg := signature.NewRegistry(nil)
	m := noImportModule()
	ids := registerAll(reg, m.TypeSection)

	inst, err := Instantiate(InstantiationArgs{
		Module:           m,
		Tunables:         NewDefaultTunables(),
		Resolver:         ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
		FunctionPointers: []uintptr{0x1000},
		TypeIDs:          ids,
	})
	require.NoError(t, err)
	require.Len(t, inst.Funcs, 1)
	require.Equal(t, ids[0], inst.Funcs[0].TypeID)

	memExp, err := inst.Export("mem")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, memExp.Memory.Data()[:4])

	tblExp, err := inst.Export("tbl")
	require.NoError(t, err)
	v, err := tblExp.Table.Get(0)
	require.NoError(t, err)
	require.Equal(t, api.ValueTypeFuncref, v.Type())

	gExp, err := inst.Export("g")
	require.NoError(t, err)
	require.Equal(t, int32(7), gExp.Global.Get().I32())
}

func TestInstantiate_UnknownImportFails(t *testing.T) {
	m := &Module{
		TypeSection: []api.FunctionType{i32i32Type()},
		ImportSection: []Import{
			{Module: "env", Field: "missing", Type: api.ExternTypeFunc, FuncTypeIndex: 0},
		},
		ImportFunctionCount: 1,
	}
	_, err := Instantiate(InstantiationArgs{
		Module:   m,
		Tunables: NewDefaultTunables(),
		Resolver: ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
	})
	require.Error(t, err)
	var instErr *InstantiationError
	require.ErrorAs(t, err, &instErr)
	require.Equal(t, InstantiationErrorLink, instErr.Kind)
}

func TestInstantiate_ImportedFunctionTypeMismatchFails(t *testing.T) {
	wrongType := api.FunctionType{Params: nil, Results: []api.ValueType{api.ValueTypeI32}}
	hostFn := &FunctionInstance{Type: wrongType, Host: &HostFunc{Kind: HostFuncStatic, Type: wrongType}}

	m := &Module{
		TypeSection:         []api.FunctionType{i32i32Type()},
		ImportSection:       []Import{{Module: "env", Field: "f", Type: api.ExternTypeFunc, FuncTypeIndex: 0}},
		ImportFunctionCount: 1,
	}
	_, err := Instantiate(InstantiationArgs{
		Module:   m,
		Tunables: NewDefaultTunables(),
		Resolver: ResolverFunc(func(modName, field string) (ExternVal, bool) {
			return ExternVal{Type: api.ExternTypeFunc, Func: hostFn}, true
		}),
	})
	require.Error(t, err)
}

func TestInstantiate_DynamicHostImportIsWrappedAndExported(t *testing.T) {
	sig := i32i32Type()
	called := false
	hostFn := &FunctionInstance{
		Type: sig,
		Host: &HostFunc{Kind: HostFuncDynamic, Type: sig, DynamicFn: func(params []api.Val) ([]api.Val, error) {
			called = true
			return []api.Val{api.I32(params[0].I32() * 2)}, nil
		}},
	}

	m := &Module{
		TypeSection:         []api.FunctionType{sig},
		ImportSection:       []Import{{Module: "env", Field: "double", Type: api.ExternTypeFunc, FuncTypeIndex: 0}},
		ImportFunctionCount: 1,
		ExportSection:       []Export{{Name: "double", Type: api.ExternTypeFunc, Index: 0}},
	}

	builder := stubTrampolineBuilder{wrap: func(sig api.FunctionType, fn *HostFunc) CheckedAnyfunc {
		return CheckedAnyfunc{FuncPtr: 0xbeef}
	}}

	inst, err := Instantiate(InstantiationArgs{
		Module:   m,
		Tunables: NewDefaultTunables(),
		Resolver: ResolverFunc(func(modName, field string) (ExternVal, bool) {
			return ExternVal{Type: api.ExternTypeFunc, Func: hostFn}, true
		}),
		TrampolineBuilder: builder,
	})
	require.NoError(t, err)

	exp, err := inst.Export("double")
	require.NoError(t, err)
	require.Equal(t, uintptr(0xbeef), exp.Func.Anyfunc.FuncPtr)
	require.False(t, called) // wrapping doesn't invoke the function.
}

type stubTrampolineBuilder struct {
	wrap func(api.FunctionType, *HostFunc) CheckedAnyfunc
}

func (s stubTrampolineBuilder) BuildDynamicTrampoline(sig api.FunctionType, fn *HostFunc) CheckedAnyfunc {
	return s.wrap(sig, fn)
}

func TestInstantiate_StartFunctionRuns(t *testing.T) {
	m := &Module{
		TypeSection:     []api.FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection:     []CodeBody{{Body: []byte{0x0b}}},
	}
	idx := Index(0)
	m.StartFunc = &idx

	ran := false
	invoker := stubStartInvoker{fn: func(fn *FunctionInstance) *Trap {
		ran = true
		return nil
	}}

	_, err := Instantiate(InstantiationArgs{
		Module:           m,
		Tunables:         NewDefaultTunables(),
		Resolver:         ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
		FunctionPointers: []uintptr{0x2000},
		TypeIDs:          []signature.ID{0},
		StartInvoker:     invoker,
	})
	require.NoError(t, err)
	require.True(t, ran)
}

type stubStartInvoker struct{ fn func(*FunctionInstance) *Trap }

func (s stubStartInvoker) InvokeStart(fn *FunctionInstance) *Trap { return s.fn(fn) }

func TestInstantiate_StartFunctionTrapAbortsInstantiation(t *testing.T) {
	m := &Module{
		TypeSection:     []api.FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection:     []CodeBody{{Body: []byte{0x0b}}},
	}
	idx := Index(0)
	m.StartFunc = &idx

	invoker := stubStartInvoker{fn: func(fn *FunctionInstance) *Trap {
		return &Trap{Code: TrapCodeUnreachable}
	}}

	_, err := Instantiate(InstantiationArgs{
		Module:           m,
		Tunables:         NewDefaultTunables(),
		Resolver:         ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
		FunctionPointers: []uintptr{0x2000},
		TypeIDs:          []signature.ID{0},
		StartInvoker:     invoker,
	})
	require.Error(t, err)
	var instErr *InstantiationError
	require.ErrorAs(t, err, &instErr)
	require.Equal(t, InstantiationErrorStart, instErr.Kind)
}

func TestInstantiate_DataSegmentOutOfBoundsFails(t *testing.T) {
	max32 := uint32(1)
	m := &Module{
		MemorySection: []api.MemoryType{{Minimum: 1, Maximum: &max32}},
		DataSection: []DataSegment{
			{MemoryIndex: 0, Offset: ConstExpr{Op: ConstExprI32Const, I32Val: int32(api.PageSize) - 2}, Init: []byte{1, 2, 3, 4}},
		},
	}
	_, err := Instantiate(InstantiationArgs{
		Module:   m,
		Tunables: NewDefaultTunables(),
		Resolver: ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
	})
	require.Error(t, err)
}

func TestStore_TracksInstancesAndRejectsCrossStoreUse(t *testing.T) {
	s1 := NewStore(nil)
	s2 := NewStore(nil)
	require.NotEqual(t, s1.ID(), s2.ID())

	m := noImportModule()
	reg := signature.NewRegistry(nil)
	ids := registerAll(reg, m.TypeSection)

	inst, err := s1.Instantiate(InstantiationArgs{
		Module:           m,
		Tunables:         NewDefaultTunables(),
		Resolver:         ResolverFunc(func(string, string) (ExternVal, bool) { return ExternVal{}, false }),
		FunctionPointers: []uintptr{0x3000},
		TypeIDs:          ids,
	})
	require.NoError(t, err)
	require.Len(t, s1.Instances(), 1)
	require.Equal(t, s1.ID(), inst.StoreID)

	require.NoError(t, CheckSameStore("table.copy", inst.StoreID, s1.ID()))
	require.Error(t, CheckSameStore("table.copy", inst.StoreID, s2.ID()))
}
