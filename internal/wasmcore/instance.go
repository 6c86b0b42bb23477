package wasmcore

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/signature"
)

// putWord writes v into vmctx at byte offset off, little-endian, matching
// the word size generated code reads with (spec.md §4.5 step 3).
func putWord(vmctx []byte, off uint32, v uint64) {
	binary.LittleEndian.PutUint64(vmctx[off:off+8], v)
}

// vmctxAddr returns the address of a VM context record's first byte, for
// stamping into the FunctionInstance entries generated code will be called
// with.
func vmctxAddr(vmctx []byte) uintptr {
	if len(vmctx) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&vmctx[0]))
}

// memoryBaseWord packs a LinearMemory's current data base pointer as the
// word generated code expects at a memory's VM context slot.
func memoryBaseWord(mem *LinearMemory) uint64 {
	data := mem.Data()
	if len(data) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&data[0])))
}

func tableAddr(t *RuntimeTable) uintptr { return uintptr(unsafe.Pointer(t)) }

func globalAddr(g *GlobalInstance) uintptr { return uintptr(unsafe.Pointer(g)) }

// StartInvoker calls a Wasm-defined function with no arguments and no
// results, the shape the start function is required to have, returning a
// non-nil Trap if it failed. This indirection keeps wasmcore free of any
// dependency on the call bridge, which lives in internal/codegen.
type StartInvoker interface {
	InvokeStart(fn *FunctionInstance) *Trap
}

// InstantiationArgs bundles everything Instantiate needs beyond the Module
// itself: the generated-code entry points and canonical signature ids that
// only internal/codegen can produce, plus the embedder-supplied Resolver and
// Tunables (spec.md §4.5).
type InstantiationArgs struct {
	Module   *Module
	StoreID  StoreID
	Tunables Tunables
	Resolver Resolver

	// TrampolineBuilder wraps Dynamic host function imports in a reverse
	// trampoline so they dispatch like any other function (required only if
	// the Resolver can hand back Dynamic host functions).
	TrampolineBuilder DynamicTrampolineBuilder

	// StartInvoker executes the module's start function, if any. Required
	// whenever Module.StartFunc is non-nil.
	StartInvoker StartInvoker

	// FunctionPointers[i] is the generated-code entry address of locally
	// defined function i (joint-space index minus ImportFunctionCount).
	// Left empty for a host module, which defines no function bodies here.
	FunctionPointers []uintptr

	// TypeIDs[i] is the canonical signature.ID already registered for
	// Module.TypeSection[i].
	TypeIDs []signature.ID

	// There is no per-function VM context input: Instantiate stamps the
	// Instance's own VM context address into every locally defined
	// function's Anyfunc.VMCtx once the record is allocated.
}

// Instance is the live, running realization of a Module (C10): its imports
// resolved, its memories/tables/globals allocated, its VM context record
// built, and (if declared) its start function already run to completion
// before Instantiate returns (spec.md §4.5).
type Instance struct {
	Module  *Module
	StoreID StoreID

	Funcs    []*FunctionInstance
	Memories []*LinearMemory
	Tables   []*RuntimeTable
	Globals  []*GlobalInstance

	Offsets   VMContextOffsets
	VMContext []byte

	typeIDs []signature.ID
	exports map[string]Export
}

// Instantiate runs spec.md §4.5's instantiation algorithm in order: resolve
// imports and check their types (step 1), allocate memories/tables/globals
// from Tunables (step 2), build the VM context record (step 3), evaluate
// element and data segments (step 4), then invoke the start function if one
// is declared (step 5). Any failure aborts before the start function runs
// and no partially-initialized Instance is returned.
func Instantiate(args InstantiationArgs) (*Instance, error) {
	m := args.Module

	resolved, err := resolveImports(m, args.Resolver, args.TrampolineBuilder)
	if err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}

	inst := &Instance{
		Module:  m,
		StoreID: args.StoreID,
		typeIDs: args.TypeIDs,
		exports: make(map[string]Export, len(m.ExportSection)),
	}

	if err := inst.allocateMemories(m, args.Tunables, resolved); err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}
	if err := inst.allocateTables(m, args.Tunables, resolved); err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}
	inst.allocateGlobals(m, resolved)
	if err := inst.allocateFunctions(m, resolved, args.TypeIDs, args.FunctionPointers); err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}

	inst.Offsets = NewVMContextOffsets(m)
	inst.buildVMContext(m)

	for _, exp := range m.ExportSection {
		inst.exports[exp.Name] = exp
	}

	if err := inst.evalElementSegments(m); err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}
	if err := inst.evalDataSegments(m); err != nil {
		return nil, &InstantiationError{Kind: InstantiationErrorLink, Cause: err}
	}

	if m.StartFunc != nil {
		if args.StartInvoker == nil {
			return nil, &InstantiationError{Kind: InstantiationErrorStart,
				Cause: errors.New("module declares a start function but no StartInvoker was supplied")}
		}
		if trap := args.StartInvoker.InvokeStart(inst.Funcs[*m.StartFunc]); trap != nil {
			return nil, &InstantiationError{Kind: InstantiationErrorStart, Cause: trap}
		}
	}

	return inst, nil
}

func (inst *Instance) allocateMemories(m *Module, tunables Tunables, resolved *resolvedImports) error {
	inst.Memories = make([]*LinearMemory, 0, m.ImportMemoryCount+Index(len(m.MemorySection)))
	inst.Memories = append(inst.Memories, resolved.memories...)
	for _, mt := range m.MemorySection {
		plan, err := tunables.MemoryPlan(mt)
		if err != nil {
			return err
		}
		mem, err := tunables.CreateMemory(plan)
		if err != nil {
			return err
		}
		inst.Memories = append(inst.Memories, mem)
	}
	return nil
}

func (inst *Instance) allocateTables(m *Module, tunables Tunables, resolved *resolvedImports) error {
	inst.Tables = make([]*RuntimeTable, 0, m.ImportTableCount+Index(len(m.TableSection)))
	inst.Tables = append(inst.Tables, resolved.tables...)
	for _, tt := range m.TableSection {
		plan, err := tunables.TablePlan(tt)
		if err != nil {
			return err
		}
		tbl, err := tunables.CreateTable(plan)
		if err != nil {
			return err
		}
		inst.Tables = append(inst.Tables, tbl)
	}
	return nil
}

func (inst *Instance) allocateGlobals(m *Module, resolved *resolvedImports) {
	inst.Globals = make([]*GlobalInstance, 0, m.ImportGlobalCount+Index(len(m.GlobalSection)))
	inst.Globals = append(inst.Globals, resolved.globals...)
	for _, g := range m.GlobalSection {
		inst.Globals = append(inst.Globals, NewGlobalInstance(g.Type, inst.evalConstExpr(g.Init)))
	}
}

func (inst *Instance) allocateFunctions(m *Module, resolved *resolvedImports, typeIDs []signature.ID, fnPointers []uintptr) error {
	inst.Funcs = make([]*FunctionInstance, 0, m.ImportFunctionCount+Index(len(m.FunctionSection)))
	inst.Funcs = append(inst.Funcs, resolved.funcs...)
	for i, typIdx := range m.FunctionSection {
		if m.IsHostModule() {
			break
		}
		var ptr uintptr
		if i < len(fnPointers) {
			ptr = fnPointers[i]
		}
		var tid signature.ID
		if int(typIdx) < len(typeIDs) {
			tid = typeIDs[typIdx]
		}
		inst.Funcs = append(inst.Funcs, &FunctionInstance{
			Type:   m.TypeSection[typIdx],
			TypeID: tid,
			Anyfunc: CheckedAnyfunc{
				FuncPtr: ptr,
				TypeID:  tid,
			},
			Module: inst,
		})
	}
	if m.IsHostModule() {
		for i, hf := range m.HostFuncs {
			hf := hf
			inst.Funcs = append(inst.Funcs, &FunctionInstance{
				Type: hf.Type,
				Host: &m.HostFuncs[i],
			})
		}
	}
	return nil
}

// buildVMContext fills in the flat per-instance record that generated code
// indexes at runtime (spec.md §4.5 step 3). Imported entries copy the
// resolved callee's own address/pointer; defined entries point at the
// records this Instance itself owns.
func (inst *Instance) buildVMContext(m *Module) {
	vmctx := make([]byte, inst.Offsets.TotalSize)
	self := vmctxAddr(vmctx)

	for i := Index(0); i < m.ImportFunctionCount; i++ {
		bodyOff, vmctxOff := inst.Offsets.ImportedFunctionOffset(i)
		fn := inst.Funcs[i]
		putWord(vmctx, bodyOff, uint64(fn.Anyfunc.FuncPtr))
		putWord(vmctx, vmctxOff, uint64(fn.Anyfunc.VMCtx))
	}
	for i := Index(0); i < m.ImportMemoryCount; i++ {
		putWord(vmctx, inst.Offsets.ImportedMemoriesBegin+i*inst.Offsets.WordStride, memoryBaseWord(inst.Memories[i]))
	}
	for i := Index(0); i < m.ImportTableCount; i++ {
		putWord(vmctx, inst.Offsets.ImportedTablesBegin+i*inst.Offsets.WordStride, uint64(tableAddr(inst.Tables[i])))
	}
	for i := Index(0); i < m.ImportGlobalCount; i++ {
		putWord(vmctx, inst.Offsets.ImportedGlobalsBegin+i*inst.Offsets.WordStride, uint64(globalAddr(inst.Globals[i])))
	}
	for i, mem := range inst.Memories[m.ImportMemoryCount:] {
		putWord(vmctx, inst.Offsets.DefinedMemoriesBegin+Index(i)*inst.Offsets.WordStride, memoryBaseWord(mem))
	}
	for i, tbl := range inst.Tables[m.ImportTableCount:] {
		putWord(vmctx, inst.Offsets.DefinedTablesBegin+Index(i)*inst.Offsets.WordStride, uint64(tableAddr(tbl)))
	}
	for i, g := range inst.Globals[m.ImportGlobalCount:] {
		putWord(vmctx, inst.Offsets.DefinedGlobalsBegin+Index(i)*inst.Offsets.WordStride, uint64(globalAddr(g)))
	}
	for i, tid := range inst.typeIDs {
		putWord(vmctx, inst.Offsets.SignatureIDsBegin+Index(i)*inst.Offsets.SignatureIDStride, uint64(tid))
	}

	inst.VMContext = vmctx

	for i := m.ImportFunctionCount; i < Index(len(inst.Funcs)); i++ {
		inst.Funcs[i].Anyfunc.VMCtx = self
	}
}

func (inst *Instance) evalElementSegments(m *Module) error {
	for _, el := range m.ElementSection {
		off, err := constExprToU32(inst.evalConstExpr(el.Offset))
		if err != nil {
			return err
		}
		tbl := inst.Tables[el.TableIndex]
		for i, fi := range el.FuncIndex {
			fn := inst.Funcs[fi]
			tbl.SetAnyfunc(off+uint32(i), &fn.Anyfunc)
		}
	}
	return nil
}

func (inst *Instance) evalDataSegments(m *Module) error {
	for _, d := range m.DataSection {
		off, err := constExprToU32(inst.evalConstExpr(d.Offset))
		if err != nil {
			return err
		}
		mem := inst.Memories[d.MemoryIndex]
		data := mem.Data()
		if uint64(off)+uint64(len(d.Init)) > uint64(len(data)) {
			return &MemoryError{Message: "data segment out of bounds"}
		}
		copy(data[off:], d.Init)
	}
	return nil
}

// evalConstExpr implements spec.md §4.5's constant-expression evaluator: a
// literal, or a read of an already-resolved imported global.
func (inst *Instance) evalConstExpr(e ConstExpr) api.Val {
	switch e.Op {
	case ConstExprI32Const:
		return api.I32(e.I32Val)
	case ConstExprI64Const:
		return api.I64(e.I64Val)
	case ConstExprF32Const:
		return api.F32(e.F32Val)
	case ConstExprF64Const:
		return api.F64(e.F64Val)
	case ConstExprGlobalGet:
		return inst.Globals[e.GlobalIndex].Get()
	default:
		return api.I32(0)
	}
}

func constExprToU32(v api.Val) (uint32, error) {
	if v.Type() != api.ValueTypeI32 {
		return 0, errors.New("offset expression did not evaluate to i32")
	}
	return uint32(v.I32()), nil
}

// Export looks up a name in this Instance's export namespace and resolves it
// to a live ExternVal.
func (inst *Instance) Export(name string) (ExternVal, error) {
	exp, ok := inst.exports[name]
	if !ok {
		return ExternVal{}, &ExportError{Kind: ExportErrorMissing, Name: name}
	}
	switch exp.Type {
	case api.ExternTypeFunc:
		return ExternVal{Type: exp.Type, Func: inst.Funcs[exp.Index]}, nil
	case api.ExternTypeMemory:
		return ExternVal{Type: exp.Type, Memory: inst.Memories[exp.Index]}, nil
	case api.ExternTypeTable:
		return ExternVal{Type: exp.Type, Table: inst.Tables[exp.Index]}, nil
	case api.ExternTypeGlobal:
		return ExternVal{Type: exp.Type, Global: inst.Globals[exp.Index]}, nil
	default:
		return ExternVal{}, &ExportError{Kind: ExportErrorMissing, Name: name}
	}
}

// ExportNames returns every exported name, for introspection (spec.md §4.6).
func (inst *Instance) ExportNames() []string {
	names := make([]string, 0, len(inst.exports))
	for n := range inst.exports {
		names = append(names, n)
	}
	return names
}

