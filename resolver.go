package wasmer

import (
	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Resolver is the embedder handle onto a Resolver & Import Linker (C9): the
// thing Store.Instantiate consults to satisfy a Module's import list.
// Construct one with NewImports().
type Resolver struct {
	core wasmcore.Resolver
}

func (r *Resolver) coreResolver() wasmcore.Resolver { return r.core }

// ImportsBuilder accumulates (module, field) -> Extern bindings, following
// the teacher's own immutable-builder convention for everything
// configuration-shaped, before being finalized with Build.
type ImportsBuilder struct {
	entries map[string]map[string]wasmcore.ExternVal
}

// NewImports starts an empty ImportsBuilder.
func NewImports() *ImportsBuilder {
	return &ImportsBuilder{entries: make(map[string]map[string]wasmcore.ExternVal)}
}

// Define binds moduleName.fieldName to extern, one of *Function, *Memory,
// *Table, or *Global.
func (b *ImportsBuilder) Define(moduleName, fieldName string, extern Extern) *ImportsBuilder {
	ev := externToVal(extern)
	b.put(moduleName, fieldName, ev)
	return b
}

// DefineInstance binds every export of inst under moduleName, the common
// "link module A's exports as module B's imports" pattern (spec.md §2).
func (b *ImportsBuilder) DefineInstance(moduleName string, inst *Instance) *ImportsBuilder {
	for _, name := range inst.ExportNames() {
		if ev, ok := inst.exportAsExternVal(name); ok {
			b.put(moduleName, name, ev)
		}
	}
	return b
}

// DefineFunction is a convenience for registering a single Dynamic host
// function without constructing a full host Module via
// NewHostModuleBuilder; useful for one-off imports in tests and small
// embedders.
func (b *ImportsBuilder) DefineFunction(moduleName, fieldName string, sig api.FunctionType, fn func(params []api.Val) ([]api.Val, error)) *ImportsBuilder {
	host := &wasmcore.HostFunc{Kind: wasmcore.HostFuncDynamic, Type: sig, DynamicFn: fn}
	b.put(moduleName, fieldName, wasmcore.ExternVal{
		Type: api.ExternTypeFunc,
		Func: &wasmcore.FunctionInstance{Type: sig, Host: host},
	})
	return b
}

func (b *ImportsBuilder) put(moduleName, fieldName string, ev wasmcore.ExternVal) {
	m, ok := b.entries[moduleName]
	if !ok {
		m = make(map[string]wasmcore.ExternVal)
		b.entries[moduleName] = m
	}
	m[fieldName] = ev
}

// Build finalizes the accumulated bindings into a Resolver.
func (b *ImportsBuilder) Build() *Resolver {
	entries := b.entries
	return &Resolver{core: wasmcore.ResolverFunc(func(moduleName, fieldName string) (wasmcore.ExternVal, bool) {
		m, ok := entries[moduleName]
		if !ok {
			return wasmcore.ExternVal{}, false
		}
		ev, ok := m[fieldName]
		return ev, ok
	})}
}

func externToVal(extern Extern) wasmcore.ExternVal {
	switch e := extern.(type) {
	case *Function:
		return wasmcore.ExternVal{Type: api.ExternTypeFunc, Func: e.core}
	case *Memory:
		return wasmcore.ExternVal{Type: api.ExternTypeMemory, Memory: e.core}
	case *Table:
		return wasmcore.ExternVal{Type: api.ExternTypeTable, Table: e.core}
	case *Global:
		return wasmcore.ExternVal{Type: api.ExternTypeGlobal, Global: e.core}
	default:
		return wasmcore.ExternVal{}
	}
}
