package wasmer

import (
	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Instance is the embedder handle onto a running Instance (C10): every
// export it declares is reachable as a typed Extern object, each one
// carrying this Instance's Store identity for the cross-store checks
// spec.md §7 requires.
type Instance struct {
	store *Store
	core  *wasmcore.Instance
}

// ExportNames lists every name this Instance exports, for introspection.
func (i *Instance) ExportNames() []string { return i.core.ExportNames() }

// Export resolves name to whichever Extern kind it names, or an error if
// name is not exported.
func (i *Instance) Export(name string) (Extern, error) {
	ev, err := i.core.Export(name)
	if err != nil {
		return nil, err
	}
	return i.wrap(ev), nil
}

// GetFunction resolves name as an exported function, or returns nil if name
// is not exported as a function.
func (i *Instance) GetFunction(name string) *Function {
	ev, err := i.core.Export(name)
	if err != nil || ev.Type != api.ExternTypeFunc {
		return nil
	}
	return i.wrapFunc(ev.Func)
}

// GetMemory resolves name as an exported memory, or returns nil.
func (i *Instance) GetMemory(name string) *Memory {
	ev, err := i.core.Export(name)
	if err != nil || ev.Type != api.ExternTypeMemory {
		return nil
	}
	return &Memory{storeID: i.store.core.ID(), core: ev.Memory}
}

// GetTable resolves name as an exported table, or returns nil.
func (i *Instance) GetTable(name string) *Table {
	ev, err := i.core.Export(name)
	if err != nil || ev.Type != api.ExternTypeTable {
		return nil
	}
	return &Table{storeID: i.store.core.ID(), core: ev.Table}
}

// GetGlobal resolves name as an exported global, or returns nil.
func (i *Instance) GetGlobal(name string) *Global {
	ev, err := i.core.Export(name)
	if err != nil || ev.Type != api.ExternTypeGlobal {
		return nil
	}
	return &Global{storeID: i.store.core.ID(), core: ev.Global}
}

func (i *Instance) wrap(ev wasmcore.ExternVal) Extern {
	switch ev.Type {
	case api.ExternTypeFunc:
		return i.wrapFunc(ev.Func)
	case api.ExternTypeMemory:
		return &Memory{storeID: i.store.core.ID(), core: ev.Memory}
	case api.ExternTypeTable:
		return &Table{storeID: i.store.core.ID(), core: ev.Table}
	case api.ExternTypeGlobal:
		return &Global{storeID: i.store.core.ID(), core: ev.Global}
	default:
		return nil
	}
}

func (i *Instance) wrapFunc(fn *wasmcore.FunctionInstance) *Function {
	return &Function{storeID: i.store.core.ID(), bridge: i.store.engine.core.Bridge, core: fn}
}

// exportAsExternVal round-trips an already-wrapped export back to the
// wasmcore shape ImportsBuilder needs when wiring one Instance's exports as
// another Module's imports.
func (i *Instance) exportAsExternVal(name string) (wasmcore.ExternVal, bool) {
	ev, err := i.core.Export(name)
	if err != nil {
		return wasmcore.ExternVal{}, false
	}
	return ev, true
}
