package wasmer

import (
	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// HostModuleBuilder assembles a synthetic host Module (one whose functions
// exist only to be imported, never compiled to machine code) the way the
// teacher's HostFunctionBuilder assembles one function at a time onto a
// NewHostModuleBuilder. Every function added this way is Dynamic: it is
// invoked through the reverse trampoline with a uniform []api.Val, trading
// a small amount of per-call marshaling overhead for not requiring the
// embedder to hand-write a native-ABI shim (spec.md §4.7).
type HostModuleBuilder struct {
	name  string
	funcs []wasmcore.HostFunc
	names []string
}

// NewHostModuleBuilder starts a host module named name (the Module field of
// every import an embedder-compiled guest module declares against it).
func NewHostModuleBuilder(name string) *HostModuleBuilder {
	return &HostModuleBuilder{name: name}
}

// NewFunction registers fieldName as callable with the given signature,
// backed by fn. Returns the builder for chaining.
func (b *HostModuleBuilder) NewFunction(fieldName string, sig api.FunctionType, fn func(params []api.Val) ([]api.Val, error)) *HostModuleBuilder {
	b.funcs = append(b.funcs, wasmcore.HostFunc{Kind: wasmcore.HostFuncDynamic, Type: sig, DynamicFn: fn})
	b.names = append(b.names, fieldName)
	return b
}

// Build finalizes the host module. The returned *Module can be resolved
// into another Module's imports via ImportsBuilder.DefineInstance after
// instantiating it against a Store (a host module has no start function and
// instantiates trivially, with no memories/tables/globals of its own).
func (b *HostModuleBuilder) Build() *wasmcore.Module {
	exports := make([]wasmcore.Export, len(b.names))
	for i, n := range b.names {
		exports[i] = wasmcore.Export{Name: n, Type: api.ExternTypeFunc, Index: uint32(i)}
	}
	return &wasmcore.Module{
		Name:          b.name,
		ExportSection: exports,
		HostFuncs:     b.funcs,
	}
}
