package wasmer

import (
	"github.com/wafoundation/wasmer/internal/codegen"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Module is a compiled, not-yet-instantiated Wasm module: the embedder
// handle onto a Module Descriptor (C1) paired with its Compiled Module
// (C7). A Module may be instantiated any number of times, against any
// number of Stores, concurrently (spec.md §2, §9 "a compiled module is
// safe to instantiate concurrently from multiple goroutines").
type Module struct {
	engine   *Engine
	desc     *wasmcore.Module
	compiled *codegen.CompiledModule
}

// Name returns the module name from its descriptor, or "" if none was set.
func (m *Module) Name() string { return m.desc.Name }

// ExportedFunctions, ExportedMemories, etc. are intentionally not exposed
// here: a Module's export *types* are the Wasm binary's concern (outside
// this runtime core's scope per spec.md §1); introspecting live exports is
// done on an Instance instead, after its imports have actually resolved.

// Imports reports the (module, field) pairs desc declares, for an embedder
// assembling a Resolver before Instantiate.
func (m *Module) Imports() []wasmcore.Import {
	out := make([]wasmcore.Import, len(m.desc.ImportSection))
	copy(out, m.desc.ImportSection)
	return out
}
