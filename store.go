package wasmer

import (
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Store is the embedder handle onto a Store (C11): an owning arena for a
// family of Instances whose handles reject operations mixing objects from
// different Stores (spec.md §7 cross-store check).
type Store struct {
	engine *Engine
	core   *wasmcore.Store
}

// NewStore constructs a Store bound to engine, using engine's configured
// logger.
func NewStore(engine *Engine) *Store {
	return &Store{engine: engine, core: wasmcore.NewStore(engine.config.logger)}
}

// Instantiate runs module's instantiation algorithm against this Store,
// resolving imports through resolver (spec.md §4.5). resolver may be nil for
// a module that declares no imports. The Tunables used are the Engine's
// configured Tunables.
func (s *Store) Instantiate(module *Module, resolver *Resolver) (*Instance, error) {
	if module.engine != s.engine {
		return nil, wasmcore.ErrCrossStore("Store.Instantiate: module compiled under a different Engine")
	}
	var coreResolver wasmcore.Resolver
	if resolver != nil {
		coreResolver = resolver.coreResolver()
	}
	inst, err := s.engine.core.Instantiate(s.core, module.compiled, coreResolver)
	if err != nil {
		return nil, err
	}
	return &Instance{store: s, core: inst}, nil
}

// ID exposes the underlying wasmcore.StoreID for diagnostics and for
// callers that need to compare two Stores for identity without holding a
// reference to both.
func (s *Store) ID() wasmcore.StoreID { return s.core.ID() }
