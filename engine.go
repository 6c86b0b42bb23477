package wasmer

import (
	"github.com/pkg/errors"

	"github.com/wafoundation/wasmer/internal/codegen"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Engine is the process-wide compiler and Compiled Module cache: the
// embedder-visible handle onto the Signature Registry (C3), Call Bridge
// (C13), and Frame-Info Registry (C6) internal/codegen owns. Most programs
// construct exactly one Engine and share it across every Store (spec.md
// §2's "one Engine, many Stores" topology).
type Engine struct {
	config *Config
	core   *codegen.Engine
	cache  *codegen.ModuleCache
}

// NewEngine constructs an Engine from config. Passing nil uses NewConfig's
// defaults.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = NewConfig()
	}
	core := codegen.NewEngine(config.tunables, config.logger)
	cache, err := codegen.NewModuleCache(core, config.cacheCapacity, config.cacheDir, config.logger)
	if err != nil {
		return nil, errors.Wrap(err, "wasmer: constructing engine")
	}
	return &Engine{config: config, core: core, cache: cache}, nil
}

// CompileModule validates and compiles desc, returning a Module ready to be
// instantiated against any Store built from this Engine. Two descriptors
// with identical content share one underlying Compiled Module and its Code
// Memory (spec.md §5).
//
// desc is taken as already decoded and validated at the Wasm-binary level;
// binary parsing is an external collaborator this runtime core does not
// implement (spec.md §1 Non-goals).
func (e *Engine) CompileModule(desc *wasmcore.Module) (*Module, error) {
	cm, err := e.cache.GetOrCompile(desc)
	if err != nil {
		return nil, err
	}
	return &Module{engine: e, desc: desc, compiled: cm}, nil
}

// CompileToArtifact compiles desc and serializes the result without
// retaining it in the cache for instantiation, the library entry point a
// standalone "ahead-of-time compile" tool would use (spec.md §5
// supplemented feature; the tool itself is out of scope).
func (e *Engine) CompileToArtifact(desc *wasmcore.Module) ([]byte, error) {
	return e.core.CompileToArtifact(desc)
}

// EvictModule drops desc's Compiled Module from the in-memory cache tier
// and releases its Code Memory, for embedders that hot-reload guest code.
func (e *Engine) EvictModule(desc *wasmcore.Module) {
	e.cache.Evict(desc.ID())
}
