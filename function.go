package wasmer

import (
	"github.com/pkg/errors"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/codegen"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Extern is the common interface every exported object satisfies, matching
// the teacher's Extern variant set (Function, Global, Table, Memory) from
// externals.rs: Type reports which kind it is without a type assertion, and
// StoreID lets a Resolver or Table reject cross-store wiring before it ever
// reaches generated code.
type Extern interface {
	Type() api.ExternType
	StoreID() wasmcore.StoreID
}

// Function is the embedder handle onto a live, callable function (C12):
// either a Wasm-defined export or a host function imported back into view
// through another Instance's export table.
type Function struct {
	storeID wasmcore.StoreID
	bridge  *codegen.CallBridge
	core    *wasmcore.FunctionInstance
}

var _ Extern = (*Function)(nil)

func (f *Function) Type() api.ExternType        { return api.ExternTypeFunc }
func (f *Function) StoreID() wasmcore.StoreID   { return f.storeID }

// Signature returns this function's declared parameter and result types.
func (f *Function) Signature() api.FunctionType { return f.core.Type }

// ParamArity returns the number of parameters this function's signature
// declares (spec.md §4.6).
func (f *Function) ParamArity() int { return len(f.core.Type.Params) }

// ResultArity returns the number of results this function's signature
// declares (spec.md §4.6).
func (f *Function) ResultArity() int { return len(f.core.Type.Results) }

// Call invokes the function with params, which must match Signature()'s
// parameter types in count and order, and returns its results (spec.md
// §4.7's value-array ABI). A guest trap surfaces as a *wasmcore.Trap
// wrapped in a *wasmcore.RuntimeError; a Go panic inside a Dynamic host
// function is not recovered here, matching the teacher's choice to let an
// unexpected host panic propagate rather than be silently swallowed.
func (f *Function) Call(params []api.Val) ([]api.Val, error) {
	if len(params) != len(f.core.Type.Params) {
		return nil, errors.Errorf("wasmer: call with %d params, function takes %d", len(params), len(f.core.Type.Params))
	}
	for i, p := range params {
		if p.Type() != f.core.Type.Params[i] {
			return nil, errors.Errorf("wasmer: call param %d is %s, function expects %s", i, p.Type(), f.core.Type.Params[i])
		}
	}

	if f.core.IsHostDefined() && f.core.Host.Kind == wasmcore.HostFuncStatic {
		// Static host functions bypass the reverse trampoline entirely
		// (spec.md §4.7): the embedder already holds a live Go closure, so
		// invoking it is a direct call rather than a bridge dispatch.
		if fn, ok := f.core.Host.StaticFn.(func([]api.Val) ([]api.Val, error)); ok {
			results, err := fn(params)
			if err != nil {
				return nil, wasmcore.FromTrap(&wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: err.Error()})
			}
			return results, nil
		}
	}

	results, trap := f.bridge.Call(f.core.Anyfunc, params)
	if trap != nil {
		return nil, wasmcore.FromTrap(trap)
	}
	return results, nil
}
