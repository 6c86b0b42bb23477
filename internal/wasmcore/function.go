package wasmcore

import (
	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/signature"
)

// FunctionInstance is the engine-owned record backing an api.Function
// extern (spec.md §3 ExportInstance / §4.6 Function). A function is
// callable two ways depending on where it is defined:
//
//   - Wasm-defined: Anyfunc points at the generated body with VMCtx set to
//     the owning Instance's VM context; Function.call dispatches through
//     the forward trampoline (spec.md §4.7).
//   - Host-defined: Host is non-nil. A Static host function is called
//     directly with the native host ABI; a Dynamic one is wrapped in its
//     reverse trampoline and thereafter looks exactly like a Wasm-defined
//     function to every other caller (spec.md §4.5 step 1, §4.7).
type FunctionInstance struct {
	Type   api.FunctionType
	TypeID signature.ID

	Anyfunc CheckedAnyfunc
	Host    *HostFunc

	Module *Instance
}

// IsHostDefined reports whether this function's body is Go code rather than
// generated machine code.
func (f *FunctionInstance) IsHostDefined() bool { return f.Host != nil }
