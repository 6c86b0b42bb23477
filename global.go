package wasmer

import (
	"github.com/pkg/errors"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Global is the embedder handle onto a live GlobalInstance (C12).
type Global struct {
	storeID wasmcore.StoreID
	core    *wasmcore.GlobalInstance
}

var _ Extern = (*Global)(nil)

func (g *Global) Type() api.ExternType      { return api.ExternTypeGlobal }
func (g *Global) StoreID() wasmcore.StoreID { return g.storeID }

// Get reads the global's current value.
func (g *Global) Get() api.Val { return g.core.Get() }

// Set assigns a new value. Returns an error if the global was declared
// Immutable or val's type does not match the declared ValType (spec.md
// §4.6); wasmcore.GlobalInstance itself enforces neither, so the Extern
// layer is where that check belongs, same as the teacher's MutableGlobal
// cast gating writes at the api.Global boundary.
func (g *Global) Set(val api.Val) error {
	if g.core.Type.Mutability != api.Mutable {
		return errors.New("wasmer: cannot set an immutable global")
	}
	if val.Type() != g.core.Type.ValType {
		return errors.Errorf("wasmer: global is %s, cannot set %s", g.core.Type.ValType, val.Type())
	}
	g.core.Set(val)
	return nil
}
