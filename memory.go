package wasmer

import (
	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Memory is the embedder handle onto a live LinearMemory (C12).
type Memory struct {
	storeID wasmcore.StoreID
	core    *wasmcore.LinearMemory
}

var _ Extern = (*Memory)(nil)

func (m *Memory) Type() api.ExternType      { return api.ExternTypeMemory }
func (m *Memory) StoreID() wasmcore.StoreID { return m.storeID }

// Size returns the current size in 64KiB pages.
func (m *Memory) Size() api.Pages { return m.core.Size() }

// Data returns the current backing byte slice. Per spec.md §9, a slice
// returned before a Grow does not observe that Grow; call Data again.
func (m *Memory) Data() []byte { return m.core.Data() }

// Grow adds delta pages, returning the size prior to growth.
func (m *Memory) Grow(delta api.Pages) (api.Pages, error) { return m.core.Grow(delta) }
