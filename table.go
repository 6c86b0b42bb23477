package wasmer

import (
	"github.com/pkg/errors"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Table is the embedder handle onto a live RuntimeTable (C12).
type Table struct {
	storeID wasmcore.StoreID
	core    *wasmcore.RuntimeTable
}

var _ Extern = (*Table)(nil)

func (t *Table) Type() api.ExternType      { return api.ExternTypeTable }
func (t *Table) StoreID() wasmcore.StoreID { return t.storeID }

// Size returns the current element count.
func (t *Table) Size() uint32 { return t.core.Size() }

// Get reads the element at index.
func (t *Table) Get(index uint32) (api.Val, error) { return t.core.Get(index) }

// Set stores val at index; val's type must match the table's declared
// element type.
func (t *Table) Set(index uint32, val api.Val) error { return t.core.Set(index, val) }

// Grow adds delta elements, each initialized to init, returning the size
// prior to growth.
func (t *Table) Grow(delta uint32, init api.Val) (uint32, error) { return t.core.Grow(delta, init) }

// CopyTable copies length elements from src[srcIdx:] to dst[dstIdx:]. Both
// tables must belong to the same Store (spec.md §7); this is the static
// Table.copy the teacher's externals.rs exposes.
func CopyTable(dst, src *Table, dstIdx, srcIdx, length uint32) error {
	if dst.storeID != src.storeID {
		return errors.WithStack(wasmcore.ErrCrossStore("Table.Copy"))
	}
	return wasmcore.Copy(dst.core, src.core, dstIdx, srcIdx, length)
}
