package wasmcore

import (
	"fmt"

	"github.com/wafoundation/wasmer/api"
)

// MemoryStyle selects how a linear memory's backing storage is managed.
type MemoryStyle int

const (
	// MemoryStyleStatic pre-reserves the plan's Reserved bytes up front as
	// slice capacity, so growing never reallocates. No guard region is
	// allocated.
	MemoryStyleStatic MemoryStyle = iota
	// MemoryStyleDynamic reallocates on grow, allocating exactly the
	// current size with no headroom.
	MemoryStyleDynamic
)

// MemoryPlan is a Tunables-produced concrete layout for a memory (spec.md
// §3). Plans are separated from types so that an artifact produced on one
// host can be re-instantiated on another host configured with identical
// Tunables, without re-deriving policy decisions from the bare MemoryType.
type MemoryPlan struct {
	Memory   api.MemoryType
	Style    MemoryStyle
	Reserved uint64 // bytes pre-reserved, style-dependent.
	Guard    uint64 // guard-page bytes appended after Reserved.
}

// TablePlan is the table analogue of MemoryPlan.
type TablePlan struct {
	Table    api.TableType
	Reserved uint32 // elements pre-reserved.
}

// Tunables is the policy object queried by both the loader and the
// embedder to turn declared types into concrete plans, and to construct the
// owned runtime objects those plans describe (spec.md §4.2).
type Tunables interface {
	MemoryPlan(t api.MemoryType) (MemoryPlan, error)
	TablePlan(t api.TableType) (TablePlan, error)

	CreateMemory(plan MemoryPlan) (*LinearMemory, error)
	CreateTable(plan TablePlan) (*RuntimeTable, error)
}

// DefaultTunables is a conservative, statically-reserving Tunables suitable
// as the Engine default. It reserves the full declared maximum (or a
// configured ceiling if the module declares none) up front in the style of
// wazero's own memoryMaxPages-based default.
type DefaultTunables struct {
	// MemoryMaxPages bounds the maximum a memory without a declared maximum
	// is allowed to grow to; MemoryPlan also rejects a declared maximum above
	// it. Embedders set it by passing a DefaultTunables to Config.WithTunables.
	MemoryMaxPages uint32
	// TableMaxElements is the table analogue of MemoryMaxPages.
	TableMaxElements uint32
	// GuardPageBytes is recorded as each MemoryPlan's Guard size. No guard
	// region is actually allocated (newLinearMemory uses only Reserved), and
	// this runtime does not rely on guard pages for correctness (bounds
	// checks are explicit); the field is carried because it is part of the
	// MemoryPlan contract spec.md §3 describes.
	GuardPageBytes uint64
}

var _ Tunables = (*DefaultTunables)(nil)

// NewDefaultTunables returns Tunables with the conservative ceilings wazero
// itself defaults to (4GiB address space worth of pages, 10M table slots).
func NewDefaultTunables() *DefaultTunables {
	return &DefaultTunables{
		MemoryMaxPages:   65536,
		TableMaxElements: 10_000_000,
		GuardPageBytes:   2 << 20,
	}
}

func (d *DefaultTunables) MemoryPlan(t api.MemoryType) (MemoryPlan, error) {
	max := d.MemoryMaxPages
	if t.Maximum != nil {
		max = *t.Maximum
	}
	if t.Minimum > max {
		return MemoryPlan{}, &MemoryError{Kind: GrowErrorMinimumTooLarge, Message: fmt.Sprintf("minimum %d pages exceeds ceiling %d pages", t.Minimum, max)}
	}
	if max > d.MemoryMaxPages {
		return MemoryPlan{}, &MemoryError{Kind: GrowErrorMaximumTooLarge, Message: fmt.Sprintf("maximum %d pages exceeds ceiling %d pages", max, d.MemoryMaxPages)}
	}
	return MemoryPlan{
		Memory:   api.MemoryType{Minimum: t.Minimum, Maximum: &max},
		Style:    MemoryStyleStatic,
		Reserved: uint64(max) * api.PageSize,
		Guard:    d.GuardPageBytes,
	}, nil
}

func (d *DefaultTunables) TablePlan(t api.TableType) (TablePlan, error) {
	max := d.TableMaxElements
	if t.Maximum != nil {
		max = *t.Maximum
	}
	if t.Minimum > max {
		return TablePlan{}, &TableError{Message: fmt.Sprintf("minimum %d elements exceeds ceiling %d", t.Minimum, max)}
	}
	return TablePlan{Table: api.TableType{Element: t.Element, Minimum: t.Minimum, Maximum: &max}, Reserved: t.Minimum}, nil
}

func (d *DefaultTunables) CreateMemory(plan MemoryPlan) (*LinearMemory, error) {
	return newLinearMemory(plan)
}

func (d *DefaultTunables) CreateTable(plan TablePlan) (*RuntimeTable, error) {
	return newRuntimeTable(plan), nil
}
