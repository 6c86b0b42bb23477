package wasmcore

import (
	"sync"

	"github.com/wafoundation/wasmer/api"
)

// LinearMemory is the engine-owned record backing an api.Memory extern
// (spec.md §3 "Instance" Finished Memories / §4.6 Memory). Growing a memory
// is exclusive per spec.md §5; ordinary loads/stores from guest code are
// unsynchronized by design (basic memory model, shared memories out of
// scope).
type LinearMemory struct {
	plan MemoryPlan

	// growMu serializes Grow calls; it does not protect Buffer reads/writes
	// from guest code, which are intentionally unsynchronized per spec.md §5.
	growMu sync.Mutex

	buffer  []byte
	current api.Pages
}

func newLinearMemory(plan MemoryPlan) (*LinearMemory, error) {
	m := &LinearMemory{plan: plan, current: api.Pages(plan.Memory.Minimum)}
	switch plan.Style {
	case MemoryStyleStatic:
		// Pre-reserve the full plan so later Grow calls never reallocate
		// (spec.md §4.2 design note); only the logical size changes.
		m.buffer = make([]byte, plan.Memory.Minimum*api.PageSize, plan.Reserved)
		m.buffer = m.buffer[:plan.Memory.Minimum*api.PageSize]
	case MemoryStyleDynamic:
		m.buffer = make([]byte, plan.Memory.Minimum*api.PageSize)
	}
	return m, nil
}

// Type returns the declared memory type (not the plan).
func (m *LinearMemory) Type() api.MemoryType { return m.plan.Memory }

// Size returns the current size in pages.
func (m *LinearMemory) Size() api.Pages {
	m.growMu.Lock()
	defer m.growMu.Unlock()
	return m.current
}

// DataSize returns the current size in bytes; always Size().Bytes() (spec.md §8).
func (m *LinearMemory) DataSize() uint64 { return m.Size().Bytes() }

// Data returns the current backing slice. Per spec.md §4.6/§9 "memory view
// aliasing", this slice is a snapshot of (base, length) at the moment of
// the call: a subsequent Grow is not reflected in a previously returned
// slice's length, and the caller must call Data again to observe it.
func (m *LinearMemory) Data() []byte {
	m.growMu.Lock()
	defer m.growMu.Unlock()
	return m.buffer
}

// Grow implements spec.md §8's grow property: on success the new size is
// prev+delta and the newly added bytes are zero.
func (m *LinearMemory) Grow(delta api.Pages) (prev api.Pages, err error) {
	m.growMu.Lock()
	defer m.growMu.Unlock()

	prev = m.current
	if delta == 0 {
		return prev, nil
	}
	next := prev + delta
	max := api.Pages(m.plan.Memory.Minimum)
	if m.plan.Memory.Maximum != nil {
		max = api.Pages(*m.plan.Memory.Maximum)
	}
	if next < prev || next > max {
		return 0, &MemoryError{Kind: GrowErrorCouldNotGrow, Current: uint32(prev), AttemptedDelta: uint32(delta)}
	}

	newLen := next.Bytes()
	switch m.plan.Style {
	case MemoryStyleStatic:
		if newLen > uint64(cap(m.buffer)) {
			// Should not happen: static plans reserve the full maximum.
			return 0, &MemoryError{Kind: GrowErrorCouldNotGrow, Current: uint32(prev), AttemptedDelta: uint32(delta)}
		}
		grown := m.buffer[:newLen]
		for i := len(m.buffer); i < len(grown); i++ {
			grown[i] = 0
		}
		m.buffer = grown
	case MemoryStyleDynamic:
		grown := make([]byte, newLen)
		copy(grown, m.buffer)
		m.buffer = grown
	}
	m.current = next
	return prev, nil
}
