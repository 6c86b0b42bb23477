package codegen

import (
	"sort"
	"sync"
)

// frameInfoEntry is one compiled function's PC range and source mapping,
// registered against the process-wide FrameInfoRegistry so a trapping PC
// from any live Compiled Module can be symbolicated without that module's
// caller passing extra context through the trap path (spec.md §4.4).
type frameInfoEntry struct {
	start, end uintptr
	moduleName string
	funcIndex  uint32
	funcName   string
	info       FrameInfo
}

// FrameInfoRegistry maps a machine-code program counter back to
// (module, function, source offset), refcounted per Compiled Module the way
// the Signature Registry is refcounted per signature, so two live
// instantiations of the same cached artifact share one registration.
type FrameInfoRegistry struct {
	mu      sync.RWMutex
	entries []*frameInfoEntry // kept sorted by start for binary search.
	refs    map[*frameInfoEntry]uint32
}

func NewFrameInfoRegistry() *FrameInfoRegistry {
	return &FrameInfoRegistry{refs: make(map[*frameInfoEntry]uint32)}
}

// RegisterFunction adds one function's address range. Ranges must not
// overlap with any other live registration; the caller (Compiled Module
// construction) guarantees this since each CodeMemory arena is exclusive.
func (r *FrameInfoRegistry) RegisterFunction(start, end uintptr, moduleName string, funcIndex uint32, funcName string, info FrameInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &frameInfoEntry{start: start, end: end, moduleName: moduleName, funcIndex: funcIndex, funcName: funcName, info: info}
	r.refs[e] = 1
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].start >= start })
	r.entries = append(r.entries, nil)
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
}

// Lookup finds the registration whose range contains pc, if any.
func (r *FrameInfoRegistry) Lookup(pc uintptr) (moduleName string, funcIndex uint32, funcName string, srcOffset uint32, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].start > pc }) - 1
	if i < 0 || i >= len(r.entries) {
		return "", 0, "", 0, false
	}
	e := r.entries[i]
	if pc < e.start || pc >= e.end {
		return "", 0, "", 0, false
	}
	off := uint32(pc - e.start)
	return e.moduleName, e.funcIndex, e.funcName, symbolicateOffset(e.info, off), true
}

// symbolicateOffset finds the largest InstructionOffsets[i] <= off and
// returns the corresponding SourceOffsets[i], or 0 if info carries no
// entries (stripped frame info).
func symbolicateOffset(info FrameInfo, off uint32) uint32 {
	if len(info.InstructionOffsets) == 0 {
		return 0
	}
	i := sort.Search(len(info.InstructionOffsets), func(i int) bool { return info.InstructionOffsets[i] > off }) - 1
	if i < 0 {
		return 0
	}
	return info.SourceOffsets[i]
}

// Release decrements the refcount implicitly tied to a Compiled Module's
// lifetime. Unlike the Signature Registry, entries are removed outright at
// zero since frame info is large and this registry's entries are never
// shared by structural identity, only by liveness of the Compiled Module
// that registered them.
func (r *FrameInfoRegistry) Release(start uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.start == start {
			delete(r.refs, e)
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}
