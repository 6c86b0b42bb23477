// Package codegen turns a wasmcore.Module's function bodies into machine
// code and owns everything that requires executable memory: the
// Compilation Artifact (C2), Code Memory (C4), the Linker (C5), the
// Frame-Info Registry (C6), the Compiled Module (C7), and the Call Bridge
// (C13). wasmcore never imports this package; this package imports
// wasmcore to produce the pointers and signature ids wasmcore.Instantiate
// needs.
package codegen

import (
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// RelocationKind enumerates the fixups the Linker must resolve once every
// function's final address in Code Memory is known (spec.md §4.3).
type RelocationKind int

const (
	// RelocationCallDirect patches a 4-byte rel32 displacement at Offset so
	// that the call instruction already emitted at compile time reaches
	// TargetFunc's final address.
	RelocationCallDirect RelocationKind = iota
	// RelocationFuncRefAbs patches an 8-byte absolute pointer at Offset
	// (e.g. a function's own address embedded in its frame-setup code for
	// building a CheckedAnyfunc).
	RelocationFuncRefAbs
)

// Relocation is one fixup site inside a FunctionCode body.
type Relocation struct {
	Offset     int
	Kind       RelocationKind
	TargetFunc wasmcore.Index // joint-space function index.
}

// FrameInfo carries enough information to symbolicate a trapping program
// counter back to a (function, source offset) pair (spec.md §4.4).
type FrameInfo struct {
	// InstructionOffsets[i] is the machine-code byte offset at which source
	// offset SourceOffsets[i] begins; both slices are parallel and sorted by
	// InstructionOffsets, enabling a binary search from a PC's offset within
	// the function down to the nearest source location.
	InstructionOffsets []uint32
	SourceOffsets      []uint32
}

// FunctionCode is one function's compiled output prior to linking: machine
// code with unresolved call sites plus the frame info generated alongside
// it.
type FunctionCode struct {
	Body        []byte
	Relocations []Relocation
	Frame       FrameInfo
}

// Artifact is the Compilation Artifact (C2): everything code generation
// produces for one Module, before any of it has an address (spec.md §3).
type Artifact struct {
	// Functions holds one FunctionCode per locally defined function, in
	// FunctionSection order.
	Functions []FunctionCode

	// CallTrampolines has room for one forward trampoline per entry of the
	// Module's TypeSection (spec.md §4.7). buildArtifact leaves it empty:
	// the Call Bridge's host to Wasm direction dispatches through its
	// closure table instead.
	CallTrampolines []FunctionCode

	// DynamicTrampolines has room for one reverse trampoline per Dynamic
	// host function import. buildArtifact leaves it empty: a Dynamic
	// import gets its entry from CallBridge.BuildDynamicTrampoline at
	// instantiation instead.
	DynamicTrampolines []FunctionCode

	// CustomSections has room for arbitrary named byte payloads (e.g.
	// DWARF, name section remnants). buildArtifact leaves it empty, and
	// CompiledModule.Serialize does not write it.
	CustomSections map[string][]byte
}
