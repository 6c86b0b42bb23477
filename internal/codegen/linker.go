package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// layout records where every relocatable entity ends up inside one
// CodeMemory arena, keyed by joint-space function index for
// RelocationCallDirect targets.
type layout struct {
	base        uintptr
	funcOffsets []int // index: joint-space function index among *locally defined* functions only.
}

// Linker resolves every FunctionCode's relocations against a layout and
// copies the patched bytes into a CodeMemory arena (spec.md §4.3's "Linker"
// stage, run once per Compiled Module between code generation and
// Publish).
type Linker struct{}

// NewLinker constructs a stateless Linker. Linking needs no persistent
// state of its own: every call is independent given a layout.
func NewLinker() *Linker { return &Linker{} }

// Link copies each FunctionCode's body into mem at consecutive 16-byte
// aligned offsets, patches relocations in place, and returns the final
// entry address of every locally defined function alongside the frame info
// the Frame-Info Registry will index.
func (l *Linker) Link(mem *CodeMemory, importFuncCount wasmcore.Index, funcs []FunctionCode) (entryPoints []uintptr, frames []FrameInfo, err error) {
	buf := mem.Bytes()
	offsets := make([]int, len(funcs))

	cursor := 0
	for i, fc := range funcs {
		offsets[i] = cursor
		n := copy(buf[cursor:], fc.Body)
		if n != len(fc.Body) {
			return nil, nil, fmt.Errorf("codegen: code memory too small for function %d", i)
		}
		cursor = align16(cursor + len(fc.Body))
	}

	lay := layout{base: mem.Base(), funcOffsets: offsets}

	for i, fc := range funcs {
		for _, reloc := range fc.Relocations {
			if err := l.applyRelocation(buf, offsets[i], reloc, lay, importFuncCount); err != nil {
				return nil, nil, err
			}
		}
	}

	entryPoints = make([]uintptr, len(funcs))
	frames = make([]FrameInfo, len(funcs))
	for i, fc := range funcs {
		entryPoints[i] = lay.base + uintptr(offsets[i])
		frames[i] = fc.Frame
	}
	return entryPoints, frames, nil
}

// applyRelocation patches one fixup site within the function body already
// copied at funcOffset inside buf.
func (l *Linker) applyRelocation(buf []byte, funcOffset int, reloc Relocation, lay layout, importFuncCount wasmcore.Index) error {
	site := funcOffset + reloc.Offset
	if reloc.TargetFunc < importFuncCount {
		// A call to an imported function is resolved at instantiation time
		// through the VM context's imported-function table, not patched
		// into the code itself; codegen is expected to have emitted an
		// indirect call through that slot instead of a relocation for this
		// case. Reaching here means codegen produced a relocation it
		// shouldn't have.
		return fmt.Errorf("codegen: unexpected direct relocation to imported function %d", reloc.TargetFunc)
	}
	localIdx := int(reloc.TargetFunc) - int(importFuncCount)
	if localIdx < 0 || localIdx >= len(lay.funcOffsets) {
		return fmt.Errorf("codegen: relocation target function %d out of range", reloc.TargetFunc)
	}
	targetAddr := lay.base + uintptr(lay.funcOffsets[localIdx])

	switch reloc.Kind {
	case RelocationCallDirect:
		if site+4 > len(buf) {
			return fmt.Errorf("codegen: relocation site out of bounds")
		}
		// call rel32 displacement is measured from the address of the byte
		// immediately after the 4-byte operand.
		callEnd := lay.base + uintptr(site+4)
		disp := int64(targetAddr) - int64(callEnd)
		binary.LittleEndian.PutUint32(buf[site:site+4], uint32(int32(disp)))
	case RelocationFuncRefAbs:
		if site+8 > len(buf) {
			return fmt.Errorf("codegen: relocation site out of bounds")
		}
		binary.LittleEndian.PutUint64(buf[site:site+8], uint64(targetAddr))
	default:
		return fmt.Errorf("codegen: unknown relocation kind %d", reloc.Kind)
	}
	return nil
}

func align16(n int) int { return (n + 15) &^ 15 }
