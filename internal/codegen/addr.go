package codegen

import "unsafe"

// addrOf returns the address of b's first byte, or 0 for an empty slice.
// Centralized here since several files in this package need to convert a
// []byte into the raw pointer value generated/patched machine code and VM
// context records carry around.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
