//go:build linux || darwin

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CompilerSupported reports whether this build can JIT-compile and execute
// generated code on the current OS/arch.
func CompilerSupported() bool { return true }

// MmapCodeSegment allocates size bytes of anonymous, private memory mapped
// RW so the linker can write relocated machine code into it, then hands it
// back ready for MprotectRX once writing is done (spec.md §4.3's publish
// step).
func MmapCodeSegment(size int) ([]byte, error) {
	if size <= 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	b, err := unix.Mmap(-1, 0, roundUpToPage(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return b[:size], nil
}

// MprotectRX transitions a previously RW-mapped region to read+execute,
// forbidding further writes. The slice must have been returned by
// MmapCodeSegment and addressed at its mapping's start.
func MprotectRX(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MprotectRX with zero length")
	}
	full := fullMapping(code)
	return unix.Mprotect(full, unix.PROT_READ|unix.PROT_EXEC)
}

// MunmapCodeSegment releases a mapping returned by MmapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	return unix.Munmap(fullMapping(code))
}

// fullMapping recovers the page-rounded slice backing code, since
// MmapCodeSegment truncates its return value to the caller's requested
// size but the kernel call needs the full mapping length/address.
func fullMapping(code []byte) []byte {
	return code[:cap(code)]
}
