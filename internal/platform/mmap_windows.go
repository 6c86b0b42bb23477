//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func CompilerSupported() bool { return true }

// MmapCodeSegment reserves and commits size bytes of RW memory via
// VirtualAlloc. Windows has no anonymous-mmap-then-mprotect idiom; the
// nearest equivalent is VirtualAlloc (MEM_COMMIT) followed later by
// VirtualProtect.
func MmapCodeSegment(size int) ([]byte, error) {
	if size <= 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	rounded := roundUpToPage(size)
	addr, err := windows.VirtualAlloc(0, uintptr(rounded), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc: %w", err)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), rounded)
	return b[:size], nil
}

// MprotectRX makes a previously committed region executable and read-only.
func MprotectRX(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MprotectRX with zero length")
	}
	full := fullMapping(code)
	var old uint32
	return windows.VirtualProtect(uintptr(unsafe.Pointer(&full[0])), uintptr(len(full)), windows.PAGE_EXECUTE_READ, &old)
}

// MunmapCodeSegment releases a region allocated by MmapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	full := fullMapping(code)
	return windows.VirtualFree(uintptr(unsafe.Pointer(&full[0])), 0, windows.MEM_RELEASE)
}

func fullMapping(code []byte) []byte {
	return code[:cap(code)]
}
