//go:build !linux && !darwin && !windows

package platform

import "errors"

var errUnsupported = errors.New("platform: JIT code memory is not supported on this OS")

func CompilerSupported() bool { return false }

func MmapCodeSegment(size int) ([]byte, error) { return nil, errUnsupported }

func MprotectRX(code []byte) error { return errUnsupported }

func MunmapCodeSegment(code []byte) error { return errUnsupported }
