//go:build linux || darwin

package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapCodeSegment_RoundTrip(t *testing.T) {
	if !CompilerSupported() {
		t.Skip()
	}
	code, err := MmapCodeSegment(128)
	require.NoError(t, err)
	require.Len(t, code, 128)

	copy(code, []byte{0xc3}) // a single ret, harmless to write into RW memory.
	require.NoError(t, MprotectRX(code))
	require.NoError(t, MunmapCodeSegment(code))
}

func TestMmapCodeSegment_PanicsOnZeroLength(t *testing.T) {
	require.Panics(t, func() { _, _ = MmapCodeSegment(0) })
}

func TestMunmapCodeSegment_PanicsOnZeroLength(t *testing.T) {
	require.Panics(t, func() { _ = MunmapCodeSegment(nil) })
}

func TestMmapCodeSegment_RoundsUpToPageSize(t *testing.T) {
	if !CompilerSupported() {
		t.Skip()
	}
	code, err := MmapCodeSegment(10)
	require.NoError(t, err)
	require.Len(t, code, 10)
	require.GreaterOrEqual(t, cap(code), PageSize)
	require.NoError(t, MunmapCodeSegment(code))
}
