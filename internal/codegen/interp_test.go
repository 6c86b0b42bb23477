package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

func TestExecStraightLine_AddLocals(t *testing.T) {
	body := []byte{opLocalGet, 0x00, opLocalGet, 0x01, opI32Add, opEnd}
	frame := &interpFrame{locals: []api.Val{api.I32(3), api.I32(4)}}
	results, trap := execStraightLine(body, frame)
	require.Nil(t, trap)
	require.Equal(t, int32(7), results[0].I32())
}

func TestExecStraightLine_ConstAndCompare(t *testing.T) {
	body := []byte{opI32Const, 0x05, opI32Const, 0x05, opI32Eq, opEnd}
	results, trap := execStraightLine(body, &interpFrame{})
	require.Nil(t, trap)
	require.Equal(t, int32(1), results[0].I32())
}

func TestExecStraightLine_Unreachable(t *testing.T) {
	body := []byte{opUnreachable}
	_, trap := execStraightLine(body, &interpFrame{})
	require.NotNil(t, trap)
	require.Equal(t, wasmcore.TrapCodeUnreachable, trap.Code)
}

func TestExecStraightLine_LocalTeeKeepsValueOnStack(t *testing.T) {
	body := []byte{opI32Const, 0x09, opLocalTee, 0x00, opEnd}
	frame := &interpFrame{locals: []api.Val{api.I32(0)}}
	results, trap := execStraightLine(body, frame)
	require.Nil(t, trap)
	require.Equal(t, int32(9), results[0].I32())
	require.Equal(t, int32(9), frame.locals[0].I32())
}

func TestExecStraightLine_Select(t *testing.T) {
	// select chooses a when cond != 0, else b; stack order is [a, b, cond].
	body := []byte{opI32Const, 0x01, opI32Const, 0x02, opI32Const, 0x01, opSelect, opEnd}
	results, trap := execStraightLine(body, &interpFrame{})
	require.Nil(t, trap)
	require.Equal(t, int32(1), results[0].I32())
}

func TestExecStraightLine_UnsupportedOpcodeTraps(t *testing.T) {
	body := []byte{0xfc} // not in this interpreter's decoded subset.
	_, trap := execStraightLine(body, &interpFrame{})
	require.NotNil(t, trap)
}

func TestCallTable_ResolveLocalFunction(t *testing.T) {
	ct := &callTable{
		importFuncCount: 1,
		localEntries:     []uintptr{0xAAAA},
		paramCounts:      []int{2, 1},
	}
	entry, vmctx, trap := ct.resolve(1, 0x7000)
	require.Nil(t, trap)
	require.Equal(t, uintptr(0xAAAA), entry)
	require.Equal(t, uintptr(0x7000), vmctx) // locals share the caller's VM context.
}

func TestCallTable_ResolveOutOfRangeTraps(t *testing.T) {
	ct := &callTable{importFuncCount: 1, localEntries: nil, paramCounts: []int{1}}
	_, _, trap := ct.resolve(5, 0x1000)
	require.NotNil(t, trap)
}

func TestDecodeULEB128(t *testing.T) {
	v, n := decodeULEB128([]byte{0xe5, 0x8e, 0x26})
	require.Equal(t, uint64(624485), v)
	require.Equal(t, 3, n)
}

func TestDecodeSLEB128_Negative(t *testing.T) {
	v, n := decodeSLEB128([]byte{0x9b, 0xf1, 0x59})
	require.Equal(t, int64(-624485), v)
	require.Equal(t, 3, n)
}
