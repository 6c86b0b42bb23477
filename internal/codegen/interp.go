package codegen

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/signature"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// opcode mirrors the subset of the Wasm 1.0 instruction encoding this
// runtime's code generator actually lowers. Control-flow opcodes beyond a
// flat straight-line body (block/loop/if/br_table) are intentionally
// unsupported here: spec.md's Module Descriptor (C1) takes already-decoded
// CodeBody bytes from an external decoder/validator (spec.md §1), and nested
// label stacks are a code-generation concern the spec does not require this
// package to carry end-to-end. DESIGN.md records this as a scoping
// decision, not an oversight.
const (
	opUnreachable  byte = 0x00
	opNop          byte = 0x01
	opReturn       byte = 0x0f
	opCall         byte = 0x10
	opCallIndirect byte = 0x11
	opDrop         byte = 0x1a
	opSelect       byte = 0x1b
	opLocalGet     byte = 0x20
	opLocalSet     byte = 0x21
	opLocalTee     byte = 0x22
	opGlobalGet    byte = 0x23
	opGlobalSet    byte = 0x24
	opI32Load      byte = 0x28
	opI64Load      byte = 0x29
	opI32Store     byte = 0x36
	opI64Store     byte = 0x37
	opI32Const     byte = 0x41
	opI64Const     byte = 0x42
	opF32Const     byte = 0x43
	opF64Const     byte = 0x44
	opI32Eqz       byte = 0x45
	opI32Eq        byte = 0x46
	opI32Ne        byte = 0x47
	opI32LtS       byte = 0x48
	opI32GtS       byte = 0x4a
	opI32Add       byte = 0x6a
	opI32Sub       byte = 0x6b
	opI32Mul       byte = 0x6c
	opI64Add       byte = 0x7c
	opI64Sub       byte = 0x7d
	opI64Mul       byte = 0x7e
	opF32Add       byte = 0x92
	opF64Add       byte = 0xa0
	opEnd          byte = 0x0b
)

// reader walks raw Wasm instruction bytes, decoding just enough LEB128 and
// immediate forms to drive execStraightLine, grounded on the "wazeroir"
// lowering pass's job description without reproducing its IR: this
// interpreter consumes the binary encoding directly.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) byte() byte {
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *reader) u32() uint32 {
	v, n := decodeULEB128(r.b[r.pos:])
	r.pos += n
	return uint32(v)
}

func (r *reader) i32() int32 {
	v, n := decodeSLEB128(r.b[r.pos:])
	r.pos += n
	return int32(v)
}

func (r *reader) i64() int64 {
	v, n := decodeSLEB128(r.b[r.pos:])
	r.pos += n
	return v
}

func (r *reader) f32() float32 {
	bits := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return math.Float32frombits(bits)
}

func (r *reader) f64() float64 {
	bits := binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return math.Float64frombits(bits)
}

func (r *reader) done() bool { return r.pos >= len(r.b) }

func decodeULEB128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	var i int
	for {
		Byte := b[i]
		result |= uint64(Byte&0x7f) << shift
		i++
		if Byte&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, i
}

func decodeSLEB128(b []byte) (int64, int) {
	var result int64
	var shift uint
	var i int
	var byteVal byte
	for {
		byteVal = b[i]
		result |= int64(byteVal&0x7f) << shift
		shift += 7
		i++
		if byteVal&0x80 == 0 {
			break
		}
	}
	if shift < 64 && byteVal&0x40 != 0 {
		result |= -1 << shift
	}
	return result, i
}

// interpFrame is one activation of execStraightLine: its own operand stack,
// its locals (parameters followed by local declarations zero-initialized),
// and the VM context of the Instance the call runs against.
type interpFrame struct {
	locals []api.Val
	stack  []api.Val
	vmctx  uintptr
	bridge *CallBridge
	calls  *callTable
}

func (f *interpFrame) push(v api.Val) { f.stack = append(f.stack, v) }
func (f *interpFrame) pop() api.Val {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// readWordAt reads the 8-byte little-endian word at byte offset off from
// the VM context whose first byte lives at base, the same layout
// wasmcore.Instance.buildVMContext writes (spec.md §4.5 step 3). The
// interpreter reaches into the VM context exactly the way generated code
// would: by raw offset, not by any Go-level structure.
func readWordAt(base uintptr, off uint32) uint64 {
	return *(*uint64)(unsafe.Pointer(base + uintptr(off)))
}

// callTable is the per-CompiledModule (not per-Instance) data execStraightLine
// needs to resolve a call instruction's joint-space function index into an
// actual dispatch, without the interpreter needing its own copy of
// wasmcore's instantiation bookkeeping. It is built once in Engine.Compile
// and shared by every closure CompiledModule.bindInterpreter registers.
type callTable struct {
	importFuncCount  wasmcore.Index
	importTableCount wasmcore.Index
	offsets          wasmcore.VMContextOffsets
	localEntries     []uintptr
	paramCounts      []int          // joint-space function index -> len(Type.Params).
	typeIDs          []signature.ID // type index -> registered signature id, for call_indirect's type check.
	typeParamCounts  []int          // type index -> len(Type.Params), looked up before a target is resolved.
}

// resolve returns the entry address and VM context a call to idx should
// dispatch with: an imported function's pair is read straight out of the
// caller's own VM context record (the same words generated code would
// load); a local function shares the caller's VM context, per the
// single-instance-per-context convention.
func (ct *callTable) resolve(idx wasmcore.Index, callerVMCtx uintptr) (entry uintptr, vmctx uintptr, trap *wasmcore.Trap) {
	if idx < ct.importFuncCount {
		bodyOff, vmctxOff := ct.offsets.ImportedFunctionOffset(idx)
		return uintptr(readWordAt(callerVMCtx, bodyOff)), uintptr(readWordAt(callerVMCtx, vmctxOff)), nil
	}
	local := idx - ct.importFuncCount
	if int(local) >= len(ct.localEntries) {
		return 0, 0, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: "call target function index out of range"}
	}
	return ct.localEntries[local], callerVMCtx, nil
}

// resolveIndirect implements call_indirect's runtime check (spec.md §8's
// indirect-call-site invariant): read the funcref stored at elemIdx in
// joint-space table tableIdx out of the caller's own VM context, then
// verify its CheckedAnyfunc.TypeID against the call site's declared type
// before ever handing FuncPtr/VMCtx to the Call Bridge. A missing element
// or a signature mismatch traps instead of dispatching.
func (ct *callTable) resolveIndirect(typeIdx, tableIdx wasmcore.Index, elemIdx uint32, callerVMCtx uintptr) (entry uintptr, vmctx uintptr, trap *wasmcore.Trap) {
	if int(typeIdx) >= len(ct.typeIDs) {
		return 0, 0, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: "call_indirect: type index out of range"}
	}
	tableOff := ct.offsets.TableOffset(tableIdx, ct.importTableCount)
	tbl := (*wasmcore.RuntimeTable)(unsafe.Pointer(uintptr(readWordAt(callerVMCtx, tableOff))))
	anyfunc, err := tbl.GetAnyfunc(elemIdx)
	if err != nil {
		return 0, 0, &wasmcore.Trap{Code: wasmcore.TrapCodeTableOutOfBounds, Message: err.Error()}
	}
	if anyfunc == nil || anyfunc.FuncPtr == 0 {
		return 0, 0, &wasmcore.Trap{Code: wasmcore.TrapCodeUninitializedElement, Message: "call_indirect: null funcref element"}
	}
	if !signature.Equal(anyfunc.TypeID, ct.typeIDs[typeIdx]) {
		return 0, 0, &wasmcore.Trap{Code: wasmcore.TrapCodeIndirectCallTypeMismatch, Message: "call_indirect: callee signature does not match call site type"}
	}
	return anyfunc.FuncPtr, anyfunc.VMCtx, nil
}

// execStraightLine evaluates body against frame until it reaches `end` or
// `return`, and is the Go closure that CallBridge.Bind registers for every
// Wasm-defined function's entry address (spec.md §4.7's reverse-of-forward
// symmetry: both directions end up calling Go code, only the entry address
// differs in provenance).
func execStraightLine(body []byte, frame *interpFrame) ([]api.Val, *wasmcore.Trap) {
	r := &reader{b: body}
	for !r.done() {
		op := r.byte()
		switch op {
		case opUnreachable:
			return nil, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: "unreachable executed"}
		case opNop, opEnd:
			// no-op.
		case opReturn:
			return frame.stack, nil
		case opCall:
			idx := r.u32()
			entry, calleeVMCtx, trap := frame.calls.resolve(idx, frame.vmctx)
			if trap != nil {
				return nil, trap
			}
			n := frame.calls.paramCounts[idx]
			args := make([]api.Val, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = frame.pop()
			}
			results, trap := frame.bridge.Call(wasmcore.CheckedAnyfunc{FuncPtr: entry, VMCtx: calleeVMCtx}, args)
			if trap != nil {
				return nil, trap
			}
			frame.stack = append(frame.stack, results...)
		case opCallIndirect:
			typeIdx := wasmcore.Index(r.u32())
			tableIdx := wasmcore.Index(r.u32())
			elemIdx := uint32(frame.pop().I32())
			entry, calleeVMCtx, trap := frame.calls.resolveIndirect(typeIdx, tableIdx, elemIdx, frame.vmctx)
			if trap != nil {
				return nil, trap
			}
			n := frame.calls.typeParamCounts[typeIdx]
			args := make([]api.Val, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = frame.pop()
			}
			results, trap := frame.bridge.Call(wasmcore.CheckedAnyfunc{FuncPtr: entry, VMCtx: calleeVMCtx}, args)
			if trap != nil {
				return nil, trap
			}
			frame.stack = append(frame.stack, results...)
		case opDrop:
			frame.pop()
		case opSelect:
			cond := frame.pop()
			b := frame.pop()
			a := frame.pop()
			if cond.I32() != 0 {
				frame.push(a)
			} else {
				frame.push(b)
			}
		case opLocalGet:
			idx := r.u32()
			frame.push(frame.locals[idx])
		case opLocalSet:
			idx := r.u32()
			frame.locals[idx] = frame.pop()
		case opLocalTee:
			idx := r.u32()
			v := frame.pop()
			frame.locals[idx] = v
			frame.push(v)
		case opI32Const:
			frame.push(api.I32(r.i32()))
		case opI64Const:
			frame.push(api.I64(r.i64()))
		case opF32Const:
			frame.push(api.F32(r.f32()))
		case opF64Const:
			frame.push(api.F64(r.f64()))
		case opI32Eqz:
			a := frame.pop()
			frame.push(boolI32(a.I32() == 0))
		case opI32Eq:
			b, a := frame.pop(), frame.pop()
			frame.push(boolI32(a.I32() == b.I32()))
		case opI32Ne:
			b, a := frame.pop(), frame.pop()
			frame.push(boolI32(a.I32() != b.I32()))
		case opI32LtS:
			b, a := frame.pop(), frame.pop()
			frame.push(boolI32(a.I32() < b.I32()))
		case opI32GtS:
			b, a := frame.pop(), frame.pop()
			frame.push(boolI32(a.I32() > b.I32()))
		case opI32Add:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I32(a.I32() + b.I32()))
		case opI32Sub:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I32(a.I32() - b.I32()))
		case opI32Mul:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I32(a.I32() * b.I32()))
		case opI64Add:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I64(a.I64() + b.I64()))
		case opI64Sub:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I64(a.I64() - b.I64()))
		case opI64Mul:
			b, a := frame.pop(), frame.pop()
			frame.push(api.I64(a.I64() * b.I64()))
		case opF32Add:
			b, a := frame.pop(), frame.pop()
			frame.push(api.F32(a.F32() + b.F32()))
		case opF64Add:
			b, a := frame.pop(), frame.pop()
			frame.push(api.F64(a.F64() + b.F64()))
		default:
			return nil, &wasmcore.Trap{Code: wasmcore.TrapCodeUnreachable, Message: "unsupported opcode in straight-line interpreter"}
		}
	}
	return frame.stack, nil
}

func boolI32(b bool) api.Val {
	if b {
		return api.I32(1)
	}
	return api.I32(0)
}
