package codegen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/platform"
	"github.com/wafoundation/wasmer/internal/signature"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// magic and formatVersion identify the on-disk/on-wire layout Serialize
// produces, the way wazeroMagic/wazeroVersion gate engine_cache.go's format
// (spec.md §5's Compiled Module serialization contract).
const magic = "WASMERJT"

// formatVersion must change whenever Serialize's byte layout changes;
// Deserialize rejects anything else as stale rather than guessing.
const formatVersion = "1"

// CompiledModule is the Compiled Module (C7): a Module paired with its
// linked, published Code Memory and everything Instantiate needs to wire a
// fresh Instance against that code without repeating compilation.
type CompiledModule struct {
	module *wasmcore.Module

	code    *CodeMemory
	entries []uintptr // per locally defined function.
	typeIDs []signature.ID
	frames  []FrameInfo

	bridge    *CallBridge
	frameInfo *FrameInfoRegistry

	log logrus.FieldLogger
}

// Engine ties the Signature Registry, Call Bridge, and Frame-Info Registry
// together so every CompiledModule built through it shares the same
// process-wide identity tables (spec.md §4.2-§4.4).
type Engine struct {
	Signatures *signature.Registry
	Bridge     *CallBridge
	FrameInfo  *FrameInfoRegistry
	Tunables   wasmcore.Tunables
	Log        logrus.FieldLogger
}

// NewEngine constructs an Engine with fresh registries, using tunables as
// every Instantiate call's memory/table sizing policy (spec.md §4.4). Most
// embedders want exactly one Engine for the process lifetime (spec.md §2's
// "one Engine, many Stores" topology).
func NewEngine(tunables wasmcore.Tunables, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if tunables == nil {
		tunables = wasmcore.NewDefaultTunables()
	}
	return &Engine{
		Signatures: signature.NewRegistry(log),
		Bridge:     NewCallBridge(),
		FrameInfo:  NewFrameInfoRegistry(),
		Tunables:   tunables,
		Log:        log,
	}
}

// Compile builds a Compilation Artifact (C2) from module's CodeSection,
// links it into a fresh Code Memory arena, publishes it RX, and binds every
// defined function's entry address in the Engine's CallBridge to a
// straight-line interpreter closure over that function's raw body
// (spec.md §4.3, §4.7; see interp.go for why dispatch goes through Go
// closures rather than truly generated machine code).
func (e *Engine) Compile(module *wasmcore.Module) (*CompiledModule, error) {
	if err := module.Validate(); err != nil {
		return nil, err
	}

	typeIDs := make([]signature.ID, len(module.CodeSection))
	for i, fnTypeIdx := range module.FunctionSection {
		typeIDs[i] = e.Signatures.Register(module.TypeSection[fnTypeIdx])
	}

	artifact, err := buildArtifact(module)
	if err != nil {
		return nil, &wasmcore.CompileError{Kind: wasmcore.CompileErrorCodegen, Message: err.Error()}
	}

	totalSize := 0
	for _, fc := range artifact.Functions {
		totalSize = align16(totalSize) + len(fc.Body)
	}
	if totalSize == 0 {
		totalSize = platform.PageSize
	}

	mem, err := NewCodeMemory(totalSize, e.Log)
	if err != nil {
		return nil, &wasmcore.CompileError{Kind: wasmcore.CompileErrorCodegen, Message: err.Error()}
	}

	linker := NewLinker()
	entries, frames, err := linker.Link(mem, module.ImportFunctionCount, artifact.Functions)
	if err != nil {
		mem.Release()
		return nil, &wasmcore.CompileError{Kind: wasmcore.CompileErrorCodegen, Message: err.Error()}
	}
	if err := mem.Publish(); err != nil {
		mem.Release()
		return nil, &wasmcore.CompileError{Kind: wasmcore.CompileErrorCodegen, Message: err.Error()}
	}

	cm := &CompiledModule{
		module:    module,
		code:      mem,
		entries:   entries,
		typeIDs:   typeIDs,
		frames:    frames,
		bridge:    e.Bridge,
		frameInfo: e.FrameInfo,
		log:       e.Log,
	}

	calls := e.buildCallTable(module, entries)
	for i, entry := range entries {
		body := module.CodeSection[i].Body
		numLocals := len(module.TypeSection[module.FunctionSection[i]].Params)
		for _, l := range module.CodeSection[i].Locals {
			numLocals += int(l.Count)
		}
		cm.bindInterpreter(entry, body, numLocals, calls)

		end := entry + uintptr(len(artifact.Functions[i].Body))
		name := fmt.Sprintf("func[%d]", i)
		e.FrameInfo.RegisterFunction(entry, end, module.Name, uint32(i), name, frames[i])
	}

	return cm, nil
}

// buildCallTable precomputes everything execStraightLine's opCall and
// opCallIndirect handling needs about module's joint function index space
// and type section, once per compilation rather than once per call.
// Registering every declared type (not just the ones functions use) with
// the Signature Registry here, rather than only at function-definition
// time, is what lets a call_indirect site's typeidx resolve to the same id
// a table element's CheckedAnyfunc.TypeID was stamped with (Register
// interns structurally, so a type already registered for some function
// returns that function's id).
func (e *Engine) buildCallTable(module *wasmcore.Module, entries []uintptr) *callTable {
	total := int(module.ImportFunctionCount) + len(module.FunctionSection)
	paramCounts := make([]int, total)
	for i := 0; i < total; i++ {
		paramCounts[i] = len(module.TypeOf(wasmcore.Index(i)).Params)
	}

	typeIDs := make([]signature.ID, len(module.TypeSection))
	typeParamCounts := make([]int, len(module.TypeSection))
	for i, t := range module.TypeSection {
		typeIDs[i] = e.Signatures.Register(t)
		typeParamCounts[i] = len(t.Params)
	}

	return &callTable{
		importFuncCount:  module.ImportFunctionCount,
		importTableCount: module.ImportTableCount,
		offsets:          wasmcore.NewVMContextOffsets(module),
		localEntries:     entries,
		paramCounts:      paramCounts,
		typeIDs:          typeIDs,
		typeParamCounts:  typeParamCounts,
	}
}

// bindInterpreter registers the Go closure a compiled function's entry
// address dispatches to through CallBridge, threading the VM context
// pointer the forward/reverse trampolines agree on (spec.md §4.7).
func (cm *CompiledModule) bindInterpreter(entry uintptr, body []byte, numLocals int, calls *callTable) {
	cm.bridge.Bind(entry, func(vmctx uintptr, params []api.Val) ([]api.Val, *wasmcore.Trap) {
		locals := make([]api.Val, numLocals)
		copy(locals, params)
		frame := &interpFrame{locals: locals, vmctx: vmctx, bridge: cm.bridge, calls: calls}
		return execStraightLine(body, frame)
	})
}

// buildArtifact emits one FunctionCode per locally defined function: its
// body is the fixed indirect-jump stub (spec.md §4.7's minimal "PLT-style"
// shape) since actual dispatch happens through CallBridge's table rather
// than by falling through generated machine code.
func buildArtifact(module *wasmcore.Module) (*Artifact, error) {
	funcs := make([]FunctionCode, len(module.CodeSection))
	for i := range module.CodeSection {
		stub, err := assembleIndirectJumpStub(0)
		if err != nil {
			// No native backend for this architecture: fall back to a
			// minimal zero-filled placeholder body. CallBridge dispatch
			// does not require the bytes to be executable to function
			// correctly, only for Code Memory/Frame-Info bookkeeping to
			// have a non-empty range per function.
			stub = make([]byte, 16)
		}
		funcs[i] = FunctionCode{Body: stub}
	}
	return &Artifact{Functions: funcs}, nil
}

// FunctionPointers returns the linked entry address of each locally defined
// function, in the form wasmcore.InstantiationArgs expects.
func (cm *CompiledModule) FunctionPointers() []uintptr { return cm.entries }

// TypeIDs returns the Signature Registry ID of each locally defined
// function's type, parallel to FunctionPointers.
func (cm *CompiledModule) TypeIDs() []signature.ID { return cm.typeIDs }

// Module returns the Module Descriptor this CompiledModule was built from.
func (cm *CompiledModule) Module() *wasmcore.Module { return cm.module }

// Release unbinds every entry address from the CallBridge and Frame-Info
// Registry and unmaps the backing Code Memory. Call once no Instance built
// from this CompiledModule is reachable.
func (cm *CompiledModule) Release() {
	for _, entry := range cm.entries {
		cm.bridge.Unbind(entry)
		cm.frameInfo.Release(entry)
	}
	cm.code.Release()
}

// Serialize writes cm in the format Deserialize understands: a magic
// header, version-length-prefixed format version, a function count, then
// per function its signature id, body length and code bytes, grounded on
// the teacher's engine_cache.go serializeCodes layout.
func (cm *CompiledModule) Serialize() (io.Reader, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(magic)
	buf.WriteByte(byte(len(formatVersion)))
	buf.WriteString(formatVersion)

	var u32buf [4]byte
	binary.LittleEndian.PutUint32(u32buf[:], uint32(len(cm.entries)))
	buf.Write(u32buf[:])

	codeBytes := cm.code.Bytes()
	for i := range cm.entries {
		typeIDBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(typeIDBytes, uint64(cm.typeIDs[i]))
		buf.Write(typeIDBytes)

		body := functionBytesAt(codeBytes, cm.entries, cm.code.Base(), i)
		lenBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(lenBytes, uint64(len(body)))
		buf.Write(lenBytes)
		buf.Write(body)
	}
	return bytes.NewReader(buf.Bytes()), nil
}

// functionBytesAt slices out function i's region of the arena using
// consecutive entry addresses to bound it (the last function runs to the
// end of the published arena).
func functionBytesAt(codeBytes []byte, entries []uintptr, base uintptr, i int) []byte {
	start := int(entries[i] - base)
	end := len(codeBytes)
	if i+1 < len(entries) {
		end = int(entries[i+1] - base)
	}
	return codeBytes[start:end]
}

// Deserialize reconstructs a CompiledModule's code memory from a prior
// Serialize call. module must be the same Module Descriptor the artifact
// was built from (its CodeSection bodies drive interpreter dispatch, which
// Deserialize cannot recover from machine code bytes alone); a mismatched
// module is a programmer error the caller's cache key is expected to
// prevent. A stream that does not start with the magic header, or that
// carries a different format version, is rejected with a
// *wasmcore.DeserializeError.
func (e *Engine) Deserialize(module *wasmcore.Module, r io.Reader) (*CompiledModule, bool, error) {
	headerSize := len(magic) + 1 + len(formatVersion) + 4
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, false, errors.Wrap(err, "codegen: reading cache header")
	}
	if string(header[:len(magic)]) != magic {
		return nil, false, wasmcore.NewInvalidBinaryDeserializeError("codegen: artifact does not start with the %q magic header", magic)
	}
	versionSize := int(header[len(magic)])
	versionStart := len(magic) + 1
	gotVersion := string(header[versionStart : versionStart+len(formatVersion)])
	if versionSize != len(formatVersion) || gotVersion != formatVersion {
		return nil, false, wasmcore.NewIncompatibleVersionDeserializeError(gotVersion, formatVersion)
	}
	funcCount := binary.LittleEndian.Uint32(header[headerSize-4:])

	typeIDs := make([]signature.ID, funcCount)
	bodies := make([][]byte, funcCount)
	totalSize := 0
	for i := uint32(0); i < funcCount; i++ {
		var idBytes, lenBytes [8]byte
		if _, err := io.ReadFull(r, idBytes[:]); err != nil {
			return nil, false, errors.Wrap(err, "codegen: reading cached type id")
		}
		typeIDs[i] = signature.ID(binary.LittleEndian.Uint64(idBytes[:]))

		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, false, errors.Wrap(err, "codegen: reading cached function length")
		}
		n := binary.LittleEndian.Uint64(lenBytes[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, false, errors.Wrap(err, "codegen: reading cached function body")
		}
		bodies[i] = body
		totalSize = align16(totalSize) + len(body)
	}
	if totalSize == 0 {
		totalSize = platform.PageSize
	}

	mem, err := NewCodeMemory(totalSize, e.Log)
	if err != nil {
		return nil, false, err
	}
	buf := mem.Bytes()
	cursor := 0
	entries := make([]uintptr, funcCount)
	frames := make([]FrameInfo, funcCount)
	for i, body := range bodies {
		copy(buf[cursor:], body)
		entries[i] = mem.Base() + uintptr(cursor)
		cursor = align16(cursor + len(body))
	}
	if err := mem.Publish(); err != nil {
		mem.Release()
		return nil, false, err
	}

	cm := &CompiledModule{
		module:    module,
		code:      mem,
		entries:   entries,
		typeIDs:   typeIDs,
		frames:    frames,
		bridge:    e.Bridge,
		frameInfo: e.FrameInfo,
		log:       e.Log,
	}
	calls := e.buildCallTable(module, entries)
	for i, entry := range entries {
		if int(i) >= len(module.CodeSection) {
			break
		}
		body := module.CodeSection[i].Body
		numLocals := len(module.TypeSection[module.FunctionSection[i]].Params)
		for _, l := range module.CodeSection[i].Locals {
			numLocals += int(l.Count)
		}
		cm.bindInterpreter(entry, body, numLocals, calls)
		end := entry + uintptr(len(bodies[i]))
		e.FrameInfo.RegisterFunction(entry, end, module.Name, uint32(i), fmt.Sprintf("func[%d]", i), frames[i])
	}
	return cm, true, nil
}

// CompileToArtifact compiles module and immediately serializes the result,
// without keeping it instantiable through this Engine. This is the library
// entry point behind a "compile straight to an artifact file" command-line
// tool would use (a CLI front-end itself is out of scope).
func (e *Engine) CompileToArtifact(module *wasmcore.Module) ([]byte, error) {
	cm, err := e.Compile(module)
	if err != nil {
		return nil, err
	}
	defer cm.Release()
	r, err := cm.Serialize()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Instantiate builds a fresh wasmcore.Instance from cm against resolver,
// wiring the Call Bridge's Dynamic-import trampoline builder and start
// invoker so wasmcore never needs to know codegen exists.
func (e *Engine) Instantiate(store *wasmcore.Store, cm *CompiledModule, resolver wasmcore.Resolver) (*wasmcore.Instance, error) {
	return store.Instantiate(wasmcore.InstantiationArgs{
		Module:            cm.module,
		Tunables:          e.Tunables,
		Resolver:          resolver,
		TrampolineBuilder: e.Bridge,
		StartInvoker:      NewStartInvoker(e.Bridge),
		FunctionPointers:  cm.entries,
		TypeIDs:           cm.typeIDs,
	})
}
