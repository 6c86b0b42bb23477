package wasmcore

import (
	"fmt"

	"github.com/pkg/errors"
)

// This file implements the error taxonomy from spec.md §7. Each kind is a
// concrete struct satisfying error, with Unwrap() where it wraps a cause, so
// callers can use errors.Is/errors.As across package boundaries the way
// github.com/pkg/errors-wrapped errors are used elsewhere in this runtime.

// CompileError is returned by module compilation.
type CompileError struct {
	Kind    CompileErrorKind
	Message string
	Cause   error
}

type CompileErrorKind int

const (
	CompileErrorWasm CompileErrorKind = iota
	CompileErrorCodegen
	CompileErrorUnsupportedFeature
	CompileErrorValidate
)

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error (%v): %s", e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

func (k CompileErrorKind) String() string {
	switch k {
	case CompileErrorWasm:
		return "wasm"
	case CompileErrorCodegen:
		return "codegen"
	case CompileErrorUnsupportedFeature:
		return "unsupported-feature"
	case CompileErrorValidate:
		return "validate"
	default:
		return "unknown"
	}
}

// SerializeError / DeserializeError are returned by CompiledModule's
// artifact (de)serialization.
type SerializeError struct {
	Kind    IOErrorKind
	Message string
	Cause   error
}

func (e *SerializeError) Error() string { return fmt.Sprintf("serialize error: %s", e.Message) }
func (e *SerializeError) Unwrap() error { return e.Cause }

type DeserializeError struct {
	Kind    IOErrorKind
	Message string
	Cause   error
}

func (e *DeserializeError) Error() string { return fmt.Sprintf("deserialize error: %s", e.Message) }
func (e *DeserializeError) Unwrap() error { return e.Cause }

type IOErrorKind int

const (
	IOErrorIO IOErrorKind = iota
	IOErrorInvalidBinary
	IOErrorIncompatibleVersion
	IOErrorGeneric
)

// NewInvalidBinaryDeserializeError wraps a header-validation failure.
func NewInvalidBinaryDeserializeError(format string, args ...interface{}) *DeserializeError {
	return &DeserializeError{Kind: IOErrorInvalidBinary, Message: fmt.Sprintf(format, args...)}
}

// NewIncompatibleVersionDeserializeError wraps a version mismatch.
func NewIncompatibleVersionDeserializeError(got, want string) *DeserializeError {
	return &DeserializeError{
		Kind:    IOErrorIncompatibleVersion,
		Message: fmt.Sprintf("artifact was produced by version %q, this engine is %q", got, want),
	}
}

// LinkError is returned while resolving a module's imports.
type LinkError struct {
	Kind   LinkErrorKind
	Module string
	Field  string
	// Declared/Actual are populated for IncompatibleImportType.
	Declared string
	Actual   string
}

type LinkErrorKind int

const (
	LinkErrorUnknownImport LinkErrorKind = iota
	LinkErrorIncompatibleImportType
)

func (e *LinkError) Error() string {
	switch e.Kind {
	case LinkErrorUnknownImport:
		return fmt.Sprintf("unknown import: %s.%s", e.Module, e.Field)
	case LinkErrorIncompatibleImportType:
		return fmt.Sprintf("incompatible import type for %s.%s: declared %s, actual %s",
			e.Module, e.Field, e.Declared, e.Actual)
	default:
		return "link error"
	}
}

// MemoryError / TableError are returned by Tunables.MemoryPlan/TablePlan
// and by Memory.Grow/Table.Grow. TableError also reports out-of-bounds and
// element-type errors from table Get/Set/Copy, and MemoryError an
// out-of-bounds data segment at instantiation.
type MemoryError struct {
	Kind            GrowErrorKind
	Current         uint32
	AttemptedDelta  uint32
	Message         string
}

func (e *MemoryError) Error() string {
	switch e.Kind {
	case GrowErrorCouldNotGrow:
		return fmt.Sprintf("could not grow memory from %d pages by %d pages", e.Current, e.AttemptedDelta)
	case GrowErrorMinimumTooLarge:
		return fmt.Sprintf("minimum memory size too large: %s", e.Message)
	case GrowErrorMaximumTooLarge:
		return fmt.Sprintf("maximum memory size too large: %s", e.Message)
	default:
		return "memory error"
	}
}

type TableError struct {
	Kind           GrowErrorKind
	Current        uint32
	AttemptedDelta uint32
	Message        string
}

func (e *TableError) Error() string {
	switch e.Kind {
	case GrowErrorCouldNotGrow:
		return fmt.Sprintf("could not grow table from %d elements by %d elements", e.Current, e.AttemptedDelta)
	default:
		return fmt.Sprintf("table error: %s", e.Message)
	}
}

type GrowErrorKind int

const (
	GrowErrorCouldNotGrow GrowErrorKind = iota
	GrowErrorMinimumTooLarge
	GrowErrorMaximumTooLarge
)

// InstantiationError is returned by Instance construction.
type InstantiationError struct {
	Kind  InstantiationErrorKind
	Cause error
}

type InstantiationErrorKind int

const (
	InstantiationErrorLink InstantiationErrorKind = iota
	InstantiationErrorStart
	InstantiationErrorCPUFeature
)

func (e *InstantiationError) Error() string {
	switch e.Kind {
	case InstantiationErrorLink:
		return errors.Wrap(e.Cause, "link error").Error()
	case InstantiationErrorStart:
		return errors.Wrap(e.Cause, "start function trapped").Error()
	case InstantiationErrorCPUFeature:
		return errors.Wrap(e.Cause, "unsupported cpu feature").Error()
	default:
		return "instantiation error"
	}
}

func (e *InstantiationError) Unwrap() error { return e.Cause }

// TrapCode enumerates the non-recoverable guest-side failure kinds a Trap
// can carry.
type TrapCode int

const (
	TrapCodeUnreachable TrapCode = iota
	TrapCodeMemoryOutOfBounds
	TrapCodeTableOutOfBounds
	TrapCodeIndirectCallTypeMismatch
	TrapCodeIntegerOverflow
	TrapCodeIntegerDivisionByZero
	TrapCodeBadConversionToInteger
	TrapCodeStackOverflow
	TrapCodeUninitializedElement
)

func (c TrapCode) String() string {
	switch c {
	case TrapCodeUnreachable:
		return "unreachable"
	case TrapCodeMemoryOutOfBounds:
		return "memory out of bounds"
	case TrapCodeTableOutOfBounds:
		return "table out of bounds"
	case TrapCodeIndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case TrapCodeIntegerOverflow:
		return "integer overflow"
	case TrapCodeIntegerDivisionByZero:
		return "integer division by zero"
	case TrapCodeBadConversionToInteger:
		return "bad conversion to integer"
	case TrapCodeStackOverflow:
		return "stack overflow"
	case TrapCodeUninitializedElement:
		return "uninitialized element"
	default:
		return "unknown trap"
	}
}

// Trap is the (code, pc, message) triple propagated across the call bridge
// when guest code fails irrecoverably.
type Trap struct {
	Code    TrapCode
	PC      uintptr
	Message string
	// Frames is not filled in by any trap path in this runtime: nothing
	// consults the Frame-Info Registry when a trap is raised, so a Trap
	// carries only its code, PC and message.
	Frames []TrapFrame
}

// TrapFrame is one symbolicated frame of a Trap's backtrace.
type TrapFrame struct {
	ModuleName string
	FuncIndex  uint32
	FuncName   string
	SrcOffset  uint32
}

func (t *Trap) Error() string {
	if t.Message != "" {
		return fmt.Sprintf("wasm trap: %s (%s)", t.Code, t.Message)
	}
	return fmt.Sprintf("wasm trap: %s", t.Code)
}

// RuntimeError is the error type surfaced to the embedder at the call
// boundary: either a Trap that unwound guest frames, or a user-supplied
// message (e.g. from a failed host-function signature check).
type RuntimeError struct {
	Trap    *Trap
	Message string
}

// FromTrap is the sole constructor of a RuntimeError from the trap ABI
// (spec.md §7 propagation policy).
func FromTrap(t *Trap) *RuntimeError { return &RuntimeError{Trap: t} }

// NewUserRuntimeError builds a RuntimeError not backed by a guest trap, e.g.
// a cross-store rejection or a host-function arity/type mismatch.
func NewUserRuntimeError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

func (e *RuntimeError) Error() string {
	if e.Trap != nil {
		return e.Trap.Error()
	}
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	if e.Trap != nil {
		return e.Trap
	}
	return nil
}

// ErrCrossStore is returned whenever an Extern or Val from one Store is
// passed into an operation on another Store (spec.md §7, §8).
func ErrCrossStore(op string) *RuntimeError {
	return NewUserRuntimeError("cross-store use of %s is not supported", op)
}

// ExportError is returned by Instance.Export lookups.
type ExportError struct {
	Kind ExportErrorKind
	Name string
	Want string
	Got  string
}

type ExportErrorKind int

const (
	ExportErrorMissing ExportErrorKind = iota
	ExportErrorIncompatibleType
)

func (e *ExportError) Error() string {
	switch e.Kind {
	case ExportErrorMissing:
		return fmt.Sprintf("export %q not found", e.Name)
	case ExportErrorIncompatibleType:
		return fmt.Sprintf("export %q is a %s, not a %s", e.Name, e.Got, e.Want)
	default:
		return "export error"
	}
}
