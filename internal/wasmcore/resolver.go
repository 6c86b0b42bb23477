package wasmcore

import (
	"github.com/wafoundation/wasmer/api"
)

// ExternVal is the union of everything a Resolver can hand back for one
// import, or that a ModuleInstance can hold for one export. Exactly one
// field is non-nil/meaningful, selected by Type.
type ExternVal struct {
	Type api.ExternType

	Func   *FunctionInstance
	Memory *LinearMemory
	Table  *RuntimeTable
	Global *GlobalInstance
}

// Resolver looks up an import by (module name, field name), the embedder
// hook spec.md §6 describes as "a function (module_name, field_name) ->
// Option<Extern>".
type Resolver interface {
	Resolve(moduleName, fieldName string) (ExternVal, bool)
}

// ResolverFunc adapts a plain function to Resolver, the way http.HandlerFunc
// adapts a function to http.Handler.
type ResolverFunc func(moduleName, fieldName string) (ExternVal, bool)

func (f ResolverFunc) Resolve(moduleName, fieldName string) (ExternVal, bool) { return f(moduleName, fieldName) }

// ChainResolvers tries each Resolver in order, returning the first hit.
// This is how an embedder composes a host-function namespace with a
// previously instantiated module's exports (spec.md's namespace linking).
func ChainResolvers(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(moduleName, fieldName string) (ExternVal, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if ev, ok := r.Resolve(moduleName, fieldName); ok {
				return ev, true
			}
		}
		return ExternVal{}, false
	})
}

// DynamicTrampolineBuilder builds a CheckedAnyfunc whose FuncPtr is a
// reverse-trampoline entry point dispatching to fn using sig, so that a
// wrapped dynamic host function becomes indistinguishable, at every call
// site, from a Wasm-defined function (spec.md §4.5 step 1, §4.7). This is
// implemented by internal/codegen and injected at instantiation time,
// keeping wasmcore free of any dependency on code generation.
type DynamicTrampolineBuilder interface {
	BuildDynamicTrampoline(sig api.FunctionType, fn *HostFunc) CheckedAnyfunc
}

// resolvedImports is the result of walking a Module's ImportSection against
// a Resolver: one slice per kind, index-correlated with the subsequence of
// ImportSection entries of that kind.
type resolvedImports struct {
	funcs   []*FunctionInstance
	memories []*LinearMemory
	tables   []*RuntimeTable
	globals  []*GlobalInstance
}

// resolveImports implements spec.md §4.5 step 1: for each import entry,
// query resolver, check type compatibility, and (for dynamic host
// functions) wrap the callable in its reverse trampoline via builder.
func resolveImports(m *Module, resolver Resolver, builder DynamicTrampolineBuilder) (*resolvedImports, error) {
	out := &resolvedImports{}
	for _, imp := range m.ImportSection {
		ev, ok := resolver.Resolve(imp.Module, imp.Field)
		if !ok {
			return nil, &LinkError{Kind: LinkErrorUnknownImport, Module: imp.Module, Field: imp.Field}
		}
		if ev.Type != imp.Type {
			return nil, &LinkError{
				Kind: LinkErrorIncompatibleImportType, Module: imp.Module, Field: imp.Field,
				Declared: imp.Type.String(), Actual: ev.Type.String(),
			}
		}

		switch imp.Type {
		case api.ExternTypeFunc:
			declared := &m.TypeSection[imp.FuncTypeIndex]
			fn := ev.Func
			if !declared.Equals(&fn.Type) {
				return nil, &LinkError{
					Kind: LinkErrorIncompatibleImportType, Module: imp.Module, Field: imp.Field,
					Declared: declared.String(), Actual: fn.Type.String(),
				}
			}
			if fn.Host != nil && fn.Host.Kind == HostFuncDynamic && builder != nil {
				wrapped := *fn
				wrapped.Anyfunc = builder.BuildDynamicTrampoline(fn.Type, fn.Host)
				fn = &wrapped
			}
			out.funcs = append(out.funcs, fn)

		case api.ExternTypeMemory:
			actual := ev.Memory.Type()
			if err := checkMemoryCompat(imp.MemoryType, actual); err != nil {
				return nil, &LinkError{Kind: LinkErrorIncompatibleImportType, Module: imp.Module, Field: imp.Field,
					Declared: memTypeString(imp.MemoryType), Actual: memTypeString(actual)}
			}
			out.memories = append(out.memories, ev.Memory)

		case api.ExternTypeTable:
			actual := ev.Table.Type()
			if err := checkTableCompat(imp.TableType, actual); err != nil {
				return nil, &LinkError{Kind: LinkErrorIncompatibleImportType, Module: imp.Module, Field: imp.Field,
					Declared: tableTypeString(imp.TableType), Actual: tableTypeString(actual)}
			}
			out.tables = append(out.tables, ev.Table)

		case api.ExternTypeGlobal:
			actual := ev.Global.Type
			if actual.ValType != imp.GlobalType.ValType || actual.Mutability != imp.GlobalType.Mutability {
				return nil, &LinkError{Kind: LinkErrorIncompatibleImportType, Module: imp.Module, Field: imp.Field,
					Declared: globalTypeString(imp.GlobalType), Actual: globalTypeString(actual)}
			}
			out.globals = append(out.globals, ev.Global)
		}
	}
	return out, nil
}

// checkMemoryCompat implements spec.md §4.5 step 1's Memory rule: the
// provided (actual) minimum must be at least the import's declared minimum,
// and if the import declares a maximum, the provided memory must declare one
// no larger than it.
func checkMemoryCompat(declared, actual api.MemoryType) error {
	if declared.Minimum > actual.Minimum {
		return errIncompatible
	}
	if declared.Maximum != nil {
		if actual.Maximum == nil || *declared.Maximum < *actual.Maximum {
			return errIncompatible
		}
	}
	return nil
}

// checkTableCompat mirrors checkMemoryCompat for tables, plus element type
// equality.
func checkTableCompat(declared, actual api.TableType) error {
	if declared.Element != actual.Element {
		return errIncompatible
	}
	if declared.Minimum > actual.Minimum {
		return errIncompatible
	}
	if declared.Maximum != nil {
		if actual.Maximum == nil || *declared.Maximum < *actual.Maximum {
			return errIncompatible
		}
	}
	return nil
}

var errIncompatible = &LinkError{Kind: LinkErrorIncompatibleImportType}

func memTypeString(t api.MemoryType) string {
	if t.Maximum == nil {
		return "memory(min=" + itoa(t.Minimum) + ", max=none)"
	}
	return "memory(min=" + itoa(t.Minimum) + ", max=" + itoa(*t.Maximum) + ")"
}

func tableTypeString(t api.TableType) string {
	return "table(" + t.Element.String() + ", min=" + itoa(t.Minimum) + ")"
}

func globalTypeString(t api.GlobalType) string {
	mut := "const"
	if t.Mutability == api.Mutable {
		mut = "var"
	}
	return mut + " " + t.ValType.String()
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
