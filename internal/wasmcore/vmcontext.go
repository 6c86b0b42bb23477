package wasmcore

// VMContextOffsets describes the layout of a single flat per-instance
// record that generated code indexes into as compile-time constants
// (spec.md §4.5 step 3). The layout is: imported function table, imported
// memory bases, imported table bases, imported global addresses, defined
// memory definitions, defined table definitions, defined global
// definitions, shared signature id array, built-in function pointers — in
// that order, each a flat run of fixed-size records so a code generator
// can compute `base + index*stride` without consulting this struct at
// runtime.
type VMContextOffsets struct {
	// Stride, in bytes, of one entry in each run. These mirror the
	// teacher's wazevoapi.FunctionInstanceSize-style constants: a function
	// table slot is (body_ptr, vmctx) = 16 bytes; memory/table/global base
	// pointers are one word (8 bytes) each; a shared signature id is 4
	// bytes (padded to 8 for alignment).
	ImportedFunctionStride uint32
	WordStride             uint32
	SignatureIDStride      uint32

	ImportedFunctionsBegin uint32
	ImportedMemoriesBegin  uint32
	ImportedTablesBegin    uint32
	ImportedGlobalsBegin   uint32
	DefinedMemoriesBegin   uint32
	DefinedTablesBegin     uint32
	DefinedGlobalsBegin    uint32
	SignatureIDsBegin      uint32
	BuiltinsBegin          uint32

	TotalSize uint32
}

// NewVMContextOffsets computes the offset table for m. This is pure
// arithmetic over the Module's counts; it does not allocate the record
// itself (Instance does that).
func NewVMContextOffsets(m *Module) VMContextOffsets {
	const (
		importedFunctionStride = 16 // (body_ptr, vmctx)
		wordStride              = 8
		sigIDStride             = 8 // padded for alignment
		numBuiltins             = 4 // memory.grow, table.grow, stack-check, trap-handler
	)

	o := VMContextOffsets{
		ImportedFunctionStride: importedFunctionStride,
		WordStride:             wordStride,
		SignatureIDStride:      sigIDStride,
	}

	cursor := uint32(0)
	o.ImportedFunctionsBegin = cursor
	cursor += m.ImportFunctionCount * importedFunctionStride

	o.ImportedMemoriesBegin = cursor
	cursor += m.ImportMemoryCount * wordStride

	o.ImportedTablesBegin = cursor
	cursor += m.ImportTableCount * wordStride

	o.ImportedGlobalsBegin = cursor
	cursor += m.ImportGlobalCount * wordStride

	o.DefinedMemoriesBegin = cursor
	cursor += uint32(len(m.MemorySection)) * wordStride

	o.DefinedTablesBegin = cursor
	cursor += uint32(len(m.TableSection)) * wordStride

	o.DefinedGlobalsBegin = cursor
	cursor += uint32(len(m.GlobalSection)) * wordStride

	o.SignatureIDsBegin = cursor
	cursor += uint32(len(m.TypeSection)) * sigIDStride

	o.BuiltinsBegin = cursor
	cursor += numBuiltins * wordStride

	o.TotalSize = cursor
	return o
}

// ImportedFunctionOffset returns the byte offset, within the VM context
// record, of the i-th imported function's (body_ptr, vmctx) slot.
func (o *VMContextOffsets) ImportedFunctionOffset(i Index) (bodyPtrOffset, vmctxOffset uint32) {
	base := o.ImportedFunctionsBegin + i*o.ImportedFunctionStride
	return base, base + o.WordStride
}

// TableOffset returns the byte offset, within the VM context record, of
// joint-space table index idx's base-pointer slot: imported tables occupy
// ImportedTablesBegin's run, defined tables occupy DefinedTablesBegin's run,
// selected the same way ImportedFunctionOffset's caller distinguishes an
// import from a local definition (spec.md §4.5 step 3). This is what a
// call_indirect site reads to find the RuntimeTable it indexes into.
func (o *VMContextOffsets) TableOffset(idx Index, importTableCount Index) uint32 {
	if idx < importTableCount {
		return o.ImportedTablesBegin + uint32(idx)*o.WordStride
	}
	return o.DefinedTablesBegin + uint32(idx-importTableCount)*o.WordStride
}
