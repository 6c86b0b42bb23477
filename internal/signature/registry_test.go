package signature

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
)

func addI32I32() api.FunctionType {
	return api.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
}

func TestRegistry_RegisterDedupes(t *testing.T) {
	r := NewRegistry(nil)

	id1 := r.Register(addI32I32())
	id2 := r.Register(addI32I32())
	require.Equal(t, id1, id2)

	other := r.Register(api.FunctionType{Results: []api.ValueType{api.ValueTypeI64}})
	require.NotEqual(t, id1, other)
}

func TestRegistry_LookupRoundTrips(t *testing.T) {
	r := NewRegistry(nil)
	sig := addI32I32()
	id := r.Register(sig)

	got, ok := r.Lookup(id)
	require.True(t, ok)
	require.True(t, got.Equals(&sig))
}

func TestRegistry_LookupUnknownFails(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Lookup(ID(1234))
	require.False(t, ok)
}

func TestRegistry_ReleaseRetiresAtZeroRefcount(t *testing.T) {
	r := NewRegistry(nil)
	sig := addI32I32()
	id1 := r.Register(sig)
	id2 := r.Register(sig) // refcount now 2, same id.
	require.Equal(t, id1, id2)

	r.Release(id1)
	_, ok := r.Lookup(id1)
	require.True(t, ok, "still held by the second registration")

	r.Release(id2)
	_, ok = r.Lookup(id1)
	require.False(t, ok, "fully released id is retired")

	// Re-registering the same structural signature gets a fresh id: ids are
	// never reused within a process lifetime.
	id3 := r.Register(sig)
	require.NotEqual(t, id1, id3)
}

func TestRegistry_IndirectCallTypeCheck(t *testing.T) {
	r := NewRegistry(nil)
	tableElemSig := r.Register(addI32I32())
	calleeSiteSig := r.Register(api.FunctionType{Results: []api.ValueType{api.ValueTypeF64}})
	require.False(t, Equal(tableElemSig, calleeSiteSig), "mismatched signatures must not compare equal")
}
