package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafoundation/wasmer/api"
	"github.com/wafoundation/wasmer/internal/wasmcore"
)

func TestModuleCache_GetOrCompileSharesOneCompiledModule(t *testing.T) {
	e := NewEngine(nil, nil)
	c, err := NewModuleCache(e, 4, "", nil)
	require.NoError(t, err)

	m := addModule()
	cm1, err := c.GetOrCompile(m)
	require.NoError(t, err)
	cm2, err := c.GetOrCompile(m)
	require.NoError(t, err)
	require.Same(t, cm1, cm2)
}

func TestModuleCache_EvictForcesRecompile(t *testing.T) {
	e := NewEngine(nil, nil)
	c, err := NewModuleCache(e, 4, "", nil)
	require.NoError(t, err)

	m := addModule()
	cm1, err := c.GetOrCompile(m)
	require.NoError(t, err)

	c.Evict(m.ID())
	cm2, err := c.GetOrCompile(m)
	require.NoError(t, err)
	require.NotSame(t, cm1, cm2)
}

func TestModuleCache_DiskTierSurvivesMemoryEviction(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(nil, nil)
	c, err := NewModuleCache(e, 4, dir, nil)
	require.NoError(t, err)

	m := addModule()
	_, err = c.GetOrCompile(m)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	c.Evict(m.ID())
	cm, err := c.GetOrCompile(m)
	require.NoError(t, err)

	results, trap := e.Bridge.Call(wasmcore.CheckedAnyfunc{FuncPtr: cm.FunctionPointers()[0]}, []api.Val{api.I32(1), api.I32(2)})
	require.Nil(t, trap)
	require.Equal(t, int32(3), results[0].I32())
}

func TestModuleCache_DiskPathIsStableForSameID(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(nil, nil)
	c, err := NewModuleCache(e, 4, dir, nil)
	require.NoError(t, err)

	id := addModule().ID()
	require.Equal(t, c.diskPath(id), c.diskPath(id))
	require.Equal(t, dir, filepath.Dir(c.diskPath(id)))
}
