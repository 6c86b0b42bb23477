package codegen

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// ModuleCache is the two-tier Compiled Module cache spec.md §5 describes:
// a bounded in-memory LRU in front of an optional on-disk directory, keyed
// by wasmcore.ModuleID the way the teacher's extencache.Cache interface is
// keyed by module content hash. Unlike the teacher, this runtime always has
// an in-memory tier; the disk tier is optional and only consulted on a
// memory miss.
type ModuleCache struct {
	engine *Engine

	mu  sync.Mutex
	mem *lru.Cache[wasmcore.ModuleID, *CompiledModule]

	dir string // empty disables the disk tier.
	log logrus.FieldLogger
}

// NewModuleCache builds a cache holding up to memCapacity compiled modules
// in memory, optionally backed by dir on disk (pass "" to disable the disk
// tier). memCapacity must be positive.
func NewModuleCache(engine *Engine, memCapacity int, dir string, log logrus.FieldLogger) (*ModuleCache, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mem, err := lru.New[wasmcore.ModuleID, *CompiledModule](memCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "codegen: constructing module cache")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "codegen: preparing cache directory")
		}
	}
	return &ModuleCache{engine: engine, mem: mem, dir: dir, log: log}, nil
}

// GetOrCompile returns the CompiledModule for module, compiling and caching
// it on first use. The cache key is module.ID(), so two structurally
// identical Modules compiled independently share one CompiledModule and its
// Code Memory arena.
func (c *ModuleCache) GetOrCompile(module *wasmcore.Module) (*CompiledModule, error) {
	id := module.ID()

	c.mu.Lock()
	if cm, ok := c.mem.Get(id); ok {
		c.mu.Unlock()
		return cm, nil
	}
	c.mu.Unlock()

	if c.dir != "" {
		if cm, ok, err := c.readDisk(module, id); err != nil {
			c.log.WithError(err).Warn("codegen: disk cache read failed, recompiling")
		} else if ok {
			c.mu.Lock()
			c.mem.Add(id, cm)
			c.mu.Unlock()
			return cm, nil
		}
	}

	cm, err := c.engine.Compile(module)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.mem.Add(id, cm)
	c.mu.Unlock()

	if c.dir != "" {
		if err := c.writeDisk(cm, id); err != nil {
			c.log.WithError(err).Warn("codegen: disk cache write failed")
		}
	}
	return cm, nil
}

// Evict drops id from the in-memory tier and releases its CompiledModule's
// Code Memory, used when an embedder explicitly invalidates a module (e.g.
// hot-reload of guest code during development).
func (c *ModuleCache) Evict(id wasmcore.ModuleID) {
	c.mu.Lock()
	cm, ok := c.mem.Peek(id)
	c.mem.Remove(id)
	c.mu.Unlock()
	if ok {
		cm.Release()
	}
}

func (c *ModuleCache) diskPath(id wasmcore.ModuleID) string {
	// The filename is an xxhash of id's hex form, so it is a function of
	// ModuleID alone: two Modules with the same ModuleID map to the same
	// file. xxhash is also how
	// wasmcore.Module.ID() itself hashes, kept consistent across the
	// package boundary.
	h := xxhash.Sum64(strconv.AppendUint(nil, uint64(id), 16))
	return filepath.Join(c.dir, strconv.FormatUint(h, 16)+".wafmcache")
}

func (c *ModuleCache) readDisk(module *wasmcore.Module, id wasmcore.ModuleID) (*CompiledModule, bool, error) {
	f, err := os.Open(c.diskPath(id))
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	defer f.Close()
	return c.engine.Deserialize(module, f)
}

func (c *ModuleCache) writeDisk(cm *CompiledModule, id wasmcore.ModuleID) error {
	r, err := cm.Serialize()
	if err != nil {
		return err
	}
	path := c.diskPath(id)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
