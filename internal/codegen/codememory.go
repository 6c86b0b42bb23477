package codegen

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/wafoundation/wasmer/internal/platform"
)

// CodeMemory is the executable-memory arena backing one Compiled Module
// (spec.md §4.3 Code Memory). It is written while RW during linking, then
// sealed to RX once and never mutated again; publishing is one-way.
type CodeMemory struct {
	mem       []byte
	published bool
	log       logrus.FieldLogger
}

// NewCodeMemory reserves size bytes of RW memory. size must already account
// for every function body, call trampoline, and dynamic trampoline that
// will be copied into it before Publish.
func NewCodeMemory(size int, log logrus.FieldLogger) (*CodeMemory, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if size == 0 {
		return &CodeMemory{log: log}, nil
	}
	mem, err := platform.MmapCodeSegment(size)
	if err != nil {
		return nil, err
	}
	cm := &CodeMemory{mem: mem, log: log}
	runtime.SetFinalizer(cm, releaseCodeMemory)
	return cm, nil
}

// Bytes exposes the backing slice for writing during linking. Callers must
// not retain it past Publish.
func (c *CodeMemory) Bytes() []byte { return c.mem }

// Base returns the address of byte zero of this arena, valid for computing
// every function's final address once offsets within it are known.
func (c *CodeMemory) Base() uintptr { return addrOf(c.mem) }

// Publish transitions the arena from writable to executable. Per spec.md
// §4.3 this is irreversible: no further writes are permitted afterward, and
// calling Publish twice is a no-op.
func (c *CodeMemory) Publish() error {
	if c.published || len(c.mem) == 0 {
		c.published = true
		return nil
	}
	if err := platform.MprotectRX(c.mem); err != nil {
		return err
	}
	c.published = true
	return nil
}

func (c *CodeMemory) Published() bool { return c.published }

// Release eagerly unmaps the arena instead of waiting for the finalizer,
// for callers (the engine's cache eviction path) that know the Compiled
// Module backing this memory is no longer reachable.
func (c *CodeMemory) Release() {
	releaseCodeMemory(c)
}

func releaseCodeMemory(c *CodeMemory) {
	if len(c.mem) == 0 {
		return
	}
	mem := c.mem
	c.mem = nil
	if err := platform.MunmapCodeSegment(mem); err != nil {
		c.log.WithError(err).Warn("failed to munmap code memory")
	}
}
