package wasmer

import (
	"github.com/sirupsen/logrus"

	"github.com/wafoundation/wasmer/internal/wasmcore"
)

// Config controls Engine construction: the Tunables policy new Stores use
// by default, the structured logger every package in this module injects
// rather than using the global logger directly, and the Compiled Module
// cache's shape (spec.md §5, §7). The default configuration matches
// NewConfig's zero-argument behavior.
//
// Config follows the teacher's immutable-builder convention: every With*
// method clones the receiver and returns the clone, so a Config value can
// be shared as a base and specialized along multiple branches without the
// branches observing each other's changes.
type Config struct {
	tunables         wasmcore.Tunables
	logger           logrus.FieldLogger
	cacheCapacity    int
	cacheDir         string
}

// NewConfig returns a Config with conservative defaults: DefaultTunables,
// logrus.StandardLogger(), a 128-entry in-memory compiled-module cache, and
// no disk cache tier.
func NewConfig() *Config {
	return &Config{
		tunables:      wasmcore.NewDefaultTunables(),
		logger:        logrus.StandardLogger(),
		cacheCapacity: 128,
	}
}

// clone ensures every field is copied even if a future field is added and a
// caller forgets to update it here, matching the teacher's own clone()
// rationale.
func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// WithTunables overrides the Memory/Table sizing policy new Stores'
// Instances are allocated under.
func (c *Config) WithTunables(t wasmcore.Tunables) *Config {
	ret := c.clone()
	ret.tunables = t
	return ret
}

// WithLogger overrides the structured logger injected into the Engine and
// every Store/Instance it creates. Passing nil restores
// logrus.StandardLogger().
func (c *Config) WithLogger(log logrus.FieldLogger) *Config {
	ret := c.clone()
	if log == nil {
		log = logrus.StandardLogger()
	}
	ret.logger = log
	return ret
}

// WithCompiledModuleCacheCapacity bounds how many Compiled Modules the
// Engine keeps resident in memory at once. Zero or negative disables
// bounding, which NewModuleCache rejects, so non-positive values are
// clamped to 1.
func (c *Config) WithCompiledModuleCacheCapacity(n int) *Config {
	ret := c.clone()
	if n < 1 {
		n = 1
	}
	ret.cacheCapacity = n
	return ret
}

// WithCompiledModuleCacheDir enables the on-disk compilation cache tier at
// dir, keyed by Module content hash (spec.md §5). Passing "" disables it,
// which is the default.
func (c *Config) WithCompiledModuleCacheDir(dir string) *Config {
	ret := c.clone()
	ret.cacheDir = dir
	return ret
}
