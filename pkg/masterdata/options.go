package masterdata

import (
	"io/fs"
	"os"
)

// registryConfig holds construction options for a Registry.
type registryConfig struct {
	readFS     fs.FS
	sourceName string
}

func (c *registryConfig) apply(opts ...Option) *registryConfig {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func registryDefaults() *registryConfig {
	return &registryConfig{}
}

// Option configures a Registry.
type Option func(*registryConfig)

// WithFS configures the registry to load master data from a custom fs.FS.
func WithFS(fsys fs.FS) Option {
	return func(c *registryConfig) {
		c.readFS = fsys
		if c.sourceName == "" {
			c.sourceName = "fs"
		}
	}
}

// WithPath configures the registry to load master data YAML files from a
// directory path.
func WithPath(path string) Option {
	return func(c *registryConfig) {
		c.readFS = os.DirFS(path)
		c.sourceName = path
	}
}
