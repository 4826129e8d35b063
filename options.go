package medmatch

import (
	"io/fs"
	"runtime"

	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/match"
	"github.com/admitkit/medmatch/pkg/pipeline"
)

// Option is a function that configures a MedMatch instance.
type Option func(*config) error

// config holds construction options for a client.
type config struct {
	masterDataFS  fs.FS
	masterDataDir string
	thresholds    match.Thresholds
	searchIndex   match.SearchIndex
	workers       int
	completeness  float64
	forceCommit   bool
	onProgress    func(pipeline.Progress)
}

func defaultConfig() *config {
	return &config{
		thresholds:   match.DefaultThresholds(),
		workers:      runtime.NumCPU(),
		completeness: pipeline.DefaultCompletenessThreshold,
	}
}

func (c *config) registryOptions() []masterdata.Option {
	var opts []masterdata.Option
	if c.masterDataFS != nil {
		opts = append(opts, masterdata.WithFS(c.masterDataFS))
	} else if c.masterDataDir != "" {
		opts = append(opts, masterdata.WithPath(c.masterDataDir))
	}
	return opts
}

// WithMasterData loads the registry from a custom fs.FS, typically an
// embed.FS or fstest.MapFS.
func WithMasterData(fsys fs.FS) Option {
	return func(c *config) error {
		c.masterDataFS = fsys
		return nil
	}
}

// WithMasterDataDir loads the registry YAML files from a directory.
func WithMasterDataDir(dir string) Option {
	return func(c *config) error {
		c.masterDataDir = dir
		return nil
	}
}

// WithThresholds overrides the matcher confidence thresholds.
func WithThresholds(t match.Thresholds) Option {
	return func(c *config) error {
		c.thresholds = t
		return nil
	}
}

// WithSearchIndex plugs in an external fuzzy-search backend for the
// indexed matching pass. Without one the pass is skipped.
func WithSearchIndex(idx match.SearchIndex) Option {
	return func(c *config) error {
		c.searchIndex = idx
		return nil
	}
}

// WithWorkers bounds the matching worker pool.
func WithWorkers(n int) Option {
	return func(c *config) error {
		if n > 0 {
			c.workers = n
		}
		return nil
	}
}

// WithCompletenessThreshold sets the fraction of resolved rows a batch
// needs to commit instead of halting for review.
func WithCompletenessThreshold(f float64) Option {
	return func(c *config) error {
		if f >= 0 && f <= 1 {
			c.completeness = f
		}
		return nil
	}
}

// WithForceCommit lets operators push below-threshold batches through.
func WithForceCommit(force bool) Option {
	return func(c *config) error {
		c.forceCommit = force
		return nil
	}
}

// WithProgress registers a rate-limited batch progress callback.
func WithProgress(fn func(pipeline.Progress)) Option {
	return func(c *config) error {
		c.onProgress = fn
		return nil
	}
}
