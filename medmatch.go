// Package medmatch reconciles noisy, human-typed admission records
// against a canonical master registry of states, colleges, courses,
// categories and quotas. The facade wires the registry, matcher, review
// queue, audit store and batch pipeline behind one client.
package medmatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/admitkit/medmatch/pkg/audit"
	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/match"
	"github.com/admitkit/medmatch/pkg/pipeline"
	"github.com/admitkit/medmatch/pkg/review"
)

// MedMatch manages the reconciliation lifecycle with event hooks.
type MedMatch interface {
	// Registry returns the shared master-data registry. It is read-only
	// while a batch runs.
	Registry() *masterdata.Registry

	// Matcher returns the configured matcher.
	Matcher() *match.Matcher

	// Reviews returns the pending-review queue.
	Reviews() *review.Queue

	// Audit returns the append-only audit store.
	Audit() *audit.Store

	// ProcessBatch runs one import batch through the staged pipeline.
	ProcessBatch(ctx context.Context, records []pipeline.StagingRecord) (*pipeline.Report, error)

	// ApplyApproved merges entities created by review approvals into the
	// registry. Never called mid-batch.
	ApplyApproved() error

	// OnEntityCreated registers a callback for master-entity creation
	OnEntityCreated(EntityCreatedHook)

	// OnReviewQueued registers a callback for new review items
	OnReviewQueued(ReviewQueuedHook)

	// OnBatchStateChange registers a callback for batch lifecycle moves
	OnBatchStateChange(BatchStateHook)
}

// client is the internal implementation of the MedMatch interface.
type client struct {
	mu       sync.Mutex
	config   *config
	registry *masterdata.Registry
	matcher  *match.Matcher
	audits   *audit.Store
	reviews  *review.Queue
	hooks    *hooks
	running  bool
}

// New creates a MedMatch instance with the given options.
func New(opts ...Option) (MedMatch, error) {
	c := &client{
		config: defaultConfig(),
		hooks:  newHooks(),
	}
	for _, opt := range opts {
		if err := opt(c.config); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	registry, err := masterdata.New(c.config.registryOptions()...)
	if err != nil {
		return nil, fmt.Errorf("loading master data: %w", err)
	}
	c.registry = registry

	matchOpts := []match.MatcherOption{match.WithThresholds(c.config.thresholds)}
	if c.config.searchIndex != nil {
		matchOpts = append(matchOpts, match.WithSearchIndex(c.config.searchIndex))
	}
	c.matcher = match.NewMatcher(registry, matchOpts...)

	c.audits = audit.NewStore(registry)
	c.audits.SetNotify(func(e audit.Entry) {
		if e.Action == audit.ActionCreate {
			c.hooks.entityCreated(e.After, e.Actor)
		}
	})

	c.reviews = review.NewQueue(c.audits)
	c.reviews.SetNotify(c.hooks.reviewQueued)

	return c, nil
}

// Registry returns the shared master-data registry.
func (c *client) Registry() *masterdata.Registry { return c.registry }

// Matcher returns the configured matcher.
func (c *client) Matcher() *match.Matcher { return c.matcher }

// Reviews returns the pending-review queue.
func (c *client) Reviews() *review.Queue { return c.reviews }

// Audit returns the append-only audit store.
func (c *client) Audit() *audit.Store { return c.audits }

// ProcessBatch runs one batch. Batches serialize: the registry must not
// change while matching, and approved entities merge only in between.
func (c *client) ProcessBatch(ctx context.Context, records []pipeline.StagingRecord) (*pipeline.Report, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("a batch is already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	orch := pipeline.NewOrchestrator(c.registry, c.matcher, c.reviews, c.audits,
		pipeline.WithWorkers(c.config.workers),
		pipeline.WithCompletenessThreshold(c.config.completeness),
		pipeline.WithForceCommit(c.config.forceCommit),
		pipeline.WithStateChange(c.hooks.batchStateChanged),
		pipeline.WithProgress(c.config.onProgress),
	)
	return orch.Run(ctx, records)
}

// ApplyApproved merges approval-created entities into the registry.
func (c *client) ApplyApproved() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("cannot merge approved entities mid-batch: %w", errors.ErrReadOnly)
	}
	return c.audits.Flush()
}

// OnEntityCreated registers a callback for master-entity creation.
func (c *client) OnEntityCreated(fn EntityCreatedHook) {
	c.hooks.OnEntityCreated(fn)
}

// OnReviewQueued registers a callback for new review items.
func (c *client) OnReviewQueued(fn ReviewQueuedHook) {
	c.hooks.OnReviewQueued(fn)
}

// OnBatchStateChange registers a callback for batch lifecycle moves.
func (c *client) OnBatchStateChange(fn BatchStateHook) {
	c.hooks.OnBatchStateChange(fn)
}
