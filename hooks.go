package medmatch

import (
	"sync"

	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/pipeline"
	"github.com/admitkit/medmatch/pkg/review"
)

// Hook function types for reconciliation events
type (
	// EntityCreatedHook is called when a master entity is created
	// through review approval.
	EntityCreatedHook func(entity masterdata.Entity, actor string)

	// ReviewQueuedHook is called when an item enters the review queue.
	ReviewQueuedHook func(item review.PendingReview)

	// BatchStateHook is called on every batch lifecycle transition.
	BatchStateHook func(batchID string, from, to pipeline.State)
)

// hooks manages event callbacks for reconciliation events.
type hooks struct {
	mu              sync.RWMutex
	onEntityCreated []EntityCreatedHook
	onReviewQueued  []ReviewQueuedHook
	onBatchState    []BatchStateHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnEntityCreated registers a callback for entity creation.
func (h *hooks) OnEntityCreated(fn EntityCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEntityCreated = append(h.onEntityCreated, fn)
}

// OnReviewQueued registers a callback for queued review items.
func (h *hooks) OnReviewQueued(fn ReviewQueuedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReviewQueued = append(h.onReviewQueued, fn)
}

// OnBatchStateChange registers a callback for batch transitions.
func (h *hooks) OnBatchStateChange(fn BatchStateHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBatchState = append(h.onBatchState, fn)
}

func (h *hooks) entityCreated(entity masterdata.Entity, actor string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onEntityCreated {
		fn(entity, actor)
	}
}

func (h *hooks) reviewQueued(item review.PendingReview) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onReviewQueued {
		fn(item)
	}
}

func (h *hooks) batchStateChanged(batchID string, from, to pipeline.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onBatchState {
		fn(batchID, from, to)
	}
}
