// Package review holds the human-adjudication queue. Items are created
// when automatic resolution is unsafe and resolved only by an explicit
// reviewer action; approval is the single path that may create a master
// entity in an ambiguous case.
package review

import (
	"sync"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/admitkit/medmatch/pkg/audit"
	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/logging"
	"github.com/admitkit/medmatch/pkg/masterdata"
)

// Kind classifies why an item needs human eyes.
type Kind string

const (
	KindNewEntity     Kind = "NEW_ENTITY"
	KindLowConfidence Kind = "LOW_CONFIDENCE"
	KindDuplicate     Kind = "DUPLICATE"
	KindAmbiguous     Kind = "AMBIGUOUS"
)

// Status is the item lifecycle. APPROVED and REJECTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Candidate is one ranked existing entity a reviewer can link to.
type Candidate struct {
	EntityID   int64   `json:"entityId"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// PendingReview is one adjudication task.
type PendingReview struct {
	ID         string                `json:"id"`
	Kind       Kind                  `json:"kind"`
	EntityType masterdata.EntityType `json:"entityType"`
	RawInput   string                `json:"rawInput"`
	Candidates []Candidate           `json:"candidates,omitempty"`
	Status     Status                `json:"status"`
	BatchID    string                `json:"batchId,omitempty"`

	// Proposed is the entity a NEW_ENTITY approval will create. Nil for
	// linking kinds.
	Proposed masterdata.Entity `json:"proposed,omitempty"`

	// ResolvedID is set on approval: the created entity for NEW_ENTITY,
	// the chosen existing entity otherwise.
	ResolvedID int64 `json:"resolvedId,omitempty"`

	ReviewedBy  string   `json:"reviewedBy,omitempty"`
	ReviewNotes string   `json:"reviewNotes,omitempty"`
	ReviewedAt  utc.Time `json:"reviewedAt,omitzero"`
	CreatedAt   utc.Time `json:"createdAt"`
}

// Filter selects queue items; zero fields match everything.
type Filter struct {
	Kind       Kind
	Status     Status
	EntityType masterdata.EntityType
	BatchID    string
}

func (f Filter) matches(pr *PendingReview) bool {
	if f.Kind != "" && pr.Kind != f.Kind {
		return false
	}
	if f.Status != "" && pr.Status != f.Status {
		return false
	}
	if f.EntityType != "" && pr.EntityType != f.EntityType {
		return false
	}
	if f.BatchID != "" && pr.BatchID != f.BatchID {
		return false
	}
	return true
}

// Queue is the review queue. A single mutex serializes every write;
// matcher workers enqueue through it and reviewers resolve through it.
type Queue struct {
	mu     sync.Mutex
	audits *audit.Store
	items  map[string]*PendingReview
	order  []string
	notify func(PendingReview)
}

// SetNotify registers a callback fired after each enqueue. It runs
// outside the queue lock and may call back into the queue.
func (q *Queue) SetNotify(fn func(PendingReview)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = fn
}

// NewQueue creates a queue whose approvals write through the audit store.
func NewQueue(audits *audit.Store) *Queue {
	return &Queue{
		audits: audits,
		items:  make(map[string]*PendingReview),
	}
}

// Enqueue adds a pending item and returns its id.
func (q *Queue) Enqueue(pr PendingReview) (string, error) {
	switch pr.Kind {
	case KindNewEntity, KindLowConfidence, KindDuplicate, KindAmbiguous:
	default:
		return "", errors.NewValidationError("kind", string(pr.Kind), "unknown review kind")
	}
	if !pr.EntityType.Valid() {
		return "", errors.NewValidationError("entityType", pr.EntityType.String(), "unknown entity type")
	}
	if pr.RawInput == "" {
		return "", errors.NewValidationError("rawInput", "", "must not be empty")
	}

	q.mu.Lock()

	pr.ID = uuid.NewString()
	pr.Status = StatusPending
	pr.CreatedAt = utc.Now()

	item := pr
	q.items[item.ID] = &item
	q.order = append(q.order, item.ID)
	fn := q.notify
	q.mu.Unlock()

	logging.Debug().
		Str("review_id", item.ID).
		Str("kind", string(item.Kind)).
		Str("entity_type", item.EntityType.String()).
		Msg("Review queued")
	if fn != nil {
		fn(item)
	}
	return item.ID, nil
}

// List returns matching items in enqueue order.
func (q *Queue) List(f Filter) []PendingReview {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []PendingReview
	for _, id := range q.order {
		if pr := q.items[id]; f.matches(pr) {
			out = append(out, *pr)
		}
	}
	return out
}

// Get returns a copy of one item.
func (q *Queue) Get(id string) (PendingReview, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pr, ok := q.items[id]
	if !ok {
		return PendingReview{}, errors.NewNotFoundError("review", id)
	}
	return *pr, nil
}

// Approve resolves an item. For NEW_ENTITY the proposed entity is created
// through the audit store (version 1). For the linking kinds chosenID
// selects the existing entity; zero means the top-ranked candidate. The
// resolution is final.
func (q *Queue) Approve(id, actor, notes string, chosenID int64) error {
	q.mu.Lock()

	pr, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return errors.NewNotFoundError("review", id)
	}
	if pr.Status != StatusPending {
		q.mu.Unlock()
		return errors.WrapResource("approve", "review", id, errors.ErrReviewResolved)
	}

	var resolved int64
	if pr.Kind == KindNewEntity {
		if pr.Proposed == nil {
			q.mu.Unlock()
			return errors.NewValidationError("proposed", "", "new-entity review carries no entity")
		}
	} else {
		rid, err := q.chooseLocked(pr, chosenID)
		if err != nil {
			q.mu.Unlock()
			return err
		}
		resolved = rid
	}

	// Claim the item before the audit calls so a concurrent Approve
	// cannot double-resolve, then release the lock: the audit store
	// fires creation hooks, and a hook may call back into the queue.
	pr.Status = StatusApproved
	pr.ReviewedBy = actor
	pr.ReviewNotes = notes
	pr.ReviewedAt = utc.Now()
	kind := pr.Kind
	proposed := pr.Proposed
	entityType := pr.EntityType
	rawInput := pr.RawInput
	batchID := pr.BatchID
	q.mu.Unlock()

	if kind == KindNewEntity {
		entityID, err := q.audits.Create(proposed, actor)
		if err != nil {
			q.mu.Lock()
			pr.Status = StatusPending
			pr.ReviewedBy = ""
			pr.ReviewNotes = ""
			pr.ReviewedAt = utc.Time{}
			q.mu.Unlock()
			return err
		}
		resolved = entityID
	} else {
		q.audits.RecordMatch(entityType, resolved, audit.MatchRecord{
			RawInput:   rawInput,
			Confidence: 1.0,
			Method:     "MANUAL",
			BatchID:    batchID,
		})
	}

	q.mu.Lock()
	pr.ResolvedID = resolved
	q.mu.Unlock()

	logging.Info().
		Str("review_id", id).
		Str("actor", actor).
		Int64("entity_id", resolved).
		Msg("Review approved")
	return nil
}

// Reject terminates an item with no master-data effect.
func (q *Queue) Reject(id, actor, notes string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pr, ok := q.items[id]
	if !ok {
		return errors.NewNotFoundError("review", id)
	}
	if pr.Status != StatusPending {
		return errors.WrapResource("reject", "review", id, errors.ErrReviewResolved)
	}

	pr.Status = StatusRejected
	pr.ReviewedBy = actor
	pr.ReviewNotes = notes
	pr.ReviewedAt = utc.Now()
	return nil
}

// PendingCount reports how many items still await a decision.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, pr := range q.items {
		if pr.Status == StatusPending {
			n++
		}
	}
	return n
}

func (q *Queue) chooseLocked(pr *PendingReview, chosenID int64) (int64, error) {
	if chosenID == 0 {
		if len(pr.Candidates) == 0 {
			return 0, errors.NewValidationError("chosenID", "0", "no candidates to link to")
		}
		return pr.Candidates[0].EntityID, nil
	}
	for _, c := range pr.Candidates {
		if c.EntityID == chosenID {
			return chosenID, nil
		}
	}
	return 0, errors.NewValidationError("chosenID", "", "not among the ranked candidates")
}
