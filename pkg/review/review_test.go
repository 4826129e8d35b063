package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitkit/medmatch/pkg/audit"
	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/masterdata"
)

func newTestQueue(t *testing.T) (*Queue, *audit.Store, *masterdata.Registry) {
	t.Helper()
	reg := masterdata.NewTestRegistry(t)
	store := audit.NewStore(reg)
	return NewQueue(store), store, reg
}

func TestEnqueueValidates(t *testing.T) {
	q, _, _ := newTestQueue(t)

	_, err := q.Enqueue(PendingReview{Kind: "WHENEVER", EntityType: masterdata.EntityTypeCollege, RawInput: "X"})
	assert.Error(t, err)

	_, err = q.Enqueue(PendingReview{Kind: KindAmbiguous, EntityType: "planet", RawInput: "X"})
	assert.Error(t, err)

	_, err = q.Enqueue(PendingReview{Kind: KindAmbiguous, EntityType: masterdata.EntityTypeCollege})
	assert.Error(t, err)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindAmbiguous,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "GOVERNMENT MEDICAL COLLEGE",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListFiltering(t *testing.T) {
	q, _, _ := newTestQueue(t)

	mustEnqueue := func(pr PendingReview) string {
		t.Helper()
		id, err := q.Enqueue(pr)
		require.NoError(t, err)
		return id
	}

	ambiguous := mustEnqueue(PendingReview{
		Kind: KindAmbiguous, EntityType: masterdata.EntityTypeCollege,
		RawInput: "GOVERNMENT MEDICAL COLLEGE", BatchID: "b1",
		Candidates: []Candidate{{EntityID: 2, Confidence: 0.95}, {EntityID: 3, Confidence: 0.95}},
	})
	mustEnqueue(PendingReview{
		Kind: KindNewEntity, EntityType: masterdata.EntityTypeCollege,
		RawInput: "BRAND NEW COLLEGE", BatchID: "b1",
		Proposed: &masterdata.College{Meta: masterdata.Meta{Name: "BRAND NEW COLLEGE"}, StateID: 1},
	})
	mustEnqueue(PendingReview{
		Kind: KindLowConfidence, EntityType: masterdata.EntityTypeState,
		RawInput: "RAJYASTHAN", BatchID: "b2",
		Candidates: []Candidate{{EntityID: 1, Confidence: 0.7}},
	})

	assert.Len(t, q.List(Filter{}), 3)
	assert.Len(t, q.List(Filter{BatchID: "b1"}), 2)
	assert.Len(t, q.List(Filter{EntityType: masterdata.EntityTypeState}), 1)
	assert.Len(t, q.List(Filter{Kind: KindAmbiguous}), 1)

	require.NoError(t, q.Reject(ambiguous, "reviewer", "cannot tell the campuses apart"))
	assert.Len(t, q.List(Filter{Status: StatusPending}), 2)
	assert.Len(t, q.List(Filter{Status: StatusRejected}), 1)
	assert.Equal(t, 2, q.PendingCount())
}

func TestApproveNewEntityCreatesViaAudit(t *testing.T) {
	q, store, reg := newTestQueue(t)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindNewEntity,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "Coastal Medical College, Mangalore",
		BatchID:    "b1",
		Proposed: &masterdata.College{
			Meta:    masterdata.Meta{Name: "COASTAL MEDICAL COLLEGE"},
			StateID: 3,
		},
	})
	require.NoError(t, err)

	require.NoError(t, q.Approve(id, "reviewer@example.com", "verified against seat matrix", 0))

	got, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotZero(t, got.ResolvedID)

	history := store.History(masterdata.EntityTypeCollege, got.ResolvedID)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ActionCreate, history[0].Action)
	assert.Equal(t, 1, history[0].Version)

	// Entity reaches the registry only on flush.
	_, err = reg.College(got.ResolvedID)
	assert.Error(t, err)
	require.NoError(t, store.Flush())
	_, err = reg.College(got.ResolvedID)
	assert.NoError(t, err)
}

func TestApproveReentrantCreationHook(t *testing.T) {
	q, store, _ := newTestQueue(t)

	// A creation listener that reads the queue back must not block on
	// the approval still being in flight.
	var seen []PendingReview
	store.SetNotify(func(e audit.Entry) {
		seen = q.List(Filter{Kind: KindNewEntity})
	})

	id, err := q.Enqueue(PendingReview{
		Kind:       KindNewEntity,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "Coastal Medical College, Mangalore",
		Proposed: &masterdata.College{
			Meta:    masterdata.Meta{Name: "COASTAL MEDICAL COLLEGE"},
			StateID: 3,
		},
	})
	require.NoError(t, err)

	require.NoError(t, q.Approve(id, "reviewer@example.com", "", 0))
	require.Len(t, seen, 1)
	assert.Equal(t, StatusApproved, seen[0].Status)
}

func TestApproveAmbiguousLinksExisting(t *testing.T) {
	q, store, _ := newTestQueue(t)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindAmbiguous,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "GOVERNMENT MEDICAL COLLEGE",
		BatchID:    "b1",
		Candidates: []Candidate{{EntityID: 2, Confidence: 0.95}, {EntityID: 3, Confidence: 0.95}},
	})
	require.NoError(t, err)

	require.NoError(t, q.Approve(id, "reviewer@example.com", "address confirms Aurangabad", 3))

	got, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ResolvedID)

	history := store.History(masterdata.EntityTypeCollege, 3)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ActionImportMatch, history[0].Action)
	assert.Equal(t, "MANUAL", history[0].Match.Method)

	// Linking creates nothing.
	assert.Zero(t, store.PendingCount())
}

func TestApproveDefaultsToTopCandidate(t *testing.T) {
	q, _, _ := newTestQueue(t)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindLowConfidence,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "GOVT MED COLL KOTA",
		Candidates: []Candidate{{EntityID: 2, Confidence: 0.8}, {EntityID: 3, Confidence: 0.72}},
	})
	require.NoError(t, err)

	require.NoError(t, q.Approve(id, "reviewer", "", 0))
	got, _ := q.Get(id)
	assert.Equal(t, int64(2), got.ResolvedID)
}

func TestApproveRejectsOutsideCandidates(t *testing.T) {
	q, _, _ := newTestQueue(t)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindDuplicate,
		EntityType: masterdata.EntityTypeCollege,
		RawInput:   "SAWAI MAN SINGH MEDICAL COLLEGE JAIPUR",
		Candidates: []Candidate{{EntityID: 1, Confidence: 0.97}},
	})
	require.NoError(t, err)

	assert.Error(t, q.Approve(id, "reviewer", "", 42))

	got, _ := q.Get(id)
	assert.Equal(t, StatusPending, got.Status)
}

func TestResolutionIsTerminal(t *testing.T) {
	q, _, _ := newTestQueue(t)

	id, err := q.Enqueue(PendingReview{
		Kind:       KindLowConfidence,
		EntityType: masterdata.EntityTypeState,
		RawInput:   "RAJYASTHAN",
		Candidates: []Candidate{{EntityID: 1, Confidence: 0.7}},
	})
	require.NoError(t, err)

	require.NoError(t, q.Reject(id, "reviewer", "garbage row"))

	err = q.Approve(id, "reviewer", "", 0)
	assert.ErrorIs(t, err, errors.ErrReviewResolved)
	err = q.Reject(id, "reviewer", "")
	assert.ErrorIs(t, err, errors.ErrReviewResolved)

	got, _ := q.Get(id)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestGetUnknown(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Get("nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
