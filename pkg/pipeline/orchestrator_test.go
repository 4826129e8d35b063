package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitkit/medmatch/pkg/audit"
	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/match"
	"github.com/admitkit/medmatch/pkg/review"
)

type testPipeline struct {
	reg     *masterdata.Registry
	reviews *review.Queue
	audits  *audit.Store
}

func newTestPipeline(t *testing.T, opts ...Option) (*Orchestrator, *testPipeline) {
	t.Helper()
	reg := masterdata.NewTestRegistry(t)
	audits := audit.NewStore(reg)
	reviews := review.NewQueue(audits)
	m := match.NewMatcher(reg)
	o := NewOrchestrator(reg, m, reviews, audits, append([]Option{WithWorkers(2)}, opts...)...)
	return o, &testPipeline{reg: reg, reviews: reviews, audits: audits}
}

func goodRow(row, rank int) StagingRecord {
	return StagingRecord{
		Row:         row,
		CollegeName: "SMS MEDICAL COLLEGE",
		Address:     "JLN MARG JAIPUR",
		State:       "RAJASTHAN",
		Course:      "MBBS",
		Category:    "GENERAL",
		Quota:       "ALL INDIA QUOTA",
		Year:        2024,
		Round:       1,
		Rank:        rank,
	}
}

func TestRunCommitsCleanBatch(t *testing.T) {
	o, env := newTestPipeline(t)

	kota := StagingRecord{
		Row: 3, CollegeName: "GOVT MEDICAL COLLEGE, KOTA", Address: "RANGBARI ROAD",
		State: "RAJASTHAN", Course: "MBBS", Category: "GEN", Quota: "AIQ",
		Year: 2024, Round: 1, Rank: 777,
	}
	rep, err := o.Run(context.Background(), []StagingRecord{goodRow(1, 120), goodRow(2, 4521), kota})
	require.NoError(t, err)

	assert.Equal(t, StateCleared, rep.State)
	assert.NoError(t, rep.Err())
	assert.Equal(t, int64(3), rep.Imported)
	assert.Equal(t, int64(3), rep.Matched)
	assert.Zero(t, rep.Unmatched)
	assert.Zero(t, rep.PendingCount)
	assert.Equal(t, 1.0, rep.Completeness)
	require.Len(t, rep.Resolved, 3)

	byRow := map[int]ResolvedRecord{}
	for _, r := range rep.Resolved {
		byRow[r.Row] = r
	}
	assert.Equal(t, int64(1), byRow[1].CollegeID)
	assert.Equal(t, 120, byRow[1].OpeningRank)
	assert.Equal(t, 4521, byRow[1].ClosingRank)
	assert.Equal(t, 2, byRow[1].Seats)
	assert.Equal(t, int64(2), byRow[3].CollegeID)
	assert.Equal(t, int64(1), byRow[3].StateID)

	// Every resolved dimension leaves an IMPORT_MATCH trail.
	history := env.audits.History(masterdata.EntityTypeCollege, 1)
	require.NotEmpty(t, history)
	assert.Equal(t, audit.ActionImportMatch, history[0].Action)
	assert.Equal(t, rep.BatchID, history[0].Match.BatchID)
}

func TestRunRejectsInvalidRowsAndContinues(t *testing.T) {
	o, _ := newTestPipeline(t)

	missingCourse := goodRow(2, 500)
	missingCourse.Course = ""
	badYear := goodRow(3, 600)
	badYear.Year = 1850
	shortName := goodRow(4, 700)
	shortName.CollegeName = "AB"

	rep, err := o.Run(context.Background(), []StagingRecord{goodRow(1, 100), missingCourse, badYear, shortName})
	require.NoError(t, err)

	assert.Equal(t, StateCleared, rep.State)
	assert.Equal(t, int64(1), rep.Imported)
	assert.Equal(t, int64(3), rep.ErrorCount)
	assert.Equal(t, 1, rep.ErrorsByKind["MissingField"])
	assert.Equal(t, 2, rep.ErrorsByKind["InvalidFormat"])
	require.Len(t, rep.Samples["MissingField"], 1)
	assert.Equal(t, 2, rep.Samples["MissingField"][0].Row)
}

func TestRunHaltsBelowCompleteness(t *testing.T) {
	var states []State
	o, env := newTestPipeline(t, WithStateChange(func(_ string, _, to State) {
		states = append(states, to)
	}))

	unknown := goodRow(2, 999)
	unknown.CollegeName = "ZEPHYR INSTITUTE OF NEUROSCIENCES"
	unknown.Address = "OUTER RING ROAD BIKANER"

	rep, err := o.Run(context.Background(), []StagingRecord{goodRow(1, 100), unknown})
	require.NoError(t, err)

	assert.Equal(t, StateHaltForReview, rep.State)
	assert.ErrorIs(t, rep.Err(), errors.ErrBatchHalted)
	assert.Equal(t, 0.5, rep.Completeness)
	assert.Equal(t, int64(1), rep.Matched)
	assert.Equal(t, int64(1), rep.Unmatched)
	assert.Empty(t, rep.Resolved)
	assert.Contains(t, states, StateHaltForReview)
	assert.NotContains(t, states, StateCommit)

	pending := env.reviews.List(review.Filter{Kind: review.KindNewEntity, Status: review.StatusPending})
	require.Len(t, pending, 1)
	assert.Equal(t, "ZEPHYR INSTITUTE OF NEUROSCIENCES", pending[0].RawInput)
	require.NotNil(t, pending[0].Proposed)
	assert.Equal(t, masterdata.EntityTypeCollege, pending[0].Proposed.EntityType())
}

func TestRunForceCommit(t *testing.T) {
	o, _ := newTestPipeline(t, WithForceCommit(true))

	unknown := goodRow(2, 999)
	unknown.CollegeName = "ZEPHYR INSTITUTE OF NEUROSCIENCES"

	rep, err := o.Run(context.Background(), []StagingRecord{goodRow(1, 100), unknown})
	require.NoError(t, err)

	assert.Equal(t, StateCleared, rep.State)
	require.Len(t, rep.Resolved, 1)
	assert.Equal(t, 1, rep.Resolved[0].Row)
}

func TestRunCompletenessGateBoundary(t *testing.T) {
	rows := make([]StagingRecord, 0, 20)
	for i := 1; i <= 19; i++ {
		rows = append(rows, goodRow(i, i*100))
	}
	unknown := goodRow(20, 50)
	unknown.CollegeName = "ZEPHYR INSTITUTE OF NEUROSCIENCES"
	rows = append(rows, unknown)

	// 19/20 resolved equals the default 0.95 gate: commit.
	o, _ := newTestPipeline(t)
	rep, err := o.Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, StateCleared, rep.State)

	// Raise the bar and the same batch halts.
	o2, _ := newTestPipeline(t, WithCompletenessThreshold(0.99))
	rep2, err := o2.Run(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, StateHaltForReview, rep2.State)
	assert.InDelta(t, 0.95, rep2.Completeness, 1e-9)
}

func TestRunUnresolvedStateSkipsCollegeScan(t *testing.T) {
	o, env := newTestPipeline(t)

	row := goodRow(1, 100)
	row.State = "NARNIA"

	rep, err := o.Run(context.Background(), []StagingRecord{row})
	require.NoError(t, err)

	assert.Equal(t, StateHaltForReview, rep.State)
	assert.Equal(t, int64(0), rep.Matched)

	// The state gets its own review item; the college is deliberately
	// not matched against an unbounded candidate set.
	stateReviews := env.reviews.List(review.Filter{EntityType: masterdata.EntityTypeState})
	assert.Len(t, stateReviews, 1)
	collegeReviews := env.reviews.List(review.Filter{EntityType: masterdata.EntityTypeCollege})
	assert.Empty(t, collegeReviews)
	assert.GreaterOrEqual(t, rep.ErrorsByKind["NoMatch"], 1)
}

func TestRunAmbiguousCollegeRoutesToReview(t *testing.T) {
	o, env := newTestPipeline(t)

	// A second same-name campus in the same state makes the bare name
	// genuinely ambiguous.
	_, err := env.reg.Add(&masterdata.College{
		Meta:      masterdata.Meta{Name: "GOVERNMENT MEDICAL COLLEGE"},
		StateID:   1,
		Location:  "BARMER",
		Address:   "NH 68 BARMER",
		CourseIDs: []int64{1},
	})
	require.NoError(t, err)

	// Multi-campus name with no address: blocked from auto-commit.
	row := goodRow(1, 100)
	row.CollegeName = "GOVERNMENT MEDICAL COLLEGE"
	row.Address = ""

	rep, runErr := o.Run(context.Background(), []StagingRecord{row})
	require.NoError(t, runErr)

	assert.Equal(t, StateHaltForReview, rep.State)
	items := env.reviews.List(review.Filter{Kind: review.KindAmbiguous})
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].Candidates)
	assert.GreaterOrEqual(t, rep.ErrorsByKind["AmbiguousMatch"], 1)
}

func TestRunNamesakeInOtherStateIsNewEntity(t *testing.T) {
	o, env := newTestPipeline(t)

	// KARNATAKA has no colleges; the same name exists in RAJASTHAN and
	// MAHARASHTRA. Those are distinct institutions, not duplicates.
	row := goodRow(1, 100)
	row.CollegeName = "GOVERNMENT MEDICAL COLLEGE"
	row.Address = "HUBLI ROAD"
	row.State = "KARNATAKA"

	rep, err := o.Run(context.Background(), []StagingRecord{row})
	require.NoError(t, err)

	assert.Equal(t, StateHaltForReview, rep.State)
	assert.Empty(t, env.reviews.List(review.Filter{Kind: review.KindDuplicate}))
	items := env.reviews.List(review.Filter{Kind: review.KindNewEntity, EntityType: masterdata.EntityTypeCollege})
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Proposed)
	assert.Equal(t, int64(3), items[0].Proposed.(*masterdata.College).StateID)
}

func TestRunCanceledContextFailsBatch(t *testing.T) {
	o, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := o.Run(ctx, []StagingRecord{goodRow(1, 100)})
	require.Error(t, err)
	assert.Equal(t, StateFailed, rep.State)
	assert.ErrorIs(t, rep.Err(), errors.ErrBatchFailed)
}

func TestRunEmptyBatch(t *testing.T) {
	o, _ := newTestPipeline(t)

	rep, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCleared, rep.State)
	assert.Zero(t, rep.Total)
	assert.Equal(t, 1.0, rep.Completeness)
}

func TestRunProgressAndStats(t *testing.T) {
	var progress []Progress
	o, _ := newTestPipeline(t, WithProgress(func(p Progress) {
		progress = append(progress, p)
	}))

	rep, err := o.Run(context.Background(), []StagingRecord{goodRow(1, 100), goodRow(2, 200)})
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, rep.BatchID, last.BatchID)
	assert.Equal(t, int64(2), last.Imported)

	assert.NotEmpty(t, rep.MethodCounts)
	assert.NotEmpty(t, rep.BandCounts)
	assert.GreaterOrEqual(t, rep.MethodCounts[string(match.MethodExact)], 1)
}
