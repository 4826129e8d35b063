// Package pipeline runs import batches through the staged lifecycle:
// IMPORTING -> PROCESSING -> MATCHING -> VALIDATING -> COMMIT or
// HALT_FOR_REVIEW -> CLEARED. Row-level failures never abort a batch;
// only infrastructure failures and cancellation do.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/admitkit/medmatch/pkg/audit"
	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/logging"
	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/match"
	"github.com/admitkit/medmatch/pkg/review"
)

// DefaultCompletenessThreshold gates VALIDATING: below this fraction of
// fully resolved rows the batch halts for review instead of committing.
const DefaultCompletenessThreshold = 0.95

// Orchestrator drives batches. The registry is read-only for its whole
// run; review and audit writes serialize behind their own locks.
type Orchestrator struct {
	registry *masterdata.Registry
	matcher  *match.Matcher
	detector *match.Detector
	reviews  *review.Queue
	audits   *audit.Store

	workers      int
	completeness float64
	forceCommit  bool
	onChange     func(batchID string, from, to State)
	onProgress   func(Progress)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds the matching worker pool.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCompletenessThreshold overrides the commit gate fraction.
func WithCompletenessThreshold(f float64) Option {
	return func(o *Orchestrator) {
		if f >= 0 && f <= 1 {
			o.completeness = f
		}
	}
}

// WithForceCommit lets an operator push a below-threshold batch through
// COMMIT anyway.
func WithForceCommit(force bool) Option {
	return func(o *Orchestrator) {
		o.forceCommit = force
	}
}

// WithStateChange registers a batch lifecycle hook.
func WithStateChange(fn func(batchID string, from, to State)) Option {
	return func(o *Orchestrator) {
		o.onChange = fn
	}
}

// WithProgress registers a rate-limited progress hook.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) {
		o.onProgress = fn
	}
}

// NewOrchestrator wires a pipeline over the shared components.
func NewOrchestrator(registry *masterdata.Registry, matcher *match.Matcher, reviews *review.Queue, audits *audit.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     registry,
		matcher:      matcher,
		detector:     match.NewDetector(registry),
		reviews:      reviews,
		audits:       audits,
		workers:      runtime.NumCPU(),
		completeness: DefaultCompletenessThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// dimResult is one settled dimension value: resolved or routed to review.
type dimResult struct {
	id   int64
	conf float64
	ok   bool
}

// matchStats counts resolution events per method and band.
type matchStats struct {
	mu      sync.Mutex
	methods map[string]int
	bands   map[string]int
}

func newMatchStats() *matchStats {
	return &matchStats{methods: make(map[string]int), bands: make(map[string]int)}
}

func (s *matchStats) record(res match.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[string(res.Method)]++
	s.bands[string(res.Band)]++
}

// Run executes one batch end to end and returns its report. The returned
// error is non-nil only for batch-fatal conditions (cancellation); the
// report carries everything else.
func (o *Orchestrator) Run(ctx context.Context, records []StagingRecord) (*Report, error) {
	batch := newBatch(o.onChange, o.onProgress)
	ctx = logging.WithBatch(ctx, batch.ID)
	report := newErrorReport()
	stats := newMatchStats()

	logging.Ctx(ctx).Info().Int("rows", len(records)).Msg("Batch started")

	staged := o.importStage(records, batch, report)
	total := len(staged)

	batch.transition(StateProcessing)
	groups := aggregate(o.registry.Normalizer(), staged)

	batch.transition(StateMatching)
	dims := o.resolveDimensions(ctx, batch, groups, report, stats)
	tasks := o.buildCollegeTasks(groups, dims)
	if err := o.matchColleges(ctx, batch, tasks, report, stats, total); err != nil {
		batch.transition(StateFailed)
		return o.finalReport(batch, report, stats, total, 0, nil), err
	}

	batch.transition(StateValidating)
	resolved, resolvedRows := o.resolveRows(groups, tasks, dims)
	batch.matched.Store(int64(resolvedRows))
	batch.unmatched.Store(int64(total - resolvedRows))

	completeness := 1.0
	if total > 0 {
		completeness = float64(resolvedRows) / float64(total)
	}

	if completeness < o.completeness && !o.forceCommit {
		logging.Ctx(ctx).Warn().
			Float64("completeness", completeness).
			Float64("threshold", o.completeness).
			Int64("pending_review", batch.pendingReview.Load()).
			Msg("Batch halted for review")
		batch.transition(StateHaltForReview)
		rep := o.finalReport(batch, report, stats, total, completeness, nil)
		return rep, nil
	}

	batch.transition(StateCommit)
	rep := o.finalReport(batch, report, stats, total, completeness, resolved)

	// CLEARED wipes the staging working set, never the audit stream.
	batch.transition(StateCleared)
	rep.State = StateCleared
	batch.notifyProgress(total, true)

	logging.Ctx(ctx).Info().
		Int64("matched", rep.Matched).
		Int64("unmatched", rep.Unmatched).
		Int64("pending_review", rep.PendingCount).
		Float64("completeness", completeness).
		Msg("Batch committed")
	return rep, nil
}

// importStage validates rows, rejecting offenders and keeping the rest.
func (o *Orchestrator) importStage(records []StagingRecord, batch *Batch, report *errorReport) []*StagingRecord {
	staged := make([]*StagingRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if err := validateRecord(rec); err != nil {
			report.add(rec.Row, dimensionOf(err), err)
			batch.rowErrors.Add(1)
			continue
		}
		staged = append(staged, rec)
		batch.imported.Add(1)
	}
	return staged
}

func dimensionOf(err error) string {
	var re *errors.RowError
	if errors.As(err, &re) {
		return re.Dimension
	}
	return ""
}

// dimIndex holds settled outcomes for the four parent dimensions keyed
// by normalized value. Built serially; distinct values are few.
type dimIndex struct {
	states     map[string]dimResult
	courses    map[string]dimResult
	categories map[string]dimResult
	quotas     map[string]dimResult
}

func (o *Orchestrator) resolveDimensions(ctx context.Context, batch *Batch, groups []*Group, report *errorReport, stats *matchStats) *dimIndex {
	dims := &dimIndex{
		states:     make(map[string]dimResult),
		courses:    make(map[string]dimResult),
		categories: make(map[string]dimResult),
		quotas:     make(map[string]dimResult),
	}

	for _, g := range groups {
		row := g.Rows[0].Row
		o.settleDim(ctx, batch, report, stats, dims.states, g.Key.State, masterdata.EntityTypeState, row)
		o.settleDim(ctx, batch, report, stats, dims.courses, g.Key.Course, masterdata.EntityTypeCourse, row)
		o.settleDim(ctx, batch, report, stats, dims.categories, g.Key.Category, masterdata.EntityTypeCategory, row)
		o.settleDim(ctx, batch, report, stats, dims.quotas, g.Key.Quota, masterdata.EntityTypeQuota, row)
	}
	return dims
}

// settleDim resolves one distinct dimension value, once. Normalization is
// idempotent, so the already-normalized group key doubles as the query.
func (o *Orchestrator) settleDim(ctx context.Context, batch *Batch, report *errorReport, stats *matchStats, cache map[string]dimResult, value string, t masterdata.EntityType, sampleRow int) {
	if value == "" {
		return
	}
	if _, seen := cache[value]; seen {
		return
	}

	res := o.matcher.Match(ctx, match.Query{Text: value}, nil, t)
	stats.record(res)
	cache[value] = o.settle(batch, report, sampleRow, value, "", t, res, 0)
}

// collegeTask is one distinct (college, address, state, course) unit of
// matching work. Groups that share the tuple share the outcome.
type collegeTask struct {
	name      string
	address   string
	stateID   int64
	courseID  int64
	stateOK   bool
	sampleRow int

	out dimResult
}

func (o *Orchestrator) buildCollegeTasks(groups []*Group, dims *dimIndex) map[string]*collegeTask {
	tasks := make(map[string]*collegeTask)
	for _, g := range groups {
		key := g.Key.College + "|" + g.Key.Address + "|" + g.Key.State + "|" + g.Key.Course
		if _, ok := tasks[key]; ok {
			continue
		}
		state := dims.states[g.Key.State]
		course := dims.courses[g.Key.Course]
		tasks[key] = &collegeTask{
			name:      g.Key.College,
			address:   g.Key.Address,
			stateID:   state.id,
			courseID:  course.id,
			stateOK:   state.ok,
			sampleRow: g.Rows[0].Row,
		}
	}
	return tasks
}

// matchColleges runs the bounded worker pool over college tasks. Workers
// write disjoint task slots; review and audit calls serialize internally.
func (o *Orchestrator) matchColleges(ctx context.Context, batch *Batch, tasks map[string]*collegeTask, report *errorReport, stats *matchStats, total int) error {
	jobs := make(chan *collegeTask)
	var wg sync.WaitGroup

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				o.matchCollege(ctx, batch, task, report, stats)
				batch.notifyProgress(total, false)
			}
		}()
	}

	var cancelErr error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			cancelErr = errors.WrapResource("match", "batch", batch.ID, errors.ErrCanceled)
			break
		}
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	if cancelErr == nil && ctx.Err() != nil {
		cancelErr = errors.WrapResource("match", "batch", batch.ID, errors.ErrCanceled)
	}
	return cancelErr
}

func (o *Orchestrator) matchCollege(ctx context.Context, batch *Batch, task *collegeTask, report *errorReport, stats *matchStats) {
	// An unresolved state would leave the candidate set unbounded, so the
	// college is not matched at all; its own review item already exists.
	if !task.stateOK {
		report.add(task.sampleRow, masterdata.EntityTypeCollege.String(), errors.ErrNoMatch)
		return
	}

	candidates := match.Narrow(o.registry, match.FilterContext{
		StateID:  task.stateID,
		CourseID: task.courseID,
		Locality: task.address,
	})
	res := o.matcher.Match(ctx, match.Query{
		Text:    task.name,
		Address: task.address,
		StateID: task.stateID,
	}, candidates, masterdata.EntityTypeCollege)
	stats.record(res)

	task.out = o.settle(batch, report, task.sampleRow, task.name, task.address, masterdata.EntityTypeCollege, res, task.stateID)
}

// settle routes one match result: auto-accept at or above the medium
// band, everything else to the review queue under the matching taxonomy
// kind. Only resolved values reach the audit stream.
func (o *Orchestrator) settle(batch *Batch, report *errorReport, sampleRow int, raw, address string, t masterdata.EntityType, res match.Result, stateID int64) dimResult {
	batchID := batch.ID

	switch {
	case res.Ambiguous:
		o.enqueue(batch, review.PendingReview{
			Kind:       review.KindAmbiguous,
			EntityType: t,
			RawInput:   raw,
			BatchID:    batchID,
			Candidates: toCandidates(res.Alternatives),
		})
		report.add(sampleRow, t.String(), errors.ErrAmbiguousMatch)

	case res.Matched() && (res.Band == match.BandHigh || res.Band == match.BandMedium):
		o.audits.RecordMatch(t, res.MatchedID, audit.MatchRecord{
			RawInput:   raw,
			Confidence: res.Confidence,
			Method:     string(res.Method),
			BatchID:    batchID,
		})
		return dimResult{id: res.MatchedID, conf: res.Confidence, ok: true}

	case res.MatchedID != 0:
		cands := append([]match.Candidate{{ID: res.MatchedID, Confidence: res.Confidence}}, res.Alternatives...)
		o.enqueue(batch, review.PendingReview{
			Kind:       review.KindLowConfidence,
			EntityType: t,
			RawInput:   raw,
			BatchID:    batchID,
			Candidates: toCandidates(cands),
		})
		report.add(sampleRow, t.String(), errors.ErrLowConfidence)

	default:
		existing := o.registry.All(t)
		if t == masterdata.EntityTypeCollege {
			// Duplicates only make sense within the same state;
			// namesakes elsewhere are distinct institutions.
			existing = o.registry.CandidatesByState(stateID)
		}
		if dupes := o.detector.CheckDuplicate(raw, t, existing); len(dupes) > 0 {
			o.enqueue(batch, review.PendingReview{
				Kind:       review.KindDuplicate,
				EntityType: t,
				RawInput:   raw,
				BatchID:    batchID,
				Candidates: similarityCandidates(dupes),
			})
			report.add(sampleRow, t.String(), errors.ErrDuplicateDetected)
			break
		}
		o.enqueue(batch, review.PendingReview{
			Kind:       review.KindNewEntity,
			EntityType: t,
			RawInput:   raw,
			BatchID:    batchID,
			Candidates: toCandidates(res.Alternatives),
			Proposed:   proposedEntity(t, raw, address, stateID),
		})
		report.add(sampleRow, t.String(), errors.ErrNoMatch)
	}
	return dimResult{}
}

func (o *Orchestrator) enqueue(batch *Batch, pr review.PendingReview) {
	if _, err := o.reviews.Enqueue(pr); err != nil {
		logging.Error().Err(err).Str("raw_input", pr.RawInput).Msg("Failed to queue review")
		return
	}
	batch.pendingReview.Add(1)
}

func toCandidates(cands []match.Candidate) []review.Candidate {
	out := make([]review.Candidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, review.Candidate{EntityID: c.ID, Name: c.Name, Confidence: c.Confidence})
	}
	return out
}

func similarityCandidates(sims []match.Similarity) []review.Candidate {
	out := make([]review.Candidate, 0, len(sims))
	for _, s := range sims {
		out = append(out, review.Candidate{EntityID: s.ID, Name: s.Name, Confidence: s.Score})
	}
	return out
}

// proposedEntity builds the entity a NEW_ENTITY approval would create.
func proposedEntity(t masterdata.EntityType, raw, address string, stateID int64) masterdata.Entity {
	switch t {
	case masterdata.EntityTypeState:
		return &masterdata.State{Meta: masterdata.Meta{Name: raw}}
	case masterdata.EntityTypeCollege:
		return &masterdata.College{Meta: masterdata.Meta{Name: raw}, StateID: stateID, Address: address}
	case masterdata.EntityTypeCourse:
		return &masterdata.Course{Meta: masterdata.Meta{Name: raw}}
	case masterdata.EntityTypeCategory:
		return &masterdata.Category{Meta: masterdata.Meta{Name: raw}}
	case masterdata.EntityTypeQuota:
		return &masterdata.Quota{Meta: masterdata.Meta{Name: raw}}
	}
	return nil
}

// resolveRows walks the groups and emits one resolved record per row of
// every fully resolved group, carrying the group's rank window.
func (o *Orchestrator) resolveRows(groups []*Group, tasks map[string]*collegeTask, dims *dimIndex) ([]ResolvedRecord, int) {
	var resolved []ResolvedRecord
	rows := 0

	for _, g := range groups {
		key := g.Key.College + "|" + g.Key.Address + "|" + g.Key.State + "|" + g.Key.Course
		college := tasks[key].out
		state := dims.states[g.Key.State]
		course := dims.courses[g.Key.Course]
		category := dims.categories[g.Key.Category]
		quota := dims.quotas[g.Key.Quota]

		if !college.ok || !state.ok || !course.ok || !category.ok || !quota.ok {
			continue
		}
		rows += len(g.Rows)

		conf := college.conf
		for _, c := range []float64{state.conf, course.conf, category.conf, quota.conf} {
			if c < conf {
				conf = c
			}
		}
		for _, rec := range g.Rows {
			resolved = append(resolved, ResolvedRecord{
				Row:         rec.Row,
				CollegeID:   college.id,
				StateID:     state.id,
				CourseID:    course.id,
				CategoryID:  category.id,
				QuotaID:     quota.id,
				Year:        rec.Year,
				Round:       rec.Round,
				Rank:        rec.Rank,
				Confidence:  conf,
				OpeningRank: g.OpeningRank,
				ClosingRank: g.ClosingRank,
				Seats:       g.Seats,
			})
		}
	}
	return resolved, rows
}

func (o *Orchestrator) finalReport(batch *Batch, report *errorReport, stats *matchStats, total int, completeness float64, resolved []ResolvedRecord) *Report {
	report.mu.Lock()
	counts := make(map[string]int, len(report.counts))
	for k, v := range report.counts {
		counts[k] = v
	}
	samples := make(map[string][]ErrorSample, len(report.samples))
	for k, v := range report.samples {
		samples[k] = v
	}
	report.mu.Unlock()

	stats.mu.Lock()
	methods := make(map[string]int, len(stats.methods))
	for k, v := range stats.methods {
		methods[k] = v
	}
	bands := make(map[string]int, len(stats.bands))
	for k, v := range stats.bands {
		bands[k] = v
	}
	stats.mu.Unlock()

	batch.mu.Lock()
	state := batch.State
	endedAt := batch.EndedAt
	batch.mu.Unlock()

	return &Report{
		BatchID:      batch.ID,
		State:        state,
		Total:        total,
		Imported:     batch.imported.Load(),
		Matched:      batch.matched.Load(),
		Unmatched:    batch.unmatched.Load(),
		PendingCount: batch.pendingReview.Load(),
		ErrorCount:   batch.rowErrors.Load(),
		Completeness: completeness,
		StartedAt:    batch.StartedAt,
		EndedAt:      endedAt,
		ErrorsByKind: counts,
		Samples:      samples,
		MethodCounts: methods,
		BandCounts:   bands,
		Resolved:     resolved,
	}
}
