package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/admitkit/medmatch/pkg/errors"
)

// State is the batch lifecycle position.
type State string

const (
	StateImporting     State = "IMPORTING"
	StateProcessing    State = "PROCESSING"
	StateMatching      State = "MATCHING"
	StateValidating    State = "VALIDATING"
	StateCommit        State = "COMMIT"
	StateHaltForReview State = "HALT_FOR_REVIEW"
	StateCleared       State = "CLEARED"
	StateFailed        State = "FAILED"
)

// Batch is one import run. Counter fields are updated by matcher workers
// and must be read through the atomic accessors while a run is live.
type Batch struct {
	ID        string   `json:"id"`
	State     State    `json:"state"`
	StartedAt utc.Time `json:"startedAt"`
	EndedAt   utc.Time `json:"endedAt,omitzero"`

	imported      atomic.Int64
	matched       atomic.Int64
	unmatched     atomic.Int64
	pendingReview atomic.Int64
	rowErrors     atomic.Int64

	mu         sync.Mutex
	onChange   func(batchID string, from, to State)
	onProgress func(Progress)
	lastNotify time.Time
}

func newBatch(onChange func(string, State, State), onProgress func(Progress)) *Batch {
	return &Batch{
		ID:         uuid.NewString(),
		State:      StateImporting,
		StartedAt:  utc.Now(),
		onChange:   onChange,
		onProgress: onProgress,
	}
}

// transition moves the batch to the next state and fires the hook.
func (b *Batch) transition(to State) {
	b.mu.Lock()
	from := b.State
	b.State = to
	switch to {
	case StateCommit, StateHaltForReview, StateCleared, StateFailed:
		b.EndedAt = utc.Now()
	}
	hook := b.onChange
	b.mu.Unlock()

	if hook != nil && from != to {
		hook(b.ID, from, to)
	}
}

// Progress is a point-in-time counter snapshot for display polling.
type Progress struct {
	BatchID       string `json:"batchId"`
	State         State  `json:"state"`
	Total         int    `json:"total"`
	Imported      int64  `json:"imported"`
	Matched       int64  `json:"matched"`
	Unmatched     int64  `json:"unmatched"`
	PendingReview int64  `json:"pendingReview"`
	Errors        int64  `json:"errors"`
}

// notifyProgress rate-limits the progress callback to roughly four per
// second so tight matching loops do not spend their time in the hook.
func (b *Batch) notifyProgress(total int, force bool) {
	b.mu.Lock()
	hook := b.onProgress
	if hook == nil {
		b.mu.Unlock()
		return
	}
	now := time.Now()
	if !force && now.Sub(b.lastNotify) < 250*time.Millisecond {
		b.mu.Unlock()
		return
	}
	b.lastNotify = now
	state := b.State
	b.mu.Unlock()

	hook(Progress{
		BatchID:       b.ID,
		State:         state,
		Total:         total,
		Imported:      b.imported.Load(),
		Matched:       b.matched.Load(),
		Unmatched:     b.unmatched.Load(),
		PendingReview: b.pendingReview.Load(),
		Errors:        b.rowErrors.Load(),
	})
}

// ErrorSample is one offending row kept for the batch error report.
type ErrorSample struct {
	Row       int    `json:"row"`
	Dimension string `json:"dimension,omitempty"`
	Message   string `json:"message"`
}

// errorReport accumulates row-level failures across workers. Per-row
// failures never abort the batch; they surface here once at the end.
type errorReport struct {
	mu      sync.Mutex
	counts  map[string]int
	samples map[string][]ErrorSample
}

const maxSamplesPerKind = 10

func newErrorReport() *errorReport {
	return &errorReport{
		counts:  make(map[string]int),
		samples: make(map[string][]ErrorSample),
	}
}

// add classifies a row error by taxonomy kind and keeps a bounded sample.
func (r *errorReport) add(row int, dimension string, err error) {
	kind := taxonomyKind(err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind]++
	if len(r.samples[kind]) < maxSamplesPerKind {
		r.samples[kind] = append(r.samples[kind], ErrorSample{
			Row:       row,
			Dimension: dimension,
			Message:   err.Error(),
		})
	}
}

func taxonomyKind(err error) string {
	switch {
	case errors.Is(err, errors.ErrMissingField):
		return "MissingField"
	case errors.Is(err, errors.ErrInvalidFormat):
		return "InvalidFormat"
	case errors.Is(err, errors.ErrAmbiguousMatch):
		return "AmbiguousMatch"
	case errors.Is(err, errors.ErrDuplicateDetected):
		return "DuplicateDetected"
	case errors.Is(err, errors.ErrLowConfidence):
		return "LowConfidence"
	case errors.Is(err, errors.ErrNoMatch):
		return "NoMatch"
	default:
		return "Other"
	}
}

// Report is the final outcome of a batch run.
type Report struct {
	BatchID      string   `json:"batchId"`
	State        State    `json:"state"`
	Total        int      `json:"total"`
	Imported     int64    `json:"imported"`
	Matched      int64    `json:"matched"`
	Unmatched    int64    `json:"unmatched"`
	PendingCount int64    `json:"pendingReview"`
	ErrorCount   int64    `json:"errors"`
	Completeness float64  `json:"completeness"`
	StartedAt    utc.Time `json:"startedAt"`
	EndedAt      utc.Time `json:"endedAt"`

	// ErrorsByKind and Samples are the structured error report: one
	// count per taxonomy kind plus up to ten offending rows each.
	ErrorsByKind map[string]int           `json:"errorsByKind,omitempty"`
	Samples      map[string][]ErrorSample `json:"samples,omitempty"`

	// MethodCounts and BandCounts break resolved dimensions down for
	// match-quality reporting.
	MethodCounts map[string]int `json:"methodCounts,omitempty"`
	BandCounts   map[string]int `json:"bandCounts,omitempty"`

	// Resolved is the unified dataset: one record per fully matched row.
	// Only a COMMIT batch populates it.
	Resolved []ResolvedRecord `json:"resolved,omitempty"`
}

// Err maps the terminal state onto the error taxonomy so callers can
// branch with errors.Is instead of comparing states. Committed and
// cleared batches return nil.
func (r *Report) Err() error {
	switch r.State {
	case StateHaltForReview:
		return errors.ErrBatchHalted
	case StateFailed:
		return errors.ErrBatchFailed
	default:
		return nil
	}
}
