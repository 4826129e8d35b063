// Package match executes the ordered match-pass pipeline that reconciles a
// raw text field against the master registry: exact lookup, normalized
// composite-key lookup, optional search-index fuzzy lookup, and
// edit-distance/word-overlap fuzzy scoring over a hierarchically narrowed
// candidate set. Passes short-circuit on the first one that clears its
// threshold; a failure in the optional search backend only degrades pass 3
// to a no-op.
package match

import (
	"time"
)

// Method identifies which pass produced a match.
type Method string

const (
	// MethodExact is a normalized-name or alias equality match.
	MethodExact Method = "EXACT"
	// MethodNormalized is a combined name+address/state composite match.
	MethodNormalized Method = "NORMALIZED"
	// MethodFuzzyIndexed is a match scored by the external search backend.
	MethodFuzzyIndexed Method = "FUZZY_INDEXED"
	// MethodFuzzyEdit is an edit-distance/word-overlap scored match.
	MethodFuzzyEdit Method = "FUZZY_EDIT"
	// MethodManual is a match chosen by a human reviewer.
	MethodManual Method = "MANUAL"
	// MethodNone means no pass produced a usable match.
	MethodNone Method = "NONE"
)

// Band is the confidence band a result falls into; each band carries a
// distinct auto-commit/review policy.
type Band string

const (
	// BandHigh auto-commits.
	BandHigh Band = "HIGH_CONFIDENCE"
	// BandMedium auto-commits but is flagged on the batch report.
	BandMedium Band = "MEDIUM_CONFIDENCE"
	// BandLow routes to the review queue and is not auto-committed.
	BandLow Band = "LOW_CONFIDENCE"
	// BandUnmatched routes to the review queue as a new-entity candidate.
	BandUnmatched Band = "UNMATCHED"
)

// Thresholds is the per-batch confidence band configuration. The bands are
// configuration, not constants: review operators tune them per batch.
type Thresholds struct {
	// High is the lower bound of the auto-commit band.
	High float64
	// Medium is the lower bound of the flagged auto-commit band.
	Medium float64
	// Low is the lower bound of the review band; below it is unmatched.
	Low float64
	// TieBand is the score distance within which two top candidates count
	// as tied.
	TieBand float64
	// MaxEditDistance caps the edit-distance component of fuzzy scoring.
	MaxEditDistance int
	// EnableIndexedFuzzy turns the search-backend pass on.
	EnableIndexedFuzzy bool
	// SearchTimeout bounds each search-backend call; on timeout the
	// pipeline falls through to edit-distance scoring.
	SearchTimeout time.Duration
}

// DefaultThresholds returns the standard band configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:               0.90,
		Medium:             0.75,
		Low:                0.65,
		TieBand:            0.01,
		MaxEditDistance:    10,
		EnableIndexedFuzzy: true,
		SearchTimeout:      2 * time.Second,
	}
}

// Band returns the confidence band for a score.
func (t Thresholds) Band(confidence float64) Band {
	switch {
	case confidence >= t.High:
		return BandHigh
	case confidence >= t.Medium:
		return BandMedium
	case confidence >= t.Low:
		return BandLow
	default:
		return BandUnmatched
	}
}

// Candidate is a scored alternative surfaced on a result.
type Candidate struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of matching one raw text field against one
// dimension. MatchedID of zero means unmatched. A Result with Ambiguous
// set must not be auto-committed regardless of confidence.
type Result struct {
	Input            string      `json:"input"`
	Normalized       string      `json:"normalized"`
	MatchedID        int64       `json:"matched_id,omitempty"`
	Confidence       float64     `json:"confidence"`
	Method           Method      `json:"method"`
	Band             Band        `json:"band"`
	CandidateSetSize int         `json:"candidate_set_size"`
	Ambiguous        bool        `json:"ambiguous,omitempty"`
	Alternatives     []Candidate `json:"alternatives,omitempty"`
	Issues           []string    `json:"issues,omitempty"`
}

// Matched reports whether the result carries a committed-quality match.
func (r Result) Matched() bool {
	return r.MatchedID != 0 && !r.Ambiguous && (r.Band == BandHigh || r.Band == BandMedium)
}

// NeedsReview reports whether the result must be adjudicated by a human.
func (r Result) NeedsReview() bool {
	return r.Ambiguous || r.Band == BandLow || r.Band == BandUnmatched
}

// addIssue appends a warning without failing the match.
func (r *Result) addIssue(issue string) {
	r.Issues = append(r.Issues, issue)
}
