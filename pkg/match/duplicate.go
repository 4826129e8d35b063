package match

import (
	"sort"

	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/normalize"
)

// DuplicateThreshold is the default similarity at or above which a
// candidate new entity is treated as a probable duplicate of an existing
// one and forced through review instead of being created.
const DuplicateThreshold = 0.90

// Similarity is one existing entity scored against a candidate new record.
type Similarity struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Detector flags near-identical master candidates before a new entity is
// created from an unmatched input. It reuses the matcher's combined
// word-overlap/edit-distance scoring against the existing set restricted
// to the same parent (same state for colleges).
type Detector struct {
	norm      *normalize.Normalizer
	threshold float64
	maxEdit   int
}

// NewDetector creates a detector over the registry's normalization rules.
func NewDetector(registry *masterdata.Registry, opts ...DetectorOption) *Detector {
	d := &Detector{
		norm:      registry.Normalizer(),
		threshold: DuplicateThreshold,
		maxEdit:   DefaultThresholds().MaxEditDistance,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDuplicateThreshold overrides the probable-duplicate cutoff.
func WithDuplicateThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// CheckDuplicate scores the candidate name against every existing entity
// in the set and returns the probable duplicates (score >= threshold),
// highest first. An empty result means creation may proceed.
func (d *Detector) CheckDuplicate(rawName string, t masterdata.EntityType, existing []masterdata.Ref) []Similarity {
	normalized := d.norm.Normalize(rawName, masterdata.NormalizeKind(t))
	if normalized == "" {
		return nil
	}

	var dupes []Similarity
	for _, ref := range existing {
		score := combinedScore(normalized, ref.NormalizedName, d.maxEdit)
		if ref.NormalizedName == normalized {
			score = 1.0
		}
		if score >= d.threshold {
			dupes = append(dupes, Similarity{ID: ref.ID, Name: ref.Name, Score: score})
		}
	}

	sort.Slice(dupes, func(i, j int) bool {
		if dupes[i].Score != dupes[j].Score {
			return dupes[i].Score > dupes[j].Score
		}
		return dupes[i].ID < dupes[j].ID
	})
	return dupes
}
