package match

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/logging"
	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/normalize"
)

// Matcher resolves raw text against the master registry. It is safe to
// share across workers: the registry is read-only during a batch and the
// matcher itself holds no mutable state.
type Matcher struct {
	registry   *masterdata.Registry
	norm       *normalize.Normalizer
	thresholds Thresholds
	search     SearchIndex
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithThresholds overrides the default confidence band configuration.
func WithThresholds(t Thresholds) MatcherOption {
	return func(m *Matcher) {
		m.thresholds = t
	}
}

// WithSearchIndex wires in the optional external fuzzy-search backend.
func WithSearchIndex(si SearchIndex) MatcherOption {
	return func(m *Matcher) {
		m.search = si
	}
}

// NewMatcher creates a matcher over the given registry.
func NewMatcher(registry *masterdata.Registry, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		registry:   registry,
		norm:       registry.Normalizer(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Thresholds returns the matcher's band configuration.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Query is one raw field to resolve, with optional secondary signals from
// the same row.
type Query struct {
	// Text is the raw field being matched.
	Text string
	// Address is the row's raw address text, used to disambiguate
	// same-name colleges across campuses.
	Address string
	// StateID is the already-resolved state, forwarded to the search
	// backend filter.
	StateID int64
}

// Match runs the ordered passes against the candidate set and returns a
// scored result. A nil candidate set means "all entities of the type"
// (used for the state/category/quota dimensions, whose full sets are
// small). Passes short-circuit on the first that clears its threshold.
func (m *Matcher) Match(ctx context.Context, q Query, candidates []masterdata.Ref, t masterdata.EntityType) Result {
	if candidates == nil {
		candidates = m.registry.All(t)
	}

	res := Result{
		Input:            q.Text,
		Normalized:       m.norm.Normalize(q.Text, masterdata.NormalizeKind(t)),
		Method:           MethodNone,
		Band:             BandUnmatched,
		CandidateSetSize: len(candidates),
	}
	if res.Normalized == "" {
		res.addIssue("empty input after normalization")
		return res
	}

	inSet := make(map[int64]masterdata.Ref, len(candidates))
	for _, ref := range candidates {
		inSet[ref.ID] = ref
	}

	// Pass 1: exact normalized-name or alias equality.
	if done := m.passExact(&res, q, inSet, t); done {
		return res
	}

	// Pass 2: normalized composite key (name + address/state tail).
	if done := m.passNormalized(&res, q, inSet, t); done {
		return res
	}

	// Pass 3: indexed fuzzy via the optional search backend.
	if done := m.passIndexed(ctx, &res, q, inSet, t); done {
		return res
	}

	// Pass 4: edit-distance/word-overlap fuzzy over the narrowed set.
	m.passFuzzy(&res, candidates)
	return res
}

// passExact resolves pass 1. Multiple exact hits (same-name multi-campus
// colleges) are disambiguated by address when possible; with no address
// the result is ambiguous and blocked from auto-commit rather than picked
// arbitrarily.
func (m *Matcher) passExact(res *Result, q Query, inSet map[int64]masterdata.Ref, t masterdata.EntityType) bool {
	hits := m.restrict(m.registry.LookupName(t, res.Normalized), inSet)
	switch len(hits) {
	case 0:
		return false
	case 1:
		res.MatchedID = hits[0].ID
		res.Confidence = 1.0
		res.Method = MethodExact
		res.Band = m.thresholds.Band(res.Confidence)
		return true
	}

	if ref, ok := m.disambiguateByAddress(hits, q.Address); ok {
		res.MatchedID = ref.ID
		res.Confidence = 0.95
		res.Method = MethodNormalized
		res.Band = m.thresholds.Band(res.Confidence)
		res.addIssue("name shared by multiple campuses; resolved by address")
		return true
	}

	res.Method = MethodExact
	res.Confidence = 1.0
	res.Band = m.thresholds.Band(res.Confidence)
	res.Ambiguous = true
	res.addIssue(fmt.Sprintf("%d campuses share this name and no address distinguishes them", len(hits)))
	for _, ref := range hits {
		res.Alternatives = append(res.Alternatives, Candidate{ID: ref.ID, Name: ref.Name, Confidence: 1.0})
	}
	return true
}

// passNormalized resolves pass 2: the longest word-prefix of the input
// that equals an indexed name, with the remaining words treated as
// locality text ("SAWAI MAN SINGH MEDICAL COLLEGE JAIPUR RAJASTHAN" splits
// into a known name plus a locality tail). Composite keys and address
// overlap disambiguate same-name campuses.
func (m *Matcher) passNormalized(res *Result, q Query, inSet map[int64]masterdata.Ref, t masterdata.EntityType) bool {
	words := strings.Fields(res.Normalized)

	for i := len(words) - 1; i >= 1; i-- {
		namePart := strings.Join(words[:i], " ")
		hits := m.restrict(m.registry.LookupName(t, namePart), inSet)
		if len(hits) == 0 {
			continue
		}
		tail := strings.Join(words[i:], " ")
		addrText := strings.TrimSpace(tail + " " + q.Address)

		// Composite key equality first: it encodes name and address
		// keywords together, so a hit is unambiguous.
		if t == masterdata.EntityTypeCollege {
			key := normalize.CompositeKey(namePart, addrText)
			if ref, ok := m.registry.LookupComposite(key); ok {
				if _, member := inSet[ref.ID]; member {
					res.MatchedID = ref.ID
					res.Confidence = 0.95
					res.Method = MethodNormalized
					res.Band = m.thresholds.Band(res.Confidence)
					return true
				}
			}
		}

		if len(hits) == 1 {
			res.MatchedID = hits[0].ID
			res.Confidence = 0.95
			res.Method = MethodNormalized
			res.Band = m.thresholds.Band(res.Confidence)
			return true
		}

		if ref, ok := m.disambiguateByAddress(hits, addrText); ok {
			res.MatchedID = ref.ID
			res.Confidence = 0.95
			res.Method = MethodNormalized
			res.Band = m.thresholds.Band(res.Confidence)
			res.addIssue("name shared by multiple campuses; resolved by address")
			return true
		}

		res.Method = MethodNormalized
		res.Confidence = 0.95
		res.Band = m.thresholds.Band(res.Confidence)
		res.Ambiguous = true
		res.addIssue(fmt.Sprintf("%d campuses share this name and no address distinguishes them", len(hits)))
		for _, ref := range hits {
			res.Alternatives = append(res.Alternatives, Candidate{ID: ref.ID, Name: ref.Name, Confidence: 0.95})
		}
		return true
	}
	return false
}

// passIndexed resolves pass 3. The search backend is optional and failure
// is never fatal: on error or timeout the pass records an issue and falls
// through.
func (m *Matcher) passIndexed(ctx context.Context, res *Result, q Query, inSet map[int64]masterdata.Ref, t masterdata.EntityType) bool {
	if m.search == nil || !m.thresholds.EnableIndexedFuzzy {
		return false
	}

	sctx := ctx
	if m.thresholds.SearchTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, m.thresholds.SearchTimeout)
		defer cancel()
	}

	hits, err := m.search.Search(sctx, res.Normalized, SearchFilter{StateID: q.StateID, Type: t}, 5)
	if err != nil {
		err = fmt.Errorf("%w: %v", errors.ErrSearchUnavailable, err)
		logging.Debug().Err(err).Str("entity_type", t.String()).Msg("Search index pass skipped")
		res.addIssue(err.Error() + "; fell through to edit-distance pass")
		return false
	}

	var best *SearchHit
	for i := range hits {
		if _, member := inSet[hits[i].ID]; !member {
			continue
		}
		if best == nil || hits[i].Score > best.Score {
			best = &hits[i]
		}
	}
	if best == nil {
		return false
	}

	confidence := clamp01(best.Score)
	if confidence < m.thresholds.Medium {
		return false
	}

	res.MatchedID = best.ID
	res.Confidence = confidence
	res.Method = MethodFuzzyIndexed
	res.Band = m.thresholds.Band(confidence)
	return true
}

// passFuzzy scores every candidate with the combined word-overlap and
// edit-distance measure and applies the tie-break rule: candidates within
// TieBand of the top score are surfaced as alternatives and the lowest id
// takes the primary slot.
func (m *Matcher) passFuzzy(res *Result, candidates []masterdata.Ref) {
	if len(candidates) == 0 {
		res.addIssue("empty candidate set")
		return
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, ref := range candidates {
		scored = append(scored, Candidate{
			ID:         ref.ID,
			Name:       ref.Name,
			Confidence: combinedScore(res.Normalized, ref.NormalizedName, m.thresholds.MaxEditDistance),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		return scored[i].ID < scored[j].ID
	})

	best := scored[0]
	tied := []Candidate{best}
	for _, c := range scored[1:] {
		if best.Confidence-c.Confidence <= m.thresholds.TieBand {
			tied = append(tied, c)
		} else {
			break
		}
	}
	if len(tied) > 1 {
		// Deterministic winner: lowest id among the tied candidates.
		sort.Slice(tied, func(i, j int) bool { return tied[i].ID < tied[j].ID })
		best = tied[0]
		res.addIssue(fmt.Sprintf("%d candidates tied within %.2f of top score", len(tied), m.thresholds.TieBand))
		res.Alternatives = append(res.Alternatives, tied[1:]...)
	}

	res.Confidence = best.Confidence
	res.Band = m.thresholds.Band(best.Confidence)
	if res.Band == BandUnmatched {
		// Keep the top alternatives for the review queue candidate list.
		limit := 3
		if len(scored) < limit {
			limit = len(scored)
		}
		res.Alternatives = scored[:limit]
		return
	}

	res.MatchedID = best.ID
	res.Method = MethodFuzzyEdit
}

// restrict intersects registry hits with the candidate set.
func (m *Matcher) restrict(hits []masterdata.Ref, inSet map[int64]masterdata.Ref) []masterdata.Ref {
	out := hits[:0:0]
	for _, ref := range hits {
		if _, ok := inSet[ref.ID]; ok {
			out = append(out, ref)
		}
	}
	return out
}

// disambiguateByAddress picks the single candidate whose normalized
// address overlaps the given address text best. It fails (ok=false) when
// no candidate overlaps or the top two overlap equally.
func (m *Matcher) disambiguateByAddress(hits []masterdata.Ref, addrText string) (masterdata.Ref, bool) {
	tokens := normalize.AddressKeywords(addrText)
	if len(tokens) == 0 {
		return masterdata.Ref{}, false
	}

	type overlap struct {
		ref   masterdata.Ref
		count int
	}
	overlaps := make([]overlap, 0, len(hits))
	for _, ref := range hits {
		addr := m.registry.NormalizedAddress(ref.ID)
		count := 0
		for _, token := range tokens {
			if strings.Contains(addr, token) {
				count++
			}
		}
		overlaps = append(overlaps, overlap{ref: ref, count: count})
	}
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].count > overlaps[j].count })

	if overlaps[0].count == 0 {
		return masterdata.Ref{}, false
	}
	if len(overlaps) > 1 && overlaps[1].count == overlaps[0].count {
		return masterdata.Ref{}, false
	}
	return overlaps[0].ref, true
}
