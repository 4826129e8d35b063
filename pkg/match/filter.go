package match

import (
	"strings"

	"github.com/admitkit/medmatch/pkg/masterdata"
	"github.com/admitkit/medmatch/pkg/normalize"
)

// FilterContext carries whichever upstream dimensions have already been
// resolved for a row. Zero values mean "not resolved".
type FilterContext struct {
	StateID  int64
	CourseID int64
	// Locality is a raw address hint; the noisiest signal, applied last
	// and never as a hard filter.
	Locality string
}

// Narrow prunes the college candidate set using the resolved parent
// dimensions, cheapest and most selective first: state, then course, then
// locality. The result is never larger than the full college set, and the
// locality pass is discarded rather than allowed to empty the set.
func Narrow(reg *masterdata.Registry, fc FilterContext) []masterdata.Ref {
	var candidates []masterdata.Ref
	if fc.StateID != 0 {
		candidates = reg.CandidatesByState(fc.StateID)
	} else {
		candidates = reg.All(masterdata.EntityTypeCollege)
	}

	if fc.CourseID != 0 {
		offered := reg.CandidatesByCourse(fc.CourseID)
		filtered := candidates[:0:0]
		for _, ref := range candidates {
			if _, ok := offered[ref.ID]; ok {
				filtered = append(filtered, ref)
			}
		}
		candidates = filtered
	}

	if fc.Locality != "" {
		if byLocality := filterByLocality(reg, candidates, fc.Locality); len(byLocality) > 0 {
			candidates = byLocality
		}
	}

	return candidates
}

// filterByLocality keeps candidates whose normalized address or location
// contains at least one locality token. Returns nil when nothing survives
// so the caller can fall back to the unfiltered set.
func filterByLocality(reg *masterdata.Registry, candidates []masterdata.Ref, locality string) []masterdata.Ref {
	tokens := normalize.AddressKeywords(locality)
	if len(tokens) == 0 {
		return nil
	}

	var filtered []masterdata.Ref
	for _, ref := range candidates {
		addr := reg.NormalizedAddress(ref.ID)
		if addr == "" {
			continue
		}
		for _, token := range tokens {
			if strings.Contains(addr, token) {
				filtered = append(filtered, ref)
				break
			}
		}
	}
	return filtered
}
