package match

import (
	"context"

	"github.com/admitkit/medmatch/pkg/masterdata"
)

// SearchFilter narrows a search-backend query.
type SearchFilter struct {
	StateID int64
	Type    masterdata.EntityType
}

// SearchHit is one scored hit from the search backend. Score need not be
// pre-normalized; the matcher clamps it to [0, 1].
type SearchHit struct {
	ID    int64
	Score float64
}

// SearchIndex is the optional external fuzzy-search capability used by the
// matcher's indexed pass. Implementations wrap a real search engine;
// absence of the capability (a nil SearchIndex) or any error from it must
// not change matching correctness, only skip the indexed pass.
type SearchIndex interface {
	Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]SearchHit, error)
}
