package pipeline

import (
	"fmt"
	"sort"

	"github.com/admitkit/medmatch/pkg/normalize"
)

// GroupKey identifies an admission group before any entity resolution:
// raw dimensions are normalized but not matched, so grouping never
// depends on match outcomes.
type GroupKey struct {
	College  string
	Address  string
	Course   string
	State    string
	Category string
	Quota    string
	Year     int
	Round    int
}

// Group is one admission unit with its aggregated rank window. The rows
// slice preserves input order within the group.
type Group struct {
	Key         GroupKey
	Rows        []*StagingRecord
	OpeningRank int
	ClosingRank int
	Seats       int
}

// aggregate folds staged rows into per-group rank windows: opening rank
// is the minimum rank seen, closing the maximum, seats the row count.
// Opening <= closing holds by construction. Groups come back in a
// deterministic order so batch output is reproducible.
func aggregate(norm *normalize.Normalizer, records []*StagingRecord) []*Group {
	byKey := make(map[GroupKey]*Group)
	var order []GroupKey

	for _, rec := range records {
		key := GroupKey{
			College:  norm.Normalize(rec.CollegeName, normalize.KindCollege),
			Address:  norm.Normalize(rec.Address, normalize.KindAddress),
			Course:   norm.Normalize(rec.Course, normalize.KindCourse),
			State:    norm.Normalize(rec.State, normalize.KindState),
			Category: norm.Normalize(rec.Category, normalize.KindCategory),
			Quota:    norm.Normalize(rec.Quota, normalize.KindQuota),
			Year:     rec.Year,
			Round:    rec.Round,
		}

		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, OpeningRank: rec.Rank, ClosingRank: rec.Rank}
			byKey[key] = g
			order = append(order, key)
		}
		if rec.Rank < g.OpeningRank {
			g.OpeningRank = rec.Rank
		}
		if rec.Rank > g.ClosingRank {
			g.ClosingRank = rec.Rank
		}
		g.Rows = append(g.Rows, rec)
		g.Seats++
	}

	groups := make([]*Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groupSortKey(groups[i].Key) < groupSortKey(groups[j].Key)
	})
	return groups
}

func groupSortKey(k GroupKey) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%04d|%02d",
		k.State, k.College, k.Address, k.Course, k.Category, k.Quota, k.Year, k.Round)
}
