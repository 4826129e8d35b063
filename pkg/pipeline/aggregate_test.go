package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitkit/medmatch/pkg/normalize"
)

func stagingRow(row, rank int, college, category string) *StagingRecord {
	return &StagingRecord{
		Row:         row,
		CollegeName: college,
		Address:     "JLN MARG JAIPUR",
		State:       "RAJASTHAN",
		Course:      "MBBS",
		Category:    category,
		Quota:       "ALL INDIA QUOTA",
		Year:        2024,
		Round:       1,
		Rank:        rank,
	}
}

func TestAggregateRankWindow(t *testing.T) {
	norm := normalize.New()

	groups := aggregate(norm, []*StagingRecord{
		stagingRow(1, 4521, "SMS MEDICAL COLLEGE", "GENERAL"),
		stagingRow(2, 120, "SMS MEDICAL COLLEGE", "GENERAL"),
		stagingRow(3, 980, "SMS MEDICAL COLLEGE", "GENERAL"),
		stagingRow(4, 15000, "SMS MEDICAL COLLEGE", "OBC"),
	})

	require.Len(t, groups, 2)

	var general, obc *Group
	for _, g := range groups {
		switch g.Key.Category {
		case "GENERAL":
			general = g
		case "OBC":
			obc = g
		}
	}
	require.NotNil(t, general)
	require.NotNil(t, obc)

	assert.Equal(t, 120, general.OpeningRank)
	assert.Equal(t, 4521, general.ClosingRank)
	assert.Equal(t, 3, general.Seats)
	assert.Equal(t, 15000, obc.OpeningRank)
	assert.Equal(t, 15000, obc.ClosingRank)
	assert.Equal(t, 1, obc.Seats)
}

func TestAggregateGroupsBySpellingVariant(t *testing.T) {
	norm := normalize.New()

	// Convergent spellings of the same college land in the same group.
	groups := aggregate(norm, []*StagingRecord{
		stagingRow(1, 100, "SMS MEDICAL COLLEGE", "GENERAL"),
		stagingRow(2, 200, "SAWAI MAN SINGH MEDICAL COLLEGE", "GENERAL"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, 100, groups[0].OpeningRank)
	assert.Equal(t, 200, groups[0].ClosingRank)
}

func TestAggregateInvariantOpeningLEQClosing(t *testing.T) {
	norm := normalize.New()

	var rows []*StagingRecord
	ranks := []int{877, 3, 99999, 500, 500, 12, 40400}
	for i, r := range ranks {
		cat := "GENERAL"
		if i%2 == 0 {
			cat = "SC"
		}
		rows = append(rows, stagingRow(i+1, r, "SMS MEDICAL COLLEGE", cat))
	}

	for _, g := range aggregate(norm, rows) {
		assert.LessOrEqual(t, g.OpeningRank, g.ClosingRank)
		assert.Equal(t, len(g.Rows), g.Seats)
	}
}

func TestAggregateDeterministicOrder(t *testing.T) {
	norm := normalize.New()
	rows := []*StagingRecord{
		stagingRow(1, 10, "GOVT MEDICAL COLLEGE, KOTA", "GENERAL"),
		stagingRow(2, 20, "SMS MEDICAL COLLEGE", "GENERAL"),
		stagingRow(3, 30, "SMS MEDICAL COLLEGE", "OBC"),
	}

	first := aggregate(norm, rows)
	for i := 0; i < 5; i++ {
		again := aggregate(norm, rows)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Key, again[j].Key)
		}
	}
}
