package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/admitkit/medmatch/pkg/masterdata"
)

func TestNarrowByState(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)

	refs := Narrow(reg, FilterContext{StateID: 1})

	ids := refIDs(refs)
	assert.ElementsMatch(t, []int64{1, 2, 5}, ids)
}

func TestNarrowByStateAndCourse(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)

	// Rajasthan colleges offering MD (GENERAL MEDICINE): only SMS.
	refs := Narrow(reg, FilterContext{StateID: 1, CourseID: 2})

	assert.Equal(t, []int64{1}, refIDs(refs))
}

func TestNarrowByLocality(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)

	refs := Narrow(reg, FilterContext{StateID: 1, Locality: "Kota"})

	assert.Equal(t, []int64{2}, refIDs(refs))
}

func TestNarrowLocalityIsSoft(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)

	// A locality that matches no address must not empty the set.
	refs := Narrow(reg, FilterContext{StateID: 1, Locality: "Nowheresville"})

	assert.ElementsMatch(t, []int64{1, 2, 5}, refIDs(refs))
}

func TestNarrowNeverExpands(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	full := len(reg.All(masterdata.EntityTypeCollege))

	contexts := []FilterContext{
		{},
		{StateID: 1},
		{StateID: 2},
		{StateID: 99},
		{CourseID: 1},
		{StateID: 1, CourseID: 3},
		{StateID: 1, CourseID: 2, Locality: "Jaipur"},
		{Locality: "Mumbai"},
	}
	for _, fc := range contexts {
		refs := Narrow(reg, fc)
		assert.LessOrEqual(t, len(refs), full, "context %+v", fc)
	}
}

func TestNarrowUnknownState(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)

	refs := Narrow(reg, FilterContext{StateID: 42})
	assert.Empty(t, refs)
}

func refIDs(refs []masterdata.Ref) []int64 {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}
