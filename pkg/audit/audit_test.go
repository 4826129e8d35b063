package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitkit/medmatch/pkg/masterdata"
)

func TestCreateAssignsVersionOne(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	store := NewStore(reg)

	id, err := store.Create(&masterdata.College{
		Meta:     masterdata.Meta{Name: "COASTAL MEDICAL COLLEGE"},
		StateID:  3,
		Location: "MANGALORE",
	}, "reviewer@example.com")
	require.NoError(t, err)
	require.NotZero(t, id)

	history := store.History(masterdata.EntityTypeCollege, id)
	require.Len(t, history, 1)
	assert.Equal(t, ActionCreate, history[0].Action)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, "reviewer@example.com", history[0].Actor)
	assert.Nil(t, history[0].Before)
	assert.NotNil(t, history[0].After)
	assert.NotEmpty(t, history[0].ID)

	// Not matchable until flushed.
	_, err = reg.College(id)
	assert.Error(t, err)

	require.NoError(t, store.Flush())
	got, err := reg.College(id)
	require.NoError(t, err)
	assert.Equal(t, "COASTAL MEDICAL COLLEGE", got.Name)
	assert.Equal(t, 1, got.Version)
}

func TestUpdateBumpsVersion(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	store := NewStore(reg)

	current, err := reg.College(2)
	require.NoError(t, err)
	current.Address = "NEW MEDICAL COLLEGE ROAD RANGBARI"

	require.NoError(t, store.Update(&current, "reviewer@example.com"))

	history := store.History(masterdata.EntityTypeCollege, 2)
	require.Len(t, history, 1)
	assert.Equal(t, ActionUpdate, history[0].Action)
	assert.Equal(t, 2, history[0].Version)
	require.NotNil(t, history[0].Before)
	assert.Equal(t, 1, history[0].Before.EntityMeta().Version)

	require.NoError(t, store.Flush())
	got, err := reg.College(2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "NEW MEDICAL COLLEGE ROAD RANGBARI", got.Address)
}

func TestUpdateUnknownEntity(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	store := NewStore(reg)

	err := store.Update(&masterdata.College{
		Meta: masterdata.Meta{ID: 999, Name: "GHOST COLLEGE"},
	}, "reviewer@example.com")
	assert.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestRecordMatchDoesNotMutate(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	store := NewStore(reg)

	store.RecordMatch(masterdata.EntityTypeCollege, 1, MatchRecord{
		RawInput:   "SMS MEDICAL COLLEGE, JAIPUR",
		Confidence: 0.95,
		Method:     "NORMALIZED",
		BatchID:    "batch-1",
	})

	history := store.History(masterdata.EntityTypeCollege, 1)
	require.Len(t, history, 1)
	assert.Equal(t, ActionImportMatch, history[0].Action)
	require.NotNil(t, history[0].Match)
	assert.Equal(t, "batch-1", history[0].Match.BatchID)

	got, err := reg.College(1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Zero(t, store.PendingCount())
}

func TestStreamIsAppendOnlyAndOrdered(t *testing.T) {
	reg := masterdata.NewTestRegistry(t)
	store := NewStore(reg)

	prevLen := store.Len()
	for i := 0; i < 5; i++ {
		store.RecordMatch(masterdata.EntityTypeState, 1, MatchRecord{RawInput: "RAJASTHAN"})
		assert.Greater(t, store.Len(), prevLen)
		prevLen = store.Len()
	}

	entries := store.Entries()
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
}
