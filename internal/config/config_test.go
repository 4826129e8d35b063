package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/admitkit/medmatch/pkg/match"
)

func TestDefaults(t *testing.T) {
	Init()

	want := match.DefaultThresholds()
	got := Thresholds()
	assert.Equal(t, want.High, got.High)
	assert.Equal(t, want.Medium, got.Medium)
	assert.Equal(t, want.Low, got.Low)
	assert.Equal(t, want.MaxEditDistance, got.MaxEditDistance)

	assert.Equal(t, 0, BatchSize())
	assert.Equal(t, 0.95, CompletenessThreshold())
	assert.Equal(t, "masterdata", MasterDataDir())
}

func TestEnvOverrides(t *testing.T) {
	Init()

	t.Setenv("MEDMATCH_PIPELINE_WORKERS", "3")
	t.Setenv("MEDMATCH_PIPELINE_BATCH_SIZE", "50")
	t.Setenv("MEDMATCH_MATCH_HIGH_CONFIDENCE", "0.93")

	assert.Equal(t, 3, Workers())
	assert.Equal(t, 50, BatchSize())
	assert.Equal(t, 0.93, Thresholds().High)
}

func TestCompletenessOutOfRangeFallsBack(t *testing.T) {
	Init()

	t.Setenv("MEDMATCH_PIPELINE_COMPLETENESS_THRESHOLD", "1.5")
	assert.Equal(t, 0.95, CompletenessThreshold())
}
