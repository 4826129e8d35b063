// Package config centralizes the recognized configuration surface behind
// Viper. Every knob has a default, can come from a config file, and is
// overridable through the environment (MEDMATCH_MATCH_HIGH_CONFIDENCE and
// friends). Programmatic functional options always win over all three.
package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/admitkit/medmatch/pkg/match"
)

// Recognized keys.
const (
	KeyHighConfidence     = "match.high_confidence"
	KeyMediumConfidence   = "match.medium_confidence"
	KeyReviewThreshold    = "match.review_threshold"
	KeyUnmatchedThreshold = "match.unmatched_threshold"
	KeyMaxEditDistance    = "match.max_edit_distance"
	KeyEnableIndexedFuzzy = "match.enable_indexed_fuzzy"
	KeySearchTimeout      = "match.search_timeout"
	KeyWorkers            = "pipeline.workers"
	KeyBatchSize          = "pipeline.batch_size"
	KeyCompleteness       = "pipeline.completeness_threshold"
	KeyMasterDataDir      = "registry.dir"
)

// Init registers defaults and environment binding. Call once at startup;
// repeated calls are harmless.
func Init() {
	defaults := match.DefaultThresholds()

	viper.SetDefault(KeyHighConfidence, defaults.High)
	viper.SetDefault(KeyMediumConfidence, defaults.Medium)
	viper.SetDefault(KeyReviewThreshold, defaults.Medium)
	viper.SetDefault(KeyUnmatchedThreshold, defaults.Low)
	viper.SetDefault(KeyMaxEditDistance, defaults.MaxEditDistance)
	viper.SetDefault(KeyEnableIndexedFuzzy, defaults.EnableIndexedFuzzy)
	viper.SetDefault(KeySearchTimeout, defaults.SearchTimeout)
	viper.SetDefault(KeyWorkers, runtime.NumCPU())
	viper.SetDefault(KeyBatchSize, 0)
	viper.SetDefault(KeyCompleteness, 0.95)
	viper.SetDefault(KeyMasterDataDir, "masterdata")

	viper.SetEnvPrefix("MEDMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Thresholds assembles the matcher thresholds from the configured values.
func Thresholds() match.Thresholds {
	t := match.DefaultThresholds()
	t.High = viper.GetFloat64(KeyHighConfidence)
	t.Medium = viper.GetFloat64(KeyMediumConfidence)
	t.Low = viper.GetFloat64(KeyUnmatchedThreshold)
	t.MaxEditDistance = viper.GetInt(KeyMaxEditDistance)
	t.EnableIndexedFuzzy = viper.GetBool(KeyEnableIndexedFuzzy)
	if d := viper.GetDuration(KeySearchTimeout); d > 0 {
		t.SearchTimeout = d
	}
	return t
}

// Workers returns the matching pool size, never below one.
func Workers() int {
	if n := viper.GetInt(KeyWorkers); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// BatchSize returns the maximum rows accepted per import, zero meaning
// unlimited.
func BatchSize() int {
	if n := viper.GetInt(KeyBatchSize); n > 0 {
		return n
	}
	return 0
}

// CompletenessThreshold returns the commit gate fraction.
func CompletenessThreshold() float64 {
	f := viper.GetFloat64(KeyCompleteness)
	if f < 0 || f > 1 {
		return 0.95
	}
	return f
}

// MasterDataDir returns the directory holding the registry YAML files.
func MasterDataDir() string {
	return viper.GetString(KeyMasterDataDir)
}

// SearchTimeoutOrDefault is a convenience for callers that only need the
// indexed-fuzzy timeout.
func SearchTimeoutOrDefault() time.Duration {
	if d := viper.GetDuration(KeySearchTimeout); d > 0 {
		return d
	}
	return match.DefaultThresholds().SearchTimeout
}
