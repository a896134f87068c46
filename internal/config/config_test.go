package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentUsers)
	assert.Equal(t, "0 3 * * *", cfg.Batch.Schedule)
	assert.InDelta(t, 10, cfg.Trend.DropThreshold, 0.001)
	assert.InDelta(t, 15, cfg.Trend.ImprovementThreshold, 0.001)
	assert.InDelta(t, 20, cfg.Trend.PremiumGapPct, 0.001)
	assert.InDelta(t, 30, cfg.Trend.CoverageGapPct, 0.001)
	assert.Equal(t, 7, cfg.Notify.TrendWindowDays)
	assert.Equal(t, 30, cfg.Notify.GapWindowDays)
	assert.Equal(t, 5, cfg.Cohort.AgeSpread)
	assert.Equal(t, 5, cfg.Cohort.MinCohortSize)
	assert.Equal(t, 5, cfg.Tips.TimeoutSecs)

	require.Len(t, cfg.Benchmark.Bands, 4)
	assert.Equal(t, 30, cfg.Benchmark.Bands[0].MaxAge)
	assert.InDelta(t, 800, cfg.Benchmark.Bands[0].AvgPremium, 0.001)
	assert.InDelta(t, 500_000, cfg.Benchmark.Bands[0].AvgCoverage, 0.001)
	assert.InDelta(t, 2.5, cfg.Benchmark.Bands[0].AvgPoliciesPerPerson, 0.001)
	assert.Equal(t, 0, cfg.Benchmark.Bands[3].MaxAge)
	assert.InDelta(t, 1800, cfg.Benchmark.Bands[3].AvgPremium, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_users: 3
notify:
  trend_window_days: 14
benchmark:
  bands:
    - max_age: 45
      avg_premium: 1000
      avg_coverage: 600000
      avg_policies_per_person: 3
    - max_age: 0
      avg_premium: 1600
      avg_coverage: 1300000
      avg_policies_per_person: 4.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentUsers)
	assert.Equal(t, 14, cfg.Notify.TrendWindowDays)
	require.Len(t, cfg.Benchmark.Bands, 2)
	assert.Equal(t, 45, cfg.Benchmark.Bands[0].MaxAge)
	assert.InDelta(t, 1600, cfg.Benchmark.Bands[1].AvgPremium, 0.001)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Benchmark.Bands = DefaultBands()
		cfg.Trend = TrendConfig{DropThreshold: 10, ImprovementThreshold: 15, PremiumGapPct: 20, CoverageGapPct: 30}
		cfg.Notify = NotifyConfig{TrendWindowDays: 7, GapWindowDays: 30}
		cfg.Cohort = CohortConfig{AgeSpread: 5, MinCohortSize: 5}
		cfg.Batch = BatchConfig{MaxConcurrentUsers: 8}
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("empty bands", func(t *testing.T) {
		cfg := base()
		cfg.Benchmark.Bands = nil
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bands must not be empty")
	})

	t.Run("non-ascending bands", func(t *testing.T) {
		cfg := base()
		cfg.Benchmark.Bands[1].MaxAge = 25
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ascending")
	})

	t.Run("closed last band", func(t *testing.T) {
		cfg := base()
		cfg.Benchmark.Bands[3].MaxAge = 99
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open-ended")
	})

	t.Run("zero premium denominator", func(t *testing.T) {
		cfg := base()
		cfg.Benchmark.Bands[0].AvgPremium = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "avg_premium")
	})

	t.Run("bad dedup window", func(t *testing.T) {
		cfg := base()
		cfg.Notify.GapWindowDays = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gap_window_days")
	})
}
