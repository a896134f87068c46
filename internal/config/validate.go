package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Benchmark.Bands) == 0 {
		errs = append(errs, "benchmark.bands must not be empty")
	}
	prevMax := 0
	for i, b := range c.Benchmark.Bands {
		last := i == len(c.Benchmark.Bands)-1
		if !last {
			if b.MaxAge <= prevMax {
				errs = append(errs, fmt.Sprintf("benchmark.bands[%d].max_age must be ascending", i))
			}
			prevMax = b.MaxAge
		} else if b.MaxAge != 0 {
			errs = append(errs, "benchmark.bands: last band must be open-ended (max_age 0)")
		}
		if b.AvgPremium <= 0 {
			errs = append(errs, fmt.Sprintf("benchmark.bands[%d].avg_premium must be > 0", i))
		}
		if b.AvgCoverage <= 0 {
			errs = append(errs, fmt.Sprintf("benchmark.bands[%d].avg_coverage must be > 0", i))
		}
		if b.AvgPoliciesPerPerson <= 0 {
			errs = append(errs, fmt.Sprintf("benchmark.bands[%d].avg_policies_per_person must be > 0", i))
		}
	}

	if c.Trend.DropThreshold <= 0 {
		errs = append(errs, "trend.drop_threshold must be > 0")
	}
	if c.Trend.ImprovementThreshold <= 0 {
		errs = append(errs, "trend.improvement_threshold must be > 0")
	}
	if c.Notify.TrendWindowDays <= 0 {
		errs = append(errs, "notify.trend_window_days must be > 0")
	}
	if c.Notify.GapWindowDays <= 0 {
		errs = append(errs, "notify.gap_window_days must be > 0")
	}
	if c.Cohort.AgeSpread < 0 {
		errs = append(errs, "cohort.age_spread must be >= 0")
	}
	if c.Cohort.MinCohortSize < 1 {
		errs = append(errs, "cohort.min_cohort_size must be >= 1")
	}
	if c.Batch.MaxConcurrentUsers < 1 {
		errs = append(errs, "batch.max_concurrent_users must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RequireDatabase ensures a database URL is configured for commands that
// touch the store.
func (c *Config) RequireDatabase() error {
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required (set PORTFOLIO_STORE_DATABASE_URL or config.yaml)")
	}
	return nil
}
