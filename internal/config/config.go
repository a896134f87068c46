// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Trend     TrendConfig     `yaml:"trend" mapstructure:"trend"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Cohort    CohortConfig    `yaml:"cohort" mapstructure:"cohort"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Tips      TipsConfig      `yaml:"tips" mapstructure:"tips"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AgeBand is one row of the market benchmark table. MaxAge is exclusive;
// a zero MaxAge marks the open-ended last band.
type AgeBand struct {
	MaxAge               int     `yaml:"max_age" mapstructure:"max_age"`
	AvgPremium           float64 `yaml:"avg_premium" mapstructure:"avg_premium"`
	AvgCoverage          float64 `yaml:"avg_coverage" mapstructure:"avg_coverage"`
	AvgPoliciesPerPerson float64 `yaml:"avg_policies_per_person" mapstructure:"avg_policies_per_person"`
}

// BenchmarkConfig holds the ordered age-band reference table. Bands are
// policy data, not derived data, and are swappable via config.
type BenchmarkConfig struct {
	Bands []AgeBand `yaml:"bands" mapstructure:"bands"`
}

// TrendConfig holds the score-transition thresholds.
type TrendConfig struct {
	DropThreshold        float64 `yaml:"drop_threshold" mapstructure:"drop_threshold"`
	ImprovementThreshold float64 `yaml:"improvement_threshold" mapstructure:"improvement_threshold"`
	PremiumGapPct        float64 `yaml:"premium_gap_pct" mapstructure:"premium_gap_pct"`
	CoverageGapPct       float64 `yaml:"coverage_gap_pct" mapstructure:"coverage_gap_pct"`
}

// NotifyConfig holds the per-type dedup windows in days.
type NotifyConfig struct {
	TrendWindowDays int `yaml:"trend_window_days" mapstructure:"trend_window_days"`
	GapWindowDays   int `yaml:"gap_window_days" mapstructure:"gap_window_days"`
}

// CohortConfig configures cohort benchmarking.
type CohortConfig struct {
	AgeSpread     int `yaml:"age_spread" mapstructure:"age_spread"`
	MinCohortSize int `yaml:"min_cohort_size" mapstructure:"min_cohort_size"`
}

// BatchConfig configures the batch scoring pass.
type BatchConfig struct {
	MaxConcurrentUsers int    `yaml:"max_concurrent_users" mapstructure:"max_concurrent_users"`
	UserTimeoutSecs    int    `yaml:"user_timeout_secs" mapstructure:"user_timeout_secs"`
	Schedule           string `yaml:"schedule" mapstructure:"schedule"`
}

// TipsConfig configures the text-generation collaborator.
type TipsConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_users", 8)
	v.SetDefault("batch.user_timeout_secs", 30)
	v.SetDefault("batch.schedule", "0 3 * * *")
	v.SetDefault("trend.drop_threshold", 10)
	v.SetDefault("trend.improvement_threshold", 15)
	v.SetDefault("trend.premium_gap_pct", 20)
	v.SetDefault("trend.coverage_gap_pct", 30)
	v.SetDefault("notify.trend_window_days", 7)
	v.SetDefault("notify.gap_window_days", 30)
	v.SetDefault("cohort.age_spread", 5)
	v.SetDefault("cohort.min_cohort_size", 5)
	v.SetDefault("tips.model", "claude-haiku-4-5-20251001")
	v.SetDefault("tips.timeout_secs", 5)
	v.SetDefault("tips.rate_per_sec", 2)
	v.SetDefault("benchmark.bands", defaultBandMaps())

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// DefaultBands returns the reference market averages: four contiguous bands
// ascending by age, last band open-ended.
func DefaultBands() []AgeBand {
	return []AgeBand{
		{MaxAge: 30, AvgPremium: 800, AvgCoverage: 500_000, AvgPoliciesPerPerson: 2.5},
		{MaxAge: 40, AvgPremium: 1200, AvgCoverage: 800_000, AvgPoliciesPerPerson: 3.5},
		{MaxAge: 50, AvgPremium: 1500, AvgCoverage: 1_200_000, AvgPoliciesPerPerson: 4.2},
		{MaxAge: 0, AvgPremium: 1800, AvgCoverage: 1_500_000, AvgPoliciesPerPerson: 4.8},
	}
}

// defaultBandMaps renders DefaultBands as the generic maps viper expects for
// slice defaults.
func defaultBandMaps() []map[string]any {
	bands := DefaultBands()
	out := make([]map[string]any, len(bands))
	for i, b := range bands {
		out[i] = map[string]any{
			"max_age":                 b.MaxAge,
			"avg_premium":             b.AvgPremium,
			"avg_coverage":            b.AvgCoverage,
			"avg_policies_per_person": b.AvgPoliciesPerPerson,
		}
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
