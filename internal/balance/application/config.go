package application

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	balance "gridbalance/internal/balance/domain"
)

// ScheduleSettings configure one granularity scheduler.
type ScheduleSettings struct {
	Expr           string        `yaml:"expr"`
	LookbackDays   int           `yaml:"lookback_days"`
	Backfill       bool          `yaml:"backfill"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RetryOnFailure bool          `yaml:"retry_on_failure"`
}

// Config is the ingestion configuration: one schedule per granularity plus
// the global enable flag.
type Config struct {
	Enabled   bool                                     `yaml:"enabled"`
	Schedules map[balance.Granularity]ScheduleSettings `yaml:"schedules"`
}

// LoadConfig builds defaults, merges an optional YAML file pointed to by
// INGEST_CONFIG, then applies env overrides.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("INGEST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		fileCfg := defaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}

	cfg.Enabled = getenvBoolDefault("INGEST_ENABLED", cfg.Enabled)
	for g, settings := range cfg.Schedules {
		prefix := "INGEST_" + upperGranularity(g)
		settings.Expr = getenvDefault(prefix+"_SCHEDULE", settings.Expr)
		settings.LookbackDays = getenvIntDefault(prefix+"_LOOKBACK_DAYS", settings.LookbackDays)
		settings.Backfill = getenvBoolDefault(prefix+"_BACKFILL", settings.Backfill)
		settings.MaxRetries = getenvIntDefault(prefix+"_MAX_RETRIES", settings.MaxRetries)
		settings.RetryDelay = getenvDuration(prefix+"_RETRY_DELAY", settings.RetryDelay)
		cfg.Schedules[g] = settings
	}

	for g, settings := range cfg.Schedules {
		if _, err := ParseSchedule(settings.Expr); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", g, err)
		}
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Enabled: true,
		Schedules: map[balance.Granularity]ScheduleSettings{
			balance.GranularityHour: {
				Expr:           "hourly@10",
				LookbackDays:   7,
				Backfill:       true,
				MaxRetries:     3,
				RetryDelay:     5 * time.Minute,
				RetryOnFailure: true,
			},
			balance.GranularityDay: {
				Expr:           "daily@02:30",
				LookbackDays:   90,
				Backfill:       true,
				MaxRetries:     3,
				RetryDelay:     15 * time.Minute,
				RetryOnFailure: true,
			},
			balance.GranularityMonth: {
				Expr:           "monthly@01 03:30",
				LookbackDays:   730,
				Backfill:       true,
				MaxRetries:     3,
				RetryDelay:     30 * time.Minute,
				RetryOnFailure: true,
			},
			balance.GranularityYear: {
				Expr:           "yearly@01-02 04:30",
				LookbackDays:   3650,
				Backfill:       true,
				MaxRetries:     3,
				RetryDelay:     time.Hour,
				RetryOnFailure: true,
			},
		},
	}
}

func upperGranularity(g balance.Granularity) string {
	switch g {
	case balance.GranularityHour:
		return "HOUR"
	case balance.GranularityDay:
		return "DAY"
	case balance.GranularityMonth:
		return "MONTH"
	case balance.GranularityYear:
		return "YEAR"
	default:
		return "UNKNOWN"
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
