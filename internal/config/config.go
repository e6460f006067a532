package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	// DBDriver selects the table store backend: "postgres", "sqlite" or "memory".
	DBDriver string
	DBConn   string

	// Table store retry policy.
	RetryMax  int
	RetryBase time.Duration

	// TTL of the shared read cache over the table store.
	CacheTTL time.Duration

	// Feed truncation limits. The global feed and the per-account feed use
	// different counts; both are kept configurable on purpose.
	FeedLimit        int
	AccountFeedLimit int

	// SavingsAccount is the account tracked by the monthly savings goal.
	SavingsAccount string

	// ReconcileSchedule is a cron spec for the balance reconciliation job.
	// Empty disables the job.
	ReconcileSchedule string
}

// NewConfig loads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		DBDriver:          getEnv("DB_DRIVER", "postgres"),
		DBConn:            getEnv("DB_CONN", "host=localhost port=5432 user=finance password=finance dbname=finance sslmode=disable"),
		SavingsAccount:    getEnv("SAVINGS_ACCOUNT", "NU"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", ""),
	}

	var err error
	if cfg.RetryMax, err = getIntEnv("RETRY_MAX", 5); err != nil {
		return nil, err
	}
	if cfg.RetryBase, err = getDurationEnv("RETRY_BASE", 800*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDurationEnv("CACHE_TTL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FeedLimit, err = getIntEnv("FEED_LIMIT", 8); err != nil {
		return nil, err
	}
	if cfg.AccountFeedLimit, err = getIntEnv("ACCOUNT_FEED_LIMIT", 7); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBDriver != "memory" && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required for driver %q", cfg.DBDriver)
	}
	if cfg.RetryMax < 1 {
		return nil, fmt.Errorf("RETRY_MAX must be at least 1, got %d", cfg.RetryMax)
	}
	if cfg.FeedLimit < 1 || cfg.AccountFeedLimit < 1 {
		return nil, fmt.Errorf("feed limits must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
