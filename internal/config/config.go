// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/truckboard/truckboard/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir         string   // Base directory for all databases (always absolute)
	Port            int      // HTTP listen port
	LogLevel        string   // zerolog level string
	DevMode         bool     // Relaxed CORS, pretty logging
	FeedShardURLs   []string // Upstream weekly-record shard endpoints
	LoadFeedURLs    []string // Upstream per-load shard endpoints (regional mix, records)
	FeedTimeout     time.Duration
	AllowPartial    bool   // Proceed with whatever shards resolved on partial fetch failure
	RefreshSchedule string // Cron spec for periodic data refresh
}

// Load reads configuration from environment variables.
// A .env file is loaded first if present; explicit environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. TRUCKBOARD_DATA_DIR environment variable
	// 2. ./data relative to the working directory
	// Always resolved to an absolute path and created if missing.
	dataDir := getEnv("TRUCKBOARD_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("TRUCKBOARD_PORT", 8010),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		FeedShardURLs:   getEnvAsList("FEED_SHARD_URLS"),
		LoadFeedURLs:    getEnvAsList("LOAD_FEED_URLS"),
		FeedTimeout:     getEnvAsDuration("FEED_TIMEOUT", 30*time.Second),
		AllowPartial:    getEnvAsBool("FEED_ALLOW_PARTIAL", true),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	// Feed URLs are optional: without them the server runs on the
	// last persisted snapshot and manual record submission only.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList parses a comma-separated environment variable into a slice,
// trimming whitespace and dropping empty entries.
func getEnvAsList(key string) []string {
	return utils.ParseCSV(os.Getenv(key))
}
