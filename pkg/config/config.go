// Package config reads runtime configuration from the environment and
// the optional contract-defaults profile shipped as YAML.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration.
type Config struct {
	LogLevel string
	DataDir  string

	// Store selection: "sqlite" (default) or "postgres".
	StoreDriver string
	SQLitePath  string
	PostgresURL string

	// Redis run-lock settings; empty address disables the lock.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RunLockTTL    time.Duration

	// OTLP endpoint; empty disables telemetry export.
	OTLPEndpoint string
	Environment  string

	// Path to the contract defaults YAML; empty skips defaults.
	DefaultsPath string
}

// Load reads configuration from environment variables, falling back to
// local development defaults.
func Load() *Config {
	cfg := &Config{
		LogLevel:      getenv("LOG_LEVEL", "INFO"),
		DataDir:       getenv("DATA_DIR", "data"),
		StoreDriver:   getenv("STORE_DRIVER", "sqlite"),
		SQLitePath:    getenv("SQLITE_PATH", "data/keiyaku.db"),
		PostgresURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		OTLPEndpoint:  os.Getenv("OTLP_ENDPOINT"),
		Environment:   getenv("ENVIRONMENT", "development"),
		DefaultsPath:  os.Getenv("CONTRACT_DEFAULTS_PATH"),
		RunLockTTL:    5 * time.Minute,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("RUN_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RunLockTTL = d
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
