// Package config resolves the application configuration from the
// environment, with an optional .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all settings for the groundmeas services.
type Config struct {
	// DatabaseURL is the Postgres connection string. Empty selects the
	// in-memory demo store.
	DatabaseURL string
	// Backend names the numeric backend ("default" or "accelerated").
	Backend string
	Server  ServerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	WorkerCount     int
	WebhookURL      string
	EnableProfiling bool
	ProfilingPort   string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: "default",
		Server: ServerConfig{
			Port:          "8080",
			WorkerCount:   5,
			ProfilingPort: "6060",
		},
	}
}

// Load reads configuration from a .env file (when present) and the
// environment, on top of the defaults.
func Load() *Config {
	// missing .env is fine, the environment still applies
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("GROUNDMEAS_DB"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GROUNDMEAS_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("GROUNDMEAS_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GROUNDMEAS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.WorkerCount = n
		}
	}
	if v := os.Getenv("GROUNDMEAS_WEBHOOK_URL"); v != "" {
		cfg.Server.WebhookURL = v
	}
	if v := os.Getenv("GROUNDMEAS_PPROF"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.EnableProfiling = b
		}
	}
	if v := os.Getenv("GROUNDMEAS_PPROF_PORT"); v != "" {
		cfg.Server.ProfilingPort = v
	}
	return cfg
}
