// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// GitHubToken is an optional fallback credential used for requests that
	// carry no bearer token of their own (e.g. owner-side loop management).
	GitHubToken   string
	ListenAddr    string
	DBPath        string
	VerifyTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. LOOPGATE_GITHUB_TOKEN is optional; candidate credentials normally
// arrive per-request. Optional variables with defaults:
// LOOPGATE_LISTEN_ADDR (127.0.0.1:8080), LOOPGATE_DB_PATH (loopgate.db),
// LOOPGATE_VERIFY_TIMEOUT (30s, bounds all outbound hosting-API calls within
// one verification pass).
func Load() (*Config, error) {
	token := os.Getenv("LOOPGATE_GITHUB_TOKEN")

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("LOOPGATE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "loopgate.db"
	if v, ok := os.LookupEnv("LOOPGATE_DB_PATH"); ok {
		dbPath = v
	}

	verifyTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("LOOPGATE_VERIFY_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("LOOPGATE_VERIFY_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("LOOPGATE_VERIFY_TIMEOUT must be positive, got %q", v)
		}
		verifyTimeout = parsed
	}

	return &Config{
		GitHubToken:   token,
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		VerifyTimeout: verifyTimeout,
	}, nil
}
