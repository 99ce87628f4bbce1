// Package config loads and validates voicebridge's process configuration
// from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the root configuration for the voicebridge process.
type Config struct {
	// ListenAddr is the TCP address the HTTP server binds to.
	ListenAddr string

	// APIBaseURL is this instance's externally reachable base URL. It is
	// required by Validate; the affinity replay and the ingress stream URL
	// do not read it (the replay sets no Location header, and the stream
	// URL is built from the webhook request's Host).
	APIBaseURL string

	// InstanceID identifies this process for affinity routing. Set from
	// FLY_ALLOC_ID when running on Fly.io machines; falls back to "local".
	InstanceID string

	// CarrierAccountSID and CarrierAuthToken are the carrier account
	// credentials. Both are required by Validate; the ingress webhook does
	// not verify request signatures with them.
	CarrierAccountSID string
	CarrierAuthToken  string

	// RealtimeAPIKey and RealtimeBaseURL configure the C2 link to the
	// realtime LLM endpoint.
	RealtimeAPIKey  string
	RealtimeBaseURL string

	// StoreDSN is the Postgres connection string for pkg/store and
	// pkg/retrieval.
	StoreDSN string

	// EmbeddingsAPIKey authenticates the embeddings client used by the
	// retrieval subsystem.
	EmbeddingsAPIKey string

	// LogLevel controls slog verbosity. Valid values: debug, info, warn, error.
	LogLevel string

	// MaxSessionDuration bounds how long a single call may stay open.
	MaxSessionDuration time.Duration
}

const defaultMaxSessionDurationMinutes = 60

// Load reads Config from the process environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         envOr("LISTEN_ADDR", ":8080"),
		APIBaseURL:         os.Getenv("API_BASE_URL"),
		InstanceID:         envOr("FLY_ALLOC_ID", "local"),
		CarrierAccountSID:  os.Getenv("CARRIER_ACCOUNT_SID"),
		CarrierAuthToken:   os.Getenv("CARRIER_AUTH_TOKEN"),
		RealtimeAPIKey:     os.Getenv("REALTIME_API_KEY"),
		RealtimeBaseURL:    os.Getenv("REALTIME_BASE_URL"),
		StoreDSN:           os.Getenv("STORE_DSN"),
		EmbeddingsAPIKey:   os.Getenv("EMBEDDINGS_API_KEY"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		MaxSessionDuration: defaultMaxSessionDurationMinutes * time.Minute,
	}

	if raw := os.Getenv("MAX_SESSION_DURATION_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: MAX_SESSION_DURATION_MINUTES %q is not an integer: %w", raw, err)
		}
		cfg.MaxSessionDuration = time.Duration(minutes) * time.Minute
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains every value required to serve a call.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.CarrierAccountSID == "" {
		errs = append(errs, errors.New("CARRIER_ACCOUNT_SID is required"))
	}
	if cfg.CarrierAuthToken == "" {
		errs = append(errs, errors.New("CARRIER_AUTH_TOKEN is required"))
	}
	if cfg.RealtimeAPIKey == "" {
		errs = append(errs, errors.New("REALTIME_API_KEY is required"))
	}
	if cfg.StoreDSN == "" {
		errs = append(errs, errors.New("STORE_DSN is required"))
	}
	if cfg.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	if !isValidLogLevel(cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.MaxSessionDuration <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SESSION_DURATION_MINUTES must be positive, got %s", cfg.MaxSessionDuration))
	}

	return errors.Join(errs...)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
