package config_test

import (
	"strings"
	"testing"

	"github.com/birddigital/voicebridge/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CARRIER_ACCOUNT_SID", "AC-test")
	t.Setenv("CARRIER_AUTH_TOKEN", "token")
	t.Setenv("REALTIME_API_KEY", "sk-test")
	t.Setenv("STORE_DSN", "postgres://localhost/voicebridge")
	t.Setenv("API_BASE_URL", "https://bridge.example.com")
}

func TestLoadSucceedsWithRequiredVars(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InstanceID != "local" {
		t.Errorf("expected default instance id 'local', got %q", cfg.InstanceID)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.LogLevel)
	}
}

func TestLoadMissingRequiredVarReturnsJoinedError(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CARRIER_ACCOUNT_SID", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for missing CARRIER_ACCOUNT_SID, got nil")
	}
	if !strings.Contains(err.Error(), "CARRIER_ACCOUNT_SID") {
		t.Errorf("error should mention CARRIER_ACCOUNT_SID, got: %v", err)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL, got nil")
	}
	if !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("error should mention LOG_LEVEL, got: %v", err)
	}
}

func TestLoadUsesInstanceIDFromFlyAllocID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FLY_ALLOC_ID", "01H9Z-instance")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InstanceID != "01H9Z-instance" {
		t.Errorf("expected instance id from FLY_ALLOC_ID, got %q", cfg.InstanceID)
	}
}

func TestLoadRejectsNonIntegerMaxSessionDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_SESSION_DURATION_MINUTES", "soon")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for non-integer MAX_SESSION_DURATION_MINUTES, got nil")
	}
}
