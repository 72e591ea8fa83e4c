package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hitoshi/linkpage/internal/logger"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "info")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.DatabaseURL != unreachableDatabaseURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, unreachableDatabaseURL)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for an http BASE_URL")
	}

	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { logger.SetLevel("info") })

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled when LOG_LEVEL=warn")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled when LOG_LEVEL=warn")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL(unreachableDatabaseURL)
	if bytes.Contains([]byte(got), []byte("pass")) {
		t.Errorf("maskDatabaseURL leaked credentials: %q", got)
	}
	if got := maskDatabaseURL("short"); got != "***" {
		t.Errorf("maskDatabaseURL(short) = %q, want ***", got)
	}
}
