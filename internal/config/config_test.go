package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "RECORD_STORE_MODE", "SESSION_TTL", "JWT_SECRET", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.RecordStoreMode != config.StoreModeHTTP {
		t.Errorf("expected http mode, got %s", cfg.RecordStoreMode)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.JWTSecret != "" {
		t.Error("expected no secret by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RECORD_STORE_MODE", "MEMORY")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := config.Load()
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.RecordStoreMode != config.StoreModeMemory {
		t.Errorf("expected memory mode, got %s", cfg.RecordStoreMode)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback retries 3, got %d", cfg.MaxRetries)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LOG_LEVEL=debug\nDOTENV_ONLY_KEY=\"from-file\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DOTENV_ONLY_KEY", "")
	os.Unsetenv("DOTENV_ONLY_KEY")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("expected existing value kept, got '%s'", got)
	}
	if got := os.Getenv("DOTENV_ONLY_KEY"); got != "from-file" {
		t.Errorf("expected value from file, got '%s'", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}
