package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  addr: ":9000"
auth:
  jwt_secret: file-secret
  token_ttl: 1h
billing:
  catch_up_limit_days: 30
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr not read from file: %s", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("env should override file, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Fatalf("token ttl: %v", cfg.Auth.TokenTTL)
	}
	if cfg.Billing.CatchUpLimitDays != 30 {
		t.Fatalf("catch up limit: %d", cfg.Billing.CatchUpLimitDays)
	}
	if cfg.Server.RateLimitBurst != 100 {
		t.Fatalf("default burst missing: %d", cfg.Server.RateLimitBurst)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("default addr: %s", cfg.Server.Addr)
	}
	// The scheduler gates each org on its configured run hour, so the
	// default tick has to be hourly.
	if cfg.Billing.Schedule != "0 * * * *" {
		t.Fatalf("default schedule: %s", cfg.Billing.Schedule)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}
