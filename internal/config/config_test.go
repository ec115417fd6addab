package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected default port: %s", cfg.Port)
	}
	if cfg.SessionExpireHours != 24 {
		t.Fatalf("unexpected default session expiry: %d", cfg.SessionExpireHours)
	}
	if cfg.RedisURL == "" {
		t.Fatal("expected a default redis url")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_EXPIRE_HOURS", "1")
	t.Setenv("SEED_ADMIN_USERNAME", "root")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("unexpected port: %s", cfg.Port)
	}
	if cfg.SessionExpireHours != 1 {
		t.Fatalf("unexpected session expiry: %d", cfg.SessionExpireHours)
	}
	if cfg.SeedAdminUsername != "root" {
		t.Fatalf("unexpected seed admin: %s", cfg.SeedAdminUsername)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("SESSION_EXPIRE_HOURS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SessionExpireHours != 24 {
		t.Fatalf("expected fallback to default, got %d", cfg.SessionExpireHours)
	}
}

func TestValidateReleaseMode(t *testing.T) {
	cfg := &Config{
		GinMode:            "release",
		RedisURL:           "redis://127.0.0.1:6379/0",
		SessionExpireHours: 24,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("release mode without SESSION_SECRET must fail validation")
	}

	cfg.SessionSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsNonPositiveExpiry(t *testing.T) {
	cfg := &Config{
		GinMode:            "debug",
		SessionExpireHours: 0,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("non-positive expiry must fail validation")
	}
}
