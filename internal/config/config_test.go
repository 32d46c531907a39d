package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REFRESH_INTERVAL_SECS", "")
	t.Setenv("DERIVATION_MODE", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.RefreshIntervalSecs != 3600 {
		t.Fatalf("expected default refresh interval 3600, got %d", cfg.RefreshIntervalSecs)
	}
	if cfg.DerivationMode != "proxy" {
		t.Fatalf("expected default derivation mode proxy, got %s", cfg.DerivationMode)
	}
	if cfg.AnomalyThreshold != 0.7 {
		t.Fatalf("expected default anomaly threshold 0.7, got %f", cfg.AnomalyThreshold)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("BULLAWARE_API_KEY", "key")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("REFRESH_INTERVAL_SECS", "120")
	t.Setenv("DERIVATION_MODE", "historical")

	cfg := Load()
	if cfg.BullAwareAPIKey != "key" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RefreshIntervalSecs != 120 {
		t.Fatalf("expected refresh interval 120, got %d", cfg.RefreshIntervalSecs)
	}
	if cfg.DerivationMode != "historical" {
		t.Fatalf("expected derivation mode historical, got %s", cfg.DerivationMode)
	}

	t.Setenv("REFRESH_INTERVAL_SECS", "bad")
	t.Setenv("DERIVATION_MODE", "psychic")
	cfg = Load()
	if cfg.RefreshIntervalSecs != 3600 {
		t.Fatalf("invalid refresh interval should fall back to default, got %d", cfg.RefreshIntervalSecs)
	}
	if cfg.DerivationMode != "proxy" {
		t.Fatalf("invalid derivation mode should fall back to proxy, got %s", cfg.DerivationMode)
	}
}
