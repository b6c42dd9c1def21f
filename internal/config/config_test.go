package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "OVERFAST_BASE_URL", "SNAPSHOT_FILE", "CACHE_TTL", "FETCH_COOLDOWN", "SESSION_TTL", "DATABASE_URL", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Expected port %s, got %s", DefaultPort, cfg.Port)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, cfg.BaseURL)
	}
	if cfg.CacheTTL != 60*time.Second {
		t.Errorf("Expected 60s cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.Cooldown != 5*time.Second {
		t.Errorf("Expected 5s cooldown, got %v", cfg.Cooldown)
	}
	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("Expected %v session TTL, got %v", DefaultSessionTTL, cfg.SessionTTL)
	}
	if cfg.DatabaseURL != "" || len(cfg.KafkaBrokers) != 0 {
		t.Error("Expected optional integrations to be disabled")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OVERFAST_BASE_URL", "http://localhost:9000/")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("FETCH_COOLDOWN", "0s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9000" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.BaseURL)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Errorf("Expected 2m, got %v", cfg.CacheTTL)
	}
	if cfg.Cooldown != 0 {
		t.Errorf("Expected zero cooldown, got %v", cfg.Cooldown)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid CACHE_TTL")
	}
}
