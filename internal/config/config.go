package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort         = "8080"
	DefaultBaseURL      = "https://overfast-api.tekrop.fr"
	DefaultSnapshotFile = "data/snapshots.csv"
	DefaultCacheTTL     = 60 * time.Second
	DefaultCooldown     = 5 * time.Second
	DefaultSessionTTL   = 24 * time.Hour
)

// Config holds runtime settings for the dashboard server
type Config struct {
	Port         string
	BaseURL      string
	SnapshotFile string
	CacheTTL     time.Duration
	Cooldown     time.Duration
	SessionTTL   time.Duration

	// Optional integrations, disabled when empty
	DatabaseURL  string
	KafkaBrokers []string
}

// Load reads configuration from the environment. A .env file in the working
// directory (or its parent) is loaded first but never overrides variables
// that are already set.
func Load() (Config, error) {
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded .env from: %s", path)
			break
		}
	}

	cfg := Config{
		Port:         getenv("PORT", DefaultPort),
		BaseURL:      strings.TrimRight(getenv("OVERFAST_BASE_URL", DefaultBaseURL), "/"),
		SnapshotFile: getenv("SNAPSHOT_FILE", DefaultSnapshotFile),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
	}

	var err error
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", DefaultCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.Cooldown, err = durationEnv("FETCH_COOLDOWN", DefaultCooldown); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", DefaultSessionTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
