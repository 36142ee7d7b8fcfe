// Package config loads the process configuration from the environment once
// at startup. Nothing here is mutated at runtime; the proving strategy in
// particular is fixed for the life of the process.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"presentia/internal/location"
	"presentia/internal/proof"
)

// Config is the full server configuration.
type Config struct {
	Addr        string
	PostgresDSN string
	Redis       RedisConfig

	// Proving selects the proof engine. StrategyReal requires ArtifactDir
	// to hold the compiled circuit and keys; missing artifacts are fatal at
	// startup, never a silent fallback to simulation.
	Proving             proof.Strategy
	ArtifactDir         string
	MaxConcurrentProofs int64

	// SaltSecret keys enrollment-salt encryption. Required.
	SaltSecret []byte

	Geofence    location.Geofence
	VPNCIDRs    []string
	LastSeenTTL time.Duration

	Audit AuditConfig
}

// RedisConfig mirrors the connection knobs for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig configures the optional Kafka audit sink. Empty brokers means
// audit events stay in the primary store only.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("PRESENTIA_ADDR", ":8080"),
		PostgresDSN:         os.Getenv("PRESENTIA_POSTGRES_DSN"),
		Proving:             proof.StrategySimulation,
		ArtifactDir:         envOr("PRESENTIA_ARTIFACT_DIR", "artifacts"),
		MaxConcurrentProofs: 4,
		LastSeenTTL:         24 * time.Hour,
		Redis: RedisConfig{
			URL:          os.Getenv("PRESENTIA_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			Topic: envOr("PRESENTIA_AUDIT_TOPIC", "presentia.registry.audit"),
		},
	}

	if mode := os.Getenv("PRESENTIA_PROVING_MODE"); mode != "" {
		switch proof.Strategy(mode) {
		case proof.StrategySimulation, proof.StrategyReal:
			cfg.Proving = proof.Strategy(mode)
		default:
			return Config{}, fmt.Errorf("unknown proving mode %q", mode)
		}
	}

	if v := os.Getenv("PRESENTIA_MAX_CONCURRENT_PROOFS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid PRESENTIA_MAX_CONCURRENT_PROOFS %q", v)
		}
		cfg.MaxConcurrentProofs = n
	}

	secret := os.Getenv("PRESENTIA_SALT_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("PRESENTIA_SALT_SECRET is required")
	}
	cfg.SaltSecret = []byte(secret)

	if err := loadGeofence(&cfg); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("PRESENTIA_VPN_CIDRS"); v != "" {
		cfg.VPNCIDRs = splitAndTrim(v)
	}
	if v := os.Getenv("PRESENTIA_LASTSEEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRESENTIA_LASTSEEN_TTL %q: %w", v, err)
		}
		cfg.LastSeenTTL = ttl
	}
	if v := os.Getenv("PRESENTIA_AUDIT_BROKERS"); v != "" {
		cfg.Audit.Brokers = splitAndTrim(v)
	}
	return cfg, nil
}

// loadGeofence reads the geofence either from a JSON file path or an inline
// JSON value; the file path wins when both are set.
func loadGeofence(cfg *Config) error {
	raw := []byte(os.Getenv("PRESENTIA_GEOFENCE_JSON"))
	if path := os.Getenv("PRESENTIA_GEOFENCE_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read geofence file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return fmt.Errorf("geofence configuration is required (PRESENTIA_GEOFENCE_FILE or PRESENTIA_GEOFENCE_JSON)")
	}
	if err := json.Unmarshal(raw, &cfg.Geofence); err != nil {
		return fmt.Errorf("parse geofence: %w", err)
	}
	return cfg.Geofence.Validate()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
