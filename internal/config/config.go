// Package config centralizes how AgriTrust reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// StoreBackend selects the Record Store implementation.
type StoreBackend string

const (
	StoreFile     StoreBackend = "file"
	StorePostgres StoreBackend = "postgres"
)

// Config represents runtime configuration for the service. Struct fields in
// Go begin with capital letters when they must be exported (visible to other
// packages), while lower-case fields remain private.
type Config struct {
	Address string

	// Persistence.
	StoreBackend StoreBackend
	DataFile     string
	DatabaseURL  string

	// External ledger gateway. Anchoring is attempted only when both the
	// RPC URL and contract address are present.
	LedgerRPCURL    string
	LedgerContract  string
	AnchorTimeout   time.Duration
	ReanchorWorkers int

	// Redis / asynq for the out-of-process re-anchor worker.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Object storage for ledger snapshots.
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
	S3UseSSL       bool
	SnapshotBucket string
}

const (
	defaultAddress         = ":8080"
	defaultAnchorTimeout   = 10 * time.Second
	defaultReanchorWorkers = 2
	defaultSnapshotBucket  = "agritrust-snapshots"
	defaultS3Region        = "us-east-1"
)

// Load reads configuration from environment variables falling back to
// defaults. It follows Go's convention of returning (value, error) so callers
// can handle failures rather than panicking.
func Load() (*Config, error) {
	cfg := &Config{
		Address:         readEnv("AGRITRUST_ADDRESS", defaultAddress),
		StoreBackend:    StoreBackend(strings.ToLower(readEnv("AGRITRUST_STORE", string(StoreFile)))),
		DataFile:        readEnv("AGRITRUST_DATA_FILE", defaultDataFile()),
		DatabaseURL:     readEnv("AGRITRUST_DATABASE_URL", ""),
		LedgerRPCURL:    readEnv("AGRITRUST_LEDGER_RPC_URL", ""),
		LedgerContract:  readEnv("AGRITRUST_LEDGER_CONTRACT", ""),
		AnchorTimeout:   parseDuration("AGRITRUST_ANCHOR_TIMEOUT", defaultAnchorTimeout),
		ReanchorWorkers: parseInt("AGRITRUST_REANCHOR_WORKERS", defaultReanchorWorkers),
		RedisAddr:       readEnv("AGRITRUST_REDIS_ADDR", ""),
		RedisPassword:   readEnv("AGRITRUST_REDIS_PASSWORD", ""),
		RedisDB:         parseInt("AGRITRUST_REDIS_DB", 0),
		S3Endpoint:      readEnv("AGRITRUST_S3_ENDPOINT", ""),
		S3AccessKey:     readEnv("AGRITRUST_S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("AGRITRUST_S3_SECRET_KEY", ""),
		S3Region:        readEnv("AGRITRUST_S3_REGION", defaultS3Region),
		S3UseSSL:        parseBool("AGRITRUST_S3_USE_SSL", false),
		SnapshotBucket:  readEnv("AGRITRUST_SNAPSHOT_BUCKET", defaultSnapshotBucket),
	}
	switch cfg.StoreBackend {
	case StoreFile:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("AGRITRUST_DATABASE_URL is required when AGRITRUST_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if cfg.AnchorTimeout <= 0 {
		cfg.AnchorTimeout = defaultAnchorTimeout
	}
	if cfg.ReanchorWorkers <= 0 {
		cfg.ReanchorWorkers = defaultReanchorWorkers
	}
	return cfg, nil
}

// AnchorConfigured reports whether the external ledger gateway is usable.
func (c *Config) AnchorConfigured() bool {
	return c.LedgerRPCURL != "" && c.LedgerContract != ""
}

// QueueConfigured reports whether asynq/Redis re-anchoring is enabled.
func (c *Config) QueueConfigured() bool {
	return c.RedisAddr != ""
}

// SnapshotConfigured reports whether S3 snapshot export is enabled.
func (c *Config) SnapshotConfigured() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func defaultDataFile() string {
	return filepath.Join("data", "batches.json")
}

func readEnv(key, def string) string {
	// LookupEnv returns (value, true) when the variable is present, mirroring
	// Go's pattern of providing extra information via multiple return values.
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
