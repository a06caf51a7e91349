// Package config loads process configuration from environment variables,
// the same flat env-var-with-defaults shape used across this stack's
// services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the settings shared by the CLI and any long-running
// execution worker.
type Config struct {
	WorkspaceRoot string
	DatabasePath  string
	PolicyPath    string
	LogLevel      string
	LogFormat     string

	RedisAddr string // empty disables the idempotency cache tier

	ApprovalSecret string // HMAC key for GovernanceApproval tokens

	ArtifactRetentionDays  int
	ArtifactRetentionCount int
	ArchiveBackend         string // "", "s3", or "gcs"
	ArchiveBucket          string

	LockStaleAfter time.Duration
	LockTimeout    time.Duration

	OTelEndpoint string // empty disables span/metric export
}

// Load reads configuration from the environment, applying the same
// conservative local-first defaults as Default.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("LONELYCAT_WORKSPACE_ROOT"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return nil, fmt.Errorf("config: resolving LONELYCAT_WORKSPACE_ROOT: %w", err)
		}
		cfg.WorkspaceRoot = abs
		cfg.DatabasePath = filepath.Join(abs, ".lonelycat", "executor.db")
	}
	if v := os.Getenv("LONELYCAT_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("LONELYCAT_POLICY_PATH"); v != "" {
		cfg.PolicyPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LONELYCAT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("LONELYCAT_APPROVAL_SECRET"); v != "" {
		cfg.ApprovalSecret = v
	}
	if v := os.Getenv("LONELYCAT_ARTIFACT_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: parsing LONELYCAT_ARTIFACT_RETENTION_DAYS: %w", err)
		}
		cfg.ArtifactRetentionDays = n
	}
	if v := os.Getenv("LONELYCAT_ARTIFACT_RETENTION_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: parsing LONELYCAT_ARTIFACT_RETENTION_COUNT: %w", err)
		}
		cfg.ArtifactRetentionCount = n
	}
	if v := os.Getenv("LONELYCAT_ARCHIVE_BACKEND"); v != "" {
		cfg.ArchiveBackend = v
	}
	if v := os.Getenv("LONELYCAT_ARCHIVE_BUCKET"); v != "" {
		cfg.ArchiveBucket = v
	}
	if v := os.Getenv("LONELYCAT_LOCK_STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: parsing LONELYCAT_LOCK_STALE_AFTER: %w", err)
		}
		cfg.LockStaleAfter = d
	}
	if v := os.Getenv("LONELYCAT_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: parsing LONELYCAT_LOCK_TIMEOUT: %w", err)
		}
		cfg.LockTimeout = d
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no environment
// overrides are present: a workspace rooted at the current directory,
// a local SQLite database, no Redis cache tier, no cold archive, and
// INFO-level text logging.
func Default() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Config{
		WorkspaceRoot:          wd,
		DatabasePath:           filepath.Join(wd, ".lonelycat", "executor.db"),
		PolicyPath:             "",
		LogLevel:               "INFO",
		LogFormat:              "text",
		RedisAddr:              "",
		ApprovalSecret:         "dev-only-insecure-approval-secret",
		ArtifactRetentionDays:  7,
		ArtifactRetentionCount: 100,
		ArchiveBackend:         "",
		ArchiveBucket:          "",
		LockStaleAfter:         10 * time.Minute,
		LockTimeout:            10 * time.Minute,
		OTelEndpoint:           "",
	}
}
