package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_HasLocalFirstDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Empty(t, cfg.RedisAddr)
	require.Empty(t, cfg.ArchiveBackend)
	require.Equal(t, 7, cfg.ArtifactRetentionDays)
}

func TestLoad_AppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("LONELYCAT_DB_PATH", "/tmp/custom.db")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LONELYCAT_REDIS_ADDR", "localhost:6379")
	t.Setenv("LONELYCAT_APPROVAL_SECRET", "prod-secret")
	t.Setenv("LONELYCAT_ARTIFACT_RETENTION_DAYS", "30")
	t.Setenv("LONELYCAT_ARCHIVE_BACKEND", "s3")
	t.Setenv("LONELYCAT_ARCHIVE_BUCKET", "my-bucket")
	t.Setenv("LONELYCAT_LOCK_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", cfg.DatabasePath)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.Equal(t, "prod-secret", cfg.ApprovalSecret)
	require.Equal(t, 30, cfg.ArtifactRetentionDays)
	require.Equal(t, "s3", cfg.ArchiveBackend)
	require.Equal(t, "my-bucket", cfg.ArchiveBucket)
	require.Equal(t, 2*time.Minute, cfg.LockTimeout)
}

func TestLoad_RejectsMalformedIntegerEnvVar(t *testing.T) {
	t.Setenv("LONELYCAT_ARTIFACT_RETENTION_DAYS", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsMalformedDurationEnvVar(t *testing.T) {
	t.Setenv("LONELYCAT_LOCK_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
}
