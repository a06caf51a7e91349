package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/config"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

func TestLoadPolicy_DefaultsWhenPathEmpty(t *testing.T) {
	cfg := &config.Config{}
	p, err := loadPolicy(cfg)
	require.NoError(t, err)

	wantHash, err := policyconfig.Default().SnapshotHash()
	require.NoError(t, err)
	gotHash, err := p.SnapshotHash()
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)
}

func TestLoadPolicy_ErrorsOnMissingFile(t *testing.T) {
	cfg := &config.Config{PolicyPath: "/nonexistent/policy.yaml"}
	_, err := loadPolicy(cfg)
	require.Error(t, err)
}

func TestLoadPolicy_LoadsFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/policy.yaml"
	yaml := `forbidden_path_patterns:
  - "^/etc/.*"
always_review_patterns:
  - "^prod/.*"
max_files_touched: 10
max_patch_lines: 500
step_timeout_seconds: 30
total_timeout_seconds: 120
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := &config.Config{PolicyPath: path}
	p, err := loadPolicy(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestNewLogger_FallsBackToInfoOnBadLevel(t *testing.T) {
	cfg := &config.Config{LogLevel: "not-a-level", LogFormat: "text"}
	log := newLogger(cfg)
	require.NotNil(t, log)
}

func TestNewLogger_JSONFormat(t *testing.T) {
	cfg := &config.Config{LogLevel: "INFO", LogFormat: "json"}
	log := newLogger(cfg)
	require.NotNil(t, log)
}

func TestArchiveBackendFor_EmptyIsNilWithoutTouchingSDKs(t *testing.T) {
	backend, err := archiveBackendFor(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.Nil(t, backend)
}

func TestArchiveBackendFor_UnknownBackendErrors(t *testing.T) {
	_, err := archiveBackendFor(context.Background(), &config.Config{ArchiveBackend: "ftp"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_input")
}
