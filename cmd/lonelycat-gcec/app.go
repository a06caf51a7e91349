package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"cloud.google.com/go/storage"

	"github.com/Nana77mi/lonelycat-gcec/internal/artifacts"
	"github.com/Nana77mi/lonelycat-gcec/internal/config"
	"github.com/Nana77mi/lonelycat-gcec/internal/executor"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
	"github.com/Nana77mi/lonelycat-gcec/internal/similarity"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
	"github.com/Nana77mi/lonelycat-gcec/internal/telemetry"
	"github.com/Nana77mi/lonelycat-gcec/internal/writegate"
)

// app bundles every subsystem one CLI invocation needs. Each command
// builds one via newApp and tears it down with its returned closer,
// mirroring how the Executor itself is wired in internal/executor.
type app struct {
	cfg       *config.Config
	policy    *policyconfig.Policy
	store     *store.Store
	artifacts *artifacts.Store
	telemetry *telemetry.Provider
	gate      *writegate.Gate
	approvals *writegate.ApprovalIssuer
	executor  *executor.Executor
	engine    *similarity.Engine
	log       *slog.Logger
}

func newApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if flagWorkspace != "" {
		if cfg.DatabasePath == filepath.Join(cfg.WorkspaceRoot, ".lonelycat", "executor.db") {
			cfg.DatabasePath = filepath.Join(flagWorkspace, ".lonelycat", "executor.db")
		}
		cfg.WorkspaceRoot = flagWorkspace
	}
	if flagDBPath != "" {
		cfg.DatabasePath = flagDBPath
	}
	if flagPolicy != "" {
		cfg.PolicyPath = flagPolicy
	}

	log := newLogger(cfg)

	policy, err := loadPolicy(cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening execution store: %w", err)
	}

	artifactStore, err := artifacts.New(cfg.WorkspaceRoot)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("opening artifact store: %w", err)
	}

	tel, err := telemetry.New(ctx, "lonelycat-gcec")
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("starting telemetry: %w", err)
	}

	gate, err := writegate.New(policy)
	if err != nil {
		_ = st.Close()
		_ = tel.Shutdown(ctx)
		return nil, nil, fmt.Errorf("building write gate: %w", err)
	}

	approvals := writegate.NewApprovalIssuer([]byte(cfg.ApprovalSecret))
	exec := executor.New(cfg.WorkspaceRoot, policy, st, artifactStore, tel, approvals, log)
	engine := similarity.New(st)

	a := &app{
		cfg:       cfg,
		policy:    policy,
		store:     st,
		artifacts: artifactStore,
		telemetry: tel,
		gate:      gate,
		approvals: approvals,
		executor:  exec,
		engine:    engine,
		log:       log,
	}

	closer := func() {
		_ = tel.Shutdown(context.Background())
		_ = st.Close()
	}
	return a, closer, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func loadPolicy(cfg *config.Config) (*policyconfig.Policy, error) {
	if cfg.PolicyPath == "" {
		return policyconfig.Default(), nil
	}
	policy, err := policyconfig.Load(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy %s: %w", cfg.PolicyPath, err)
	}
	return policy, nil
}

// archiveBackendFor builds the cold-archive backend configured for
// pruning, constructing a real cloud client only when selected —
// neither SDK is touched when ArchiveBackend is empty.
func archiveBackendFor(ctx context.Context, cfg *config.Config) (artifacts.ArchiveBackend, error) {
	switch cfg.ArchiveBackend {
	case "":
		return nil, nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return artifacts.NewS3Archive(client, cfg.ArchiveBucket, "lonelycat-executions"), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating GCS client: %w", err)
		}
		return artifacts.NewGCSArchive(client, cfg.ArchiveBucket, "lonelycat-executions"), nil
	default:
		return nil, fmt.Errorf("invalid_input: unknown archive backend %q", cfg.ArchiveBackend)
	}
}
