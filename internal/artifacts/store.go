// Package artifacts implements the on-disk Artifact Store: one
// directory per execution holding the four-piece set (plan.json,
// changeset.json, decision.json, execution.json), an event stream,
// per-step logs, and pre-apply backups.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Store writes and serves execution artifact directories rooted at
// <workspaceRoot>/.lonelycat/executions/.
type Store struct {
	root string
	mu   sync.Mutex
}

// New roots a Store at workspaceRoot, creating the executions directory
// if absent.
func New(workspaceRoot string) (*Store, error) {
	root := filepath.Join(workspaceRoot, ".lonelycat", "executions")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: creating %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Dir returns the directory for one execution. Does not create it.
func (s *Store) Dir(executionID string) string {
	return filepath.Join(s.root, executionID)
}

// Create makes the directory skeleton for a new execution: the root
// directory plus steps/ and backups/ subdirectories. The four-piece
// set and events.jsonl are written incrementally as the Executor
// pipeline progresses, so that an interrupted execution still leaves
// a partial, inspectable directory rather than nothing.
func (s *Store) Create(executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.Dir(executionID)
	for _, sub := range []string{"", "steps", "backups"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("artifacts: creating %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return nil
}

// WritePlan, WriteChangeSet, WriteDecision and WriteExecution persist
// one piece of the four-piece set each, via temp-file + rename so a
// reader never observes a partially written file.
func (s *Store) WritePlan(executionID string, plan *contracts.ChangePlan) error {
	return s.writeJSON(executionID, "plan.json", plan)
}

func (s *Store) WriteChangeSet(executionID string, cs *contracts.ChangeSet) error {
	return s.writeJSON(executionID, "changeset.json", cs)
}

func (s *Store) WriteDecision(executionID string, dec *contracts.GovernanceDecision) error {
	return s.writeJSON(executionID, "decision.json", dec)
}

func (s *Store) WriteExecution(executionID string, rec *contracts.ExecutionRecord) error {
	return s.writeJSON(executionID, "execution.json", rec)
}

// WriteRepairDraft persists a case-based repair synthesis result
// alongside the failed execution it was generated for, for human
// review before it is ever submitted as a real execution.
func (s *Store) WriteRepairDraft(executionID string, draft any) error {
	return s.writeJSON(executionID, "repair.json", draft)
}

func (s *Store) writeJSON(executionID, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: marshaling %s: %w", name, err)
	}
	path := filepath.Join(s.Dir(executionID), name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifacts: committing %s: %w", path, err)
	}
	return nil
}

// FourPieceSet is the fully read-back artifact set for one execution.
type FourPieceSet struct {
	Plan      contracts.ChangePlan
	ChangeSet contracts.ChangeSet
	Decision  contracts.GovernanceDecision
	Execution contracts.ExecutionRecord
}

// ReadFourPieceSet reads and parses all four files for executionID.
// executionID is validated against the executions-directory whitelist
// before any file under it is opened, even though the four names are
// fixed, so a caller cannot be tricked by a crafted executionID into
// escaping the executions root.
func (s *Store) ReadFourPieceSet(ctx context.Context, executionID string) (*FourPieceSet, error) {
	dir, err := s.whitelisted(executionID)
	if err != nil {
		return nil, err
	}

	var out FourPieceSet
	if err := readJSON(filepath.Join(dir, "plan.json"), &out.Plan); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "changeset.json"), &out.ChangeSet); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "decision.json"), &out.Decision); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "execution.json"), &out.Execution); err != nil {
		return nil, err
	}
	return &out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifacts: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifacts: parsing %s: %w", path, err)
	}
	return nil
}

// ReadLog reads one per-step log by name (e.g. "02_apply.log"), gated
// by the same path whitelist as ReadFourPieceSet.
func (s *Store) ReadLog(executionID, logName string) ([]byte, error) {
	dir, err := s.whitelisted(executionID)
	if err != nil {
		return nil, err
	}
	resolved, err := filesystemWithinRoot(filepath.Join(dir, "steps"), logName)
	if err != nil {
		return nil, fmt.Errorf("artifacts: log path %q: %w", logName, err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("artifacts: reading log %s: %w", logName, err)
	}
	return data, nil
}

// whitelisted resolves executionID to a directory and rejects any
// attempt to escape the executions root (e.g. executionID containing
// "../"), per the read-only path whitelist.
func (s *Store) whitelisted(executionID string) (string, error) {
	resolved, err := filesystemWithinRoot(s.root, executionID)
	if err != nil {
		return "", fmt.Errorf("artifacts: execution id %q: %w", executionID, err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("artifacts: execution directory %s: %w", executionID, err)
	}
	return resolved, nil
}

// filesystemWithinRoot joins root with relPath and rejects the result
// unless it stays under root, defending the artifact directory's
// read-only path whitelist against a crafted relPath containing ".."
// or an absolute path.
func filesystemWithinRoot(root, relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path_violation: absolute path %q", relPath)
	}
	joined := filepath.Join(root, relPath)
	rootClean := filepath.Clean(root)
	if joined != rootClean && !strings.HasPrefix(joined, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("path_violation: %q escapes %s", relPath, root)
	}
	return joined, nil
}

// StepLogPath returns the conventional path for a step's log file,
// e.g. steps/02_apply.log, for the Executor to open for writing.
func (s *Store) StepLogPath(executionID string, stepNum int, stepName contracts.StepName) string {
	return filepath.Join(s.Dir(executionID), "steps", fmt.Sprintf("%02d_%s.log", stepNum, stepName))
}

// BackupPath returns the conventional path under backups/ for one
// workspace-relative file path, preserving its directory structure so
// collisions between same-named files in different directories are
// impossible.
func (s *Store) BackupPath(executionID, workspaceRelPath string) string {
	return filepath.Join(s.Dir(executionID), "backups", filepath.FromSlash(workspaceRelPath))
}
