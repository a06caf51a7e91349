// Package applier performs the atomic per-file CREATE/UPDATE/DELETE
// step of the Executor pipeline: every write goes through a temp-file
// and atomic rename (or a direct unlink for DELETE), and every
// UPDATE/DELETE re-checks old_hash against the file's current content
// immediately before mutating it.
package applier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Applier mutates files under one workspace root.
type Applier struct {
	workspaceRoot string
}

// New builds an Applier rooted at workspaceRoot.
func New(workspaceRoot string) *Applier {
	return &Applier{workspaceRoot: workspaceRoot}
}

// Applied records one FileChange that was successfully applied, for
// the Rollback Handler to reverse in LIFO order on failure.
type Applied struct {
	Change contracts.FileChange
	Mode   os.FileMode // UPDATE/DELETE: the mode the file had before this apply
}

// ValidatePath resolves a FileChange's path against the workspace and
// rejects it if it escapes the root or, for an existing file, if its
// symlink target escapes the root.
func (a *Applier) ValidatePath(change contracts.FileChange) (string, error) {
	clean, err := canonicalize.CanonicalPath(change.Path)
	if err != nil {
		return "", fmt.Errorf("path_violation: %w", err)
	}
	full := filepath.Join(a.workspaceRoot, filepath.FromSlash(clean))

	if info, err := os.Lstat(full); err == nil && info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return "", fmt.Errorf("path_violation: reading symlink %s: %w", full, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(full), target)
		}
		resolvedTarget, err := filepath.EvalSymlinks(target)
		if err == nil {
			rootResolved, rootErr := filepath.EvalSymlinks(a.workspaceRoot)
			if rootErr == nil {
				rel, relErr := filepath.Rel(rootResolved, resolvedTarget)
				if relErr != nil || rel == ".." || filepath.IsAbs(rel) || hasDotDotPrefix(rel) {
					return "", fmt.Errorf("path_violation: symlink %s escapes workspace", change.Path)
				}
			}
		}
	}
	return full, nil
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}

// Apply performs one FileChange. For UPDATE/DELETE it re-reads the
// current file and re-checks old_hash immediately before mutating,
// since time may have passed since backup was taken; a mismatch
// returns an error prefixed "stale_update:".
func (a *Applier) Apply(change contracts.FileChange) (*Applied, error) {
	full, err := a.ValidatePath(change)
	if err != nil {
		return nil, err
	}

	switch change.Op {
	case contracts.OpCreate:
		return a.applyCreate(full, change)
	case contracts.OpUpdate:
		return a.applyUpdate(full, change)
	case contracts.OpDelete:
		return a.applyDelete(full, change)
	default:
		return nil, fmt.Errorf("invalid_input: unknown file op %q", change.Op)
	}
}

func (a *Applier) applyCreate(full string, change contracts.FileChange) (*Applied, error) {
	if _, err := os.Stat(full); err == nil {
		return nil, fmt.Errorf("invalid_input: CREATE target %s already exists", change.Path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("apply_failed: statting %s: %w", full, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("apply_failed: creating parent dir for %s: %w", full, err)
	}
	if err := atomicWrite(full, change.NewContent, 0o644); err != nil {
		return nil, fmt.Errorf("apply_failed: %w", err)
	}
	return &Applied{Change: change}, nil
}

func (a *Applier) applyUpdate(full string, change contracts.FileChange) (*Applied, error) {
	current, mode, err := readWithMode(full)
	if err != nil {
		return nil, fmt.Errorf("apply_failed: reading %s: %w", full, err)
	}
	if canonicalize.FileContentHash(current) != change.OldHash {
		return nil, fmt.Errorf("stale_update: %s content changed since old_hash was captured", change.Path)
	}
	if err := atomicWrite(full, change.NewContent, mode); err != nil {
		return nil, fmt.Errorf("apply_failed: %w", err)
	}
	return &Applied{Change: change, Mode: mode}, nil
}

func (a *Applier) applyDelete(full string, change contracts.FileChange) (*Applied, error) {
	current, mode, err := readWithMode(full)
	if err != nil {
		return nil, fmt.Errorf("apply_failed: reading %s: %w", full, err)
	}
	if canonicalize.FileContentHash(current) != change.OldHash {
		return nil, fmt.Errorf("stale_update: %s content changed since old_hash was captured", change.Path)
	}
	if err := os.Remove(full); err != nil {
		return nil, fmt.Errorf("apply_failed: removing %s: %w", full, err)
	}
	return &Applied{Change: change, Mode: mode}, nil
}

func readWithMode(path string) ([]byte, os.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, err
	}
	return data, info.Mode(), nil
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".lonelycat-tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("writing temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// WorkspaceRoot returns the root this Applier mutates files under.
func (a *Applier) WorkspaceRoot() string { return a.workspaceRoot }
