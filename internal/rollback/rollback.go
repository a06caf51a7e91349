// Package rollback implements the emergency recovery path: reversing
// already-applied FileChanges in LIFO order after a failure in
// validate/apply/verify/health. Rollback performs no content
// verification of its own — that already happened during apply and
// re-checking here would only risk failing to recover from the very
// condition rollback exists to undo.
package rollback

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Nana77mi/lonelycat-gcec/internal/applier"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Handler reverses Applied file changes against one workspace root.
type Handler struct {
	workspaceRoot string
}

// New builds a Handler rooted at workspaceRoot.
func New(workspaceRoot string) *Handler {
	return &Handler{workspaceRoot: workspaceRoot}
}

// Rollback restores applied in reverse order (LIFO): CREATE is undone
// by unlinking the file it created; UPDATE/DELETE are undone by
// restoring the byte-exact backup from backupDir. It attempts every
// entry even if one fails, so a single bad restore does not strand the
// rest of the workspace in a half-reverted state, and returns a joined
// error only if at least one restoration failed.
func (h *Handler) Rollback(applied []applier.Applied, backupDir string) error {
	var failures []error
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		if err := h.undo(a, backupDir); err != nil {
			failures = append(failures, fmt.Errorf("rollback_failed: %s (%s): %w", a.Change.Path, a.Change.Op, err))
		}
	}
	if len(failures) > 0 {
		return joinErrors(failures, len(applied))
	}
	return nil
}

func (h *Handler) undo(a applier.Applied, backupDir string) error {
	full := filepath.Join(h.workspaceRoot, filepath.FromSlash(a.Change.Path))

	switch a.Change.Op {
	case contracts.OpCreate:
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("unlinking created file: %w", err)
		}
		return nil
	case contracts.OpUpdate, contracts.OpDelete:
		backupPath := filepath.Join(backupDir, filepath.FromSlash(a.Change.Path))
		data, err := os.ReadFile(backupPath)
		if err != nil {
			return fmt.Errorf("reading backup %s: %w", backupPath, err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("recreating parent dir: %w", err)
		}
		mode := a.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(full, data, mode); err != nil {
			return fmt.Errorf("restoring from backup: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid_input: unknown file op %q", a.Change.Op)
	}
}

func joinErrors(errs []error, total int) error {
	msg := fmt.Sprintf("%d of %d rollback step(s) failed:", len(errs), total)
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
