package applier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Backup copies the current on-disk content of an UPDATE/DELETE
// target into backupDir (mirroring the workspace-relative path),
// preserving mode. CREATE changes have nothing to back up.
func (a *Applier) Backup(change contracts.FileChange, backupDir string) error {
	if change.Op == contracts.OpCreate {
		return nil
	}

	full, err := a.ValidatePath(change)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("apply_failed: statting %s for backup: %w", full, err)
	}

	dest := filepath.Join(backupDir, filepath.FromSlash(change.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("apply_failed: creating backup dir for %s: %w", change.Path, err)
	}

	src, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("apply_failed: opening %s for backup: %w", full, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("apply_failed: creating backup file %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("apply_failed: copying %s to backup: %w", full, err)
	}
	return nil
}
