package applier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

func TestApplier_Apply_CreateWritesNewFile(t *testing.T) {
	root := t.TempDir()
	a := New(root)

	change := contracts.FileChange{Op: contracts.OpCreate, Path: "dir/new.txt", NewContent: []byte("hello")}
	applied, err := a.Apply(change)
	require.NoError(t, err)
	require.Equal(t, change, applied.Change)

	got, err := os.ReadFile(filepath.Join(root, "dir/new.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestApplier_Apply_CreateRejectsExistingTarget(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "exists.txt"), []byte("already here"), 0o644))

	a := New(root)
	_, err := a.Apply(contracts.FileChange{Op: contracts.OpCreate, Path: "exists.txt", NewContent: []byte("overwrite")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestApplier_Apply_UpdateSucceedsWhenOldHashMatches(t *testing.T) {
	root := t.TempDir()
	original := []byte("version one")
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), original, 0o644))

	a := New(root)
	change := contracts.FileChange{
		Op: contracts.OpUpdate, Path: "f.txt",
		OldHash: canonicalize.FileContentHash(original), NewContent: []byte("version two"),
	}
	_, err := a.Apply(change)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "version two", string(got))
}

func TestApplier_Apply_UpdateRejectsStaleHash(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("current content"), 0o644))

	a := New(root)
	change := contracts.FileChange{Op: contracts.OpUpdate, Path: "f.txt", OldHash: "stale-hash-from-earlier", NewContent: []byte("new")}
	_, err := a.Apply(change)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stale_update")
}

func TestApplier_Apply_DeleteRemovesFileWhenHashMatches(t *testing.T) {
	root := t.TempDir()
	content := []byte("to be deleted")
	require.NoError(t, os.WriteFile(filepath.Join(root, "gone.txt"), content, 0o644))

	a := New(root)
	change := contracts.FileChange{Op: contracts.OpDelete, Path: "gone.txt", OldHash: canonicalize.FileContentHash(content)}
	applied, err := a.Apply(change)
	require.NoError(t, err)
	require.NotZero(t, applied.Mode)

	_, statErr := os.Stat(filepath.Join(root, "gone.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestApplier_Apply_RejectsUnknownOp(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.Apply(contracts.FileChange{Op: "RENAME", Path: "x.txt"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_input")
}

func TestApplier_ValidatePath_RejectsEscapingPath(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.ValidatePath(contracts.FileChange{Path: "../../etc/passwd"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "path_violation")
}

func TestApplier_ValidatePath_RejectsSymlinkEscapingWorkspace(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))

	linkPath := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink(outsideFile, linkPath))

	a := New(root)
	_, err := a.ValidatePath(contracts.FileChange{Path: "link.txt"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "path_violation")
}

func TestApplier_Backup_CopiesUpdateTargetBeforeMutation(t *testing.T) {
	root := t.TempDir()
	backupDir := t.TempDir()
	content := []byte("back this up")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub/f.txt"), content, 0o644))

	a := New(root)
	change := contracts.FileChange{Op: contracts.OpUpdate, Path: "sub/f.txt"}
	require.NoError(t, a.Backup(change, backupDir))

	got, err := os.ReadFile(filepath.Join(backupDir, "sub/f.txt"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestApplier_Backup_SkipsCreateChanges(t *testing.T) {
	a := New(t.TempDir())
	backupDir := t.TempDir()
	err := a.Backup(contracts.FileChange{Op: contracts.OpCreate, Path: "never-existed.txt"}, backupDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplier_WorkspaceRoot_ReturnsConfiguredRoot(t *testing.T) {
	a := New("/some/root")
	require.Equal(t, "/some/root", a.WorkspaceRoot())
}
