package policyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_CompilesAndMatchesForbiddenPaths(t *testing.T) {
	p := Default()
	require.Equal(t, `^\.git/`, p.MatchForbidden(".git/config"))
	require.Empty(t, p.MatchForbidden("app/main.go"))
}

func TestDefault_AlwaysReviewMatch(t *testing.T) {
	p := Default()
	require.NotEmpty(t, p.MatchAlwaysReview("schema/users.sql"))
	require.Empty(t, p.MatchAlwaysReview("app/main.go"))
}

func TestDefault_SnapshotHashIsStable(t *testing.T) {
	h1, err := Default().SnapshotHash()
	require.NoError(t, err)
	h2, err := Default().SnapshotHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestLoad_ParsesYAMLPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	doc := `
forbidden_path_patterns:
  - "^secrets/"
always_review_patterns:
  - "^infra/"
max_files_touched: 10
command_profiles:
  - name: smoke-test
    argv: ["./smoke.sh"]
    timeout_seconds: 30
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, p.MaxFilesTouched)
	require.Equal(t, "^secrets/", p.MatchForbidden("secrets/prod.key"))

	cp, ok := p.CommandProfileByName("smoke-test")
	require.True(t, ok)
	require.Equal(t, []string{"./smoke.sh"}, cp.Argv)
}

func TestLoad_RejectsMalformedPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	doc := `
forbidden_path_patterns:
  - "(unterminated"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/policy.yaml")
	require.Error(t, err)
}

func TestWithinAllowedRoots(t *testing.T) {
	p := &Policy{AllowedPathRoots: []string{"app"}}
	require.True(t, p.WithinAllowedRoots("/workspace", "app/main.go"))
	require.False(t, p.WithinAllowedRoots("/workspace", "other/main.go"))
}

func TestWithinAllowedRoots_EmptyRootsAllowsEverything(t *testing.T) {
	p := &Policy{}
	require.True(t, p.WithinAllowedRoots("/workspace", "anything/here.go"))
}
