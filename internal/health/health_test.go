package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

func TestChecker_Run_HTTPGetSucceedsOnMatchingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:    "http_get",
		HTTPGet: &contracts.HTTPGetCheck{URL: server.URL, ExpectStatus: 200},
	})
	require.True(t, res.OK)
}

func TestChecker_Run_HTTPGetFailsOnStatusMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:    "http_get",
		HTTPGet: &contracts.HTTPGetCheck{URL: server.URL, ExpectStatus: 200},
	})
	require.False(t, res.OK)
	require.Equal(t, ErrHTTPNon200, res.ErrorCode)
}

func TestChecker_Run_HTTPGetFailsOnMissingSpec(t *testing.T) {
	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{Kind: "http_get"})
	require.False(t, res.OK)
}

func TestChecker_Run_ProcessAliveSucceedsWhenListerFindsMatch(t *testing.T) {
	c := New(policyconfig.Default())
	c.processLister = func() ([]string, error) { return []string{"sshd", "lonelycat-gcec"}, nil }

	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:         "process_alive",
		ProcessAlive: &contracts.ProcessAliveCheck{ProcessName: "lonelycat"},
	})
	require.True(t, res.OK)
}

func TestChecker_Run_ProcessAliveFailsWhenNoMatch(t *testing.T) {
	c := New(policyconfig.Default())
	c.processLister = func() ([]string, error) { return []string{"sshd"}, nil }

	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:         "process_alive",
		ProcessAlive: &contracts.ProcessAliveCheck{ProcessName: "nginx"},
	})
	require.False(t, res.OK)
	require.Equal(t, ErrProcessMissing, res.ErrorCode)
}

func TestChecker_Run_CommandProfileRunsFixedArgvFromPolicy(t *testing.T) {
	policy, err := policyconfig.Load(writePolicyWithProfile(t, "true-profile", []string{"true"}))
	require.NoError(t, err)

	c := New(policy)
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:           "command_profile",
		CommandProfile: &contracts.CommandProfileCheck{ProfileName: "true-profile"},
	})
	require.True(t, res.OK)
}

func TestChecker_Run_CommandProfileFailsOnNonZeroExit(t *testing.T) {
	policy, err := policyconfig.Load(writePolicyWithProfile(t, "false-profile", []string{"false"}))
	require.NoError(t, err)

	c := New(policy)
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:           "command_profile",
		CommandProfile: &contracts.CommandProfileCheck{ProfileName: "false-profile"},
	})
	require.False(t, res.OK)
	require.Equal(t, ErrCommandNonZero, res.ErrorCode)
}

func TestChecker_Run_CommandProfileFailsOnUnknownProfile(t *testing.T) {
	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:           "command_profile",
		CommandProfile: &contracts.CommandProfileCheck{ProfileName: "does-not-exist"},
	})
	require.False(t, res.OK)
}

func TestChecker_Run_FileExistsSucceedsWhenAllPathsPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker.txt")
	require.NoError(t, os.WriteFile(path, []byte("present"), 0o644))

	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:       "file_exists",
		FileExists: &contracts.FileExistsCheck{Paths: []string{path}},
	})
	require.True(t, res.OK)
}

func TestChecker_Run_FileExistsFailsOnMissingPath(t *testing.T) {
	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind:       "file_exists",
		FileExists: &contracts.FileExistsCheck{Paths: []string{"/nonexistent/path/marker.txt"}},
	})
	require.False(t, res.OK)
	require.Equal(t, ErrFileMissing, res.ErrorCode)
}

func TestChecker_Run_DatabaseSucceedsAgainstInMemorySQLite(t *testing.T) {
	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{
		Kind: "database",
		Database: &contracts.DatabaseCheck{
			DBType: "sqlite", DSN: ":memory:", TestQuery: "SELECT 1",
		},
	})
	require.True(t, res.OK)
}

func TestChecker_Run_UnknownKindReportsInvalidInput(t *testing.T) {
	c := New(policyconfig.Default())
	res := c.Run(context.Background(), contracts.HealthCheckSpec{Kind: "telepathy"})
	require.False(t, res.OK)
	require.Contains(t, res.Message, "invalid_input")
}

func writePolicyWithProfile(t *testing.T, name string, argv []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "command_profiles:\n  - name: \"" + name + "\"\n    argv: [\"" + argv[0] + "\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
