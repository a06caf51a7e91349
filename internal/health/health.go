// Package health runs the five typed post-apply health checks declared
// on a ChangePlan, each returning a normalized result so reflection can
// aggregate failures by a closed error-code enumeration.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

// ErrorCode is the closed set of health-check failure codes.
type ErrorCode string

const (
	ErrHTTPNon200     ErrorCode = "http_non_200"
	ErrTimeout        ErrorCode = "timeout"
	ErrConnectRefused ErrorCode = "connect_refused"
	ErrProcessMissing ErrorCode = "process_missing"
	ErrCommandNonZero ErrorCode = "command_nonzero"
	ErrDBUnreachable  ErrorCode = "db_unreachable"
	ErrFileMissing    ErrorCode = "file_missing"
)

// Result is the normalized outcome of one health check.
type Result struct {
	OK        bool
	LatencyMS int64
	ErrorCode ErrorCode
	Message   string
}

// Checker runs health checks, resolving command_profile checks against
// a policy snapshot so argv lists stay fixed and never inline user
// input.
type Checker struct {
	policy        *policyconfig.Policy
	processLister func() ([]string, error) // overridable for tests
}

// New builds a Checker against the given policy (for command_profile
// lookups).
func New(policy *policyconfig.Policy) *Checker {
	return &Checker{policy: policy, processLister: listProcessNames}
}

// Run dispatches a HealthCheckSpec to its typed checker by Kind.
func (c *Checker) Run(ctx context.Context, spec contracts.HealthCheckSpec) Result {
	start := time.Now()
	var res Result
	switch spec.Kind {
	case "http_get":
		res = c.httpGet(ctx, spec.HTTPGet)
	case "process_alive":
		res = c.processAlive(spec.ProcessAlive)
	case "command_profile":
		res = c.commandProfile(ctx, spec.CommandProfile)
	case "database":
		res = c.database(ctx, spec.Database)
	case "file_exists":
		res = c.fileExists(spec.FileExists)
	default:
		res = Result{OK: false, Message: fmt.Sprintf("invalid_input: unknown health check kind %q", spec.Kind)}
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	return res
}

func (c *Checker) httpGet(ctx context.Context, spec *contracts.HTTPGetCheck) Result {
	if spec == nil {
		return Result{OK: false, Message: "invalid_input: missing http_get spec"}
	}
	timeout := time.Duration(spec.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return Result{OK: false, ErrorCode: ErrConnectRefused, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return Result{OK: false, ErrorCode: ErrTimeout, Message: err.Error()}
		}
		return Result{OK: false, ErrorCode: ErrConnectRefused, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != spec.ExpectStatus {
		return Result{OK: false, ErrorCode: ErrHTTPNon200, Message: fmt.Sprintf("got status %d, expected %d", resp.StatusCode, spec.ExpectStatus)}
	}
	return Result{OK: true}
}

func (c *Checker) processAlive(spec *contracts.ProcessAliveCheck) Result {
	if spec == nil {
		return Result{OK: false, Message: "invalid_input: missing process_alive spec"}
	}
	names, err := c.processLister()
	if err != nil {
		return Result{OK: false, ErrorCode: ErrProcessMissing, Message: err.Error()}
	}
	for _, n := range names {
		if strings.Contains(n, spec.ProcessName) {
			return Result{OK: true}
		}
	}
	return Result{OK: false, ErrorCode: ErrProcessMissing, Message: fmt.Sprintf("no process matching %q", spec.ProcessName)}
}

func (c *Checker) commandProfile(ctx context.Context, spec *contracts.CommandProfileCheck) Result {
	if spec == nil {
		return Result{OK: false, Message: "invalid_input: missing command_profile spec"}
	}
	profile, ok := c.policy.CommandProfileByName(spec.ProfileName)
	if !ok {
		return Result{OK: false, ErrorCode: ErrCommandNonZero, Message: fmt.Sprintf("unknown command profile %q", spec.ProfileName)}
	}
	if len(profile.Argv) == 0 {
		return Result{OK: false, ErrorCode: ErrCommandNonZero, Message: fmt.Sprintf("command profile %q has empty argv", spec.ProfileName)}
	}

	timeout := time.Duration(profile.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, profile.Argv[0], profile.Argv[1:]...)
	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() != nil {
			return Result{OK: false, ErrorCode: ErrTimeout, Message: err.Error()}
		}
		return Result{OK: false, ErrorCode: ErrCommandNonZero, Message: err.Error()}
	}
	return Result{OK: true}
}

func (c *Checker) database(ctx context.Context, spec *contracts.DatabaseCheck) Result {
	if spec == nil {
		return Result{OK: false, Message: "invalid_input: missing database spec"}
	}
	db, err := sql.Open(spec.DBType, spec.DSN)
	if err != nil {
		return Result{OK: false, ErrorCode: ErrDBUnreachable, Message: err.Error()}
	}
	defer func() { _ = db.Close() }()

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := db.QueryRowContext(queryCtx, spec.TestQuery)
	var discard any
	if err := row.Scan(&discard); err != nil && err != sql.ErrNoRows {
		return Result{OK: false, ErrorCode: ErrDBUnreachable, Message: err.Error()}
	}
	return Result{OK: true}
}

func (c *Checker) fileExists(spec *contracts.FileExistsCheck) Result {
	if spec == nil {
		return Result{OK: false, Message: "invalid_input: missing file_exists spec"}
	}
	for _, p := range spec.Paths {
		if _, err := os.Stat(p); err != nil {
			return Result{OK: false, ErrorCode: ErrFileMissing, Message: fmt.Sprintf("%s: %v", p, err)}
		}
	}
	return Result{OK: true}
}

// listProcessNames enumerates running process names. Linux-only (reads
// /proc), matching this tool's assumption of a local Unix agent host.
func listProcessNames() ([]string, error) {
	if runtime.GOOS != "linux" {
		return nil, fmt.Errorf("process_alive check requires /proc (unsupported on %s)", runtime.GOOS)
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("reading /proc: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := parsePID(e.Name()); err != nil {
			continue
		}
		comm, err := os.ReadFile("/proc/" + e.Name() + "/comm")
		if err != nil {
			continue
		}
		names = append(names, strings.TrimSpace(string(comm)))
	}
	return names, nil
}

func parsePID(s string) (int, error) {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a pid")
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, fmt.Errorf("not a pid")
	}
	return n, nil
}
