// Package lockmgr provides the repo-level mutual-exclusion lock
// described here: atomic creation of a lock file, exponential
// backoff while waiting, and a conservative stale-lock policy that only
// clears a lock whose pid is both old and dead.
package lockmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// Metadata is persisted inside the lock file.
//
//nolint:govet // fieldalignment: field order follows narrative order
type Metadata struct {
	ExecutionID string    `json:"execution_id"`
	PlanID      string    `json:"plan_id"`
	AcquiredAt  time.Time `json:"acquired_at"`
	PID         int       `json:"pid"`
	Hostname    string    `json:"hostname"`
}

// Manager guards <workspace>/.lonelycat/locks/execution.lock.
type Manager struct {
	lockPath    string
	staleAfter  time.Duration
	timeout     time.Duration
	isAlive     func(pid int) bool
	holder      string // execution_id of this process's current holder, for re-entrancy
}

// Option configures a Manager.
type Option func(*Manager)

// WithStaleAfter overrides the default stale-lock age threshold.
func WithStaleAfter(d time.Duration) Option { return func(m *Manager) { m.staleAfter = d } }

// WithTimeout overrides the default total wait timeout (default 600s).
func WithTimeout(d time.Duration) Option { return func(m *Manager) { m.timeout = d } }

// WithLivenessCheck overrides how a pid's liveness is checked (for tests).
func WithLivenessCheck(f func(pid int) bool) Option { return func(m *Manager) { m.isAlive = f } }

// New builds a Manager rooted at workspaceRoot.
func New(workspaceRoot string, opts ...Option) *Manager {
	m := &Manager{
		lockPath:   filepath.Join(workspaceRoot, ".lonelycat", "locks", "execution.lock"),
		staleAfter: 10 * time.Minute,
		timeout:    600 * time.Second,
		isAlive:    processAlive,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire blocks (polling with exponential backoff) until the lock is
// held or the configured timeout elapses. Re-entrant for the same
// execution ID — a holder may call Acquire again without blocking.
func (m *Manager) Acquire(ctx context.Context, executionID, planID string) (func() error, error) {
	if m.holder == executionID && executionID != "" {
		return func() error { return nil }, nil // re-entrant no-op release
	}

	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("lockmgr: creating lock dir: %w", err)
	}

	deadline := time.Now().Add(m.timeout)
	backoff := 50 * time.Millisecond
	const maxBackoff = 5 * time.Second
	// limiter paces retries at the current backoff interval; its period
	// is widened each iteration to realize exponential backoff with a
	// single reusable rate.Limiter instead of raw time.Sleep.
	limiter := rate.NewLimiter(rate.Every(backoff), 1)

	for {
		acquired, err := m.tryCreate(executionID, planID)
		if err != nil {
			return nil, err
		}
		if acquired {
			m.holder = executionID
			return func() error { return m.release() }, nil
		}

		if cleared := m.clearIfStale(); cleared {
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout: lock acquisition exceeded %s", m.timeout)
		}

		limiter.SetLimit(rate.Every(backoff))
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (m *Manager) tryCreate(executionID, planID string) (bool, error) {
	f, err := os.OpenFile(m.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("lockmgr: creating lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck // best-effort close on just-created file

	hostname, _ := os.Hostname()
	meta := Metadata{
		ExecutionID: executionID,
		PlanID:      planID,
		AcquiredAt:  time.Now().UTC(),
		PID:         os.Getpid(),
		Hostname:    hostname,
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(meta); err != nil {
		_ = os.Remove(m.lockPath)
		return false, fmt.Errorf("lockmgr: writing lock metadata: %w", err)
	}
	return true, nil
}

// clearIfStale removes the lock file iff its age exceeds staleAfter AND
// its recorded pid is not alive on this host. Never clears a live pid,
// never clears by age alone.
func (m *Manager) clearIfStale() bool {
	data, err := os.ReadFile(m.lockPath) //nolint:gosec // fixed internal path
	if err != nil {
		return false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return false
	}
	if time.Since(meta.AcquiredAt) <= m.staleAfter {
		return false
	}
	if m.isAlive(meta.PID) {
		return false
	}
	_ = os.Remove(m.lockPath)
	return true
}

func (m *Manager) release() error {
	m.holder = ""
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockmgr: releasing lock: %w", err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes existence
	// without affecting the process.
	return proc.Signal(syscall.Signal(0)) == nil
}
