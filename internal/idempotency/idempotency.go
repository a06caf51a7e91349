// Package idempotency computes the deterministic execution_id for a
// (plan_id, changeset.checksum) pair and dedups concurrent or repeated
// submissions of the same change.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Lookup is the subset of the Execution Store the Idempotency Manager
// needs: find an existing record by execution_id.
type Lookup interface {
	GetExecution(ctx context.Context, executionID string) (*contracts.ExecutionRecord, error)
}

// Manager dedups executions by deterministic key.
type Manager struct {
	store Lookup
	ttl   time.Duration
}

// DefaultTTL is the default 3600s terminal-record cache window.
const DefaultTTL = time.Hour

// New builds a Manager with the given store and TTL (0 uses DefaultTTL).
func New(store Lookup, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// ExecutionID computes the deterministic id = hash(plan_id || checksum).
func ExecutionID(planID, checksum string) string {
	h := sha256.Sum256([]byte(planID + "|" + checksum))
	return "exec-" + hex.EncodeToString(h[:])[:32]
}

// Outcome tells the caller what to do next.
type Outcome int

const (
	// Proceed means no prior record exists; the caller should register
	// one as pending and execute.
	Proceed Outcome = iota
	// Cached means a terminal record within TTL exists; its contents
	// should be returned without re-applying.
	Cached
	// WaitForPeer means a pending/running record exists; the caller
	// should wait on the lock rather than re-apply.
	WaitForPeer
)

// Check resolves what the caller should do for this (planID, checksum).
func (m *Manager) Check(ctx context.Context, planID, checksum string) (Outcome, *contracts.ExecutionRecord, error) {
	executionID := ExecutionID(planID, checksum)
	existing, err := m.store.GetExecution(ctx, executionID)
	if err != nil {
		return Proceed, nil, fmt.Errorf("idempotency: lookup failed: %w", err)
	}
	if existing == nil {
		return Proceed, nil, nil
	}

	switch existing.Status {
	case contracts.StatusCompleted, contracts.StatusFailed, contracts.StatusRolledBack:
		if time.Since(existing.FinishedAt) <= m.ttl {
			return Cached, existing, nil
		}
		// Expired: a retry is allowed to re-apply, since the world may
		// have changed since the cached terminal result.
		return Proceed, nil, nil
	case contracts.StatusPending, contracts.StatusRunning:
		return WaitForPeer, existing, nil
	default:
		return Proceed, nil, nil
	}
}
