package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ArchiveBackend uploads an execution directory to cold storage before
// it is pruned from local disk.
type ArchiveBackend interface {
	Archive(ctx context.Context, executionID string, dir string) error
}

// RetentionPolicy bounds how many execution directories the Artifact
// Store keeps locally: an execution directory is eligible for pruning
// once it exceeds MaxAge, but only after the larger of MaxAge/MaxCount
// is exceeded across the whole store, and never within GracePeriod of
// being created.
type RetentionPolicy struct {
	MaxAge      time.Duration // default 7 days
	MaxCount    int           // default 100
	GracePeriod time.Duration // never prune newer than this, regardless of policy
	Archive     ArchiveBackend
}

// DefaultRetentionPolicy matches the documented default: 7 days or 100
// executions, whichever permits more to be retained.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxAge:      7 * 24 * time.Hour,
		MaxCount:    100,
		GracePeriod: time.Hour,
	}
}

type dirInfo struct {
	executionID string
	path        string
	modTime     time.Time
}

// Prune removes execution directories beyond the retention policy,
// archiving each one first if an ArchiveBackend is configured. The
// SQLite execution row is never touched — pruning is purely a local
// artifact-directory garbage collection pass.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy) (pruned []string, err error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("artifacts: listing %s: %w", s.root, err)
	}

	var dirs []dirInfo
	now := time.Now()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < policy.GracePeriod {
			continue
		}
		dirs = append(dirs, dirInfo{
			executionID: e.Name(),
			path:        filepath.Join(s.root, e.Name()),
			modTime:     info.ModTime(),
		})
	}

	// Oldest first, so age-based and count-based eviction agree on order.
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime.Before(dirs[j].modTime) })

	byAge := policy.MaxAge > 0
	excess := len(dirs) - policy.MaxCount
	for i, d := range dirs {
		ageExceeded := byAge && now.Sub(d.modTime) > policy.MaxAge
		countExceeded := i < excess
		// "whichever is larger" retention: only prune when BOTH the
		// age and count thresholds agree this directory is excess, so
		// a generous MaxCount can keep young-but-plentiful directories
		// and a generous MaxAge can keep old-but-few ones.
		if !(ageExceeded && countExceeded) {
			continue
		}

		if policy.Archive != nil {
			if err := policy.Archive.Archive(ctx, d.executionID, d.path); err != nil {
				return pruned, fmt.Errorf("artifacts: archiving %s before prune: %w", d.executionID, err)
			}
		}
		if err := os.RemoveAll(d.path); err != nil {
			return pruned, fmt.Errorf("artifacts: removing %s: %w", d.path, err)
		}
		pruned = append(pruned, d.executionID)
	}
	return pruned, nil
}
