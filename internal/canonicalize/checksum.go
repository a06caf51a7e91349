package canonicalize

import (
	"fmt"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// changeSetDigestView is the canonical serialization shape used to
// compute a ChangeSet's checksum. Field order does not matter for JCS
// (keys are sorted), but the set of fields does — it must exclude
// ChangeSetID and CreatedAt, which are metadata, not payload.
type changeSetDigestView struct {
	Changes []fileChangeDigestView `json:"changes"`
}

type fileChangeDigestView struct {
	Op      contracts.FileOp `json:"op"`
	Path    string           `json:"path"`
	OldHash string           `json:"old_hash,omitempty"`
	NewHash string           `json:"new_hash,omitempty"`
}

// ChangeSetChecksum computes the canonical SHA-256 checksum over a
// ChangeSet's ordered FileChanges. It deliberately hashes content hashes
// (old_hash/new_hash), not raw content bytes, so checksum computation
// stays cheap even for large file changes while still committing to the
// exact content via the hashes.
func ChangeSetChecksum(changes []contracts.FileChange) (string, error) {
	view := changeSetDigestView{Changes: make([]fileChangeDigestView, 0, len(changes))}
	for _, c := range changes {
		view.Changes = append(view.Changes, fileChangeDigestView{
			Op:      c.Op,
			Path:    c.Path,
			OldHash: c.OldHash,
			NewHash: c.NewHash,
		})
	}
	hash, err := CanonicalHash(view)
	if err != nil {
		return "", fmt.Errorf("changeset checksum: %w", err)
	}
	return hash, nil
}

// VerifyChangeSetChecksum recomputes the checksum and compares it to
// cs.Checksum. Both WriteGate and Executor call this independently
// as defense in depth.
func VerifyChangeSetChecksum(cs *contracts.ChangeSet) error {
	want, err := ChangeSetChecksum(cs.Changes)
	if err != nil {
		return err
	}
	if want != cs.Checksum {
		return fmt.Errorf("tampered: checksum mismatch: computed %s, recorded %s", want, cs.Checksum)
	}
	return nil
}

// FileContentHash hashes raw file content the way old_hash/new_hash are
// computed throughout the pipeline.
func FileContentHash(content []byte) string {
	return HashBytes(content)
}
