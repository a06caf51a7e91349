package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nana77mi/lonelycat-gcec/internal/artifacts"
	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
)

// RepairDraft is the output of case-based repair synthesis: a candidate
// ChangeSet for human review, never submitted automatically. A repair
// execution built from an approved draft sets is_repair=true,
// repair_for_execution_id, trigger_kind=repair, and inherits
// correlation_id from the failed execution it repairs.
//
//nolint:govet // fieldalignment: field order follows narrative order
type RepairDraft struct {
	FailedExecutionID        string              `json:"failed_execution_id"`
	CorrelationID            string              `json:"correlation_id"`
	EvidenceExecutionIDs     []string            `json:"evidence_execution_ids"`
	SourceSuccessExecutionID string              `json:"source_success_execution_id"`
	ChangeSet                *contracts.ChangeSet `json:"changeset_draft"`
	Rationale                string              `json:"rationale"`
	GeneratedAt              time.Time           `json:"generated_at"`
}

// DefaultRepairSimilarity is the minimum combined similarity a prior
// failure must reach before its descendants are considered as repair
// evidence.
const DefaultRepairSimilarity = 0.3

// SynthesizeRepair finds prior failures similar to failedExecutionID,
// walks each one's descendants (retries/repairs under the same
// correlation) for an eventual successful completion, and drafts a
// ChangeSet from that success's own changeset for human review.
func SynthesizeRepair(ctx context.Context, st *store.Store, artifactStore *artifacts.Store, engine *Engine, failedExecutionID string, limit int) (*RepairDraft, error) {
	failed, err := st.GetExecution(ctx, failedExecutionID)
	if err != nil {
		return nil, fmt.Errorf("similarity: fetching failed execution %s: %w", failedExecutionID, err)
	}
	if failed == nil {
		return nil, fmt.Errorf("invalid_input: execution %s not found", failedExecutionID)
	}

	similar, err := engine.FindSimilarExecutions(ctx, failedExecutionID, limit, DefaultRepairSimilarity, true)
	if err != nil {
		return nil, err
	}

	for _, candidate := range similar {
		success, err := findSuccessfulDescendant(ctx, st, candidate.ExecutionID)
		if err != nil {
			return nil, err
		}
		if success == nil {
			continue
		}
		return buildDraft(ctx, artifactStore, failed, candidate, *success)
	}

	return nil, fmt.Errorf("no repair evidence found for %s: no similar prior failure has a successful descendant", failedExecutionID)
}

func findSuccessfulDescendant(ctx context.Context, st *store.Store, executionID string) (*contracts.ExecutionRecord, error) {
	lineage, err := st.GetLineage(ctx, executionID, 20)
	if err != nil {
		return nil, fmt.Errorf("similarity: walking lineage of %s: %w", executionID, err)
	}
	for i := range lineage.Descendants {
		if lineage.Descendants[i].Status == contracts.StatusCompleted {
			return &lineage.Descendants[i], nil
		}
	}
	return nil, nil
}

func buildDraft(ctx context.Context, artifactStore *artifacts.Store, failed *contracts.ExecutionRecord, evidence Scored, success contracts.ExecutionRecord) (*RepairDraft, error) {
	set, err := artifactStore.ReadFourPieceSet(ctx, success.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("similarity: reading successful changeset %s: %w", success.ExecutionID, err)
	}

	checksum, err := canonicalize.ChangeSetChecksum(set.ChangeSet.Changes)
	if err != nil {
		return nil, fmt.Errorf("similarity: checksumming repair draft: %w", err)
	}
	draftChangeSet := &contracts.ChangeSet{
		ChangeSetID: uuid.NewString(),
		Changes:     set.ChangeSet.Changes,
		Checksum:    checksum,
		CreatedAt:   time.Now().UTC(),
	}

	return &RepairDraft{
		FailedExecutionID:        failed.ExecutionID,
		CorrelationID:            failed.CorrelationID,
		EvidenceExecutionIDs:     []string{evidence.ExecutionID, success.ExecutionID},
		SourceSuccessExecutionID: success.ExecutionID,
		ChangeSet:                draftChangeSet,
		Rationale: fmt.Sprintf(
			"derived from successful completion %s, a descendant of prior failure %s (combined similarity %.2f to %s)",
			success.ExecutionID, evidence.ExecutionID, evidence.Scores.Combined, failed.ExecutionID,
		),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
