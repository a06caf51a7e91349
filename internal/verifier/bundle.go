package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/artifacts"
	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
)

// BundleVerifierVersion is reported in every VerifyReport so an
// auditor comparing reports across tool versions can tell whether a
// discrepancy might be a checker change rather than a real tamper.
const BundleVerifierVersion = "1.0.0"

// VerifyReport is the structured output of offline bundle verification.
type VerifyReport struct {
	ExecutionID string        `json:"execution_id"`
	Verified    bool          `json:"verified"`
	Timestamp   time.Time     `json:"timestamp"`
	Checks      []CheckResult `json:"checks"`
	IssueCount  int           `json:"issue_count"`
	VerifierVer string        `json:"verifier_version"`
}

// CheckResult is one named pass/fail check within a VerifyReport.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// VerifyBundle performs offline verification of one execution's
// artifact directory: no network access, no live store dependency —
// only the four-piece set, the event chain, and the checksum/hash
// utilities already used at apply time.
func VerifyBundle(store *artifacts.Store, executionID string) (*VerifyReport, error) {
	report := &VerifyReport{
		ExecutionID: executionID,
		Verified:    true,
		Timestamp:   time.Now().UTC(),
		VerifierVer: BundleVerifierVersion,
	}

	set, err := store.ReadFourPieceSet(context.Background(), executionID)
	if err != nil {
		report.add(CheckResult{Name: "four_piece_set_readable", Pass: false, Detail: err.Error()})
		return report, nil
	}
	report.add(CheckResult{Name: "four_piece_set_readable", Pass: true})

	if err := canonicalize.VerifyChangeSetChecksum(&set.ChangeSet); err != nil {
		report.add(CheckResult{Name: "changeset_checksum", Pass: false, Detail: err.Error()})
	} else {
		report.add(CheckResult{Name: "changeset_checksum", Pass: true})
	}

	idConsistent := set.Execution.PlanID == set.Plan.PlanID &&
		set.Execution.ChangeSetID == set.ChangeSet.ChangeSetID &&
		set.Execution.DecisionID == set.Decision.DecisionID
	report.add(CheckResult{
		Name: "identifier_consistency", Pass: idConsistent,
		Detail: conditionalDetail(!idConsistent, "execution.json references do not match plan/changeset/decision ids"),
	})

	checksumConsistent := set.Execution.Checksum == set.ChangeSet.Checksum
	report.add(CheckResult{
		Name: "checksum_consistency", Pass: checksumConsistent,
		Detail: conditionalDetail(!checksumConsistent, "execution.json checksum does not match changeset.json checksum"),
	})

	if err := store.VerifyEventChain(executionID); err != nil {
		report.add(CheckResult{Name: "event_chain_integrity", Pass: false, Detail: err.Error()})
	} else {
		report.add(CheckResult{Name: "event_chain_integrity", Pass: true})
	}

	return report, nil
}

func (r *VerifyReport) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.Verified = false
		r.IssueCount++
	}
}

func conditionalDetail(bad bool, msg string) string {
	if bad {
		return msg
	}
	return ""
}

// ReplaySummary is what replay_execution returns: a human-readable
// reconstruction of what happened, built purely from the artifact
// directory, not the store.
type ReplaySummary struct {
	ExecutionID   string   `json:"execution_id"`
	PlanIntent    string   `json:"plan_intent"`
	Verdict       string   `json:"verdict"`
	Status        string   `json:"status"`
	AffectedPaths []string `json:"affected_paths"`
	ErrorStep     string   `json:"error_step,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// ReplayExecution reconstructs a ReplaySummary from an execution's
// four-piece set alone.
func ReplayExecution(store *artifacts.Store, executionID string) (*ReplaySummary, error) {
	set, err := store.ReadFourPieceSet(context.Background(), executionID)
	if err != nil {
		return nil, fmt.Errorf("verifier: replaying %s: %w", executionID, err)
	}
	return &ReplaySummary{
		ExecutionID:   executionID,
		PlanIntent:    set.Plan.Intent,
		Verdict:       string(set.Decision.Verdict),
		Status:        string(set.Execution.Status),
		AffectedPaths: set.ChangeSet.AffectedPaths(),
		ErrorStep:     string(set.Execution.ErrorStep),
		ErrorMessage:  set.Execution.ErrorMessage,
	}, nil
}
