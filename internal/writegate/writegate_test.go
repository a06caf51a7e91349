package writegate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

func validChangeSet(t *testing.T, changes []contracts.FileChange) *contracts.ChangeSet {
	t.Helper()
	cs := &contracts.ChangeSet{ChangeSetID: "cs-1", Changes: changes}
	checksum, err := canonicalize.ChangeSetChecksum(changes)
	require.NoError(t, err)
	cs.Checksum = checksum
	return cs
}

func TestGate_DeniesOnChecksumMismatch(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}
	cs := &contracts.ChangeSet{ChangeSetID: "cs-1", Changes: []contracts.FileChange{
		{Op: contracts.OpCreate, Path: "a.txt", NewHash: "h1"},
	}, Checksum: "bogus"}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictDeny, decision.Verdict)
	require.Contains(t, decision.Reasons, "checksum_mismatch")
}

func TestGate_DeniesOnForbiddenPath(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpUpdate, Path: ".env.production", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictDeny, decision.Verdict)
}

func TestGate_NeedsApprovalOnHighRiskWithoutRollbackPlan(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpUpdate, Path: "app/main.go", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskHigh}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictNeedApproval, decision.Verdict)
}

func TestGate_AllowsLowRiskCleanPlan(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpCreate, Path: "app/new.go", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictAllow, decision.Verdict)
}

func TestGate_AlwaysReviewPathForcesApprovalEvenAtLowRisk(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpUpdate, Path: "schema/users.sql", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow, RollbackPlan: "revert migration"}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictNeedApproval, decision.Verdict)
}

func TestGate_ReflectionHintsAreAdvisoryOnly(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpCreate, Path: "app/new.go", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}

	hints := &ReflectionHints{Digest: "d1", Suggestions: []string{"prior similar execution failed health checks"}}
	decision, err := g.Evaluate(context.Background(), plan, cs, hints)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictAllow, decision.Verdict)
	require.True(t, decision.ReflectionHintsUsed)
	require.Equal(t, "d1", decision.HintsDigest)
	require.Contains(t, decision.Reasons, "prior similar execution failed health checks")
}

func TestGate_EscalatesRiskWhenPatchLineBudgetExceeded(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	bigContent := []byte(strings.Repeat("line\n", policyconfig.Default().MaxPatchLines+1))
	changes := []contracts.FileChange{{Op: contracts.OpCreate, Path: "app/new.go", NewContent: bigContent, NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow, RollbackPlan: "revert commit"}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.RiskHigh, decision.RiskLevelEffective)
	require.Contains(t, strings.Join(decision.Reasons, "|"), "exceeds budget")
}

func TestGate_DoesNotEscalateWhenPatchLinesWithinBudget(t *testing.T) {
	g, err := New(policyconfig.Default())
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpCreate, Path: "app/new.go", NewContent: []byte("small change\n"), NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.RiskLow, decision.RiskLevelEffective)
}

func TestGate_ExtraGateRuleTriggersApproval(t *testing.T) {
	g, err := New(policyconfig.Default(), `affected_count > 0 && risk == "low"`)
	require.NoError(t, err)

	changes := []contracts.FileChange{{Op: contracts.OpCreate, Path: "app/new.go", NewHash: "h1"}}
	cs := validChangeSet(t, changes)
	plan := &contracts.ChangePlan{PlanID: "p1", RiskLevelProposed: contracts.RiskLow}

	decision, err := g.Evaluate(context.Background(), plan, cs, nil)
	require.NoError(t, err)
	require.Equal(t, contracts.VerdictNeedApproval, decision.Verdict)
}
