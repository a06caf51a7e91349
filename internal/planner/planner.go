// Package planner turns a free-text intent into a ChangePlan + ChangeSet
// through the deterministic state machine described here:
// INTENT -> ANALYSIS -> PLAN_GENERATION -> GOVERNANCE_CHECK -> EXECUTION_READY.
//
// Each state declares which tool categories it may invoke. Non-determinism
// only enters through the reasoning Tool the Planner calls in ANALYSIS and
// PLAN_GENERATION; its output is validated against the current state's
// permitted operations before the state machine advances.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// State is one node of the Planner's deterministic state machine.
type State string

const (
	StateIntent           State = "INTENT"
	StateAnalysis         State = "ANALYSIS"
	StatePlanGeneration   State = "PLAN_GENERATION"
	StateGovernanceCheck  State = "GOVERNANCE_CHECK"
	StateExecutionReady   State = "EXECUTION_READY"
)

// ToolCategory restricts what a reasoning Tool may do in a given state.
type ToolCategory string

const (
	ToolReadOnly          ToolCategory = "read_only"
	ToolDiffGenerating    ToolCategory = "diff_generating"
	ToolPolicyEvaluation  ToolCategory = "policy_evaluation"
)

// permittedTools is the fixed mapping from state to allowed tool categories.
var permittedTools = map[State][]ToolCategory{
	StateIntent:          {},
	StateAnalysis:        {ToolReadOnly},
	StatePlanGeneration:  {ToolDiffGenerating},
	StateGovernanceCheck: {ToolPolicyEvaluation},
	StateExecutionReady:  {},
}

// IntentType classifies the kind of change requested, used for risk shaping.
type IntentType string

const (
	IntentFixBug      IntentType = "fix_bug"
	IntentAddFeature  IntentType = "add_feature"
	IntentUpdateDocs  IntentType = "update_docs"
	IntentOptimize    IntentType = "optimize"
	IntentInvestigate IntentType = "investigate"
	IntentRefactor    IntentType = "refactor"
)

// ReasoningTool is the external, non-deterministic collaborator the
// Planner invokes during ANALYSIS and PLAN_GENERATION. It is out of
// scope for this package — the Planner only validates its output.
type ReasoningTool interface {
	// Analyze returns the inferred intent type and rationale for the
	// free-text intent, using only read-only tools.
	Analyze(ctx context.Context, intent string) (IntentType, string, error)
	// GenerateChangeSet returns the proposed file changes for the intent,
	// using only diff-generating tools.
	GenerateChangeSet(ctx context.Context, intent string, affectedPaths []string) ([]contracts.FileChange, error)
}

// Planner drives the deterministic state machine.
type Planner struct {
	reasoning    ReasoningTool
	alwaysReview []string // path prefixes forcing high risk, mirrors policyconfig patterns
	createdBy    string
}

// New builds a Planner over the given reasoning tool.
func New(reasoning ReasoningTool, alwaysReviewRoots []string, createdBy string) *Planner {
	return &Planner{reasoning: reasoning, alwaysReview: alwaysReviewRoots, createdBy: createdBy}
}

// Plan runs the full state machine for one intent, returning a
// ChangePlan and ChangeSet ready for WriteGate, or an error if the
// intent cannot be turned into a plan at all.
func (p *Planner) Plan(ctx context.Context, intentText string, affectedPaths []string) (*contracts.ChangePlan, *contracts.ChangeSet, error) {
	state := StateIntent
	if intentText == "" {
		return nil, nil, fmt.Errorf("invalid_input: empty intent")
	}

	state = StateAnalysis
	intentType, rationale, err := p.reasoning.Analyze(ctx, intentText)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid_input: analysis failed: %w", err)
	}
	if !toolAllowed(state, ToolReadOnly) {
		return nil, nil, fmt.Errorf("internal: analysis attempted outside permitted tool set")
	}

	state = StatePlanGeneration
	changes, err := p.reasoning.GenerateChangeSet(ctx, intentText, affectedPaths)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid_input: plan generation failed: %w", err)
	}
	if !toolAllowed(state, ToolDiffGenerating) {
		return nil, nil, fmt.Errorf("internal: plan generation attempted outside permitted tool set")
	}

	plan := &contracts.ChangePlan{
		PlanID:            uuid.NewString(),
		Intent:            intentText,
		Objective:         rationale,
		Rationale:         rationale,
		AffectedPaths:     affectedPaths,
		RiskLevelProposed: riskForIntentType(intentType),
		CreatedAt:         time.Now().UTC(),
		CreatedBy:         p.createdBy,
	}
	p.shapeRisk(plan, intentType)

	cs, err := buildChangeSet(changes)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid_input: %w", err)
	}

	state = StateGovernanceCheck
	if !toolAllowed(state, ToolPolicyEvaluation) {
		return nil, nil, fmt.Errorf("internal: governance check attempted outside permitted tool set")
	}
	// WriteGate itself runs outside the Planner; GOVERNANCE_CHECK here
	// only marks that the plan is ready to be submitted to it.

	state = StateExecutionReady
	_ = state

	return plan, cs, nil
}

func toolAllowed(s State, cat ToolCategory) bool {
	for _, c := range permittedTools[s] {
		if c == cat {
			return true
		}
	}
	return false
}

// riskForIntentType gives the baseline risk before path-based shaping.
func riskForIntentType(t IntentType) contracts.RiskLevel {
	switch t {
	case IntentUpdateDocs:
		return contracts.RiskLow
	case IntentInvestigate:
		return contracts.RiskLow
	case IntentOptimize, IntentRefactor:
		return contracts.RiskMedium
	case IntentFixBug, IntentAddFeature:
		return contracts.RiskMedium
	default:
		return contracts.RiskMedium
	}
}

// shapeRisk auto-populates rollback_plan, verification_plan and
// health_checks when the agent omitted them, and forces high risk for
// always-review paths .
func (p *Planner) shapeRisk(plan *contracts.ChangePlan, intentType IntentType) {
	for _, ap := range plan.AffectedPaths {
		for _, root := range p.alwaysReview {
			if pathHasRoot(ap, root) {
				plan.RiskLevelProposed = plan.RiskLevelProposed.Max(contracts.RiskHigh)
			}
		}
	}

	if plan.RollbackPlan == "" {
		plan.RollbackPlan = inferRollbackPlan(plan, intentType)
	}
	if len(plan.VerificationPlan) == 0 {
		plan.VerificationPlan = inferVerificationPlan(intentType)
	}
	if len(plan.HealthChecks) == 0 {
		plan.HealthChecks = inferHealthChecks(intentType, plan.AffectedPaths)
	}
}

// inferRollbackPlan returns "" (leaving the plan without a rollback
// plan) when no safe default can be inferred for a high/critical risk
// change — WriteGate then downgrades such plans to NEED_APPROVAL.
func inferRollbackPlan(plan *contracts.ChangePlan, intentType IntentType) string {
	if plan.RiskLevelProposed.Rank() >= contracts.RiskHigh.Rank() && intentType != IntentUpdateDocs {
		return ""
	}
	return "restore from Executor-managed per-file backups"
}

func inferVerificationPlan(intentType IntentType) []contracts.VerificationStep {
	switch intentType {
	case IntentUpdateDocs:
		return nil
	case IntentFixBug, IntentAddFeature, IntentRefactor, IntentOptimize:
		return []contracts.VerificationStep{{Kind: "test_runner", ProfileName: "default", TimeoutSeconds: 120}}
	default:
		return nil
	}
}

func inferHealthChecks(intentType IntentType, affectedPaths []string) []contracts.HealthCheckSpec {
	if intentType != IntentAddFeature || len(affectedPaths) == 0 {
		return nil
	}
	return []contracts.HealthCheckSpec{{
		Kind:       "file_exists",
		FileExists: &contracts.FileExistsCheck{Paths: affectedPaths},
	}}
}

func pathHasRoot(p, root string) bool {
	if root == "" {
		return false
	}
	if len(p) < len(root) {
		return false
	}
	return p[:len(root)] == root
}

func buildChangeSet(changes []contracts.FileChange) (*contracts.ChangeSet, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("empty change set")
	}
	sum, err := canonicalize.ChangeSetChecksum(changes)
	if err != nil {
		return nil, err
	}
	return &contracts.ChangeSet{
		ChangeSetID: uuid.NewString(),
		Changes:     changes,
		Checksum:    sum,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
