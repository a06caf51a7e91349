// Package writegate implements the deterministic policy judge: a pure
// function that turns a ChangePlan + ChangeSet + policy snapshot (+
// optional reflection hints) into a GovernanceDecision.
//
// WriteGate is a judge, not a player — it never mutates a ChangeSet and
// never executes anything. The four ordered checks (checksum integrity,
// forbidden paths, risk escalation, gating) run in a fixed order; the
// first DENY short-circuits the remaining checks.
package writegate

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

// ReflectionHints is the advisory document a prior similarity search may
// attach to an evaluation. WriteGate may append its strings to Reasons
// but must never let it change the verdict.
type ReflectionHints struct {
	Digest      string
	Suggestions []string
}

// Gate evaluates ChangePlans against a fixed policy snapshot.
type Gate struct {
	policy      *policyconfig.Policy
	env         *cel.Env
	gateRules   []cel.Program
	gateSources []string
}

// New compiles a Gate over the given policy. Additional CEL gating rules
// (policy-declared human-review triggers beyond path/risk matching, e.g.
// "principal is a service account and risk is not low") may be supplied
// as boolean expressions over `risk`, `op_kinds` (list of strings) and
// `affected_count` (int).
func New(policy *policyconfig.Policy, extraGateRules ...string) (*Gate, error) {
	env, err := cel.NewEnv(
		cel.Variable("risk", cel.StringType),
		cel.Variable("op_kinds", cel.ListType(cel.StringType)),
		cel.Variable("affected_count", cel.IntType),
		cel.Variable("always_review_hit", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("writegate: cel env: %w", err)
	}

	g := &Gate{policy: policy, env: env}
	for _, src := range extraGateRules {
		ast, issues := env.Compile(src)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("writegate: compiling gate rule %q: %w", src, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("writegate: building gate rule %q: %w", src, err)
		}
		g.gateRules = append(g.gateRules, prg)
		g.gateSources = append(g.gateSources, src)
	}
	return g, nil
}

// Evaluate runs the four ordered checks and returns an immutable decision.
func (g *Gate) Evaluate(ctx context.Context, plan *contracts.ChangePlan, cs *contracts.ChangeSet, hints *ReflectionHints) (*contracts.GovernanceDecision, error) {
	snapHash, err := g.policy.SnapshotHash()
	if err != nil {
		return nil, fmt.Errorf("writegate: hashing policy snapshot: %w", err)
	}

	decision := &contracts.GovernanceDecision{
		DecisionID:         uuid.NewString(),
		PlanID:             plan.PlanID,
		ChangeSetID:        cs.ChangeSetID,
		RiskLevelEffective: plan.RiskLevelProposed,
		PolicySnapshotHash: snapHash,
		CreatedAt:          time.Now().UTC(),
	}

	// 1. Checksum integrity.
	if err := canonicalize.VerifyChangeSetChecksum(cs); err != nil {
		decision.Verdict = contracts.VerdictDeny
		decision.Reasons = append(decision.Reasons, "checksum_mismatch")
		return decision, nil
	}

	// 2. Forbidden paths.
	for _, p := range cs.AffectedPaths() {
		if m := g.policy.MatchForbidden(p); m != "" {
			decision.Verdict = contracts.VerdictDeny
			decision.Reasons = append(decision.Reasons, fmt.Sprintf("path_violation: %s matches forbidden pattern %q", p, m))
			return decision, nil
		}
	}

	// 3. Risk escalation.
	alwaysReviewHit := false
	opKinds := make([]string, 0, len(cs.Changes))
	seenOp := map[contracts.FileOp]bool{}
	for _, ch := range cs.Changes {
		if !seenOp[ch.Op] {
			seenOp[ch.Op] = true
			opKinds = append(opKinds, string(ch.Op))
		}
	}
	effective := plan.RiskLevelProposed
	for _, p := range cs.AffectedPaths() {
		if m := g.policy.MatchAlwaysReview(p); m != "" {
			alwaysReviewHit = true
			effective = effective.Max(contracts.RiskHigh)
			decision.Reasons = append(decision.Reasons, fmt.Sprintf("always_review path %q matches %q", p, m))
		}
	}
	for _, rule := range g.policy.RiskEscalations {
		if rule.OnOp != "" && !seenOp[contracts.FileOp(rule.OnOp)] {
			continue
		}
		if rule.PathPattern != "" {
			re, err := regexp.Compile(rule.PathPattern)
			if err != nil {
				return nil, fmt.Errorf("writegate: risk escalation pattern %q: %w", rule.PathPattern, err)
			}
			matched := false
			for _, p := range cs.AffectedPaths() {
				if re.MatchString(p) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		effective = effective.Max(contracts.RiskLevel(rule.MinRisk))
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("risk escalation rule matched (op=%s pattern=%s) -> %s", rule.OnOp, rule.PathPattern, rule.MinRisk))
	}
	affected := cs.AffectedPaths()
	if g.policy.MaxFilesTouched > 0 && len(affected) > g.policy.MaxFilesTouched {
		effective = effective.Max(contracts.RiskHigh)
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("file count %d exceeds budget %d", len(affected), g.policy.MaxFilesTouched))
	}
	patchLines := patchLineCount(cs.Changes)
	if g.policy.MaxPatchLines > 0 && patchLines > g.policy.MaxPatchLines {
		effective = effective.Max(contracts.RiskHigh)
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("patch line count %d exceeds budget %d", patchLines, g.policy.MaxPatchLines))
	}
	decision.RiskLevelEffective = effective

	// 4. Gating.
	needsApproval := false
	if effective.Rank() >= contracts.RiskMedium.Rank() && plan.RollbackPlan == "" {
		needsApproval = true
		decision.Reasons = append(decision.Reasons, "risk >= medium with empty rollback_plan")
	}
	if alwaysReviewHit {
		needsApproval = true
	}
	if triggered, err := g.evalExtraGateRules(effective, opKinds, len(affected), alwaysReviewHit); err != nil {
		return nil, fmt.Errorf("writegate: evaluating gate rules: %w", err)
	} else if triggered != "" {
		needsApproval = true
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("policy-declared trigger matched: %s", triggered))
	}

	if needsApproval {
		decision.Verdict = contracts.VerdictNeedApproval
	} else {
		decision.Verdict = contracts.VerdictAllow
	}

	// Advisory reflection hints — appended, never change the verdict.
	if hints != nil && len(hints.Suggestions) > 0 {
		decision.ReflectionHintsUsed = true
		decision.HintsDigest = hints.Digest
		decision.Reasons = append(decision.Reasons, hints.Suggestions...)
	}

	return decision, nil
}

func (g *Gate) evalExtraGateRules(risk contracts.RiskLevel, opKinds []string, affectedCount int, alwaysReviewHit bool) (string, error) {
	if len(g.gateRules) == 0 {
		return "", nil
	}
	kinds := make([]interface{}, len(opKinds))
	for i, k := range opKinds {
		kinds[i] = k
	}
	input := map[string]interface{}{
		"risk":              string(risk),
		"op_kinds":          kinds,
		"affected_count":    int64(affectedCount),
		"always_review_hit": alwaysReviewHit,
	}
	for i, prg := range g.gateRules {
		out, _, err := prg.Eval(input)
		if err != nil {
			return "", fmt.Errorf("rule %q: %w", g.gateSources[i], err)
		}
		if b, ok := out.Value().(bool); ok && b {
			return g.gateSources[i], nil
		}
	}
	return "", nil
}

// patchLineCount sums the line counts of every changed file's content,
// old and new, as the basis for the MaxPatchLines budget check.
func patchLineCount(changes []contracts.FileChange) int {
	total := 0
	for _, ch := range changes {
		total += countLines(ch.OldContent) + countLines(ch.NewContent)
	}
	return total
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return bytes.Count(content, []byte("\n")) + 1
}
