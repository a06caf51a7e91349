// Package executor implements the submit boundary operation: the only
// place a ChangePlan + ChangeSet + GovernanceDecision actually touches
// the filesystem. It runs the six durable pipeline steps — validate,
// backup, apply, verify, health, record — under the repo-level lock and
// an idempotency check, rolling back everything already applied the
// moment any step fails.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/applier"
	"github.com/Nana77mi/lonelycat-gcec/internal/artifacts"
	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/health"
	"github.com/Nana77mi/lonelycat-gcec/internal/idempotency"
	"github.com/Nana77mi/lonelycat-gcec/internal/lockmgr"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
	"github.com/Nana77mi/lonelycat-gcec/internal/rollback"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
	"github.com/Nana77mi/lonelycat-gcec/internal/telemetry"
	"github.com/Nana77mi/lonelycat-gcec/internal/verifier"
	"github.com/Nana77mi/lonelycat-gcec/internal/writegate"
)

// DefaultBudget is the pipeline's wall-clock budget; exceeding it fails
// whichever step is in flight with a timeout error and triggers rollback.
const DefaultBudget = 300 * time.Second

// Submission bundles everything one call to Execute needs: the
// WriteGate-evaluated plan/changeset/decision, an approval record if the
// decision requires one, and the lineage fields that place this run in
// the correlation forest.
//
//nolint:govet // fieldalignment: field order follows narrative order
type Submission struct {
	Plan      *contracts.ChangePlan
	ChangeSet *contracts.ChangeSet
	Decision  *contracts.GovernanceDecision
	Approval  *contracts.GovernanceApproval // required iff Decision.Verdict == NEED_APPROVAL

	CorrelationID        string // defaults to Plan.PlanID when empty
	ParentExecutionID    string
	TriggerKind          contracts.TriggerKind // defaults to TriggerManual when empty
	IsRepair             bool
	RepairForExecutionID string
}

// Executor owns every subsystem the pipeline steps delegate to.
type Executor struct {
	workspaceRoot string
	policy        *policyconfig.Policy
	store         *store.Store
	artifacts     *artifacts.Store
	telemetry     *telemetry.Provider
	approvals     *writegate.ApprovalIssuer
	log           *slog.Logger

	lock     *lockmgr.Manager
	idem     *idempotency.Manager
	apply    *applier.Applier
	rollback *rollback.Handler
	verify   *verifier.Verifier
	health   *health.Checker

	budget time.Duration
}

// Option configures an Executor beyond its required dependencies.
type Option func(*Executor)

// WithBudget overrides the default 300s wall-clock pipeline budget.
func WithBudget(d time.Duration) Option { return func(e *Executor) { e.budget = d } }

// WithLockManager overrides the repo-level lock (for tests).
func WithLockManager(m *lockmgr.Manager) Option { return func(e *Executor) { e.lock = m } }

// WithIdempotencyManager overrides the idempotency manager (for tests).
func WithIdempotencyManager(m *idempotency.Manager) Option { return func(e *Executor) { e.idem = m } }

// New builds an Executor. approvals may be nil only if every submission
// this Executor will ever see is expected to carry an ALLOW verdict.
func New(
	workspaceRoot string,
	policy *policyconfig.Policy,
	st *store.Store,
	artifactStore *artifacts.Store,
	tel *telemetry.Provider,
	approvals *writegate.ApprovalIssuer,
	log *slog.Logger,
	opts ...Option,
) *Executor {
	if log == nil {
		log = slog.Default()
	}
	budget := DefaultBudget
	if policy != nil && policy.TotalTimeoutSeconds > 0 {
		budget = time.Duration(policy.TotalTimeoutSeconds) * time.Second
	}
	e := &Executor{
		workspaceRoot: workspaceRoot,
		policy:        policy,
		store:         st,
		artifacts:     artifactStore,
		telemetry:     tel,
		approvals:     approvals,
		log:           log,
		lock:          lockmgr.New(workspaceRoot),
		idem:          idempotency.New(st, 0),
		apply:         applier.New(workspaceRoot),
		rollback:      rollback.New(workspaceRoot),
		verify:        verifier.New(policy),
		health:        health.New(policy),
		budget:        budget,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute is the submit boundary operation. It never returns a bare
// error for an in-flight pipeline failure — those are captured in the
// returned ExecResult's Record — but does return an error for
// preconditions the pipeline never got to run under (missing approval,
// lock acquisition timeout, storage failures).
func (e *Executor) Execute(ctx context.Context, sub Submission) (*contracts.ExecResult, error) {
	if sub.Plan == nil || sub.ChangeSet == nil || sub.Decision == nil {
		return nil, fmt.Errorf("invalid_input: submission is missing plan, changeset, or decision")
	}
	if err := e.checkPreconditions(sub); err != nil {
		return nil, err
	}

	executionID := idempotency.ExecutionID(sub.Plan.PlanID, sub.ChangeSet.Checksum)

	if result, err := e.cachedResult(ctx, executionID, sub); result != nil || err != nil {
		return result, err
	}

	release, err := e.lock.Acquire(ctx, executionID, sub.Plan.PlanID)
	if err != nil {
		return nil, fmt.Errorf("timeout: %w", err)
	}
	defer func() { _ = release() }()

	// A peer may have completed this exact (plan_id, checksum) while this
	// call waited for the lock; re-check before starting a fresh run.
	if result, err := e.cachedResult(ctx, executionID, sub); result != nil || err != nil {
		return result, err
	}

	return e.run(ctx, executionID, sub)
}

// checkPreconditions enforces that only ALLOW or approved NEED_APPROVAL
// decisions ever reach the pipeline. A DENY verdict, or a NEED_APPROVAL
// verdict without a valid approval, fails fast with no lock acquired and
// no execution record created.
func (e *Executor) checkPreconditions(sub Submission) error {
	switch sub.Decision.Verdict {
	case contracts.VerdictAllow:
		return nil
	case contracts.VerdictNeedApproval:
		if e.approvals == nil {
			return fmt.Errorf("not_approved: decision %s requires approval but no approval issuer is configured", sub.Decision.DecisionID)
		}
		return e.approvals.Verify(sub.Approval, sub.Decision.DecisionID)
	default:
		return fmt.Errorf("not_approved: decision %s has verdict %s", sub.Decision.DecisionID, sub.Decision.Verdict)
	}
}

func (e *Executor) cachedResult(ctx context.Context, executionID string, sub Submission) (*contracts.ExecResult, error) {
	outcome, existing, err := e.idem.Check(ctx, sub.Plan.PlanID, sub.ChangeSet.Checksum)
	if err != nil {
		return nil, err
	}
	if outcome != idempotency.Cached {
		return nil, nil
	}
	steps, err := e.store.ListSteps(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("internal: loading cached steps for %s: %w", executionID, err)
	}
	return &contracts.ExecResult{Record: existing, Steps: steps}, nil
}

// run executes the six durable steps against one already-locked,
// already-deduped (plan, changeset) pair.
func (e *Executor) run(ctx context.Context, executionID string, sub Submission) (*contracts.ExecResult, error) {
	if err := e.artifacts.Create(executionID); err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}
	if err := e.artifacts.WritePlan(executionID, sub.Plan); err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}
	if err := e.artifacts.WriteChangeSet(executionID, sub.ChangeSet); err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}
	if err := e.artifacts.WriteDecision(executionID, sub.Decision); err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}

	correlationID := sub.CorrelationID
	if correlationID == "" {
		correlationID = sub.Plan.PlanID
	}
	trigger := sub.TriggerKind
	if trigger == "" {
		trigger = contracts.TriggerManual
	}

	rec := &contracts.ExecutionRecord{
		ExecutionID:          executionID,
		PlanID:               sub.Plan.PlanID,
		ChangeSetID:          sub.ChangeSet.ChangeSetID,
		DecisionID:           sub.Decision.DecisionID,
		Checksum:             sub.ChangeSet.Checksum,
		Verdict:              sub.Decision.Verdict,
		RiskLevel:            sub.Decision.RiskLevelEffective,
		Status:               contracts.StatusRunning,
		StartedAt:            time.Now().UTC(),
		AffectedPaths:        sub.ChangeSet.AffectedPaths(),
		ArtifactPath:         e.artifacts.Dir(executionID),
		CorrelationID:        correlationID,
		ParentExecutionID:    sub.ParentExecutionID,
		TriggerKind:          trigger,
		IsRepair:             sub.IsRepair,
		RepairForExecutionID: sub.RepairForExecutionID,
	}
	if err := e.store.CreateExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}
	if e.telemetry != nil {
		e.telemetry.RecordVerdict(ctx, string(sub.Decision.Verdict))
	}

	events, err := e.artifacts.OpenEventLog(executionID)
	if err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}

	budget := e.budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	pipelineCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	backupDir := filepath.Join(e.artifacts.Dir(executionID), "backups")

	var steps []contracts.ExecutionStep
	var applied []applier.Applied
	var failure *ExecError

	type stepDef struct {
		num  int
		name contracts.StepName
		fn   func(context.Context) error
	}
	defs := []stepDef{
		{1, contracts.StepValidate, func(ctx context.Context) error { return e.stepValidate(ctx, sub) }},
		{2, contracts.StepBackup, func(ctx context.Context) error { return e.stepBackup(ctx, sub, backupDir) }},
		{3, contracts.StepApply, func(ctx context.Context) error {
			a, err := e.stepApply(ctx, sub)
			applied = a
			return err
		}},
		{4, contracts.StepVerify, func(ctx context.Context) error { return e.stepVerify(ctx, sub, executionID) }},
		{5, contracts.StepHealth, func(ctx context.Context) error { return e.stepHealth(ctx, sub, executionID) }},
	}

	for _, d := range defs {
		if failure != nil {
			break
		}
		step, stepErr := e.runStep(pipelineCtx, events, executionID, d.num, d.name, d.fn)
		steps = append(steps, *step)
		if stepErr != nil {
			failure = asExecError(d.name, stepErr)
		}
	}

	if failure != nil {
		rec.Status = contracts.StatusFailed
		rec.ErrorStep = failure.Step
		rec.ErrorCode = failure.Code
		rec.ErrorMessage = failure.Err.Error()
		if failure.Step == contracts.StepVerify {
			rec.Verified = false
		}
		if len(applied) > 0 {
			if rbErr := e.rollback.Rollback(applied, backupDir); rbErr != nil {
				rec.ErrorMessage = fmt.Sprintf("%s; rollback_failed: %v", rec.ErrorMessage, rbErr)
				e.log.Error("rollback failed", "execution_id", executionID, "error", rbErr)
			} else {
				rec.Status = contracts.StatusRolledBack
				rec.RolledBack = true
			}
		}
	} else {
		rec.Status = contracts.StatusCompleted
		rec.Verified = true
		rec.HealthOK = true
	}

	// record: always runs, on both the success and failure path, so the
	// terminal state is never left only in memory. It uses a fresh,
	// short-lived context rather than pipelineCtx, since a budget
	// overrun that failed an earlier step must not also block the
	// write of that very failure.
	recordCtx, recordCancel := context.WithTimeout(ctx, 10*time.Second)
	defer recordCancel()
	recordStep, _ := e.runStep(recordCtx, events, executionID, 6, contracts.StepRecord, func(ctx context.Context) error {
		rec.FinishedAt = time.Now().UTC()
		if err := e.store.UpdateExecution(ctx, rec); err != nil {
			return fmt.Errorf("internal: %w", err)
		}
		if err := e.artifacts.WriteExecution(executionID, rec); err != nil {
			return fmt.Errorf("internal: %w", err)
		}
		return nil
	})
	steps = append(steps, *recordStep)

	if e.telemetry != nil {
		e.telemetry.RecordStatus(ctx, string(rec.Status))
	}
	e.log.Info("execution finished",
		"execution_id", executionID, "plan_id", sub.Plan.PlanID,
		"status", rec.Status, "verdict", rec.Verdict, "risk_level", rec.RiskLevel)

	return &contracts.ExecResult{Record: rec, Steps: steps}, nil
}

// runStep wraps one pipeline step with durable step-row logging,
// hash-chained event logging, and an optional telemetry span, returning
// the step's final row alongside whatever error fn produced.
func (e *Executor) runStep(
	ctx context.Context,
	events *artifacts.EventLog,
	executionID string,
	stepNum int,
	name contracts.StepName,
	fn func(context.Context) error,
) (*contracts.ExecutionStep, error) {
	start := time.Now().UTC()
	spanCtx := ctx
	var endSpan func(error)
	if e.telemetry != nil {
		spanCtx, endSpan = e.telemetry.StartStep(ctx, string(name))
	}
	_ = events.Append(executionID, name, "start", contracts.StatusRunning, 0, "")

	step := &contracts.ExecutionStep{
		ExecutionID: executionID,
		StepNum:     stepNum,
		StepName:    name,
		Status:      contracts.StatusRunning,
		StartedAt:   start,
		LogRef:      fmt.Sprintf("%02d_%s.log", stepNum, name),
	}
	if err := e.store.AppendStep(ctx, step); err != nil {
		return step, fmt.Errorf("internal: appending step row: %w", err)
	}

	if e.policy != nil && e.policy.StepTimeoutSeconds > 0 {
		var stepCancel context.CancelFunc
		spanCtx, stepCancel = context.WithTimeout(spanCtx, time.Duration(e.policy.StepTimeoutSeconds)*time.Second)
		defer stepCancel()
	}
	runErr := fn(spanCtx)

	finished := time.Now().UTC()
	step.FinishedAt = finished
	if runErr != nil {
		execErr := asExecError(name, runErr)
		step.Status = contracts.StatusFailed
		step.ErrorCode = execErr.Code
		step.ErrorMessage = execErr.Err.Error()
	} else {
		step.Status = contracts.StatusCompleted
	}
	if endSpan != nil {
		endSpan(runErr)
	}
	_ = events.Append(executionID, name, "end", step.Status, finished.Sub(start), step.ErrorCode)
	if err := e.store.UpdateStep(ctx, step); err != nil {
		return step, fmt.Errorf("internal: updating step row: %w", err)
	}
	return step, runErr
}

func (e *Executor) stepValidate(ctx context.Context, sub Submission) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if err := canonicalize.VerifyChangeSetChecksum(sub.ChangeSet); err != nil {
		return err
	}
	for _, ch := range sub.ChangeSet.Changes {
		if _, err := e.apply.ValidatePath(ch); err != nil {
			return err
		}
		if m := e.policy.MatchForbidden(ch.Path); m != "" {
			return fmt.Errorf("path_violation: %s matches forbidden pattern %q", ch.Path, m)
		}
	}
	return nil
}

func (e *Executor) stepBackup(ctx context.Context, sub Submission, backupDir string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	for _, ch := range sub.ChangeSet.Changes {
		if err := e.apply.Backup(ch, backupDir); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) stepApply(ctx context.Context, sub Submission) ([]applier.Applied, error) {
	applied := make([]applier.Applied, 0, len(sub.ChangeSet.Changes))
	if err := ctx.Err(); err != nil {
		return applied, fmt.Errorf("timeout: %w", err)
	}
	for _, ch := range sub.ChangeSet.Changes {
		a, err := e.apply.Apply(ch)
		if err != nil {
			return applied, err
		}
		applied = append(applied, *a)
	}
	return applied, nil
}

func (e *Executor) stepVerify(ctx context.Context, sub Submission, executionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if len(sub.Plan.VerificationPlan) == 0 {
		return nil
	}
	results := e.verify.Run(ctx, sub.Plan.VerificationPlan)
	e.writeStepLog(executionID, 4, contracts.StepVerify, verifierOutput(results))
	if verifier.AllPassed(results) {
		return nil
	}
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Err != nil {
			return fmt.Errorf("verify_failed: %w", r.Err)
		}
		return fmt.Errorf("verify_failed: profile %q exited %d", r.Profile, r.ExitCode)
	}
	return fmt.Errorf("verify_failed: verification plan did not pass")
}

func (e *Executor) stepHealth(ctx context.Context, sub Submission, executionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	for _, spec := range sub.Plan.HealthChecks {
		res := e.health.Run(ctx, spec)
		if !res.OK {
			e.writeStepLog(executionID, 5, contracts.StepHealth, fmt.Sprintf("%s check failed: %s (%s)", spec.Kind, res.Message, res.ErrorCode))
			return fmt.Errorf("health_failed: %s: %s", spec.Kind, res.Message)
		}
	}
	return nil
}

// writeStepLog best-effort persists step output to the conventional log
// path; a failure to write the log never fails the pipeline step itself.
func (e *Executor) writeStepLog(executionID string, stepNum int, name contracts.StepName, content string) {
	path := e.artifacts.StepLogPath(executionID, stepNum, name)
	if err := writeFile(path, content); err != nil {
		e.log.Warn("writing step log failed", "execution_id", executionID, "step", name, "error", err)
	}
}

func verifierOutput(results []verifier.StepResult) string {
	var out string
	for _, r := range results {
		out += fmt.Sprintf("[%s/%s] exit=%d passed=%v truncated=%v\n%s\n", r.Kind, r.Profile, r.ExitCode, r.Passed, r.Truncated, r.Output)
	}
	return out
}
