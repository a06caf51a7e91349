package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/executor"
	"github.com/Nana77mi/lonelycat-gcec/internal/health"
	"github.com/Nana77mi/lonelycat-gcec/internal/similarity"
	"github.com/Nana77mi/lonelycat-gcec/internal/writegate"
)

var (
	submitPlanPath      string
	submitChangeSetPath string
	submitApprovalPath  string
	submitCorrelationID string
	submitParentExec    string
	submitTrigger       string
	submitRepairFor     string
	submitUseReflection bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Judge a plan with WriteGate and, if allowed, execute it",
	Long: `submit reads a ChangePlan and ChangeSet from disk, re-derives their
checksum, asks WriteGate for a verdict, and — if the verdict is ALLOW, or
NEED_APPROVAL with a matching --approval file — hands the submission to
the Executor pipeline (validate, backup, apply, verify, health, record).

A DENY or unapproved NEED_APPROVAL verdict is reported and the
submission stops short of the Executor; nothing is locked, applied, or
recorded for it.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitPlanPath, "plan", "", "path to a ChangePlan JSON file (required)")
	submitCmd.Flags().StringVar(&submitChangeSetPath, "changeset", "", "path to a ChangeSet JSON file (required)")
	submitCmd.Flags().StringVar(&submitApprovalPath, "approval", "", "path to a GovernanceApproval JSON file, required if WriteGate returns NEED_APPROVAL")
	submitCmd.Flags().StringVar(&submitCorrelationID, "correlation-id", "", "correlation id for this execution (default: a fresh one)")
	submitCmd.Flags().StringVar(&submitParentExec, "parent-execution-id", "", "parent execution id, for retries and repairs")
	submitCmd.Flags().StringVar(&submitTrigger, "trigger", "manual", "trigger kind: manual|agent|retry|repair|scheduled")
	submitCmd.Flags().StringVar(&submitRepairFor, "repair-for", "", "execution id this submission repairs, sets is_repair=true")
	submitCmd.Flags().BoolVar(&submitUseReflection, "reflect", false, "attach freshly generated reflection hints to the write gate evaluation")
	_ = submitCmd.MarkFlagRequired("plan")
	_ = submitCmd.MarkFlagRequired("changeset")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	planRaw, err := os.ReadFile(submitPlanPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", submitPlanPath, err)
	}
	if err := validatePlanHealthChecks(planRaw); err != nil {
		return err
	}
	var plan contracts.ChangePlan
	if err := json.Unmarshal(planRaw, &plan); err != nil {
		return fmt.Errorf("invalid_input: parsing %s: %w", submitPlanPath, err)
	}

	csRaw, err := os.ReadFile(submitChangeSetPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", submitChangeSetPath, err)
	}
	var cs contracts.ChangeSet
	if err := json.Unmarshal(csRaw, &cs); err != nil {
		return fmt.Errorf("invalid_input: parsing %s: %w", submitChangeSetPath, err)
	}
	if err := canonicalize.VerifyChangeSetChecksum(&cs); err != nil {
		return fmt.Errorf("tampered: %w", err)
	}

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var gateHints *writegate.ReflectionHints
	if submitUseReflection {
		hints, err := similarity.GenerateReflectionHints(ctx, a.store, similarity.DefaultWindow)
		if err != nil {
			return fmt.Errorf("generating reflection hints: %w", err)
		}
		gateHints = hints.ToGateHints()
	}
	decision, err := a.gate.Evaluate(ctx, &plan, &cs, gateHints)
	if err != nil {
		return fmt.Errorf("evaluating write gate: %w", err)
	}

	if decision.Verdict != contracts.VerdictAllow {
		if jsonOutput() {
			return printJSON(decision)
		}
		fmt.Printf("verdict: %s\n", colorVerdict(decision.Verdict))
		for _, r := range decision.Reasons {
			fmt.Printf("  - %s\n", r)
		}
		if decision.Verdict == contracts.VerdictDeny {
			return nil
		}
	}

	var approval *contracts.GovernanceApproval
	if submitApprovalPath != "" {
		approvalRaw, err := os.ReadFile(submitApprovalPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", submitApprovalPath, err)
		}
		approval = &contracts.GovernanceApproval{}
		if err := json.Unmarshal(approvalRaw, approval); err != nil {
			return fmt.Errorf("invalid_input: parsing %s: %w", submitApprovalPath, err)
		}
	}
	if decision.Verdict == contracts.VerdictNeedApproval && approval == nil {
		return fmt.Errorf("not_approved: decision %s requires --approval", decision.DecisionID)
	}

	sub := executor.Submission{
		Plan:                 &plan,
		ChangeSet:            &cs,
		Decision:             decision,
		Approval:             approval,
		CorrelationID:        submitCorrelationID,
		ParentExecutionID:    submitParentExec,
		TriggerKind:          contracts.TriggerKind(submitTrigger),
		IsRepair:             submitRepairFor != "",
		RepairForExecutionID: submitRepairFor,
	}

	result, err := a.executor.Execute(ctx, sub)
	if err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	if jsonOutput() {
		return printJSON(result)
	}
	fmt.Printf("execution %s: %s (verdict=%s verified=%v health_ok=%v)\n",
		result.Record.ExecutionID, colorStatus(result.Record.Status), colorVerdict(result.Record.Verdict),
		result.Record.Verified, result.Record.HealthOK)
	if result.Record.ErrorMessage != "" {
		fmt.Printf("  step=%s code=%s: %s\n", result.Record.ErrorStep, result.Record.ErrorCode, result.Record.ErrorMessage)
	}
	return nil
}

// validatePlanHealthChecks runs the five typed health-check JSON
// schemas over a submitted plan's raw health_checks array before it is
// ever unmarshaled into contracts.HealthCheckSpec.
func validatePlanHealthChecks(planRaw []byte) error {
	var probe struct {
		HealthChecks []json.RawMessage `json:"health_checks"`
	}
	if err := json.Unmarshal(planRaw, &probe); err != nil {
		return fmt.Errorf("invalid_input: parsing plan: %w", err)
	}
	if len(probe.HealthChecks) == 0 {
		return nil
	}
	validator, err := health.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("internal: building health check schema validator: %w", err)
	}
	return validator.ValidatePlanHealthChecks(probe.HealthChecks)
}
