package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var showEventsTail int

var showCmd = &cobra.Command{
	Use:   "show <execution_id>",
	Short: "Show one execution's record, steps and artifact path",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().IntVar(&showEventsTail, "events", 0, "also show the last N events from events.jsonl (0 = omit)")
	rootCmd.AddCommand(showCmd)
}

type showResult struct {
	Record any `json:"record"`
	Steps  any `json:"steps"`
	Events any `json:"events,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	executionID := args[0]

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	rec, err := a.store.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("fetching execution: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("invalid_input: execution %s not found", executionID)
	}
	steps, err := a.store.ListSteps(ctx, executionID)
	if err != nil {
		return fmt.Errorf("listing steps: %w", err)
	}

	var events any
	if showEventsTail > 0 {
		all, err := a.artifacts.ReadEvents(executionID)
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}
		if len(all) > showEventsTail {
			all = all[len(all)-showEventsTail:]
		}
		events = all
	}

	if jsonOutput() {
		return printJSON(showResult{Record: rec, Steps: steps, Events: events})
	}

	fmt.Printf("execution_id:  %s\n", rec.ExecutionID)
	fmt.Printf("plan_id:       %s\n", rec.PlanID)
	fmt.Printf("status:        %s\n", colorStatus(rec.Status))
	fmt.Printf("verdict:       %s\n", colorVerdict(rec.Verdict))
	fmt.Printf("risk_level:    %s\n", rec.RiskLevel)
	fmt.Printf("started_at:    %s\n", rec.StartedAt.Format(time.RFC3339))
	if !rec.FinishedAt.IsZero() {
		fmt.Printf("finished_at:   %s\n", rec.FinishedAt.Format(time.RFC3339))
	}
	fmt.Printf("verified:      %v\n", rec.Verified)
	fmt.Printf("health_ok:     %v\n", rec.HealthOK)
	fmt.Printf("artifact_path: %s\n", rec.ArtifactPath)
	fmt.Printf("correlation:   %s\n", rec.CorrelationID)
	if rec.ErrorMessage != "" {
		fmt.Printf("error:         [%s/%s] %s\n", rec.ErrorStep, rec.ErrorCode, rec.ErrorMessage)
	}

	fmt.Println("\nsteps:")
	table := newTable()
	fmt.Fprintln(table, "  STEP\tSTATUS\tSTARTED_AT\tERROR_CODE")
	for _, s := range steps {
		fmt.Fprintf(table, "  %s\t%s\t%s\t%s\n", s.StepName, colorStatus(s.Status), s.StartedAt.Format(time.RFC3339), s.ErrorCode)
	}
	table.Flush()

	if showEventsTail > 0 {
		fmt.Println("\nevents:")
		return printJSON(events)
	}
	return nil
}
