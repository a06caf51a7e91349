package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/verifier"
)

var replayVerify bool

var replayCmd = &cobra.Command{
	Use:   "replay <execution_id>",
	Short: "Reconstruct an execution summary from its artifact bundle alone",
	Long: `replay reads an execution's four-piece artifact set (plan.json,
changeset.json, decision.json, execution.json) and reconstructs the
same summary get_execution would produce, independent of the live
Execution Store. --verify additionally runs the full offline bundle
check (checksum, identifier consistency, event chain integrity).`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayVerify, "verify", false, "also run offline bundle verification")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	executionID := args[0]

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	summary, err := verifier.ReplayExecution(a.artifacts, executionID)
	if err != nil {
		return fmt.Errorf("replaying execution: %w", err)
	}

	if !replayVerify {
		return printJSON(summary)
	}

	report, err := verifier.VerifyBundle(a.artifacts, executionID)
	if err != nil {
		return fmt.Errorf("verifying bundle: %w", err)
	}
	return printJSON(struct {
		Summary *verifier.ReplaySummary `json:"summary"`
		Verify  *verifier.VerifyReport  `json:"verify"`
	}{summary, report})
}
