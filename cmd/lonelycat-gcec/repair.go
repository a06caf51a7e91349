package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/similarity"
)

var (
	repairLimit int
	repairOut   bool
)

var repairCmd = &cobra.Command{
	Use:   "repair <failed_execution_id>",
	Short: "Synthesize a repair ChangeSet draft from similar prior failures",
	Long: `repair finds prior failures similar to the given one, walks each
candidate's descendants (retries and repairs under the same
correlation) for a successful completion, and drafts a ChangeSet from
that success for human review. It never submits the draft — it prints
it, and with --write also stores it alongside the failed execution's
own artifacts as repair.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().IntVar(&repairLimit, "limit", 0, "how many similar prior failures to consider (0 = default)")
	repairCmd.Flags().BoolVar(&repairOut, "write", false, "persist the draft as repair.json in the failed execution's artifact directory")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	failedExecutionID := args[0]

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	draft, err := similarity.SynthesizeRepair(ctx, a.store, a.artifacts, a.engine, failedExecutionID, repairLimit)
	if err != nil {
		return fmt.Errorf("synthesizing repair: %w", err)
	}

	if repairOut {
		if err := a.artifacts.WriteRepairDraft(failedExecutionID, draft); err != nil {
			return fmt.Errorf("writing repair draft: %w", err)
		}
	}
	return printJSON(draft)
}
