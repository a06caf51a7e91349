package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var correlationCmd = &cobra.Command{
	Use:   "correlation <correlation_id>",
	Short: "List every execution sharing a correlation_id",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorrelation,
}

func init() {
	rootCmd.AddCommand(correlationCmd)
}

func runCorrelation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	correlationID := args[0]

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	execs, err := a.store.ListByCorrelation(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("listing by correlation: %w", err)
	}

	if jsonOutput() {
		return printJSON(execs)
	}
	table := newTable()
	defer table.Flush()
	fmt.Fprintln(table, "EXECUTION_ID\tSTATUS\tTRIGGER\tPARENT\tSTARTED_AT")
	for _, rec := range execs {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
			rec.ExecutionID, colorStatus(rec.Status), rec.TriggerKind, rec.ParentExecutionID, rec.StartedAt.Format(time.RFC3339))
	}
	return nil
}
