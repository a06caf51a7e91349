package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
)

var (
	listStatus        string
	listVerdict       string
	listRisk          string
	listSince         string
	listCorrelationID string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List executions, optionally filtered",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listVerdict, "verdict", "", "filter by verdict")
	listCmd.Flags().StringVar(&listRisk, "risk", "", "filter by effective risk level")
	listCmd.Flags().StringVar(&listSince, "since", "", "only executions started at or after this RFC3339 timestamp")
	listCmd.Flags().StringVar(&listCorrelationID, "correlation-id", "", "filter by correlation id")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	filters := store.Filters{
		Status:        contracts.Status(listStatus),
		Verdict:       contracts.Verdict(listVerdict),
		RiskLevel:     contracts.RiskLevel(listRisk),
		CorrelationID: listCorrelationID,
	}
	if listSince != "" {
		since, err := time.Parse(time.RFC3339, listSince)
		if err != nil {
			return fmt.Errorf("invalid_input: parsing --since: %w", err)
		}
		filters.Since = since
	}

	execs, err := a.store.ListExecutions(ctx, filters)
	if err != nil {
		return fmt.Errorf("listing executions: %w", err)
	}

	if jsonOutput() {
		return printJSON(execs)
	}
	table := newTable()
	defer table.Flush()
	fmt.Fprintln(table, "EXECUTION_ID\tSTATUS\tVERDICT\tRISK\tSTARTED_AT\tCORRELATION_ID")
	for _, rec := range execs {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ExecutionID, colorStatus(rec.Status), colorVerdict(rec.Verdict), rec.RiskLevel,
			rec.StartedAt.Format(time.RFC3339), rec.CorrelationID)
	}
	return nil
}
