package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lineageDepth int

var lineageCmd = &cobra.Command{
	Use:   "lineage <execution_id>",
	Short: "Show an execution's ancestors, descendants and siblings",
	Args:  cobra.ExactArgs(1),
	RunE:  runLineage,
}

func init() {
	lineageCmd.Flags().IntVar(&lineageDepth, "depth", 20, "maximum ancestor/descendant walk depth")
	rootCmd.AddCommand(lineageCmd)
}

func runLineage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	executionID := args[0]

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	lineage, err := a.store.GetLineage(ctx, executionID, lineageDepth)
	if err != nil {
		return fmt.Errorf("fetching lineage: %w", err)
	}

	if jsonOutput() {
		return printJSON(lineage)
	}

	fmt.Printf("self: %s (%s, %s)\n", lineage.Self.ExecutionID, colorStatus(lineage.Self.Status), colorVerdict(lineage.Self.Verdict))
	fmt.Println("ancestors:")
	for _, rec := range lineage.Ancestors {
		fmt.Printf("  %s (%s, trigger=%s)\n", rec.ExecutionID, colorStatus(rec.Status), rec.TriggerKind)
	}
	fmt.Println("descendants:")
	for _, rec := range lineage.Descendants {
		fmt.Printf("  %s (%s, trigger=%s)\n", rec.ExecutionID, colorStatus(rec.Status), rec.TriggerKind)
	}
	fmt.Println("siblings:")
	for _, rec := range lineage.Siblings {
		fmt.Printf("  %s (%s, trigger=%s)\n", rec.ExecutionID, colorStatus(rec.Status), rec.TriggerKind)
	}
	return nil
}
