package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregated counters across all executions",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	stats, err := a.store.GetStatistics(ctx)
	if err != nil {
		return fmt.Errorf("fetching statistics: %w", err)
	}

	if jsonOutput() {
		return printJSON(stats)
	}
	fmt.Printf("total_executions:    %d\n", stats.TotalExecutions)
	fmt.Printf("mean_duration_secs:  %.2f\n", stats.MeanDurationSecs)
	fmt.Println("by_status:")
	for k, v := range stats.ByStatus {
		fmt.Printf("  %s: %d\n", k, v)
	}
	fmt.Println("by_verdict:")
	for k, v := range stats.ByVerdict {
		fmt.Printf("  %s: %d\n", k, v)
	}
	fmt.Println("by_risk_level:")
	for k, v := range stats.ByRiskLevel {
		fmt.Printf("  %s: %d\n", k, v)
	}
	return nil
}
