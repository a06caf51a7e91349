package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/similarity"
)

var reflectWindow time.Duration

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Generate offline reflection hints from recent execution history",
	Long: `reflect scans executions started within --window (default 7 days)
and aggregates the steps/error codes that fail most often, the
decisions that allowed a change that later failed or was rolled back,
and the slowest steps, producing a ReflectionHints document WriteGate
may fold into a future decision's reasons — never its verdict.`,
	RunE: runReflect,
}

func init() {
	reflectCmd.Flags().DurationVar(&reflectWindow, "window", similarity.DefaultWindow, "lookback window")
	rootCmd.AddCommand(reflectCmd)
}

func runReflect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	hints, err := similarity.GenerateReflectionHints(ctx, a.store, reflectWindow)
	if err != nil {
		return fmt.Errorf("generating reflection hints: %w", err)
	}
	return printJSON(hints)
}
