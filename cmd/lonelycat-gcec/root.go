package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagWorkspace string
	flagDBPath    string
	flagPolicy    string
	flagOutput    string
)

var rootCmd = &cobra.Command{
	Use:   "lonelycat-gcec",
	Short: "Governed Change Execution Core",
	Long: `lonelycat-gcec drives and inspects the Governed Change Execution Core:
Planner output is judged by WriteGate, executed under repo-level lock
by the Executor, and every run is recorded for lineage, similarity and
offline replay.

Core commands:
  submit      Execute an approved (or auto-allowed) change
  approve     Issue a GovernanceApproval for a NEED_APPROVAL decision
  list        List executions by filter
  show        Show one execution's record and steps
  lineage     Show an execution's ancestor/descendant tree
  correlation List every execution sharing a correlation_id
  similar     Find executions similar to a given one
  reflect     Generate offline reflection hints from recent history
  repair      Synthesize a repair ChangeSet from similar prior failures
  replay      Reconstruct an execution summary from its artifact bundle
  stats       Aggregated counters across all executions`,
	SilenceUsage: true,
}

// Execute runs the command tree; callers just check the returned error.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "workspace root (default: $LONELYCAT_WORKSPACE_ROOT or cwd)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "execution store path (default: <workspace>/.lonelycat/executor.db)")
	rootCmd.PersistentFlags().StringVar(&flagPolicy, "policy", "", "policy snapshot YAML path (default: built-in)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format: table or json")
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
