package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nana77mi/lonelycat-gcec/internal/artifacts"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune execution artifact directories past the retention policy",
	Long: `gc removes execution directories once they exceed both the age and
count retention thresholds (whichever is larger), never within the
grace period of creation. When LONELYCAT_ARCHIVE_BACKEND is set in the
environment (s3 or gcs), each directory is uploaded there first.`,
	RunE: runGC,
}

func init() {
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	policy := artifacts.RetentionPolicy{
		MaxAge:      time.Duration(a.cfg.ArtifactRetentionDays) * 24 * time.Hour,
		MaxCount:    a.cfg.ArtifactRetentionCount,
		GracePeriod: time.Hour,
	}
	backend, err := archiveBackendFor(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("configuring archive backend: %w", err)
	}
	policy.Archive = backend

	pruned, err := a.artifacts.Prune(ctx, policy)
	if err != nil {
		return fmt.Errorf("pruning artifacts: %w", err)
	}
	for _, id := range pruned {
		fmt.Println(id)
	}
	fmt.Printf("pruned %d execution director%s\n", len(pruned), plural(len(pruned)))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
