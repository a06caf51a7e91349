package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	approveDecisionID string
	approveBy         string
	approveTTL        time.Duration
	approveOut        string
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Issue a GovernanceApproval for a NEED_APPROVAL decision",
	Long: `approve mints a signed GovernanceApproval token referencing a
decision_id, for a human operator to hand to a subsequent submit
--approval call. It never signs the ChangePlan or ChangeSet themselves —
only the act of approving a specific decision — since plan signing is
out of scope here.`,
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().StringVar(&approveDecisionID, "decision-id", "", "decision id being approved (required)")
	approveCmd.Flags().StringVar(&approveBy, "approved-by", "", "identity of the approving operator (required)")
	approveCmd.Flags().DurationVar(&approveTTL, "ttl", time.Hour, "how long the approval remains valid")
	approveCmd.Flags().StringVar(&approveOut, "out", "", "write the approval JSON here instead of stdout")
	_ = approveCmd.MarkFlagRequired("decision-id")
	_ = approveCmd.MarkFlagRequired("approved-by")
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	approval, err := a.approvals.Issue(approveDecisionID, approveBy, approveTTL)
	if err != nil {
		return fmt.Errorf("issuing approval: %w", err)
	}

	data, err := json.MarshalIndent(approval, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding approval: %w", err)
	}
	if approveOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(approveOut, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", approveOut, err)
	}
	fmt.Printf("wrote approval %s to %s\n", approval.ApprovalID, approveOut)
	return nil
}
