package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	similarLimit                  int
	similarMinSimilarity          float64
	similarBy                     string
	similarIncludeSameCorrelation bool
)

var similarCmd = &cobra.Command{
	Use:   "similar <execution_id>",
	Short: "Find executions similar to a given one",
	Long: `similar scores every other execution against the given one using
TF/cosine similarity over tokenized error text and Jaccard similarity
over affected-path sets, combined 0.5*error + 0.3*path + 0.2*metadata
(--by narrows to one component alone).`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVar(&similarLimit, "limit", 0, "max results (0 = default)")
	similarCmd.Flags().Float64Var(&similarMinSimilarity, "min-similarity", 0, "minimum score to include")
	similarCmd.Flags().StringVar(&similarBy, "by", "combined", "score component: combined|error|path")
	similarCmd.Flags().BoolVar(&similarIncludeSameCorrelation, "include-same-correlation", false, "include executions sharing this one's correlation_id")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	executionID := args[0]
	excludeSame := !similarIncludeSameCorrelation

	a, closer, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var results any
	switch similarBy {
	case "combined":
		results, err = a.engine.FindSimilarExecutions(ctx, executionID, similarLimit, similarMinSimilarity, excludeSame)
	case "error":
		results, err = a.engine.FindSimilarByError(ctx, executionID, similarLimit, similarMinSimilarity, excludeSame)
	case "path":
		results, err = a.engine.FindSimilarByPath(ctx, executionID, similarLimit, similarMinSimilarity, excludeSame)
	default:
		return fmt.Errorf("invalid_input: unknown --by %q (want combined|error|path)", similarBy)
	}
	if err != nil {
		return fmt.Errorf("finding similar executions: %w", err)
	}

	return printJSON(results)
}
