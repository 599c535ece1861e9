package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bnrag/internal/eval"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation questions against the knowledge base",
	RunE:  runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, _ []string) error {
	cases, err := evalCases(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, _, err := setupApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := eval.Run(ctx, a.svc, cases)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, r := range rep.Results {
		mark := "✓"
		if !r.Correct {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s [%d] %s\n    expected: %s\n    got:      %s (confidence %.2f)\n", mark, i+1, r.Question, r.Expected, r.Got, r.Confidence)
	}
	fmt.Fprintf(out, "\n%d/%d passed\n", rep.Summary.Passed, rep.Summary.Total)
	if rep.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d cases failed", rep.Summary.Failed, rep.Summary.Total)
	}
	return nil
}
