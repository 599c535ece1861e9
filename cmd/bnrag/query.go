package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryJSON    bool
	querySession string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full result as JSON")
	queryCmd.Flags().StringVar(&querySession, "session", "", "conversation id to continue")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := setupApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id, res, err := a.svc.Query(ctx, querySession, strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if queryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			SessionID string `json:"session_id"`
			Result    any    `json:"result"`
		}{id, res})
	}
	fmt.Fprintf(out, "Answer: %s\n", res.Answer)
	fmt.Fprintf(out, "Language: %s  Confidence: %.2f\n", res.Language, res.Confidence)
	for i, s := range res.Sources {
		fmt.Fprintf(out, "  [%d] (%.3f) %s\n", i+1, s.Distance, s.Content)
	}
	return nil
}
