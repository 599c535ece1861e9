package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bnrag/internal/service"
)

var rebuild bool

var setupCmd = &cobra.Command{
	Use:   "setup [document]",
	Short: "Build the knowledge base from the source document",
	Long: `Extract, segment and embed the source document into the configured vector store.
Setup is skipped when the store is already populated unless --rebuild is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop the existing index and build it again")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.Source.Path = args[0]
	}
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var rep service.Report
	if rebuild {
		rep, err = a.svc.Rebuild(ctx, cfg.Source.Path)
	} else {
		rep, err = a.svc.Setup(ctx, cfg.Source.Path)
	}
	if err != nil {
		return fmt.Errorf("setup knowledge base: %w", err)
	}
	out := cmd.OutOrStdout()
	if rep.Reused {
		fmt.Fprintf(out, "Knowledge base already populated: %d chunks\n", rep.Chunks)
	} else {
		fmt.Fprintf(out, "Indexed %d chunks (%d skipped) in %s\n", rep.Chunks, rep.Skipped, rep.Duration.Round(1e6))
	}
	if rep.Summary != "" {
		fmt.Fprintf(out, "\nSummary:\n%s\n", rep.Summary)
	}
	return nil
}
