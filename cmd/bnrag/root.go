package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bnrag/internal/config"
	"bnrag/internal/logger"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:          "bnrag",
	Short:        "Bangla/English question answering over a single document",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `bnrag segments a document into overlapping chunks, indexes their embeddings
and answers questions in Bangla or English with a confidence score and sources.`,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/bnrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", cfgPath, err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
