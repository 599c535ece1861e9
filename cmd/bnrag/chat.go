package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"bnrag/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the knowledge base",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, _, err := setupApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(a.svc, a.svc.Summary(), time.Duration(cfg.Server.TimeoutSecs)*time.Second)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
