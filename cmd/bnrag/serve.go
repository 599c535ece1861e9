package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bnrag/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API. The knowledge base is built in the background;
GET / reports 503 until it is ready.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cases, err := evalCases(cfg)
	if err != nil {
		return err
	}

	go func() {
		rep, err := a.svc.Setup(ctx, cfg.Source.Path)
		if err != nil {
			slog.Error("failed to initialize knowledge base", "error", err)
			return
		}
		slog.Info("RAG system initialized", "chunks", rep.Chunks, "reused", rep.Reused)
	}()

	timeout := time.Duration(cfg.Server.TimeoutSecs) * time.Second
	server := httpapi.NewApp(httpapi.NewHandler(a.svc, cases, timeout))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("listening", "addr", cfg.Server.Addr)
	if err := server.Listen(cfg.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
