package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpdrecourt/hibikido-go/internal/config"
	"github.com/jpdrecourt/hibikido-go/internal/logging"
	"github.com/jpdrecourt/hibikido-go/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hibikidod daemon (the default action)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

// runServe loads configuration, wires the server, and blocks until a
// `/stop` command or an OS signal initiates graceful shutdown (spec.md
// §6 CLI: exit 0 on clean shutdown, non-zero on startup failure).
func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	cleanup, err := logging.SetupDefault(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	s, err := server.New(cfg)
	if err != nil {
		slog.Error("failed to start hibikidod", slog.String("error", err.Error()))
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("hibikidod listening",
		slog.String("listen", fmt.Sprintf("%s:%d", cfg.OSC.ListenIP, cfg.OSC.ListenPort)),
		slog.String("send", fmt.Sprintf("%s:%d", cfg.OSC.SendIP, cfg.OSC.SendPort)),
	)

	if err := s.Run(ctx); err != nil {
		slog.Error("hibikidod exited with error", slog.String("error", err.Error()))
		return err
	}

	slog.Info("hibikidod stopped")
	return nil
}
