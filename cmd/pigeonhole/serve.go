package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/daemon"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay daemon: channel adapters, recovery sweeps, outbox dispatch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			svc, err := daemon.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting pigeonhole daemon", "data_dir", cfg.DataDir)
			if err := svc.Run(ctx); err != nil {
				return err
			}
			slog.Info("daemon stopped")
			return nil
		},
	}
}
