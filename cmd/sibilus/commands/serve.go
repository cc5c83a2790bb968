package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var auditRetention time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the store and purge stale sessions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager, auditLog := newManager()
			if err := manager.Init(ctx); err != nil {
				manager.Stop()
				return err
			}

			if auditRetention > 0 {
				removed, err := auditLog.DeleteOldEvents(ctx, auditRetention)
				if err != nil {
					logger.Warn("Failed to prune audit log", "error", err)
				} else {
					logger.Info("Pruned audit log", "removed", removed, "retention", auditRetention)
				}
			}

			logger.Info("Running... Press Ctrl+C to exit.", "path", dbPath, "driver", driverName)
			<-ctx.Done()
			logger.Info("Received signal, initiating graceful shutdown...")

			if err := manager.Stop(); err != nil {
				return fmt.Errorf("failed to close store: %w", err)
			}
			logger.Info("Store closed.")
			return nil
		},
	}
	cmd.Flags().DurationVar(&auditRetention, "audit-retention", 30*24*time.Hour, "delete audit events older than this at startup (0 keeps everything)")
	return cmd
}
