// Package commands implements the sibilus command line.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	// Both drivers are registered so --driver can pick either.
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/tomyedwab/sibilus/audit"
	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/sessions"
)

var (
	dbPath          string
	driverName      string
	logLevel        string
	sweepInterval   time.Duration
	sessionLifespan time.Duration

	logger *slog.Logger
)

func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sibilus",
		Short:         "Persistence core for the sibilus site",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", database.DefaultPath, "path to the SQLite store")
	root.PersistentFlags().StringVar(&driverName, "driver", database.DefaultDriver, "database/sql driver: sqlite3 (cgo) or sqlite (pure Go)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().DurationVar(&sweepInterval, "sweep-interval", sessions.DefaultSweepInterval, "how often stale sessions are purged")
	root.PersistentFlags().DurationVar(&sessionLifespan, "session-lifespan", sessions.DefaultSessionLifespan, "how long a session stays valid")

	root.AddCommand(serveCmd(), sweepCmd(), checkCmd(), addUserCmd(), loginCmd(), logoutCmd(), whoamiCmd())
	return root
}

// newManager builds a session manager from the persistent flags and wires the
// audit log into it.
func newManager() (*sessions.Manager, *audit.Logger) {
	manager := sessions.NewManager(sessions.Config{
		Driver:          driverName,
		Path:            dbPath,
		SweepInterval:   sweepInterval,
		SessionLifespan: sessionLifespan,
		Logger:          logger,
	})
	auditLog := audit.NewLogger(manager)
	manager.SetAuditor(auditLog)
	return manager, auditLog
}
