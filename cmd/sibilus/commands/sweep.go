package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one stale-session sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _ := newManager()
			defer manager.Stop()

			removed, err := manager.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired session(s).\n", removed)
			return nil
		},
	}
}
