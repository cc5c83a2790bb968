package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/sibilus/database"
	"github.com/tomyedwab/sibilus/schema"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the connection and report which tables exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := database.Open(ctx, driverName, dbPath, database.Options{
				Catalog: schema.Catalog(),
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			if !client.TestConnection(ctx) {
				return fmt.Errorf("connection test failed for %s", dbPath)
			}
			fmt.Printf("Connected to %s (%s)\n", dbPath, driverName)

			for _, table := range schema.Catalog().Tables() {
				exists, err := client.TableExists(ctx, table.Name)
				if err != nil {
					return err
				}
				status := "missing"
				if exists {
					status = "ok"
				}
				fmt.Printf("  %-14s %s\n", table.Name, status)
			}
			return nil
		},
	}
}
