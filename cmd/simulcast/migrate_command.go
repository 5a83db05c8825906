package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narwhalmedia/simulcast/pkg/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			migrator := database.NewMigrator(a.db, a.logger)
			if dryRun {
				pending, err := migrator.GetPendingMigrations()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
					return nil
				}
				for _, m := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", m.Version, m.Name)
				}
				return nil
			}

			if err := migrator.Migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully!")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show pending migrations without applying them")
	return cmd
}
