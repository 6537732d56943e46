package main

import (
	"context"

	"github.com/dordunu1/taskboard/internal/app"
	"github.com/dordunu1/taskboard/internal/config"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded database migrations",
	}
	for _, sub := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Show applied and pending migrations"},
	} {
		command := sub.use
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				return app.Migrate(context.Background(), cfg.PG.DSN, command)
			},
		})
	}
	return cmd
}
