package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/tenantrag/internal/database"
	"github.com/nikhilbhutani/tenantrag/internal/document"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Applies pending SQL migrations to Postgres. With the sqlite driver the
schema is created in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if cfg.Database.Driver == "sqlite" {
				store, err := document.OpenSQLite(cfg.Database.SQLitePath)
				if err != nil {
					return err
				}
				defer store.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema ready at %s\n", cfg.Database.SQLitePath)
				return nil
			}

			pool, err := database.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.RunMigrations(ctx, pool, cfg.Database.MigrationsPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
