package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/petmatch/internal/config"
	"github.com/kailas-cloud/petmatch/internal/db/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect the Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrations need the postgres driver, got %q", cfg.Database.Driver)
			}
			pg, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Database.DSN, MaxConns: 2})
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()
			if err := pg.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
				return fmt.Errorf("database not ready: %w", err)
			}
			return postgres.Migrate(ctx, pg, args[0], logger)
		},
	}
}
