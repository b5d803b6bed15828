package main

import (
	"database/sql"
	"errors"
	"fmt"

	migrations "github.com/PaulFidika/demogate/migrations/postgres"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the postgres session schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Store.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			db, err := sql.Open("pgx", cfg.Store.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			run := migrations.Up
			if down {
				run = migrations.Down
			}
			group, err := run(cmd.Context(), db)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logrus.Info("no migrations to run")
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"group":      group.ID,
				"migrations": len(group.Migrations),
				"down":       down,
			}).Info("migrations done")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back the last applied group")
	return cmd
}
