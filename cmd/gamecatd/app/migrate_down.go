package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back database migrations",
	Long: `Roll back database migrations. With --num-steps, rolls back that many
migrations; without it, rolls back everything. Rolling back drops catalog
data, so the command prompts unless --yes is given.`,
	RunE: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	migrator, cfg, err := newMigrator(cmd)
	if err != nil {
		return err
	}

	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	if ok, err := confirmMigration(cmd, cfg, "roll back"); err != nil || !ok {
		return err
	}

	slog.Info("Rolling back database migrations")
	if steps > 0 {
		err = migrator.Steps(-int(steps))
	} else {
		err = migrator.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	reportVersion(migrator)
	return nil
}
