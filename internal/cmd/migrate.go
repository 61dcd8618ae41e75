package cmd

import (
	"log/slog"

	"github.com/netgrid/netgrid/internal/config"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/pkg/log"
	"github.com/spf13/cobra"
)

// migrateCmd applies or reverts the database schema.
func migrateCmd() *cobra.Command {
	var downAll bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf, errConfig := config.Read(cfgFile)
			if errConfig != nil {
				return errConfig
			}

			action := database.MigrationAction(database.MigrateUp)
			if downAll {
				action = database.MigrateDn
			}

			if errMigrate := database.Migrate(conf.DatabaseDSN, action); errMigrate != nil {
				slog.Error("Could not migrate schema", log.ErrAttr(errMigrate))

				return errMigrate
			}

			slog.Info("Migration completed successfully")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&downAll, "down", "d", false, "Fully reverts all migrations")

	return cmd
}
