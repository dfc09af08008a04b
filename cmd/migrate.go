package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ViniMesquitaa/map-medical/internal/config"
	"github.com/ViniMesquitaa/map-medical/pkg/logger"
	"github.com/ViniMesquitaa/map-medical/pkg/postgres"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or roll back with --down) database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.StoreDriver != config.StoreDriverPostgres {
			return fmt.Errorf("migrations require STORE_DRIVER=%s", config.StoreDriverPostgres)
		}

		log := logger.New(cfg.LogLevel)
		log.WithField("down", migrateDown).Info("Running database migrations...")
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, migrateDown); err != nil {
			return err
		}
		log.Info("Database migrations applied successfully")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back all migrations")
}
