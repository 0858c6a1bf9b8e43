package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/store"
	"github.com/dunelink/dunelink/pkg/migrations"
)

var migrationFolder string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		defer setupLogger(cfg)()
		defer zap.S().Info("Db migrated")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrations.MigrateStore(db, migrationFolder); err != nil {
			zap.S().Fatalw("running migration", "error", err)
		}

		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationFolder, "migration-folder", "", "Folder with the SQL migrations, defaults to the ones built in")
}
