package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the account database.

PostgreSQL schemas are versioned with golang-migrate; SQLite databases are
brought up to date with GORM auto-migration. Migrations also run on every
enable, so this is only needed to prepare a database ahead of time.

Examples:
  # Run migrations with default config
  authkeep migrate

  # Run migrations with custom config
  authkeep migrate --config /etc/authkeep/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", logger.KeyBackend, cfg.Database.Type)

	ctx := context.Background()
	if err := datasource.RunMigrations(ctx, &cfg.Database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store, err := datasource.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	count, err := store.CountAuths(ctx)
	if err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s, accounts: %d)\n", cfg.Database.Type, count)
	return nil
}
