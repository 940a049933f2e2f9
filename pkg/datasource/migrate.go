package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/datasource/migrations"
)

// runMigrations applies the embedded schema migrations. golang-migrate takes
// a PostgreSQL advisory lock, so concurrent instances are serialised.
func runMigrations(ctx context.Context, cfg *PostgresConfig) error {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := newMigrator(db, cfg.Database)
	if err != nil {
		return err
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Schema is up to date", logger.KeyBackend, "postgres")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	default:
		logger.Info("Schema migrations applied", logger.KeyBackend, "postgres")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		logger.Warn("Database schema is in dirty state", "schema_version", version)
	}
	return nil
}

func newMigrator(db *sql.DB, database string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "authkeep_schema_migrations",
		DatabaseName:    database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies schema migrations without opening a full store.
// It is used by "authkeep migrate". SQLite schemas are managed by New.
func RunMigrations(ctx context.Context, cfg *Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Type != DatabaseTypePostgres {
		store, err := New(ctx, cfg)
		if err != nil {
			return err
		}
		return store.Close()
	}
	return runMigrations(ctx, &cfg.Postgres)
}

// SchemaVersion reports the applied migration version of a PostgreSQL store.
func SchemaVersion(ctx context.Context, cfg *PostgresConfig) (uint, bool, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return 0, false, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := newMigrator(db, cfg.Database)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
