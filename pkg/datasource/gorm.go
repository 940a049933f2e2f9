package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GORMStore implements DataSource on top of GORM. SQLite and PostgreSQL
// share the same code; only schema management differs.
type GORMStore struct {
	db     *gorm.DB
	config *Config

	closeOnce sync.Once
	closeErr  error
}

// New opens the store described by config and prepares its schema.
//
// Opening is retried with exponential backoff up to config.ConnectAttempts
// times. Schema errors are not retried.
func New(ctx context.Context, config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := dialectorFor(config)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	open := func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		return pingOrClose(ctx, sqlDB)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.ConnectBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(config.ConnectAttempts-1)), ctx)

	if err := backoff.RetryNotify(open, retry, func(err error, next time.Duration) {
		logger.Warn("Database not reachable, retrying",
			logger.KeyBackend, string(config.Type),
			logger.KeyError, err,
			"retry_in", next)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	switch config.Type {
	case DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
		if err := runMigrations(ctx, &config.Postgres); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	default:
		if isMemoryPath(config.SQLite.Path) {
			// Every connection to :memory: is a separate database.
			sqlDB.SetMaxOpenConns(1)
		}
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	logger.Debug("Datasource opened", logger.KeyBackend, string(config.Type))
	return &GORMStore{db: db, config: config}, nil
}

// pingOrClose checks the connection and closes the pool when it is not
// reachable, so that a retried connect does not leave it behind.
func pingOrClose(ctx context.Context, sqlDB *sql.DB) error {
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return err
	}
	return nil
}

func dialectorFor(config *Config) (gorm.Dialector, error) {
	switch config.Type {
	case DatabaseTypeSQLite:
		if isMemoryPath(config.SQLite.Path) {
			return sqlite.Open(":memory:"), nil
		}
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL for concurrent readers, busy_timeout to wait on a locked file.
		return sqlite.Open(config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), nil
	case DatabaseTypePostgres:
		return postgres.Open(config.Postgres.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// DB returns the underlying GORM connection.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Type reports the configured backend.
func (s *GORMStore) Type() DatabaseType {
	return s.config.Type
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
