package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ============================================
// HEALTH & LIFECYCLE
// ============================================

// ErrBackupUnsupported is returned by Backup for backends that must be
// dumped with their own tooling.
var ErrBackupUnsupported = errors.New("backup is only supported for sqlite")

func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Backup writes a consistent snapshot of a SQLite store to dest using
// VACUUM INTO, which is safe while other connections are writing.
func (s *GORMStore) Backup(ctx context.Context, dest string) error {
	if s.config.Type != DatabaseTypeSQLite {
		return ErrBackupUnsupported
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", dest).Error; err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

// Close releases the connection pool. Only the first call has an effect;
// later calls return the first result.
func (s *GORMStore) Close() error {
	s.closeOnce.Do(func() {
		sqlDB, err := s.db.DB()
		if err != nil {
			s.closeErr = fmt.Errorf("failed to get underlying database: %w", err)
			return
		}
		s.closeErr = sqlDB.Close()
	})
	return s.closeErr
}

// Compile-time interface checks
var _ DataSource = (*GORMStore)(nil)
