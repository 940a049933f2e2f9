// Package backup snapshots the persistent store around the plugin
// lifecycle and optionally ships the snapshot to S3.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/metrics"
)

// Cause says why a backup was requested.
type Cause string

const (
	CauseStart   Cause = "START"
	CauseStop    Cause = "STOP"
	CauseCommand Cause = "COMMAND"
)

// Source is the store being backed up.
type Source interface {
	Backup(ctx context.Context, dest string) error
	Type() datasource.DatabaseType
}

// Uploader ships a finished backup file.
type Uploader interface {
	Upload(ctx context.Context, key, path string) error
}

// Service performs backups.
type Service struct {
	cfg      config.BackupConfig
	source   Source
	uploader Uploader
	metrics  *metrics.Lifecycle
	now      func() time.Time
}

// New creates a backup service. uploader may be nil.
func New(cfg config.BackupConfig, source Source, uploader Uploader, m *metrics.Lifecycle) *Service {
	return &Service{cfg: cfg, source: source, uploader: uploader, metrics: m, now: time.Now}
}

// enabledFor reports whether cause triggers a backup under the configuration.
func (s *Service) enabledFor(cause Cause) bool {
	if !s.cfg.Enabled {
		return false
	}
	switch cause {
	case CauseStart:
		return s.cfg.OnStart
	case CauseStop:
		return s.cfg.OnStop
	default:
		return true
	}
}

// DoBackup writes a backup if the configuration asks for one on cause. It
// returns the path of the backup file, or "" when none was taken. Backups
// of backends that do not support them are skipped with a warning.
func (s *Service) DoBackup(ctx context.Context, cause Cause) (string, error) {
	if !s.enabledFor(cause) {
		return "", nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBackup)
	defer span.End()

	path, err := s.backup(ctx, cause)
	if errors.Is(err, datasource.ErrBackupUnsupported) {
		logger.WarnCtx(ctx, "Backup skipped, backend does not support it",
			logger.KeyBackend, string(s.source.Type()))
		return "", nil
	}
	s.metrics.RecordBackup(strings.ToLower(string(cause)), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Backup failed", logger.KeyCause, string(cause), logger.Err(err))
		return "", err
	}
	return path, nil
}

func (s *Service) backup(ctx context.Context, cause Cause) (string, error) {
	if err := os.MkdirAll(s.cfg.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("authme_%s_%s.db", s.now().Format("2006-01-02_15-04"), uuid.NewString()[:8])
	path := filepath.Join(s.cfg.Directory, name)

	if err := s.source.Backup(ctx, path); err != nil {
		return "", err
	}
	logger.InfoCtx(ctx, "A backup has been performed",
		logger.KeyCause, string(cause), logger.KeyPath, path)

	if s.uploader != nil {
		key := name
		if s.cfg.S3.Prefix != "" {
			key = strings.TrimSuffix(s.cfg.S3.Prefix, "/") + "/" + name
		}
		if err := s.uploader.Upload(ctx, key, path); err != nil {
			return path, fmt.Errorf("failed to upload backup: %w", err)
		}
		logger.InfoCtx(ctx, "Backup uploaded",
			logger.KeyBucket, s.cfg.S3.Bucket, logger.KeyKey, key)
	}
	return path, nil
}
