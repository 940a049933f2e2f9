package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
)

// SnapshotRemover deletes stored player data.
type SnapshotRemover interface {
	RemoveData(name string) error
}

// Purge removes accounts that have not logged in for a number of days.
type Purge struct {
	store     datasource.AccountStore
	snapshots SnapshotRemover
	cfg       config.PurgeConfig
	now       func() time.Time
}

// NewPurge creates the purge service. snapshots may be nil.
func NewPurge(store datasource.AccountStore, snapshots SnapshotRemover, cfg config.PurgeConfig) *Purge {
	return &Purge{store: store, snapshots: snapshots, cfg: cfg, now: time.Now}
}

func (p *Purge) Name() string { return "purge" }

// Run purges with the configured threshold.
func (p *Purge) Run(ctx context.Context) error {
	_, err := p.Purge(ctx, p.cfg.Days)
	return err
}

// RunAutoPurge purges only when automatic purging is enabled.
func (p *Purge) RunAutoPurge(ctx context.Context) ([]string, error) {
	if !p.cfg.Auto {
		return nil, nil
	}
	if p.cfg.Days <= 0 {
		return nil, fmt.Errorf("purge days must be positive, got %d", p.cfg.Days)
	}
	logger.InfoCtx(ctx, "Automatically purging the database...")
	return p.Purge(ctx, p.cfg.Days)
}

// Purge removes accounts inactive for days and their stored player data.
func (p *Purge) Purge(ctx context.Context, days int) ([]string, error) {
	cutoff := p.now().AddDate(0, 0, -days)
	removed, err := p.store.PurgeInactive(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge inactive accounts: %w", err)
	}

	if p.snapshots != nil {
		for _, name := range removed {
			if err := p.snapshots.RemoveData(name); err != nil {
				logger.WarnCtx(ctx, "Failed to remove player data of purged account",
					logger.KeyIdentity, name, logger.Err(err))
			}
		}
	}

	logger.InfoCtx(ctx, "Purged inactive accounts", logger.KeyCount, len(removed), "days", days)
	return removed, nil
}
