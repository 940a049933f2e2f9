package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/session"
)

// SessionStore is the store surface used by the startup pass.
type SessionStore interface {
	GetLoggedInSessions(ctx context.Context) ([]*models.PlayerAuth, error)
	UpdateSession(ctx context.Context, auth *models.PlayerAuth) error
	PurgeLoggedInFlags(ctx context.Context) (int64, error)
}

// StartupReport summarizes the startup pass.
type StartupReport struct {
	// Purged is the number of flags cleared on a cold start.
	Purged int64

	// Refreshed lists identities restored into the session cache.
	Refreshed []string

	// Untouched counts logged-in records left as they were.
	Untouched int

	// Failed lists identities whose refresh could not be persisted.
	Failed []string
}

// Startup reconciles stored logged-in flags with the connected entities.
//
// With nobody connected every flag is stale and is cleared. With entities
// connected and reloadSupport set, the logged-in record of each connected
// identity gets a fresh last login, is persisted, and is put back into the
// session cache, so a host reload does not log players out. Records of
// identities that are not connected are left alone because the session
// cache must only hold connected identities. With reloadSupport unset,
// nothing changes.
//
// Failing to list or purge is returned. Failing to persist one refreshed
// record is logged and that record is skipped.
func Startup(ctx context.Context, store SessionStore, sessions *session.Cache, online []host.Entity, reloadSupport bool, now time.Time) (*StartupReport, error) {
	report := &StartupReport{}

	if len(online) == 0 {
		n, err := store.PurgeLoggedInFlags(ctx)
		if err != nil {
			return nil, err
		}
		report.Purged = n
		if n > 0 {
			logger.InfoCtx(ctx, "Cleared stale logged-in flags", logger.KeyCount, n)
		}
		return report, nil
	}

	if !reloadSupport {
		logger.DebugCtx(ctx, "Reload support disabled, logged-in records left untouched",
			logger.KeyOnline, len(online))
		return report, nil
	}

	logged, err := store.GetLoggedInSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list logged-in sessions: %w", err)
	}

	connected := make(map[string]bool, len(online))
	for _, e := range online {
		connected[models.NormalizeName(e.Name())] = true
	}

	for _, auth := range logged {
		if auth == nil {
			continue
		}
		name := models.NormalizeName(auth.Username)
		if !connected[name] {
			report.Untouched++
			continue
		}

		refreshed := *auth
		ts := now
		refreshed.LastLogin = &ts
		if err := store.UpdateSession(ctx, &refreshed); err != nil {
			logger.WarnCtx(ctx, "Failed to refresh session",
				logger.KeyIdentity, name, logger.Err(err))
			report.Failed = append(report.Failed, name)
			continue
		}
		sessions.Add(&refreshed)
		report.Refreshed = append(report.Refreshed, name)
	}

	logger.InfoCtx(ctx, "Restored sessions after reload",
		logger.KeySessions, len(report.Refreshed), logger.KeyOnline, len(online))
	return report, nil
}
