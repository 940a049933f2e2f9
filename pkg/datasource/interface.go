package datasource

import (
	"context"
	"time"

	"github.com/marmos91/authkeep/pkg/models"
)

// SessionStore is the part of the persistent store the lifecycle needs:
// reading and rewriting the session columns of logged-in records, and the
// final close.
type SessionStore interface {
	// GetLoggedInSessions returns every record whose logged-in flag is set.
	GetLoggedInSessions(ctx context.Context) ([]*models.PlayerAuth, error)

	// UpdateSession writes ip, last login and real name of auth.
	UpdateSession(ctx context.Context, auth *models.PlayerAuth) error

	// UpdateQuitLocation writes only the location columns of auth.
	UpdateQuitLocation(ctx context.Context, auth *models.PlayerAuth) error

	// PurgeLoggedInFlags clears the logged-in flag on every record.
	PurgeLoggedInFlags(ctx context.Context) (int64, error)

	// Close releases the underlying connection pool.
	Close() error
}

// AccountStore holds the account operations used by the login flow and the
// maintenance tasks.
type AccountStore interface {
	IsAuthAvailable(ctx context.Context, name string) (bool, error)
	GetAuth(ctx context.Context, name string) (*models.PlayerAuth, error)
	SaveAuth(ctx context.Context, auth *models.PlayerAuth) error
	UpdatePassword(ctx context.Context, name, hash string) error
	UpdateEmail(ctx context.Context, name, email string) error
	RemoveAuth(ctx context.Context, name string) error
	SetLogged(ctx context.Context, name string) error
	SetUnlogged(ctx context.Context, name string) error
	IsLogged(ctx context.Context, name string) (bool, error)
	GetAllAuths(ctx context.Context) ([]*models.PlayerAuth, error)
	CountAuths(ctx context.Context) (int64, error)

	// PurgeInactive deletes accounts whose last login is before cutoff and
	// returns the removed identities.
	PurgeInactive(ctx context.Context, cutoff time.Time) ([]string, error)
}

// DataSource is the complete persistent store.
type DataSource interface {
	SessionStore
	AccountStore

	// Backup writes a consistent copy of the store to dest.
	Backup(ctx context.Context, dest string) error

	// Healthcheck verifies the store is reachable.
	Healthcheck(ctx context.Context) error

	// Type reports the configured backend.
	Type() DatabaseType
}
