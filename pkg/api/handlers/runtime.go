package handlers

import (
	"context"

	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/models"
)

// Runtime is the view of the running plugin the handlers need. Services
// are only returned while the plugin is enabled.
type Runtime interface {
	// State is "disabled", "enabling" or "enabled".
	State() string
	Version() (version, build string)

	// Sessions returns the authenticated identities.
	Sessions() ([]*models.PlayerAuth, bool)

	// Stores returns the health checks of the persistent stores by name.
	Stores() (map[string]HealthChecker, bool)

	Backup() (*backup.Service, bool)

	// RequestReload asks the process to reload the plugin. It returns false
	// when a reload is already pending.
	RequestReload() bool
}

// HealthChecker is a store that can report its health.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}
