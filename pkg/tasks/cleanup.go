package tasks

import (
	"context"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/limbo"
	"github.com/marmos91/authkeep/pkg/metrics"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/session"
)

// Cleanup drops limbo records and cached sessions of identities that are
// no longer connected. Quit handling normally removes them; this catches
// quits that were missed.
type Cleanup struct {
	host     host.Host
	limbo    *limbo.Cache
	sessions *session.Cache
	metrics  *metrics.Lifecycle
}

// NewCleanup creates the cleanup task.
func NewCleanup(h host.Host, l *limbo.Cache, s *session.Cache, m *metrics.Lifecycle) *Cleanup {
	return &Cleanup{host: h, limbo: l, sessions: s, metrics: m}
}

func (c *Cleanup) Name() string { return "cleanup" }

func (c *Cleanup) Run(ctx context.Context) error {
	online := map[string]bool{}
	for _, e := range c.host.OnlineEntities() {
		online[models.NormalizeName(e.Name())] = true
	}
	isOnline := func(name string) bool { return online[name] }

	removed := c.limbo.Cleanup(isOnline)

	evicted := 0
	for _, name := range c.sessions.Names() {
		if !online[name] {
			c.sessions.Remove(name)
			evicted++
		}
	}
	c.metrics.SetSessions(c.sessions.Count())

	if len(removed) > 0 || evicted > 0 {
		logger.DebugCtx(ctx, "Cleanup removed stale entries",
			"limbo", len(removed), logger.KeySessions, evicted)
	}
	return nil
}
