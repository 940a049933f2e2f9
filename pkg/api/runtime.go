package api

import (
	"github.com/marmos91/authkeep/pkg/api/handlers"
	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/lifecycle"
	"github.com/marmos91/authkeep/pkg/models"
)

// PluginRuntime adapts an Orchestrator to handlers.Runtime. Reloads are
// handed to the goroutine that owns the orchestrator through Reloads.
type PluginRuntime struct {
	orch    *lifecycle.Orchestrator
	reloads chan struct{}
}

// NewPluginRuntime creates a runtime for o.
func NewPluginRuntime(o *lifecycle.Orchestrator) *PluginRuntime {
	return &PluginRuntime{orch: o, reloads: make(chan struct{}, 1)}
}

// Reloads delivers the reloads requested through the API.
func (p *PluginRuntime) Reloads() <-chan struct{} {
	return p.reloads
}

func (p *PluginRuntime) State() string {
	return p.orch.State()
}

func (p *PluginRuntime) Version() (string, string) {
	return p.orch.Version()
}

func (p *PluginRuntime) Sessions() ([]*models.PlayerAuth, bool) {
	sessions, ok := lifecycle.Lookup(p.orch, lifecycle.KeySessions)
	if !ok {
		return nil, false
	}
	return sessions.Snapshot(), true
}

func (p *PluginRuntime) Stores() (map[string]handlers.HealthChecker, bool) {
	store, ok := lifecycle.Lookup(p.orch, lifecycle.KeyStore)
	if !ok {
		return nil, false
	}
	out := map[string]handlers.HealthChecker{"datasource": store}
	if pd, ok := lifecycle.Lookup(p.orch, lifecycle.KeyPlayerData); ok {
		out["player_data"] = pd
	}
	return out, true
}

func (p *PluginRuntime) Backup() (*backup.Service, bool) {
	return lifecycle.Lookup(p.orch, lifecycle.KeyBackup)
}

func (p *PluginRuntime) RequestReload() bool {
	select {
	case p.reloads <- struct{}{}:
		return true
	default:
		return false
	}
}

var _ handlers.Runtime = (*PluginRuntime)(nil)
