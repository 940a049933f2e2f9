// Package standalone is an in-process host: it keeps a roster of connected
// players, dispatches events to registered listeners and runs tasks on the
// shared scheduler. The CLI and the operator API drive it.
package standalone

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	// ErrRejected is returned by Join when a pre-login listener refused the player.
	ErrRejected = errors.New("connection rejected")

	// ErrFull is returned by Join when the roster is at capacity.
	ErrFull = errors.New("server is full")

	// ErrNotOnline is returned for operations on a player that is not connected.
	ErrNotOnline = errors.New("player is not online")
)

type registration struct {
	owner    string
	listener host.Listener
}

// Config describes the standalone host.
type Config struct {
	Name       string
	Version    string
	Features   []string
	MaxPlayers int
	Spawn      models.Location
}

// Host implements host.Host in process.
type Host struct {
	config    Config
	scheduler host.Scheduler
	roster    cmap.ConcurrentMap[string, *Player]

	mu        sync.RWMutex
	listeners []registration

	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates a standalone host using scheduler for plugin tasks.
func New(cfg Config, scheduler host.Scheduler) *Host {
	return &Host{
		config:    cfg,
		scheduler: scheduler,
		roster:    cmap.New[*Player](),
		done:      make(chan struct{}),
	}
}

func (h *Host) Name() string { return h.config.Name }

func (h *Host) Version() string { return h.config.Version }

func (h *Host) Features() []string { return h.config.Features }

func (h *Host) Scheduler() host.Scheduler { return h.scheduler }

func (h *Host) OnlineEntities() []host.Entity {
	out := make([]host.Entity, 0, h.roster.Count())
	for item := range h.roster.IterBuffered() {
		out = append(out, item.Val)
	}
	return out
}

func (h *Host) Entity(name string) (host.Entity, bool) {
	p, ok := h.roster.Get(models.NormalizeName(name))
	if !ok {
		return nil, false
	}
	return p, true
}

// Player returns the concrete player for name.
func (h *Host) Player(name string) (*Player, bool) {
	return h.roster.Get(models.NormalizeName(name))
}

func (h *Host) RegisterListener(owner string, l host.Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, registration{owner: owner, listener: l})
	h.mu.Unlock()
	logger.Debug("Listener registered", logger.KeyListener, l.Name())
}

func (h *Host) UnregisterListeners(owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.listeners[:0]
	for _, r := range h.listeners {
		if r.owner != owner {
			kept = append(kept, r)
		}
	}
	h.listeners = kept
}

// Listeners returns the names of the registered listeners in order.
func (h *Host) Listeners() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.listeners))
	for _, r := range h.listeners {
		names = append(names, r.listener.Name())
	}
	return names
}

// Dispatch delivers ev to every listener subscribed to its type, in
// registration order.
func (h *Host) Dispatch(ctx context.Context, ev *host.Event) {
	h.mu.RLock()
	regs := append([]registration(nil), h.listeners...)
	h.mu.RUnlock()

	for _, r := range regs {
		if host.Handles(r.listener, ev.Type) {
			r.listener.Handle(ctx, ev)
		}
	}
}

// Join connects a player: pre-login listeners may reject it, then the
// player is added to the roster and join listeners run.
func (h *Host) Join(ctx context.Context, name, ip string) (*Player, error) {
	if h.config.MaxPlayers > 0 && h.roster.Count() >= h.config.MaxPlayers {
		return nil, ErrFull
	}

	pre := &host.Event{Type: host.EventPreLogin, Name: name, IP: ip}
	h.Dispatch(ctx, pre)
	if pre.Cancelled() {
		return nil, fmt.Errorf("%w: %s", ErrRejected, pre.Reason())
	}

	p := NewPlayer(name, ip, h.config.Spawn)
	if !h.roster.SetIfAbsent(models.NormalizeName(name), p) {
		return nil, fmt.Errorf("%w: %s is already connected", ErrRejected, name)
	}

	h.Dispatch(ctx, &host.Event{Type: host.EventJoin, Entity: p, Name: name, IP: ip})
	return p, nil
}

// Quit disconnects a player after quit listeners have run.
func (h *Host) Quit(ctx context.Context, name string) error {
	p, ok := h.roster.Get(models.NormalizeName(name))
	if !ok {
		return ErrNotOnline
	}
	h.Dispatch(ctx, &host.Event{Type: host.EventQuit, Entity: p, Name: p.Name(), IP: p.IP()})
	h.roster.Remove(models.NormalizeName(name))
	return nil
}

// Act dispatches a player action such as chat or a command and reports
// whether it was allowed.
func (h *Host) Act(ctx context.Context, name string, t host.EventType, message string) (bool, error) {
	p, ok := h.roster.Get(models.NormalizeName(name))
	if !ok {
		return false, ErrNotOnline
	}
	ev := &host.Event{Type: t, Entity: p, Name: p.Name(), IP: p.IP(), Message: message}
	h.Dispatch(ctx, ev)
	return !ev.Cancelled(), nil
}

// Shutdown stops the host. Only the first call has an effect.
func (h *Host) Shutdown() {
	h.shutdownOnce.Do(func() {
		logger.Warn("Host shutdown requested")
		close(h.done)
	})
}

// Done is closed once Shutdown has been called.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

var _ host.Host = (*Host)(nil)
