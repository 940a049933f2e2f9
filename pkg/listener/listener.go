// Package listener translates host events into the authentication flow and
// blocks what unauthenticated players may not do.
package listener

import (
	"context"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/capability"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/messages"
)

// Authenticator is the part of the login flow the listeners drive.
type Authenticator interface {
	PreLogin(ctx context.Context, name, ip string) error
	Join(ctx context.Context, e host.Entity) error
	Quit(ctx context.Context, e host.Entity) error
	Register(ctx context.Context, e host.Entity, password string) error
	Login(ctx context.Context, e host.Entity, password string) error
	Logout(ctx context.Context, e host.Entity) error
	IsAuthenticated(name string) bool
	IsExempt(e host.Entity) bool
}

// Deps groups what the listeners need.
type Deps struct {
	Auth         Authenticator
	Messages     *messages.Messages
	Restrictions config.RestrictionsConfig
	Scheduler    host.Scheduler
	Owner        string
}

// Build returns the listeners to register. The core listeners are always
// present; the others only when the host supports their events.
func Build(features capability.Set, d Deps) []host.Listener {
	g := &guard{auth: d.Auth}
	ls := []host.Listener{
		&serverListener{auth: d.Auth, messages: d.Messages},
		&playerListener{
			guard:        g,
			messages:     d.Messages,
			restrictions: d.Restrictions,
			scheduler:    d.Scheduler,
			owner:        d.Owner,
		},
		&blockListener{guard: g},
		&entityListener{guard: g},
	}

	for _, f := range features.List() {
		var l host.Listener
		switch f {
		case capability.EditBook:
			l = &restrictListener{guard: g, name: "edit_book", events: []host.EventType{host.EventEditBook}}
		case capability.InteractAtEntity:
			l = &restrictListener{guard: g, name: "interact_at_entity", events: []host.EventType{host.EventInteractAtEntity}}
		case capability.SwapHandItems:
			l = &restrictListener{guard: g, name: "swap_hand_items", events: []host.EventType{host.EventSwapHandItems}}
		default:
			continue
		}
		logger.Debug("Feature listener enabled", logger.KeyFeature, f.String(), logger.KeyListener, l.Name())
		ls = append(ls, l)
	}
	return ls
}

// guard decides whether an entity is held back by the plugin.
type guard struct {
	auth Authenticator
}

func (g *guard) restricted(e host.Entity) bool {
	if e == nil {
		return false
	}
	return !g.auth.IsAuthenticated(e.Name()) && !g.auth.IsExempt(e)
}

// restrictListener cancels its events for restricted players.
type restrictListener struct {
	guard  *guard
	name   string
	events []host.EventType
}

func (l *restrictListener) Name() string { return l.name }

func (l *restrictListener) Events() []host.EventType { return l.events }

func (l *restrictListener) Handle(_ context.Context, ev *host.Event) {
	if l.guard.restricted(ev.Entity) {
		ev.Cancel("")
	}
}
