package listener

import (
	"context"
	"strings"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/validation"
)

type playerListener struct {
	guard        *guard
	messages     *messages.Messages
	restrictions config.RestrictionsConfig
	scheduler    host.Scheduler
	owner        string
}

func (l *playerListener) Name() string { return "player" }

func (l *playerListener) Events() []host.EventType {
	return []host.EventType{
		host.EventJoin,
		host.EventQuit,
		host.EventChat,
		host.EventCommand,
		host.EventMove,
		host.EventInteract,
	}
}

func (l *playerListener) Handle(ctx context.Context, ev *host.Event) {
	if ev.Entity == nil {
		return
	}
	switch ev.Type {
	case host.EventJoin:
		if err := l.guard.auth.Join(ctx, ev.Entity); err != nil {
			logger.WarnCtx(ctx, "Join handling failed",
				logger.KeyIdentity, models.NormalizeName(ev.Name), logger.Err(err))
		}
	case host.EventQuit:
		_ = l.guard.auth.Quit(ctx, ev.Entity)
	case host.EventChat:
		if l.guard.restricted(ev.Entity) && !l.restrictions.AllowChat {
			ev.Cancel("")
			l.messages.Send(ev.Entity, messages.DenyChat)
		}
	case host.EventCommand:
		l.handleCommand(ev)
	case host.EventMove, host.EventInteract:
		if l.guard.restricted(ev.Entity) {
			ev.Cancel("")
		}
	}
}

// handleCommand runs the authentication commands on a worker and keeps
// restricted players to the allowed commands.
func (l *playerListener) handleCommand(ev *host.Event) {
	args := strings.Fields(ev.Message)
	if len(args) == 0 {
		return
	}
	e := ev.Entity

	switch strings.ToLower(args[0]) {
	case "/login", "/l":
		ev.Cancel("")
		if len(args) < 2 {
			l.messages.Send(e, messages.LoginPrompt)
			return
		}
		l.async(e, "login", func(ctx context.Context) error {
			return l.guard.auth.Login(ctx, e, args[1])
		})
		return
	case "/register", "/reg":
		ev.Cancel("")
		if len(args) < 2 || (len(args) > 2 && args[1] != args[2]) {
			l.messages.Send(e, messages.RegisterPrompt)
			return
		}
		l.async(e, "register", func(ctx context.Context) error {
			return l.guard.auth.Register(ctx, e, args[1])
		})
		return
	case "/logout":
		ev.Cancel("")
		l.async(e, "logout", func(ctx context.Context) error {
			return l.guard.auth.Logout(ctx, e)
		})
		return
	}

	if l.guard.restricted(e) && !validation.IsAllowedCommand(ev.Message, l.restrictions.AllowedCommands) {
		ev.Cancel("")
		l.messages.Send(e, messages.DenyCommand)
	}
}

// async runs fn as a one-shot task of the plugin so that a disable waits
// for it before closing the store.
func (l *playerListener) async(e host.Entity, op string, fn func(ctx context.Context) error) {
	name := models.NormalizeName(e.Name())
	_, err := l.scheduler.RunAsync(l.owner, func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			logger.DebugCtx(ctx, "Command failed", logger.KeyIdentity, name, logger.KeyOperation, op, logger.Err(err))
		}
	})
	if err != nil {
		logger.Warn("Failed to schedule command", logger.KeyIdentity, name, logger.KeyOperation, op, logger.Err(err))
		l.messages.Send(e, messages.Error)
	}
}
