package listener

import (
	"context"

	"github.com/marmos91/authkeep/pkg/host"
)

type blockListener struct {
	guard *guard
}

func (l *blockListener) Name() string { return "block" }

func (l *blockListener) Events() []host.EventType {
	return []host.EventType{host.EventBlockBreak, host.EventBlockPlace}
}

func (l *blockListener) Handle(_ context.Context, ev *host.Event) {
	if l.guard.restricted(ev.Entity) {
		ev.Cancel("")
	}
}

// entityListener keeps restricted players from taking damage while they
// wait at spawn.
type entityListener struct {
	guard *guard
}

func (l *entityListener) Name() string { return "entity" }

func (l *entityListener) Events() []host.EventType {
	return []host.EventType{host.EventDamage}
}

func (l *entityListener) Handle(_ context.Context, ev *host.Event) {
	if l.guard.restricted(ev.Entity) {
		ev.Cancel("")
	}
}
