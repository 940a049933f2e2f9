package listener

import (
	"context"
	"errors"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/process"
)

type serverListener struct {
	auth     Authenticator
	messages *messages.Messages
}

func (l *serverListener) Name() string { return "server" }

func (l *serverListener) Events() []host.EventType {
	return []host.EventType{host.EventPreLogin}
}

func (l *serverListener) Handle(ctx context.Context, ev *host.Event) {
	err := l.auth.PreLogin(ctx, ev.Name, ev.IP)
	if err == nil {
		return
	}
	if errors.Is(err, process.ErrAlreadyOnline) {
		ev.Cancel(messages.StripColors(l.messages.RetrieveSingle(messages.SameNickOnline)))
		return
	}
	ev.Cancel(err.Error())
}
