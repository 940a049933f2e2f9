package tasks

import (
	"context"
	"errors"

	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/session"
)

// Recall reminds authenticated players without a recovery email to add one.
type Recall struct {
	store    datasource.AccountStore
	host     host.Host
	sessions *session.Cache
	messages *messages.Messages
}

// NewRecall creates the email recall task.
func NewRecall(store datasource.AccountStore, h host.Host, s *session.Cache, m *messages.Messages) *Recall {
	return &Recall{store: store, host: h, sessions: s, messages: m}
}

func (r *Recall) Name() string { return "email_recall" }

func (r *Recall) Run(ctx context.Context) error {
	var errs []error
	for _, e := range r.host.OnlineEntities() {
		if !r.sessions.IsAuthenticated(e.Name()) {
			continue
		}
		auth, err := r.store.GetAuth(ctx, e.Name())
		if errors.Is(err, models.ErrAuthNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !auth.HasEmail() {
			r.messages.Send(e, messages.AddEmail)
		}
	}
	return errors.Join(errs...)
}
