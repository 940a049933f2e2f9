package standalone

import (
	"context"
	"testing"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name   string
	events []host.EventType
	seen   []host.EventType
	cancel map[host.EventType]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Events() []host.EventType { return r.events }

func (r *recorder) Handle(_ context.Context, ev *host.Event) {
	r.seen = append(r.seen, ev.Type)
	if reason, ok := r.cancel[ev.Type]; ok {
		ev.Cancel(reason)
	}
}

func newHost() *Host {
	return New(Config{
		Name:       "test",
		Version:    "1.12.2",
		MaxPlayers: 2,
		Spawn:      models.Location{World: "world", Y: 64},
	}, nil)
}

func TestJoinAndQuit(t *testing.T) {
	ctx := context.Background()
	h := newHost()
	rec := &recorder{name: "rec", events: []host.EventType{host.EventPreLogin, host.EventJoin, host.EventQuit}}
	h.RegisterListener("AuthMe", rec)

	p, err := h.Join(ctx, "Steve", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.Location{World: "world", Y: 64}, p.State().Location)

	e, ok := h.Entity("STEVE")
	require.True(t, ok)
	assert.Equal(t, "Steve", e.Name())
	assert.Len(t, h.OnlineEntities(), 1)

	_, err = h.Join(ctx, "steve", "10.0.0.2")
	assert.ErrorIs(t, err, ErrRejected)

	require.NoError(t, h.Quit(ctx, "steve"))
	assert.Empty(t, h.OnlineEntities())
	assert.ErrorIs(t, h.Quit(ctx, "steve"), ErrNotOnline)

	assert.Equal(t, []host.EventType{
		host.EventPreLogin, host.EventJoin,
		host.EventPreLogin,
		host.EventQuit,
	}, rec.seen)
}

func TestPreLoginRejection(t *testing.T) {
	h := newHost()
	h.RegisterListener("AuthMe", &recorder{
		name:   "gate",
		events: []host.EventType{host.EventPreLogin},
		cancel: map[host.EventType]string{host.EventPreLogin: "banned"},
	})

	_, err := h.Join(context.Background(), "alex", "1.1.1.1")
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorContains(t, err, "banned")
}

func TestCapacity(t *testing.T) {
	ctx := context.Background()
	h := newHost()
	_, err := h.Join(ctx, "a", "")
	require.NoError(t, err)
	_, err = h.Join(ctx, "b", "")
	require.NoError(t, err)
	_, err = h.Join(ctx, "c", "")
	assert.ErrorIs(t, err, ErrFull)
}

func TestActAndUnregister(t *testing.T) {
	ctx := context.Background()
	h := newHost()
	h.RegisterListener("AuthMe", &recorder{
		name:   "chat",
		events: []host.EventType{host.EventChat},
		cancel: map[host.EventType]string{host.EventChat: ""},
	})
	h.RegisterListener("Other", &recorder{name: "other"})
	_, err := h.Join(ctx, "steve", "")
	require.NoError(t, err)

	allowed, err := h.Act(ctx, "steve", host.EventChat, "hi")
	require.NoError(t, err)
	assert.False(t, allowed)

	h.UnregisterListeners("AuthMe")
	assert.Equal(t, []string{"other"}, h.Listeners())

	allowed, err = h.Act(ctx, "steve", host.EventChat, "hi")
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = h.Act(ctx, "nobody", host.EventChat, "")
	assert.ErrorIs(t, err, ErrNotOnline)
}

func TestShutdownIsIdempotent(t *testing.T) {
	h := newHost()
	h.Shutdown()
	h.Shutdown()
	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}
}

func TestPlayerState(t *testing.T) {
	p := NewPlayer("x", "", models.Location{World: "w"})
	p.SetMetadata("NPC")
	assert.True(t, p.HasMetadata("NPC"))

	st := p.State()
	st.Operator = true
	p.ApplyState(st)
	assert.True(t, p.State().Operator)

	p.Teleport(models.Location{World: "nether"})
	assert.Equal(t, "nether", p.State().Location.World)

	p.SendMessage("a", "b")
	assert.Equal(t, []string{"a", "b"}, p.Messages())
	p.Kick("bye")
	assert.Equal(t, "bye", p.KickReason())
}
