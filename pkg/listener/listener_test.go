package listener

import (
	"context"
	"sync"
	"testing"

	"github.com/marmos91/authkeep/pkg/capability"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu       sync.Mutex
	authed   map[string]bool
	exempt   map[string]bool
	online   map[string]bool
	calls    []string
	password string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{authed: map[string]bool{}, exempt: map[string]bool{}, online: map[string]bool{}}
}

func (f *fakeAuth) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAuth) PreLogin(_ context.Context, name, _ string) error {
	f.record("prelogin")
	if f.online[models.NormalizeName(name)] {
		return process.ErrAlreadyOnline
	}
	return nil
}

func (f *fakeAuth) Join(context.Context, host.Entity) error { f.record("join"); return nil }

func (f *fakeAuth) Quit(context.Context, host.Entity) error { f.record("quit"); return nil }

func (f *fakeAuth) Register(_ context.Context, _ host.Entity, pw string) error {
	f.record("register")
	f.password = pw
	return nil
}

func (f *fakeAuth) Login(_ context.Context, e host.Entity, pw string) error {
	f.record("login")
	f.password = pw
	f.authed[models.NormalizeName(e.Name())] = true
	return nil
}

func (f *fakeAuth) Logout(context.Context, host.Entity) error { f.record("logout"); return nil }

func (f *fakeAuth) IsAuthenticated(name string) bool { return f.authed[models.NormalizeName(name)] }

func (f *fakeAuth) IsExempt(e host.Entity) bool { return f.exempt[models.NormalizeName(e.Name())] }

type fixture struct {
	auth *fakeAuth
	host *hosttest.Host
}

func newFixture(t *testing.T, version string) *fixture {
	t.Helper()
	msgs, err := messages.New(t.TempDir(), "en")
	require.NoError(t, err)

	f := &fixture{auth: newFakeAuth(), host: hosttest.NewHost(version)}
	ls := Build(capability.Negotiate(version, nil), Deps{
		Auth:     f.auth,
		Messages: msgs,
		Restrictions: config.RestrictionsConfig{
			AllowedCommands: []string{"/help"},
		},
		Scheduler: f.host.Sched,
		Owner:     "authkeep",
	})
	for _, l := range ls {
		f.host.RegisterListener("authkeep", l)
	}
	return f
}

func (f *fixture) act(t host.EventType, e host.Entity, msg string) *host.Event {
	ev := &host.Event{Type: t, Entity: e, Name: e.Name(), IP: e.IP(), Message: msg}
	f.host.Dispatch(context.Background(), "authkeep", ev)
	return ev
}

func TestBuildGatesFeatureListeners(t *testing.T) {
	t.Run("Legacy", func(t *testing.T) {
		f := newFixture(t, "1.5.2")
		assert.ElementsMatch(t, []string{"server", "player", "block", "entity"}, f.host.Listeners("authkeep"))
	})

	t.Run("Modern", func(t *testing.T) {
		f := newFixture(t, "1.12.2")
		assert.ElementsMatch(t, []string{
			"server", "player", "block", "entity",
			"edit_book", "interact_at_entity", "swap_hand_items",
		}, f.host.Listeners("authkeep"))
	})

	t.Run("Partial", func(t *testing.T) {
		f := newFixture(t, "1.8.8")
		names := f.host.Listeners("authkeep")
		assert.Contains(t, names, "interact_at_entity")
		assert.NotContains(t, names, "swap_hand_items")
	})
}

func TestRestrictedPlayerIsBlocked(t *testing.T) {
	f := newFixture(t, "1.12.2")
	p := hosttest.NewEntity("alice", "10.0.0.1", models.Location{World: "w"})

	for _, et := range []host.EventType{
		host.EventMove, host.EventInteract, host.EventBlockBreak, host.EventBlockPlace,
		host.EventDamage, host.EventEditBook, host.EventSwapHandItems, host.EventInteractAtEntity,
	} {
		assert.True(t, f.act(et, p, "").Cancelled(), et.String())
	}

	chat := f.act(host.EventChat, p, "hello")
	assert.True(t, chat.Cancelled())
	assert.NotEmpty(t, p.Messages())

	assert.True(t, f.act(host.EventCommand, p, "/spawn").Cancelled())
	assert.False(t, f.act(host.EventCommand, p, "/help me").Cancelled())
}

func TestAuthenticatedAndExemptPlayersAreFree(t *testing.T) {
	f := newFixture(t, "1.12.2")
	authed := hosttest.NewEntity("alice", "", models.Location{World: "w"})
	bot := hosttest.NewEntity("bot", "", models.Location{World: "w"})
	f.auth.authed["alice"] = true
	f.auth.exempt["bot"] = true

	for _, e := range []host.Entity{authed, bot} {
		assert.False(t, f.act(host.EventMove, e, "").Cancelled())
		assert.False(t, f.act(host.EventChat, e, "hi").Cancelled())
		assert.False(t, f.act(host.EventCommand, e, "/spawn").Cancelled())
	}
}

func TestAuthCommandsRunAsync(t *testing.T) {
	f := newFixture(t, "1.12.2")
	p := hosttest.NewEntity("alice", "", models.Location{World: "w"})

	ev := f.act(host.EventCommand, p, "/register secret1 secret1")
	assert.True(t, ev.Cancelled())
	assert.Equal(t, "secret1", f.auth.password)

	f.act(host.EventCommand, p, "/register secret1 other")
	f.act(host.EventCommand, p, "/login secret2")
	assert.Equal(t, "secret2", f.auth.password)
	assert.True(t, f.auth.IsAuthenticated("alice"))

	f.act(host.EventCommand, p, "/logout")
	assert.Equal(t, []string{"register", "login", "logout"}, f.auth.calls)
}

func TestJoinQuitAndPreLogin(t *testing.T) {
	f := newFixture(t, "1.12.2")
	p := hosttest.NewEntity("alice", "", models.Location{World: "w"})

	f.act(host.EventJoin, p, "")
	f.act(host.EventQuit, p, "")

	pre := &host.Event{Type: host.EventPreLogin, Name: "alice", IP: "10.0.0.2"}
	f.host.Dispatch(context.Background(), "authkeep", pre)
	assert.False(t, pre.Cancelled())

	f.auth.online["alice"] = true
	pre = &host.Event{Type: host.EventPreLogin, Name: "Alice", IP: "10.0.0.2"}
	f.host.Dispatch(context.Background(), "authkeep", pre)
	assert.True(t, pre.Cancelled())
	assert.NotEmpty(t, pre.Reason())

	assert.Equal(t, []string{"join", "quit", "prelogin", "prelogin"}, f.auth.calls)
}
