package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/limbo"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/session"
	"github.com/marmos91/authkeep/pkg/spawn"
	"github.com/marmos91/authkeep/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore is an in-memory session store that records every write.
type recordingStore struct {
	mu           sync.Mutex
	records      map[string]*models.PlayerAuth
	quitLocation []*models.PlayerAuth
	updates      []*models.PlayerAuth
	purges       int
	failFor      map[string]bool
	failList     bool
	unregistered map[string]bool
}

func newRecordingStore(records ...*models.PlayerAuth) *recordingStore {
	s := &recordingStore{
		records:      map[string]*models.PlayerAuth{},
		failFor:      map[string]bool{},
		unregistered: map[string]bool{},
	}
	for _, r := range records {
		s.records[r.Username] = r
	}
	return s
}

func (s *recordingStore) UpdateQuitLocation(_ context.Context, auth *models.PlayerAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[auth.Username] {
		return errors.New("disk full")
	}
	if s.unregistered[auth.Username] {
		return models.ErrAuthNotFound
	}
	s.quitLocation = append(s.quitLocation, auth)
	return nil
}

func (s *recordingStore) GetLoggedInSessions(context.Context) ([]*models.PlayerAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("connection refused")
	}
	var out []*models.PlayerAuth
	for _, r := range s.records {
		if r.IsLogged {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *recordingStore) UpdateSession(_ context.Context, auth *models.PlayerAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[auth.Username] {
		return errors.New("disk full")
	}
	s.updates = append(s.updates, auth)
	s.records[auth.Username].LastLogin = auth.LastLogin
	return nil
}

func (s *recordingStore) PurgeLoggedInFlags(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	var n int64
	for _, r := range s.records {
		if r.IsLogged {
			r.IsLogged = false
			n++
		}
	}
	return n, nil
}

func (s *recordingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quitLocation) + len(s.updates) + s.purges
}

type fakeSnapshots struct {
	saved map[string]bool
}

func (f *fakeSnapshots) HasData(name string) (bool, error) {
	return f.saved[models.NormalizeName(name)], nil
}

func (f *fakeSnapshots) SaveData(e host.Entity) error {
	f.saved[models.NormalizeName(e.Name())] = true
	return nil
}

type fixture struct {
	store     *recordingStore
	snapshots *fakeSnapshots
	limbo     *limbo.Cache
	sessions  *session.Cache
	rec       *Reconciler
}

func newFixture(opts Options, unrestricted ...string) *fixture {
	f := &fixture{
		store:     newRecordingStore(),
		snapshots: &fakeSnapshots{saved: map[string]bool{}},
		limbo:     limbo.NewCache(),
		sessions:  session.NewCache(),
	}
	f.rec = New(opts, Deps{
		Store:      f.store,
		Snapshots:  f.snapshots,
		Limbo:      f.limbo,
		Sessions:   f.sessions,
		Exemptions: validation.New(unrestricted),
		Locator:    spawn.New(config.LocationConfig{World: "spawn"}),
	})
	return f
}

func TestEvictionAppliesToEveryEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true}, "admin")

	npc := hosttest.NewEntity("Villager", "", models.Location{World: "w"})
	npc.SetMetadata(validation.NPCMetadataKey)
	admin := hosttest.NewEntity("Admin", "", models.Location{World: "w"})
	inLimbo := hosttest.NewEntity("Newbie", "", models.Location{World: "w"})
	plain := hosttest.NewEntity("Steve", "", models.Location{World: "w", X: 5})

	entities := []host.Entity{npc, admin, inLimbo, plain}
	for _, e := range entities {
		f.sessions.Add(&models.PlayerAuth{Username: e.Name()})
	}
	f.limbo.Add(inLimbo)

	report := f.rec.Reconcile(ctx, entities)

	for _, e := range entities {
		assert.False(t, f.sessions.IsAuthenticated(e.Name()), "%s still in session cache", e.Name())
	}
	assert.Zero(t, f.sessions.Count())
	assert.Equal(t, 2, report.Count(ActionSkipped))
	assert.Equal(t, 1, report.Count(ActionRestored))
	assert.Equal(t, 1, report.Count(ActionQuitLocation))
	for _, o := range report.Outcomes {
		assert.True(t, o.Evicted)
	}
}

func TestLimboTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true, TeleportUnauthedToSpawn: true})

	e := hosttest.NewEntity("Alex", "", models.Location{World: "world", X: 10})
	f.limbo.Add(e)
	e.Teleport(models.Location{World: "spawn"})
	e.ApplyState(host.EntityState{Location: models.Location{World: "spawn"}, Flying: true})

	out := f.rec.ReconcileEntity(ctx, e)

	assert.Equal(t, ActionRestored, out.Action)
	assert.False(t, f.limbo.Has("alex"))
	assert.Equal(t, models.Location{World: "world", X: 10}, e.State().Location)
	assert.False(t, e.State().Flying)
	assert.Empty(t, f.store.quitLocation, "quit location must not be persisted for a limbo entity")
	assert.False(t, f.snapshots.saved["alex"])
}

func TestQuitLocationUsesSpawnFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true})

	here := hosttest.NewEntity("Here", "", models.Location{World: "nether", X: 1, Y: 2, Z: 3})
	nowhere := hosttest.NewEntity("Nowhere", "", models.Location{})

	f.rec.Reconcile(ctx, []host.Entity{here, nowhere})

	require.Len(t, f.store.quitLocation, 2)
	byName := map[string]*models.PlayerAuth{}
	for _, a := range f.store.quitLocation {
		byName[a.Username] = a
	}
	assert.Equal(t, "nether", byName["here"].World)
	assert.Equal(t, "Here", byName["here"].RealName)
	assert.Equal(t, "spawn", byName["nowhere"].World)
	assert.Empty(t, byName["here"].Password, "quit location must not carry authentication fields")
}

func TestSnapshotSavedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{TeleportUnauthedToSpawn: true})
	fresh := hosttest.NewEntity("fresh", "", models.Location{World: "w"})
	known := hosttest.NewEntity("known", "", models.Location{World: "w"})
	f.snapshots.saved["known"] = true

	report := f.rec.Reconcile(ctx, []host.Entity{fresh, known})

	assert.Equal(t, 1, report.Snapshots())
	assert.True(t, f.snapshots.saved["fresh"])
	assert.Empty(t, f.store.quitLocation)
}

func TestNoTeleportDisablesSnapshot(t *testing.T) {
	f := newFixture(Options{TeleportUnauthedToSpawn: true, NoTeleport: true})
	f.rec.ReconcileEntity(context.Background(), hosttest.NewEntity("a", "", models.Location{World: "w"}))
	assert.Empty(t, f.snapshots.saved)
}

func TestFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true})
	f.store.failFor["broken"] = true

	broken := hosttest.NewEntity("broken", "", models.Location{World: "w"})
	fine := hosttest.NewEntity("fine", "", models.Location{World: "w"})
	f.sessions.Add(&models.PlayerAuth{Username: "broken"})

	report := f.rec.Reconcile(ctx, []host.Entity{broken, fine})

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Identity)
	assert.Len(t, f.store.quitLocation, 1)
	assert.False(t, f.sessions.IsAuthenticated("broken"))
}

func TestUnregisteredPlayerIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true})
	f.store.unregistered["guest"] = true

	guest := hosttest.NewEntity("Guest", "", models.Location{World: "w"})
	out := f.rec.ReconcileEntity(ctx, guest)

	assert.Empty(t, out.Errs)
	assert.True(t, out.Evicted)
	report := f.rec.Reconcile(ctx, []host.Entity{guest})
	assert.Empty(t, report.Failed())
	assert.Empty(t, f.store.quitLocation)
}

func TestReconcileEmptyRosterIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Options{SaveQuitLocation: true, TeleportUnauthedToSpawn: true})
	f.sessions.Add(&models.PlayerAuth{Username: "offline"})

	for i := 0; i < 2; i++ {
		report := f.rec.Reconcile(ctx, nil)
		assert.Empty(t, report.Outcomes)
	}
	assert.Zero(t, f.store.writes())
	assert.Empty(t, f.snapshots.saved)
	assert.True(t, f.sessions.IsAuthenticated("offline"))
}
