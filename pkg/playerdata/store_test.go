package playerdata

import (
	"context"
	"testing"

	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndRead(t *testing.T) {
	s := openTestStore(t)
	e := hosttest.NewEntity("Steve", "", models.Location{World: "world", X: 12, Y: 70, Z: -4})

	has, err := s.HasData("steve")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SaveData(e))

	has, err = s.HasData("STEVE")
	require.NoError(t, err)
	assert.True(t, has)

	snap, err := s.ReadData("steve")
	require.NoError(t, err)
	assert.Equal(t, "Steve", snap.Name)
	assert.Equal(t, e.State(), snap.State)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	e := hosttest.NewEntity("alex", "", models.Location{World: "w"})
	require.NoError(t, s.SaveData(e))

	require.NoError(t, s.RemoveData("alex"))
	require.NoError(t, s.RemoveData("alex"))

	_, err := s.ReadData("alex")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir, IndexCacheSize: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, s.SaveData(hosttest.NewEntity("bob", "", models.Location{World: "w"})))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	has, err := s.HasData("bob")
	require.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, s.Healthcheck(context.Background()))
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
