package limbo

import (
	"testing"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRestore(t *testing.T) {
	c := NewCache()
	origin := models.Location{World: "world", X: 5, Y: 70, Z: 5}
	e := hosttest.NewEntity("Steve", "1.1.1.1", origin)

	st := e.State()
	st.Operator = true
	st.AllowFlight = true
	e.ApplyState(st)

	rec := c.Add(e)
	require.NotNil(t, rec)
	assert.True(t, c.Has("steve"))

	// Limbo strips privileges and moves the player.
	e.ApplyState(stripped(st))
	e.Teleport(models.Location{World: "spawn"})

	assert.True(t, c.Restore(e))
	restored := e.State()
	assert.Equal(t, origin, restored.Location)
	assert.True(t, restored.Operator)
	assert.True(t, restored.AllowFlight)
}

func stripped(s host.EntityState) host.EntityState {
	s.Operator = false
	s.AllowFlight = false
	return s
}

func TestAddKeepsFirstSnapshot(t *testing.T) {
	c := NewCache()
	e := hosttest.NewEntity("alex", "", models.Location{World: "a"})
	first := c.Add(e)

	e.Teleport(models.Location{World: "b"})
	second := c.Add(e)

	assert.Same(t, first, second)
	assert.Equal(t, "a", second.State.Location.World)
}

func TestRestoreWithoutRecord(t *testing.T) {
	c := NewCache()
	e := hosttest.NewEntity("nobody", "", models.Location{World: "w"})
	assert.False(t, c.Restore(e))
}

func TestCleanup(t *testing.T) {
	c := NewCache()
	c.Add(hosttest.NewEntity("online", "", models.Location{}))
	c.Add(hosttest.NewEntity("gone", "", models.Location{}))

	removed := c.Cleanup(func(name string) bool { return name == "online" })

	assert.Equal(t, []string{"gone"}, removed)
	assert.Equal(t, 1, c.Count())
	c.Remove("online")
	assert.Zero(t, c.Count())
}
