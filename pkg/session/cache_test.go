package session

import (
	"sync"
	"testing"

	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	c := NewCache()

	c.Add(&models.PlayerAuth{Username: "Steve", IP: "1.1.1.1"})
	c.Add(nil)
	c.Add(&models.PlayerAuth{})

	assert.Equal(t, 1, c.Count())
	assert.True(t, c.IsAuthenticated("STEVE"))

	got, ok := c.Get("steve")
	assert.True(t, ok)
	assert.Equal(t, "1.1.1.1", got.IP)

	c.Remove("steve")
	c.Remove("steve")
	assert.False(t, c.IsAuthenticated("steve"))
	assert.Zero(t, c.Count())
}

func TestCacheSnapshotAndClear(t *testing.T) {
	c := NewCache()
	c.Add(&models.PlayerAuth{Username: "a"})
	c.Add(&models.PlayerAuth{Username: "b"})

	assert.ElementsMatch(t, []string{"a", "b"}, c.Names())
	assert.Len(t, c.Snapshot(), 2)

	c.Clear()
	assert.Empty(t, c.Names())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('a' + n%26))
			c.Add(&models.PlayerAuth{Username: name})
			_ = c.IsAuthenticated(name)
			if n%2 == 0 {
				c.Remove(name)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Count(), 26)
}
