// Package session holds the in-memory mirror of authenticated players.
//
// A player is present in the Cache only while connected and authenticated.
// The store remains the source of truth; the cache is rebuilt on enable.
package session

import (
	"github.com/marmos91/authkeep/pkg/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Cache maps identity keys to the session record of authenticated players.
type Cache struct {
	entries cmap.ConcurrentMap[string, *models.PlayerAuth]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: cmap.New[*models.PlayerAuth]()}
}

// Add marks auth's identity as authenticated, replacing any previous entry.
func (c *Cache) Add(auth *models.PlayerAuth) {
	if auth == nil || auth.Username == "" {
		return
	}
	c.entries.Set(models.NormalizeName(auth.Username), auth)
}

// Remove evicts name. Removing an absent identity is a no-op.
func (c *Cache) Remove(name string) {
	c.entries.Remove(models.NormalizeName(name))
}

// IsAuthenticated reports whether name is in the cache.
func (c *Cache) IsAuthenticated(name string) bool {
	return c.entries.Has(models.NormalizeName(name))
}

// Get returns the cached record for name.
func (c *Cache) Get(name string) (*models.PlayerAuth, bool) {
	return c.entries.Get(models.NormalizeName(name))
}

// Count returns the number of authenticated players.
func (c *Cache) Count() int {
	return c.entries.Count()
}

// Names returns the cached identity keys in no particular order.
func (c *Cache) Names() []string {
	return c.entries.Keys()
}

// Snapshot returns every cached record.
func (c *Cache) Snapshot() []*models.PlayerAuth {
	out := make([]*models.PlayerAuth, 0, c.entries.Count())
	for item := range c.entries.IterBuffered() {
		out = append(out, item.Val)
	}
	return out
}

// Clear evicts every identity.
func (c *Cache) Clear() {
	c.entries.Clear()
}
