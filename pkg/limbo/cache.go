// Package limbo keeps the state of players who joined but have not
// authenticated yet, so it can be handed back once they log in or when the
// plugin is disabled.
package limbo

import (
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Record is the state captured when an entity entered limbo.
type Record struct {
	Name      string
	State     host.EntityState
	CreatedAt time.Time
}

// Cache holds limbo records keyed by identity.
type Cache struct {
	records cmap.ConcurrentMap[string, *Record]
	now     func() time.Time
}

// NewCache creates an empty limbo cache.
func NewCache() *Cache {
	return &Cache{records: cmap.New[*Record](), now: time.Now}
}

// Add captures e's current state. An existing record is kept so that a
// second join cannot overwrite the original snapshot.
func (c *Cache) Add(e host.Entity) *Record {
	key := models.NormalizeName(e.Name())
	rec := &Record{Name: e.Name(), State: e.State(), CreatedAt: c.now()}
	if !c.records.SetIfAbsent(key, rec) {
		existing, _ := c.records.Get(key)
		return existing
	}
	logger.Debug("Entity entered limbo", logger.KeyIdentity, key)
	return rec
}

// Has reports whether name has a limbo record.
func (c *Cache) Has(name string) bool {
	return c.records.Has(models.NormalizeName(name))
}

// Get returns the record for name.
func (c *Cache) Get(name string) (*Record, bool) {
	return c.records.Get(models.NormalizeName(name))
}

// Restore applies the captured state back to e. It reports false when e
// has no record.
func (c *Cache) Restore(e host.Entity) bool {
	rec, ok := c.records.Get(models.NormalizeName(e.Name()))
	if !ok {
		return false
	}
	e.ApplyState(rec.State)
	return true
}

// Remove deletes the record for name.
func (c *Cache) Remove(name string) {
	c.records.Remove(models.NormalizeName(name))
}

// Count returns the number of entities in limbo.
func (c *Cache) Count() int {
	return c.records.Count()
}

// Cleanup removes records whose entity is no longer connected and returns
// the removed identities.
func (c *Cache) Cleanup(online func(name string) bool) []string {
	var removed []string
	for item := range c.records.IterBuffered() {
		if !online(item.Key) {
			c.records.Remove(item.Key)
			removed = append(removed, item.Key)
		}
	}
	return removed
}
