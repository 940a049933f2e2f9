// Package playerdata persists the snapshot taken when an unauthenticated
// player is moved to spawn, so the original state survives a crash or a
// disable that happens before the player logs in.
package playerdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
)

// ErrNotFound is returned by ReadData when no snapshot exists.
var ErrNotFound = errors.New("no player data snapshot")

const keyPrefix = "playerdata:"

// Snapshot is the stored form of a player's state.
type Snapshot struct {
	Name    string           `json:"name"`
	State   host.EntityState `json:"state"`
	SavedAt time.Time        `json:"saved_at"`
}

// Options configures the store.
type Options struct {
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir string

	InMemory bool

	// IndexCacheSize bounds the in-memory index cache in bytes.
	IndexCacheSize int64
}

// Store is a badger-backed snapshot store.
type Store struct {
	db        *badgerdb.DB
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	var bopts badgerdb.Options
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("player data directory is required")
		}
		bopts = badgerdb.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithLogger(nil)
	if opts.IndexCacheSize > 0 {
		bopts = bopts.WithIndexCacheSize(opts.IndexCacheSize)
	}

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open player data store: %w", err)
	}
	return &Store{db: db}, nil
}

func key(name string) []byte {
	return []byte(keyPrefix + models.NormalizeName(name))
}

// HasData reports whether a snapshot exists for name.
func (s *Store) HasData(name string) (bool, error) {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key(name))
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up player data: %w", err)
	}
	return true, nil
}

// SaveData stores e's current state.
func (s *Store) SaveData(e host.Entity) error {
	data, err := json.Marshal(Snapshot{Name: e.Name(), State: e.State(), SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to encode player data: %w", err)
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(e.Name()), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save player data: %w", err)
	}
	logger.Debug("Player data saved", logger.KeyIdentity, models.NormalizeName(e.Name()))
	return nil
}

// ReadData returns the snapshot for name.
func (s *Store) ReadData(name string) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read player data: %w", err)
	}
	return &snap, nil
}

// RemoveData deletes the snapshot for name. Removing a missing snapshot is
// not an error.
func (s *Store) RemoveData(name string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key(name))
	})
	if err != nil {
		return fmt.Errorf("failed to remove player data: %w", err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Healthcheck verifies the store can serve a read transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close flushes and closes the store. Later calls return the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
