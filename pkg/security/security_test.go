package security

import (
	"context"
	"testing"

	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher(t *testing.T) {
	h := NewHasher(4, 5)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.True(t, IsHashed(hash))
	assert.True(t, h.Verify("hunter22", hash))
	assert.False(t, h.Verify("hunter23", hash))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, NewHasher(6, 5).NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("plain"))
}

func TestValidate(t *testing.T) {
	h := NewHasher(4, 5)

	assert.ErrorIs(t, h.Validate("steve", "abc"), ErrPasswordTooShort)
	assert.ErrorIs(t, h.Validate("steve", "steve"), ErrPasswordSameAsName)
	long := make([]byte, MaxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, h.Validate("steve", string(long)), ErrPasswordTooLong)
	assert.NoError(t, h.Validate("steve", "correct horse"))
}

func newStore(t *testing.T) *datasource.GORMStore {
	t.Helper()
	cfg := &datasource.Config{Type: datasource.DatabaseTypeSQLite, SQLite: datasource.SQLiteConfig{Path: ":memory:"}}
	store, err := datasource.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigratePlaintextPasswords(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	h := NewHasher(4, 1)

	already, err := h.Hash("secret2")
	require.NoError(t, err)
	require.NoError(t, store.SaveAuth(ctx, &models.PlayerAuth{Username: "alex", RealName: "Alex", Password: "secret1"}))
	require.NoError(t, store.SaveAuth(ctx, &models.PlayerAuth{Username: "bob", RealName: "Bob", Password: already}))

	n, err := MigratePlaintextPasswords(ctx, store, h, HashBcrypt)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = MigratePlaintextPasswords(ctx, store, h, HashPlaintext)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alex, err := store.GetAuth(ctx, "alex")
	require.NoError(t, err)
	assert.True(t, h.Verify("secret1", alex.Password))

	bob, err := store.GetAuth(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, already, bob.Password)
}
