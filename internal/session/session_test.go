package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consertja/consertja/internal/models"
)

func openStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStoreEmpty(t *testing.T) {
	store := openStore(t)

	sess, err := store.Load()
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestLoginPersistsAndLogoutClears(t *testing.T) {
	store := openStore(t)

	ctx, err := Restore(store)
	require.NoError(t, err)

	require.NoError(t, ctx.Login(models.Session{UserID: "c1", Role: models.RoleClient}))

	restored, err := Restore(store)
	require.NoError(t, err)
	assert.Equal(t, models.Session{UserID: "c1", Role: models.RoleClient}, restored.Current())

	require.NoError(t, restored.Logout())
	assert.False(t, restored.Current().Authenticated())

	sess, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.Session{}, sess)
}

func TestCacheRolePersists(t *testing.T) {
	store := openStore(t)
	ctx := New(models.Session{UserID: "p1"}, store)
	require.NoError(t, ctx.Login(models.Session{UserID: "p1"}))

	sess, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.Role(""), sess.Role)

	require.NoError(t, ctx.CacheRole(models.RoleProvider))
	assert.Equal(t, models.RoleProvider, ctx.Current().Role)

	sess, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.RoleProvider, sess.Role)
}

func TestContextWithoutStore(t *testing.T) {
	ctx := New(models.Session{UserID: "c1"}, nil)
	require.NoError(t, ctx.CacheRole(models.RoleClient))
	assert.Equal(t, models.RoleClient, ctx.Current().Role)
	require.NoError(t, ctx.Logout())
	assert.False(t, ctx.Current().Authenticated())
}
