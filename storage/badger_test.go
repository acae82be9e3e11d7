package storage

import (
	"testing"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_PutGetDelete(t *testing.T) {
	store := newTestBadger(t)

	_, err := store.Get("head")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, store.Put("head", []byte("abc")))
	value, err := store.Get("head")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	require.NoError(t, store.Put("head", []byte("def")))
	value, err = store.Get("head")
	require.NoError(t, err)
	assert.Equal(t, []byte("def"), value)

	require.NoError(t, store.Delete("head"))
	_, err = store.Get("head")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, store.Delete("missing"))
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(BadgerConfig{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, store.Put("device/uuid", []byte("1234")))
	require.NoError(t, store.Close())

	store, err = NewBadgerStore(BadgerConfig{DBPath: dir})
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get("device/uuid")
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), value)
}
