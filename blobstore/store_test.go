package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	ctx := context.Background()

	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  local,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "snap/a", []byte("alpha")))
			require.NoError(t, store.Put(ctx, "snap/b", []byte("bravo")))
			require.NoError(t, store.Put(ctx, "other", []byte("x")))

			data, err := store.Get(ctx, "snap/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("alpha"), data)

			// Overwrite replaces content.
			require.NoError(t, store.Put(ctx, "snap/a", []byte("alpha2")))
			data, err = store.Get(ctx, "snap/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("alpha2"), data)

			names, err := store.List(ctx, "snap/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snap/a", "snap/b"}, names)

			require.NoError(t, store.Delete(ctx, "snap/a"))
			require.NoError(t, store.Delete(ctx, "snap/a"))

			_, err = store.Get(ctx, "snap/a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	ctx := context.Background()

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(ctx, "../escape", []byte("x")))
	assert.Error(t, store.Put(ctx, "", []byte("x")))
	_, err = store.Get(ctx, "../escape")
	assert.Error(t, err)
}
