package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/blobstore"
	"github.com/hupe1980/fusego/codec"
	"github.com/hupe1980/fusego/model"
)

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()

	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(string(compression), func(t *testing.T) {
			c := newTestCollection(t)
			seedCatDog(t, c)

			store := blobstore.NewMemoryStore()

			require.NoError(t, c.Snapshot(ctx, store, "articles/snap-1", func(o *SnapshotOptions) {
				o.Compression = compression
			}))

			restored, err := Restore(ctx, store, "articles/snap-1")
			require.NoError(t, err)
			defer restored.Close()

			assert.Equal(t, 3, restored.Len())
			assert.Equal(t, c.Schema(), restored.Schema())

			doc, err := restored.Get(ctx, model.StringID("A"))
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 0}, doc.Vector)
			assert.Equal(t, "cat dog", doc.Payload["title"])

			// Indexes are rebuilt: hybrid search works on the restored
			// collection.
			resp, err := restored.Search(ctx, SearchRequest{Vector: []float32{1, 0}, Text: "cat", K: 2})
			require.NoError(t, err)
			require.Len(t, resp.Hits, 2)
			assert.NotContains(t, hitIDs(resp.Hits), "B")
		})
	}
}

func TestSnapshotSelfDescribingCodec(t *testing.T) {
	ctx := context.Background()

	c := newTestCollection(t)
	seedCatDog(t, c)

	store := blobstore.NewMemoryStore()

	// Write with the non-default codec; Restore must pick it up from
	// the header without being told.
	require.NoError(t, c.Snapshot(ctx, store, "snap", func(o *SnapshotOptions) {
		o.Codec = codec.JSON{}
		o.Compression = CompressionNone
	}))

	restored, err := Restore(ctx, store, "snap")
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, 3, restored.Len())
}

func TestRestoreErrors(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := Restore(ctx, store, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "garbage", []byte("not a snapshot")))

	_, err = Restore(ctx, store, "garbage")
	assert.ErrorIs(t, err, ErrInternal)

	// Valid magic, truncated rest.
	require.NoError(t, store.Put(ctx, "truncated", snapshotMagic))

	_, err = Restore(ctx, store, "truncated")
	assert.ErrorIs(t, err, ErrInternal)
}
