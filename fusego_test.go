package fusego

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/blobstore"
	"github.com/hupe1980/fusego/collection"
	"github.com/hupe1980/fusego/distance"
	"github.com/hupe1980/fusego/model"
)

func testSchema(name string) collection.Schema {
	return collection.Schema{
		Name:       name,
		Dimension:  3,
		Metric:     distance.MetricEuclidean,
		TextFields: []string{"title"},
	}
}

func TestCreateCollection(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	t.Run("duplicate name", func(t *testing.T) {
		err := db.CreateCollection(ctx, testSchema("articles"))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("invalid schema", func(t *testing.T) {
		err := db.CreateCollection(ctx, collection.Schema{Name: "bad", Dimension: 0})

		var schemaErr *ErrInvalidSchema
		assert.ErrorAs(t, err, &schemaErr)
	})

	t.Run("listed", func(t *testing.T) {
		assert.Equal(t, []string{"articles"}, db.Collections())
	})
}

func TestDropCollection(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))
	require.NoError(t, db.DropCollection(ctx, "articles"))

	assert.Empty(t, db.Collections())

	err := db.DropCollection(ctx, "articles")
	assert.ErrorIs(t, err, ErrNotFound)

	// The name is free again.
	assert.NoError(t, db.CreateCollection(ctx, testSchema("articles")))
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	doc := model.Document{
		ID:      model.NumericID(1),
		Vector:  []float32{1, 0, 0},
		Payload: map[string]any{"title": "gopher burrows"},
	}

	require.NoError(t, db.Upsert(ctx, "articles", doc))

	got, err := db.Get(ctx, "articles", model.NumericID(1))
	require.NoError(t, err)
	assert.Equal(t, doc.Vector, got.Vector)
	assert.Equal(t, "gopher burrows", got.Payload["title"])

	require.NoError(t, db.Delete(ctx, "articles", model.NumericID(1)))

	_, err = db.Get(ctx, "articles", model.NumericID(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	t.Run("unknown collection", func(t *testing.T) {
		err := db.Upsert(ctx, "nope", model.Document{ID: model.NumericID(1), Vector: []float32{1, 0, 0}})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		err := db.Upsert(ctx, "articles", model.Document{ID: model.NumericID(1), Vector: []float32{1, 0}})

		var mismatch *ErrSchemaMismatch
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("missing document", func(t *testing.T) {
		err := db.Delete(ctx, "articles", model.NumericID(404))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCompactThroughFacade(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	for i := range 10 {
		require.NoError(t, db.Upsert(ctx, "articles", model.Document{
			ID:     model.NumericID(uint64(i)),
			Vector: []float32{float32(i), 1, 0},
		}))
	}

	for i := 0; i < 10; i += 2 {
		require.NoError(t, db.Delete(ctx, "articles", model.NumericID(uint64(i))))
	}

	removed, err := db.Compact(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
}

func TestReconcileThroughFacade(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))
	require.NoError(t, db.Upsert(ctx, "articles", model.Document{
		ID:     model.NumericID(1),
		Vector: []float32{1, 0, 0},
	}))

	report, err := db.Reconcile(ctx, "articles")
	require.NoError(t, err)
	assert.False(t, report.Dirty())
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()

	db := New(func(o *Options) {
		o.BlobStore = store
	})
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))
	require.NoError(t, db.Upsert(ctx, "articles", model.Document{
		ID:      model.NumericID(1),
		Vector:  []float32{1, 0, 0},
		Payload: map[string]any{"title": "gopher burrows"},
	}))

	require.NoError(t, db.Snapshot(ctx, "articles", "articles.snap"))
	require.NoError(t, db.DropCollection(ctx, "articles"))

	require.NoError(t, db.RestoreCollection(ctx, "articles.snap"))

	got, err := db.Get(ctx, "articles", model.NumericID(1))
	require.NoError(t, err)
	assert.Equal(t, "gopher burrows", got.Payload["title"])

	t.Run("restore into taken name", func(t *testing.T) {
		err := db.RestoreCollection(ctx, "articles.snap")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("missing blob", func(t *testing.T) {
		err := db.RestoreCollection(ctx, "nope.snap")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSnapshotWithoutBlobStore(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	err := db.Snapshot(ctx, "articles", "articles.snap")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	db := New()
	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Collection("articles")
	assert.ErrorIs(t, err, ErrClosed)

	err = db.CreateCollection(ctx, testSchema("fresh"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCollectionDefaults(t *testing.T) {
	ctx := context.Background()

	var applied bool

	db := New(func(o *Options) {
		o.CollectionDefaults = []func(o *collection.Options){
			func(o *collection.Options) {
				applied = true
				o.EFSearch = 128
			},
		}
	})
	defer db.Close()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))
	assert.True(t, applied)
}
