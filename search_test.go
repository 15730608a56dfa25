package fusego

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/metadata"
	"github.com/hupe1980/fusego/model"
)

func seedArticles(t *testing.T, db *DB) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, db.CreateCollection(ctx, testSchema("articles")))

	docs := []model.Document{
		{ID: model.NumericID(1), Vector: []float32{1, 0, 0}, Payload: map[string]any{"title": "hnsw graph search", "lang": "en"}},
		{ID: model.NumericID(2), Vector: []float32{0, 1, 0}, Payload: map[string]any{"title": "inverted index basics", "lang": "en"}},
		{ID: model.NumericID(3), Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"title": "graph traversal", "lang": "de"}},
	}

	for _, doc := range docs {
		require.NoError(t, db.Upsert(ctx, "articles", doc))
	}
}

func TestSearchBuilderVectorOnly(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	resp, err := db.Search("articles").
		Vector([]float32{1, 0, 0}).
		KNN(2).
		Execute(ctx)
	require.NoError(t, err)

	require.Len(t, resp.Hits, 2)
	assert.Equal(t, model.NumericID(1), resp.Hits[0].ID)
	assert.Equal(t, model.NumericID(3), resp.Hits[1].ID)
	assert.Nil(t, resp.Hits[0].Vector)
}

func TestSearchBuilderTextOnly(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	resp, err := db.Search("articles").
		Text("inverted index").
		KNN(3).
		Execute(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, model.NumericID(2), resp.Hits[0].ID)
}

func TestSearchBuilderHybrid(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	resp, err := db.Search("articles").
		Vector([]float32{1, 0, 0}).
		Text("graph").
		KNN(3).
		Execute(ctx)
	require.NoError(t, err)

	// Documents 1 and 3 rank in both sources and fuse ahead of
	// document 2, which only the vector ranking contains.
	require.Len(t, resp.Hits, 3)

	for _, hit := range resp.Hits[:2] {
		assert.Contains(t, []model.DocumentID{model.NumericID(1), model.NumericID(3)}, hit.ID)
		assert.NotNil(t, hit.VectorScore)
		assert.NotNil(t, hit.LexicalScore)
	}

	assert.Equal(t, model.NumericID(2), resp.Hits[2].ID)
	assert.Nil(t, resp.Hits[2].LexicalScore)
}

func TestSearchBuilderFilter(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	resp, err := db.Search("articles").
		Vector([]float32{1, 0, 0}).
		Filter(metadata.NewFilterSet(metadata.Equal("lang", "de"))).
		KNN(3).
		Execute(ctx)
	require.NoError(t, err)

	require.Len(t, resp.Hits, 1)
	assert.Equal(t, model.NumericID(3), resp.Hits[0].ID)
}

func TestSearchBuilderIncludeVectors(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	resp, err := db.Search("articles").
		Vector([]float32{0, 1, 0}).
		KNN(1).
		IncludeVectors().
		Execute(ctx)
	require.NoError(t, err)

	require.Len(t, resp.Hits, 1)
	assert.Equal(t, []float32{0, 1, 0}, resp.Hits[0].Vector)
}

func TestSearchBuilderErrors(t *testing.T) {
	ctx := context.Background()

	db := New()
	defer db.Close()

	seedArticles(t, db)

	t.Run("unknown collection", func(t *testing.T) {
		_, err := db.Search("nope").Vector([]float32{1, 0, 0}).Execute(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := db.Search("articles").Execute(ctx)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("bad k", func(t *testing.T) {
		_, err := db.Search("articles").Vector([]float32{1, 0, 0}).KNN(0).Execute(ctx)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := db.Search("articles").Vector([]float32{1, 0}).Execute(ctx)

		var mismatch *ErrSchemaMismatch
		assert.ErrorAs(t, err, &mismatch)
	})
}
