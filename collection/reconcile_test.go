package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/model"
)

func TestReconcileCleanCollection(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)
	seedCatDog(t, c)

	report, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Dirty())
}

func TestReconcileRepairsMissingIndexEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)
	seedCatDog(t, c)

	// Simulate a lost index application: remove A from both indexes
	// behind the collection's back.
	e, ok := c.docs.Get(model.StringID("A"))
	require.True(t, ok)

	require.True(t, c.graph.Delete(e.Handle))
	require.True(t, c.lex.Delete(e.Handle))

	resp, err := c.Search(ctx, SearchRequest{Vector: []float32{1, 0}, K: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 2)

	report, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Dirty())
	assert.Equal(t, 1, report.VectorAdded)
	assert.Equal(t, 1, report.LexicalAdded)

	resp, err = c.Search(ctx, SearchRequest{Vector: []float32{1, 0}, K: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 3)

	resp, err = c.Search(ctx, SearchRequest{Text: "cat dog", K: 3})
	require.NoError(t, err)
	assert.Contains(t, hitIDs(resp.Hits), "A")
}

func TestReconcileRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)
	seedCatDog(t, c)

	// Plant index entries that have no backing document.
	require.NoError(t, c.graph.Insert(ctx, 900, []float32{0.5, 0.5}))
	c.lex.Add(901, "ghost entry")

	report, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.VectorRemoved)
	assert.Equal(t, 1, report.LexicalRemoved)

	// The orphan is tombstoned and never surfaces again.
	resp, err := c.Search(ctx, SearchRequest{Vector: []float32{0.5, 0.5}, K: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 3)

	resp, err = c.Search(ctx, SearchRequest{Text: "ghost", K: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}
