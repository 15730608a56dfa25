package hnsw

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusego/distance"
	"github.com/hupe1980/fusego/testutil"
)

func TestNew(t *testing.T) {
	g, err := New(16, func(o *Options) {
		o.M = 8
		o.EFConstruction = 200
	})
	require.NoError(t, err)

	assert.Equal(t, 8, g.opts.M)
	assert.Equal(t, 8, g.maxConns(1))
	assert.Equal(t, 16, g.maxConns(0))
	assert.Equal(t, 16, g.Dimension())
	assert.Equal(t, 0, g.Len())

	_, err = New(0)
	assert.Error(t, err)
}

func TestInsertSearchRecall(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		size      int
		dim       int
		m         int
		ef        int
		heuristic bool
		k         int
		recall    float64
	}{
		{size: 1000, dim: 16, m: 8, ef: 200, heuristic: true, k: 10, recall: 0.95},
		{size: 1000, dim: 16, m: 8, ef: 200, heuristic: false, k: 10, recall: 0.90},
		{size: 2000, dim: 32, m: 16, ef: 128, heuristic: true, k: 10, recall: 0.95},
	}

	for _, tc := range tests {
		name := fmt.Sprintf("size=%d,dim=%d,m=%d,heuristic=%t", tc.size, tc.dim, tc.m, tc.heuristic)

		t.Run(name, func(t *testing.T) {
			rng := testutil.NewRNG(4711)
			vecs := rng.UniformVectors(tc.size, tc.dim)

			g, err := New(tc.dim, func(o *Options) {
				o.M = tc.m
				o.EFConstruction = tc.ef
				o.Metric = distance.MetricEuclidean
				o.Heuristic = tc.heuristic
				o.RandomSeed = 42
			})
			require.NoError(t, err)

			byRef := make(map[uint32][]float32, tc.size)
			for i, v := range vecs {
				require.NoError(t, g.Insert(ctx, uint32(i), v))
				byRef[uint32(i)] = v
			}

			assert.Equal(t, tc.size, g.Len())

			const queries = 50

			var total float64

			for q := 0; q < queries; q++ {
				query := vecs[rng.Intn(tc.size)]

				truth := testutil.BruteForceSearch(byRef, query, tc.k, distance.MetricEuclidean)

				got, err := g.Search(ctx, query, tc.k, tc.ef, nil)
				require.NoError(t, err)

				refs := make([]uint32, len(got))
				for i, c := range got {
					refs[i] = c.Ref
				}

				total += testutil.ComputeRecall(truth, refs)
			}

			avg := total / queries
			assert.GreaterOrEqualf(t, avg, tc.recall, "recall@%d too low: %f", tc.k, avg)
		})
	}
}

func TestDotOrdering(t *testing.T) {
	ctx := context.Background()

	g, err := New(3, func(o *Options) {
		o.Metric = distance.MetricDot
		o.M = 8
	})
	require.NoError(t, err)

	require.NoError(t, g.Insert(ctx, 0, []float32{1, 0, 0}))
	require.NoError(t, g.Insert(ctx, 1, []float32{2, 0, 0}))
	require.NoError(t, g.Insert(ctx, 2, []float32{-1, 0, 0}))

	query := []float32{1, 0, 0}

	brute, err := g.BruteSearch(ctx, query, 3, nil)
	require.NoError(t, err)
	require.Len(t, brute, 3)

	assert.Equal(t, uint32(1), brute[0].Ref)
	assert.Equal(t, uint32(0), brute[1].Ref)
	assert.Equal(t, uint32(2), brute[2].Ref)

	assert.InDelta(t, float32(-2), brute[0].Dist, 1e-6)
	assert.InDelta(t, float32(-1), brute[1].Dist, 1e-6)
	assert.InDelta(t, float32(1), brute[2].Dist, 1e-6)

	knn, err := g.Search(ctx, query, 3, 100, nil)
	require.NoError(t, err)
	require.Len(t, knn, 3)

	assert.Equal(t, uint32(1), knn[0].Ref)
	assert.Equal(t, uint32(0), knn[1].Ref)
	assert.Equal(t, uint32(2), knn[2].Ref)
}

func TestCosineNormalization(t *testing.T) {
	ctx := context.Background()

	g, err := New(2)
	require.NoError(t, err)

	// Same direction, different magnitude: identical under cosine.
	require.NoError(t, g.Insert(ctx, 0, []float32{3, 0}))
	require.NoError(t, g.Insert(ctx, 1, []float32{0, 5}))

	got, err := g.Search(ctx, []float32{10, 0}, 1, 0, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, uint32(0), got[0].Ref)
	assert.InDelta(t, float32(0), got[0].Dist, 1e-6)

	stored, ok := g.VectorByRef(0)
	require.True(t, ok)
	assert.InDelta(t, float32(1), stored[0], 1e-6)
}

func TestInsertErrors(t *testing.T) {
	ctx := context.Background()

	g, err := New(2)
	require.NoError(t, err)

	assert.ErrorIs(t, g.Insert(ctx, 0, nil), ErrEmptyVector)
	assert.ErrorIs(t, g.Insert(ctx, 0, []float32{0, 0}), ErrZeroVector)

	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, g.Insert(ctx, 0, []float32{1, 2, 3}), &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)

	require.NoError(t, g.Insert(ctx, 0, []float32{1, 0}))

	var inUse *ErrRefInUse
	assert.ErrorAs(t, g.Insert(ctx, 0, []float32{0, 1}), &inUse)
	assert.Equal(t, uint32(0), inUse.Ref)
}

func TestSearchErrors(t *testing.T) {
	ctx := context.Background()

	g, err := New(2)
	require.NoError(t, err)

	_, err = g.Search(ctx, []float32{1, 0}, 0, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = g.Search(ctx, []float32{1, 2, 3}, 1, 0, nil)
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)

	// Empty graph returns no hits, no error.
	got, err := g.Search(ctx, []float32{1, 0}, 3, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteHidesFromResults(t *testing.T) {
	ctx := context.Background()

	g, err := New(2, func(o *Options) {
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)

	require.NoError(t, g.Insert(ctx, 0, []float32{0, 0}))
	require.NoError(t, g.Insert(ctx, 1, []float32{1, 0}))
	require.NoError(t, g.Insert(ctx, 2, []float32{2, 0}))

	require.True(t, g.Delete(1))
	assert.False(t, g.Delete(1))
	assert.False(t, g.Delete(99))

	assert.Equal(t, 2, g.Len())
	assert.False(t, g.Contains(1))

	_, ok := g.VectorByRef(1)
	assert.False(t, ok)

	got, err := g.Search(ctx, []float32{1, 0}, 3, 100, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, c := range got {
		assert.NotEqual(t, uint32(1), c.Ref)
	}

	brute, err := g.BruteSearch(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, brute, 2)
}

func TestSearchAcceptFilter(t *testing.T) {
	ctx := context.Background()

	g, err := New(2, func(o *Options) {
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)

	for i := range uint32(10) {
		require.NoError(t, g.Insert(ctx, i, []float32{float32(i), 0}))
	}

	even := func(ref uint32) bool { return ref%2 == 0 }

	got, err := g.Search(ctx, []float32{0, 0}, 5, 100, even)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for _, c := range got {
		assert.Zero(t, c.Ref%2)
	}
}

func TestRange(t *testing.T) {
	ctx := context.Background()

	g, err := New(2, func(o *Options) {
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)

	require.NoError(t, g.Insert(ctx, 7, []float32{1, 2}))
	require.NoError(t, g.Insert(ctx, 8, []float32{3, 4}))
	require.True(t, g.Delete(8))

	seen := map[uint32][]float32{}
	g.Range(func(ref uint32, vector []float32) bool {
		seen[ref] = vector
		return true
	})

	require.Len(t, seen, 1)
	assert.Equal(t, []float32{1, 2}, seen[7])
}
