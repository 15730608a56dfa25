// Package testutil provides deterministic random data generators and
// exact-search ground truth for index and engine tests.
package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/fusego/distance"
)

// SearchResult represents an exact search result for recall checks.
type SearchResult struct {
	Ref  uint32
	Dist float32
}

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors on the
// hypersphere, using Gaussian coordinates for uniform direction.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		fillUnit(r.rand, vec)
		vectors[i] = vec
	}

	return vectors
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vec := make([]float32, dimensions)
	fillUnit(r.rand, vec)

	return vec
}

func fillUnit(rng *rand.Rand, vec []float32) {
	var norm float64
	for j := range vec {
		v := rng.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}

	if norm == 0 {
		norm = 1
	}

	inv := float32(1 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= inv
	}
}

// Words returns n pseudo-random words drawn from a small fixed
// vocabulary, for lexical index tests.
func (r *RNG) Words(n int) []string {
	vocab := []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliet", "kilo", "lima",
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, n)
	for i := range out {
		out[i] = vocab[r.rand.Intn(len(vocab))]
	}

	return out
}

// BruteForceSearch performs an exact scan for ground truth, ordered by
// the metric's internal distance with ref as tie-break.
func BruteForceSearch(vectors map[uint32][]float32, query []float32, k int, metric distance.Metric) []SearchResult {
	dist, err := metric.Provider()
	if err != nil {
		panic(err)
	}

	q := query
	if metric.Normalizes() {
		if nq, ok := distance.NormalizeL2Copy(query); ok {
			q = nq
		}
	}

	results := make([]SearchResult, 0, len(vectors))

	for ref, v := range vectors {
		cand := v
		if metric.Normalizes() {
			if nv, ok := distance.NormalizeL2Copy(v); ok {
				cand = nv
			}
		}
		results = append(results, SearchResult{Ref: ref, Dist: dist(q, cand)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Dist != results[j].Dist {
			return results[i].Dist < results[j].Dist
		}
		return results[i].Ref < results[j].Ref
	})

	if len(results) > k {
		results = results[:k]
	}

	return results
}

// ComputeRecall computes recall@k of approximate results against
// ground truth.
func ComputeRecall(groundTruth []SearchResult, approximate []uint32) float64 {
	if len(groundTruth) == 0 {
		return 1.0
	}

	truthSet := make(map[uint32]struct{}, len(groundTruth))
	for _, gt := range groundTruth {
		truthSet[gt.Ref] = struct{}{}
	}

	hits := 0
	for _, ref := range approximate {
		if _, ok := truthSet[ref]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(groundTruth))
}
