package collection

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fusego/docstore"
	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/lexical"
	"github.com/hupe1980/fusego/metadata"
	"github.com/hupe1980/fusego/model"
)

// DefaultRRFK is the default rank smoothing constant of Reciprocal
// Rank Fusion: fused score = sum over sources of 1/(rrfK + rank).
const DefaultRRFK = 60

// SearchRequest describes one query. At least one of Vector and Text
// must be set; setting both selects hybrid fusion.
type SearchRequest struct {
	// Vector is the query embedding for vector search.
	Vector []float32

	// Text is the lexical query.
	Text string

	// K is the number of results to return.
	K int

	// EFSearch overrides the candidate list size of the vector index
	// traversal. <= 0 uses the collection default.
	EFSearch int

	// Filter restricts results to documents whose payload matches.
	Filter *metadata.FilterSet

	// IncludeVectors returns the stored vectors with the hits.
	IncludeVectors bool

	// RRFK overrides the RRF smoothing constant. <= 0 uses DefaultRRFK.
	RRFK int
}

type fusedHit struct {
	entry    *docstore.Entry
	score    float32
	vecScore *float32
	lexScore *float32
}

// Search runs a vector, lexical or hybrid query.
//
// Hybrid queries fan out to both indexes, fetch a candidate pool of
// max(50, 2k) from each, and fuse with RRF using 1-based ranks and
// document id as tie-break. If exactly one source of a hybrid query
// fails, the query degrades to the surviving source and a warning is
// attached to the response.
func (c *Collection) Search(ctx context.Context, req SearchRequest) (*model.SearchResponse, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	hasVector := len(req.Vector) > 0
	hasText := strings.TrimSpace(req.Text) != ""

	if req.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidQuery)
	}

	if !hasVector && !hasText {
		return nil, fmt.Errorf("%w: query needs a vector, a text, or both", ErrInvalidQuery)
	}

	if hasVector && len(req.Vector) != c.schema.Dimension {
		return nil, &ErrSchemaMismatch{
			Name:   c.schema.Name,
			Reason: fmt.Sprintf("query vector dimension mismatch: expected %d, got %d", c.schema.Dimension, len(req.Vector)),
		}
	}

	pool := max(50, 2*req.K)
	accept := c.acceptFor(req.Filter)

	var (
		vecHits []hnsw.Candidate
		lexHits []lexical.Match
		vecErr  error
		lexErr  error
	)

	var g errgroup.Group

	if hasVector {
		g.Go(func() error {
			vecHits, vecErr = c.graph.Search(ctx, req.Vector, pool, req.EFSearch, accept)
			return nil
		})
	}

	if hasText {
		g.Go(func() error {
			lexHits, lexErr = c.lex.Search(ctx, req.Text, pool, accept)
			return nil
		})
	}

	_ = g.Wait()

	var warnings []string

	switch {
	case hasVector && hasText && vecErr != nil && lexErr != nil:
		return nil, fmt.Errorf("%w: vector search: %w", ErrInternal, vecErr)
	case hasVector && hasText && vecErr != nil:
		warnings = append(warnings, fmt.Sprintf("vector search failed, results are lexical-only: %v", vecErr))
		hasVector, vecHits = false, nil
	case hasVector && hasText && lexErr != nil:
		warnings = append(warnings, fmt.Sprintf("lexical search failed, results are vector-only: %v", lexErr))
		hasText, lexHits = false, nil
	case hasVector && vecErr != nil:
		return nil, fmt.Errorf("%w: vector search: %w", ErrInternal, vecErr)
	case hasText && lexErr != nil:
		return nil, fmt.Errorf("%w: lexical search: %w", ErrInternal, lexErr)
	}

	var hits []model.Hit

	switch {
	case hasVector && hasText:
		hits = c.fuse(vecHits, lexHits, req)
	case hasVector:
		hits = c.vectorHits(vecHits, req)
	default:
		hits = c.lexicalHits(lexHits, req)
	}

	c.logger.Debug("search finished",
		"k", req.K,
		"hybrid", hasVector && hasText,
		"hits", len(hits),
		"warnings", len(warnings),
	)

	return &model.SearchResponse{Hits: hits, Warnings: warnings}, nil
}

// fuse combines both rankings with Reciprocal Rank Fusion. Both input
// slices are already ordered best-first; ranks are 1-based.
func (c *Collection) fuse(vecHits []hnsw.Candidate, lexHits []lexical.Match, req SearchRequest) []model.Hit {
	rrfK := req.RRFK
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	acc := make(map[model.DocumentID]*fusedHit, len(vecHits)+len(lexHits))

	get := func(handle uint32) *fusedHit {
		e, ok := c.resolve(handle)
		if !ok {
			return nil
		}

		h, ok := acc[e.ID]
		if !ok {
			h = &fusedHit{entry: e}
			acc[e.ID] = h
		}

		return h
	}

	for rank, cand := range vecHits {
		h := get(cand.Ref)
		if h == nil {
			continue
		}

		h.score += 1 / float32(rrfK+rank+1)

		native := c.schema.Metric.NativeScore(cand.Dist)
		h.vecScore = &native
	}

	for rank, m := range lexHits {
		h := get(m.Ref)
		if h == nil {
			continue
		}

		h.score += 1 / float32(rrfK+rank+1)

		score := m.Score
		h.lexScore = &score
	}

	fused := make([]*fusedHit, 0, len(acc))
	for _, h := range acc {
		fused = append(fused, h)
	}

	slices.SortFunc(fused, func(a, b *fusedHit) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		if a.entry.ID.Less(b.entry.ID) {
			return -1
		}
		if b.entry.ID.Less(a.entry.ID) {
			return 1
		}
		return 0
	})

	if len(fused) > req.K {
		fused = fused[:req.K]
	}

	hits := make([]model.Hit, len(fused))
	for i, h := range fused {
		hits[i] = c.hit(h.entry, h.score, h.vecScore, h.lexScore, req.IncludeVectors)
	}

	return hits
}

type rankedEntry struct {
	entry *docstore.Entry
	dist  float32
}

// vectorHits maps a vector-only ranking straight to hits with native
// scores, bypassing fusion. Equal distances are re-sorted by document
// id so ties never depend on handle assignment order.
func (c *Collection) vectorHits(cands []hnsw.Candidate, req SearchRequest) []model.Hit {
	ranked := make([]rankedEntry, 0, len(cands))

	for _, cand := range cands {
		e, ok := c.resolve(cand.Ref)
		if !ok {
			continue
		}

		ranked = append(ranked, rankedEntry{entry: e, dist: cand.Dist})
	}

	sortRanked(ranked, func(a, b rankedEntry) int {
		return cmp.Compare(a.dist, b.dist)
	})

	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}

	hits := make([]model.Hit, len(ranked))
	for i, r := range ranked {
		native := c.schema.Metric.NativeScore(r.dist)
		hits[i] = c.hit(r.entry, native, &native, nil, req.IncludeVectors)
	}

	return hits
}

// lexicalHits maps a lexical-only ranking straight to hits with BM25
// scores, bypassing fusion. Equal scores are re-sorted by document id.
func (c *Collection) lexicalHits(matches []lexical.Match, req SearchRequest) []model.Hit {
	ranked := make([]rankedEntry, 0, len(matches))

	for _, m := range matches {
		e, ok := c.resolve(m.Ref)
		if !ok {
			continue
		}

		ranked = append(ranked, rankedEntry{entry: e, dist: m.Score})
	}

	sortRanked(ranked, func(a, b rankedEntry) int {
		return cmp.Compare(b.dist, a.dist)
	})

	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}

	hits := make([]model.Hit, len(ranked))
	for i, r := range ranked {
		score := r.dist
		hits[i] = c.hit(r.entry, score, nil, &score, req.IncludeVectors)
	}

	return hits
}

// sortRanked orders entries by the primary comparison, breaking ties by
// document id.
func sortRanked(ranked []rankedEntry, primary func(a, b rankedEntry) int) {
	slices.SortFunc(ranked, func(a, b rankedEntry) int {
		if n := primary(a, b); n != 0 {
			return n
		}
		if a.entry.ID.Less(b.entry.ID) {
			return -1
		}
		if b.entry.ID.Less(a.entry.ID) {
			return 1
		}
		return 0
	})
}

func (c *Collection) hit(e *docstore.Entry, score float32, vecScore, lexScore *float32, includeVector bool) model.Hit {
	h := model.Hit{
		ID:           e.ID,
		Score:        score,
		VectorScore:  vecScore,
		LexicalScore: lexScore,
		Payload:      metadata.ClonePayload(e.Payload),
	}

	if includeVector {
		h.Vector = slices.Clone(e.Vector)
	}

	return h
}
