package fusego

import (
	"context"
	"time"

	"github.com/hupe1980/fusego/collection"
	"github.com/hupe1980/fusego/metadata"
	"github.com/hupe1980/fusego/model"
)

// Search creates a fluent search builder against the named collection.
//
// Example:
//
//	resp, err := db.Search("articles").
//	    Vector(query).
//	    Text("hybrid search").
//	    KNN(10).
//	    Execute(ctx)
func (db *DB) Search(collectionName string) *SearchBuilder {
	return &SearchBuilder{
		db:             db,
		collectionName: collectionName,
		req:            collection.SearchRequest{K: 10},
	}
}

// SearchBuilder is a fluent builder for search queries. Supplying both
// a vector and a text selects hybrid RRF fusion; supplying one runs
// that source alone.
type SearchBuilder struct {
	db             *DB
	collectionName string
	req            collection.SearchRequest
}

// Vector sets the query embedding.
func (sb *SearchBuilder) Vector(query []float32) *SearchBuilder {
	sb.req.Vector = query
	return sb
}

// Text sets the lexical query.
func (sb *SearchBuilder) Text(query string) *SearchBuilder {
	sb.req.Text = query
	return sb
}

// KNN sets the number of results to return. Defaults to 10.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.req.K = k
	return sb
}

// EF overrides the vector index's candidate list size. Higher values
// improve recall but slow down search.
func (sb *SearchBuilder) EF(ef int) *SearchBuilder {
	sb.req.EFSearch = ef
	return sb
}

// Filter restricts results to documents whose payload matches.
func (sb *SearchBuilder) Filter(fs *metadata.FilterSet) *SearchBuilder {
	sb.req.Filter = fs
	return sb
}

// IncludeVectors returns the stored vectors with the hits.
func (sb *SearchBuilder) IncludeVectors() *SearchBuilder {
	sb.req.IncludeVectors = true
	return sb
}

// RRFK overrides the RRF smoothing constant used for hybrid fusion.
func (sb *SearchBuilder) RRFK(k int) *SearchBuilder {
	sb.req.RRFK = k
	return sb
}

// Execute runs the search.
func (sb *SearchBuilder) Execute(ctx context.Context) (*model.SearchResponse, error) {
	col, err := sb.db.Collection(sb.collectionName)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := col.Search(ctx, sb.req)
	err = translateError(err)

	hits := 0
	if resp != nil {
		hits = len(resp.Hits)
	}

	sb.db.logger.LogSearch(ctx, sb.collectionName, sb.req.K, hits, time.Since(start), err)

	return resp, err
}
