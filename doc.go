// Package fusego provides an embedded single-node hybrid search engine
// for Go, combining approximate nearest neighbor vector search (HNSW)
// with BM25 lexical ranking, fused by Reciprocal Rank Fusion.
//
// Documents live in named collections, each with a fixed vector
// dimension, a distance metric and a set of payload fields feeding the
// lexical index. The document store is authoritative; both indexes can
// be rebuilt from it at any time.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	db := fusego.New()
//	defer db.Close()
//
//	err := db.CreateCollection(ctx, collection.Schema{
//	    Name:       "articles",
//	    Dimension:  384,
//	    Metric:     distance.MetricCosine,
//	    TextFields: []string{"title", "body"},
//	})
//
//	err = db.Upsert(ctx, "articles", model.Document{
//	    ID:     model.StringID("a-1"),
//	    Vector: embedding,
//	    Payload: map[string]any{
//	        "title": "Hybrid search in Go",
//	        "lang":  "en",
//	    },
//	})
//
// Search with the fluent builder:
//
//	resp, err := db.Search("articles").
//	    Vector(queryEmbedding).
//	    Text("hybrid search").
//	    KNN(10).
//	    Filter(metadata.NewFilterSet(metadata.Equal("lang", "en"))).
//	    Execute(ctx)
//
// Vector-only and text-only queries omit the other side; supplying
// both fuses the two rankings with RRF.
package fusego
