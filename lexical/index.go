// Package lexical implements an in-memory BM25 inverted index keyed by
// uint32 document handles.
//
// Documents with no matching query term never appear in results; BM25
// scores only accumulate over terms a document actually contains. The
// IDF is the smoothed variant ln(1 + (N-n+0.5)/(n+0.5)), which stays
// positive even for terms present in every document.
package lexical

import (
	"cmp"
	"context"
	"errors"
	"hash/maphash"
	"math"
	"slices"
	"sync"
)

const (
	// DefaultK1 is the default BM25 term-frequency saturation parameter.
	DefaultK1 = 1.2
	// DefaultB is the default BM25 length-normalization parameter.
	DefaultB = 0.75

	numShards = 16
)

// ErrInvalidK is returned when a search asks for a non-positive k.
var ErrInvalidK = errors.New("lexical: k must be positive")

// Match is a ranked lexical result with its BM25 score.
type Match struct {
	Ref   uint32
	Score float32
}

// Options configures the index.
type Options struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls document-length normalization.
	B float64

	// Tokenizer splits text into terms. Defaults to DefaultTokenizer.
	Tokenizer Tokenizer
}

type posting struct {
	ref   uint32
	count uint32
}

type termShard struct {
	mu       sync.RWMutex
	postings map[string][]posting
}

// Index is a thread-safe BM25 inverted index. Posting lists are sharded
// by term hash; document statistics (lengths, counts) live behind a
// separate lock acquired before any shard lock.
type Index struct {
	opts Options
	seed maphash.Seed

	shards [numShards]*termShard

	statsMu     sync.RWMutex
	docLengths  map[uint32]uint32
	docTerms    map[uint32][]string
	totalLength int64
	docCount    int
}

// New creates an empty index.
func New(optFns ...func(o *Options)) *Index {
	opts := Options{
		K1:        DefaultK1,
		B:         DefaultB,
		Tokenizer: DefaultTokenizer,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.K1 <= 0 {
		opts.K1 = DefaultK1
	}

	if opts.B < 0 || opts.B > 1 {
		opts.B = DefaultB
	}

	if opts.Tokenizer == nil {
		opts.Tokenizer = DefaultTokenizer
	}

	idx := &Index{
		opts:       opts,
		seed:       maphash.MakeSeed(),
		docLengths: make(map[uint32]uint32),
		docTerms:   make(map[uint32][]string),
	}

	for i := range idx.shards {
		idx.shards[i] = &termShard{postings: make(map[string][]posting)}
	}

	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.statsMu.RLock()
	defer idx.statsMu.RUnlock()
	return idx.docCount
}

// Contains reports whether the handle is indexed.
func (idx *Index) Contains(ref uint32) bool {
	idx.statsMu.RLock()
	defer idx.statsMu.RUnlock()
	_, ok := idx.docLengths[ref]
	return ok
}

// Refs returns the handles of all indexed documents in unspecified
// order. Used by index reconciliation.
func (idx *Index) Refs() []uint32 {
	idx.statsMu.RLock()
	defer idx.statsMu.RUnlock()

	refs := make([]uint32, 0, len(idx.docLengths))
	for ref := range idx.docLengths {
		refs = append(refs, ref)
	}

	return refs
}

// Add indexes the text under the handle, replacing any previous text
// for the same handle.
func (idx *Index) Add(ref uint32, text string) {
	tokens := idx.opts.Tokenizer(text)

	tf := make(map[string]uint32, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}

	idx.statsMu.Lock()
	defer idx.statsMu.Unlock()

	idx.deleteLocked(ref)

	idx.docLengths[ref] = uint32(len(tokens))
	idx.docTerms[ref] = terms
	idx.totalLength += int64(len(tokens))
	idx.docCount++

	for t, count := range tf {
		shard := idx.shard(t)
		shard.mu.Lock()
		shard.postings[t] = append(shard.postings[t], posting{ref: ref, count: count})
		shard.mu.Unlock()
	}
}

// Delete removes the handle from the index. Returns false if the
// handle was not indexed.
func (idx *Index) Delete(ref uint32) bool {
	idx.statsMu.Lock()
	defer idx.statsMu.Unlock()
	return idx.deleteLocked(ref)
}

func (idx *Index) deleteLocked(ref uint32) bool {
	length, ok := idx.docLengths[ref]
	if !ok {
		return false
	}

	for _, t := range idx.docTerms[ref] {
		shard := idx.shard(t)
		shard.mu.Lock()

		postings := shard.postings[t]
		for i, p := range postings {
			if p.ref == ref {
				shard.postings[t] = slices.Delete(postings, i, i+1)
				break
			}
		}

		if len(shard.postings[t]) == 0 {
			delete(shard.postings, t)
		}

		shard.mu.Unlock()
	}

	delete(idx.docLengths, ref)
	delete(idx.docTerms, ref)
	idx.totalLength -= int64(length)
	idx.docCount--

	return true
}

// Search scores all documents matching at least one query term and
// returns the top k, ordered by descending score with handle as
// tie-break. The optional accept callback restricts results to handles
// it approves; rejected documents are dropped before ranking.
func (idx *Index) Search(ctx context.Context, text string, k int, accept func(ref uint32) bool) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	tokens := idx.opts.Tokenizer(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	idx.statsMu.RLock()
	defer idx.statsMu.RUnlock()

	if idx.docCount == 0 {
		return nil, nil
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)

	scores := make(map[uint32]float64)

	for _, t := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shard := idx.shard(t)

		shard.mu.RLock()

		postings := shard.postings[t]
		if len(postings) == 0 {
			shard.mu.RUnlock()
			continue
		}

		idf := idx.idf(len(postings))

		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.ref])

			num := tf * (idx.opts.K1 + 1)
			denom := tf + idx.opts.K1*(1-idx.opts.B+idx.opts.B*(docLen/avgDL))

			scores[p.ref] += idf * (num / denom)
		}

		shard.mu.RUnlock()
	}

	matches := make([]Match, 0, len(scores))

	for ref, score := range scores {
		if accept != nil && !accept(ref) {
			continue
		}
		matches = append(matches, Match{Ref: ref, Score: float32(score)})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Ref, b.Ref)
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// idf computes the smoothed inverse document frequency for a term with
// document frequency df. Caller holds statsMu.
func (idx *Index) idf(df int) float64 {
	N := float64(idx.docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

func (idx *Index) shard(term string) *termShard {
	return idx.shards[maphash.String(idx.seed, term)%numShards]
}
