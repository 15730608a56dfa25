// Package collection ties one schema to its three data structures: the
// HNSW vector index, the BM25 lexical index and the authoritative
// document store. It owns write ordering, hybrid search, background
// compaction and snapshot persistence.
//
// Documents are identified by stable DocumentIDs; internally every
// accepted write allocates a fresh dense uint32 handle, and the old
// handle is tombstoned. Writes to the same id are serialized on a
// striped lock, so the last writer wins. Index application runs inline
// (IndexingSync) or on a fixed worker pool (IndexingAsync); deletes
// always apply inline so they are visible immediately.
package collection

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/fusego/docstore"
	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/lexical"
	"github.com/hupe1980/fusego/metadata"
	"github.com/hupe1980/fusego/model"
)

const numWriteStripes = 256

// State is the lifecycle state of a collection.
type State int32

const (
	// StateCreating means the collection is being initialized.
	StateCreating State = iota
	// StateReady accepts reads and writes.
	StateReady
	// StateDropping rejects new operations while teardown runs.
	StateDropping
	// StateGone is terminal.
	StateGone
)

// String returns a short name for the state.
func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateReady:
		return "ready"
	case StateDropping:
		return "dropping"
	case StateGone:
		return "gone"
	default:
		return "unknown"
	}
}

// IndexingMode selects how writes reach the indexes.
type IndexingMode int

const (
	// IndexingSync applies index updates before the write returns.
	IndexingSync IndexingMode = iota
	// IndexingAsync acknowledges after the document store write and
	// applies index updates on a worker pool.
	IndexingAsync
)

// Options configures a collection.
type Options struct {
	// IndexingMode selects sync or async index application.
	IndexingMode IndexingMode

	// Workers sizes the async worker pool. <= 0 defaults to GOMAXPROCS.
	Workers int

	// M is the HNSW connectivity parameter.
	M int

	// EFConstruction bounds the HNSW candidate list during inserts.
	EFConstruction int

	// EFSearch is the default candidate list size for searches that do
	// not specify their own.
	EFSearch int

	// RandomSeed seeds HNSW layer assignment. Zero picks a time-based
	// seed.
	RandomSeed int64

	// Tokenizer overrides the lexical tokenizer.
	Tokenizer lexical.Tokenizer

	// CompactionInterval paces the background compaction loop. Zero
	// disables it; compaction then only runs via Compact.
	CompactionInterval time.Duration

	// Logger receives structured operational logs.
	Logger *slog.Logger
}

// Collection is a named set of documents with hybrid search.
type Collection struct {
	schema Schema
	opts   Options
	logger *slog.Logger

	state atomic.Int32

	graph *hnsw.Graph
	lex   *lexical.Index
	docs  *docstore.Store

	nextHandle atomic.Uint32
	hashSeed   maphash.Seed

	writeLocks [numWriteStripes]sync.Mutex

	// writeGate lets compaction and reconciliation exclude writers.
	writeGate sync.RWMutex

	pool    *WorkerPool
	pending sync.WaitGroup

	stopCompaction chan struct{}
	compactionDone chan struct{}
	closeOnce      sync.Once
}

// New creates a collection for the schema.
func New(schema Schema, optFns ...func(o *Options)) (*Collection, error) {
	schema.Normalize()

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		M:              hnsw.DefaultOptions.M,
		EFConstruction: hnsw.DefaultOptions.EFConstruction,
		EFSearch:       hnsw.DefaultOptions.EFSearch,
		Logger:         slog.New(slog.DiscardHandler),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	graph, err := hnsw.New(schema.Dimension, func(o *hnsw.Options) {
		o.M = opts.M
		o.EFConstruction = opts.EFConstruction
		o.EFSearch = opts.EFSearch
		o.Metric = schema.Metric
		o.RandomSeed = opts.RandomSeed
	})
	if err != nil {
		return nil, &ErrInvalidSchema{Name: schema.Name, Reason: err.Error()}
	}

	lex := lexical.New(func(o *lexical.Options) {
		o.K1 = schema.BM25.K1
		o.B = schema.BM25.B
		o.Tokenizer = opts.Tokenizer
	})

	c := &Collection{
		schema:   schema,
		opts:     opts,
		logger:   opts.Logger.With("collection", schema.Name),
		graph:    graph,
		lex:      lex,
		docs:     docstore.New(),
		hashSeed: maphash.MakeSeed(),
	}

	c.state.Store(int32(StateCreating))

	if opts.IndexingMode == IndexingAsync {
		c.pool = NewWorkerPool(opts.Workers)
	}

	if opts.CompactionInterval > 0 {
		c.stopCompaction = make(chan struct{})
		c.compactionDone = make(chan struct{})

		go c.compactionLoop()
	}

	c.state.Store(int32(StateReady))

	c.logger.Info("collection created",
		"dimension", schema.Dimension,
		"metric", schema.Metric.String(),
		"indexing", opts.IndexingMode == IndexingAsync,
	)

	return c, nil
}

// Schema returns a copy of the collection's schema.
func (c *Collection) Schema() Schema {
	s := c.schema
	s.TextFields = slices.Clone(s.TextFields)

	return s
}

// State returns the current lifecycle state.
func (c *Collection) State() State {
	return State(c.state.Load())
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	return c.docs.Len()
}

// Upsert inserts or replaces the document. The document store is
// updated before the call returns; index visibility depends on the
// indexing mode.
func (c *Collection) Upsert(ctx context.Context, doc model.Document) error {
	if err := c.ready(); err != nil {
		return err
	}

	if err := c.schema.ValidateDocument(doc); err != nil {
		return err
	}

	c.writeGate.RLock()
	defer c.writeGate.RUnlock()

	mu := c.stripeFor(doc.ID)

	mu.Lock()
	handle := c.nextHandle.Add(1) - 1

	prev, version := c.docs.Upsert(doc.ID, handle, doc.Vector, doc.Payload)

	prevHandle := int64(-1)
	if prev != nil {
		prevHandle = int64(prev.Handle)
	}
	mu.Unlock()

	if c.pool == nil {
		mu.Lock()
		err := c.applyUpsert(ctx, doc.ID, handle, prevHandle, version)
		mu.Unlock()

		c.logger.Debug("upsert applied", "id", doc.ID.String(), "handle", handle)

		return err
	}

	c.pending.Add(1)

	task := func() {
		defer c.pending.Done()

		mu.Lock()
		defer mu.Unlock()

		if err := c.applyUpsert(context.Background(), doc.ID, handle, prevHandle, version); err != nil {
			c.logger.Error("async index apply failed", "id", doc.ID.String(), "error", err)
		}
	}

	if err := c.pool.Submit(ctx, task); err != nil {
		c.pending.Done()
		return err
	}

	return nil
}

// applyUpsert tears down the superseded handle and indexes the current
// one, unless a newer write has taken over. Caller holds the id's
// stripe lock.
func (c *Collection) applyUpsert(ctx context.Context, id model.DocumentID, handle uint32, prevHandle int64, version uint64) error {
	if prevHandle >= 0 {
		c.graph.Delete(uint32(prevHandle))
		c.lex.Delete(uint32(prevHandle))
		c.docs.Release(uint32(prevHandle))
	}

	e, ok := c.docs.Get(id)
	if !ok || e.Version != version {
		// Superseded or deleted; the newer write owns the indexes.
		return nil
	}

	if err := c.graph.Insert(ctx, handle, e.Vector); err != nil {
		return fmt.Errorf("%w: vector index insert: %w", ErrInternal, err)
	}

	if text := c.schema.TextFor(e.Payload); text != "" {
		c.lex.Add(handle, text)
	}

	return nil
}

// Delete removes the document. Deletes always apply inline, so the
// document is invisible to searches as soon as the call returns.
func (c *Collection) Delete(ctx context.Context, id model.DocumentID) error {
	if err := c.ready(); err != nil {
		return err
	}

	if id.IsZero() {
		return fmt.Errorf("%w: document id must be set", ErrInvalidQuery)
	}

	c.writeGate.RLock()
	defer c.writeGate.RUnlock()

	mu := c.stripeFor(id)
	mu.Lock()
	defer mu.Unlock()

	e, ok := c.docs.Delete(id)
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}

	c.graph.Delete(e.Handle)
	c.lex.Delete(e.Handle)

	c.logger.Debug("document deleted", "id", id.String(), "handle", e.Handle)

	return nil
}

// Get returns the stored document.
func (c *Collection) Get(_ context.Context, id model.DocumentID) (model.Document, error) {
	if err := c.ready(); err != nil {
		return model.Document{}, err
	}

	e, ok := c.docs.Get(id)
	if !ok {
		return model.Document{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}

	return model.Document{
		ID:      e.ID,
		Vector:  slices.Clone(e.Vector),
		Payload: metadata.ClonePayload(e.Payload),
	}, nil
}

// Compact physically removes tombstoned vector index nodes. Writers
// are held off for the duration; searches keep running.
func (c *Collection) Compact(ctx context.Context) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}

	c.writeGate.Lock()
	defer c.writeGate.Unlock()

	c.pending.Wait()

	start := time.Now()

	removed, err := c.graph.Compact(ctx)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		c.logger.Info("compaction finished", "removed", removed, "took", time.Since(start))
	}

	return removed, nil
}

func (c *Collection) compactionLoop() {
	defer close(c.compactionDone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-c.stopCompaction
		cancel()
	}()

	limiter := rate.NewLimiter(rate.Every(c.opts.CompactionInterval), 1)

	// The first token is available immediately; burn it so the loop
	// does not compact right after startup.
	_ = limiter.Wait(ctx)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		if _, err := c.Compact(ctx); err != nil {
			if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
				return
			}

			c.logger.Error("background compaction failed", "error", err)
		}
	}
}

// Close drains async work and shuts the collection down. Idempotent.
func (c *Collection) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDropping))

		if c.stopCompaction != nil {
			close(c.stopCompaction)
			<-c.compactionDone
		}

		if c.pool != nil {
			c.pool.Close()
		}

		c.pending.Wait()

		c.state.Store(int32(StateGone))

		c.logger.Info("collection closed")
	})

	return nil
}

func (c *Collection) ready() error {
	if State(c.state.Load()) != StateReady {
		return fmt.Errorf("%w: collection %q is %s", ErrClosed, c.schema.Name, c.State())
	}

	return nil
}

func (c *Collection) stripeFor(id model.DocumentID) *sync.Mutex {
	h := maphash.String(c.hashSeed, id.String()) ^ uint64(id.Kind())
	return &c.writeLocks[h%numWriteStripes]
}

// resolve maps a live index handle back to its document entry,
// skipping handles whose document vanished mid-query.
func (c *Collection) resolve(handle uint32) (*docstore.Entry, bool) {
	return c.docs.ByHandle(handle)
}

// acceptFor builds the index-level candidate filter for a query.
// Documents failing the metadata filter or no longer resolving to a
// live entry are rejected inside the index traversal.
func (c *Collection) acceptFor(fs *metadata.FilterSet) func(uint32) bool {
	return func(handle uint32) bool {
		e, ok := c.resolve(handle)
		if !ok {
			return false
		}

		return fs.Matches(e.Payload)
	}
}
