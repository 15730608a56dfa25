package fusego

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/fusego/collection"
	"github.com/hupe1980/fusego/model"
)

// DB is the process-wide registry of collections. The registry lock
// only guards membership changes; per-collection traffic never takes
// it for longer than a map lookup.
type DB struct {
	opts   Options
	logger *Logger

	mu          sync.RWMutex
	collections map[string]*collection.Collection
	closed      bool
}

// New creates an empty DB.
func New(optFns ...func(o *Options)) *DB {
	opts := Options{
		Logger: NoopLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	return &DB{
		opts:        opts,
		logger:      opts.Logger,
		collections: make(map[string]*collection.Collection),
	}
}

// CreateCollection creates a collection from the schema. Fails with
// ErrAlreadyExists when the name is taken.
func (db *DB) CreateCollection(_ context.Context, schema collection.Schema, optFns ...func(o *collection.Options)) error {
	col, err := db.buildCollection(schema, optFns...)
	if err != nil {
		return err
	}

	if err := db.register(col); err != nil {
		col.Close()
		return err
	}

	return nil
}

func (db *DB) buildCollection(schema collection.Schema, optFns ...func(o *collection.Options)) (*collection.Collection, error) {
	fns := make([]func(o *collection.Options), 0, len(db.opts.CollectionDefaults)+len(optFns)+1)
	fns = append(fns, func(o *collection.Options) {
		o.Logger = db.logger.Logger
	})
	fns = append(fns, db.opts.CollectionDefaults...)
	fns = append(fns, optFns...)

	col, err := collection.New(schema, fns...)
	if err != nil {
		return nil, translateError(err)
	}

	return col, nil
}

func (db *DB) register(col *collection.Collection) error {
	name := col.Schema().Name

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return fmt.Errorf("%w: database", ErrClosed)
	}

	if _, exists := db.collections[name]; exists {
		return fmt.Errorf("%w: collection %q", ErrAlreadyExists, name)
	}

	db.collections[name] = col

	return nil
}

// DropCollection removes the collection and tears it down.
func (db *DB) DropCollection(_ context.Context, name string) error {
	db.mu.Lock()

	if db.closed {
		db.mu.Unlock()
		return fmt.Errorf("%w: database", ErrClosed)
	}

	col, ok := db.collections[name]
	if !ok {
		db.mu.Unlock()
		return fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}

	delete(db.collections, name)
	db.mu.Unlock()

	// Teardown happens outside the registry lock.
	col.Close()

	db.logger.Info("collection dropped", "collection", name)

	return nil
}

// Collection returns the named collection.
func (db *DB) Collection(name string) (*collection.Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, fmt.Errorf("%w: database", ErrClosed)
	}

	col, ok := db.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", ErrNotFound, name)
	}

	return col, nil
}

// Collections returns the names of all collections, sorted.
func (db *DB) Collections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Upsert inserts or replaces a document in the named collection.
func (db *DB) Upsert(ctx context.Context, collectionName string, doc model.Document) error {
	col, err := db.Collection(collectionName)
	if err != nil {
		return err
	}

	err = translateError(col.Upsert(ctx, doc))
	db.logger.LogUpsert(ctx, collectionName, doc.ID.String(), err)

	return err
}

// Delete removes a document from the named collection.
func (db *DB) Delete(ctx context.Context, collectionName string, id model.DocumentID) error {
	col, err := db.Collection(collectionName)
	if err != nil {
		return err
	}

	return translateError(col.Delete(ctx, id))
}

// Get returns a stored document.
func (db *DB) Get(ctx context.Context, collectionName string, id model.DocumentID) (model.Document, error) {
	col, err := db.Collection(collectionName)
	if err != nil {
		return model.Document{}, err
	}

	doc, err := col.Get(ctx, id)

	return doc, translateError(err)
}

// Compact physically removes tombstoned index entries of the named
// collection and returns how many were removed.
func (db *DB) Compact(ctx context.Context, collectionName string) (int, error) {
	col, err := db.Collection(collectionName)
	if err != nil {
		return 0, err
	}

	start := time.Now()

	removed, err := col.Compact(ctx)
	err = translateError(err)

	db.logger.LogCompaction(ctx, collectionName, removed, time.Since(start), err)

	return removed, err
}

// Reconcile repairs index/store desynchronization in the named
// collection.
func (db *DB) Reconcile(ctx context.Context, collectionName string) (*collection.ReconcileReport, error) {
	col, err := db.Collection(collectionName)
	if err != nil {
		return nil, err
	}

	report, err := col.Reconcile(ctx)

	return report, translateError(err)
}

// Snapshot persists the named collection to the configured blob store
// under the given blob name.
func (db *DB) Snapshot(ctx context.Context, collectionName, blobName string, optFns ...func(o *collection.SnapshotOptions)) error {
	if db.opts.BlobStore == nil {
		return fmt.Errorf("%w: no blob store configured", ErrInvalidQuery)
	}

	col, err := db.Collection(collectionName)
	if err != nil {
		return err
	}

	return translateError(col.Snapshot(ctx, db.opts.BlobStore, blobName, optFns...))
}

// RestoreCollection loads a snapshot from the configured blob store
// and registers the restored collection under its schema name. Fails
// with ErrAlreadyExists if that name is taken.
func (db *DB) RestoreCollection(ctx context.Context, blobName string, optFns ...func(o *collection.Options)) error {
	if db.opts.BlobStore == nil {
		return fmt.Errorf("%w: no blob store configured", ErrInvalidQuery)
	}

	fns := make([]func(o *collection.Options), 0, len(db.opts.CollectionDefaults)+len(optFns)+1)
	fns = append(fns, func(o *collection.Options) {
		o.Logger = db.logger.Logger
	})
	fns = append(fns, db.opts.CollectionDefaults...)
	fns = append(fns, optFns...)

	col, err := collection.Restore(ctx, db.opts.BlobStore, blobName, fns...)
	if err != nil {
		return translateError(err)
	}

	if err := db.register(col); err != nil {
		col.Close()
		return err
	}

	db.logger.Info("collection restored", "collection", col.Schema().Name, "blob", blobName)

	return nil
}

// Close drops all collections and closes the DB. Idempotent.
func (db *DB) Close() error {
	db.mu.Lock()

	if db.closed {
		db.mu.Unlock()
		return nil
	}

	db.closed = true

	cols := make([]*collection.Collection, 0, len(db.collections))
	for _, col := range db.collections {
		cols = append(cols, col)
	}

	db.collections = make(map[string]*collection.Collection)
	db.mu.Unlock()

	for _, col := range cols {
		col.Close()
	}

	db.logger.Info("database closed", "collections", len(cols))

	return nil
}
