package fusego

import (
	"github.com/hupe1980/fusego/blobstore"
	"github.com/hupe1980/fusego/collection"
)

// Options configures a DB.
type Options struct {
	// Logger receives structured operational logs. Defaults to a
	// no-op logger.
	Logger *Logger

	// BlobStore is the snapshot destination used by Snapshot and
	// RestoreCollection. Nil disables snapshot persistence.
	BlobStore blobstore.BlobStore

	// CollectionDefaults are applied to every created collection
	// before the per-call options.
	CollectionDefaults []func(o *collection.Options)
}
