package collection

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/fusego/blobstore"
	"github.com/hupe1980/fusego/codec"
	"github.com/hupe1980/fusego/model"
)

// snapshotMagic identifies the snapshot format, versioned in the last
// two bytes.
var snapshotMagic = []byte("FGSNAP01")

// Compression names the snapshot body compression.
type Compression string

const (
	// CompressionNone stores the encoded body as-is.
	CompressionNone Compression = "none"
	// CompressionZstd compresses with zstd (the default).
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 compresses with lz4, trading ratio for speed.
	CompressionLZ4 Compression = "lz4"
)

// SnapshotOptions configures how a snapshot is written. Reads are
// self-describing and need no options.
type SnapshotOptions struct {
	// Codec encodes the snapshot body. Defaults to codec.Default.
	Codec codec.Codec

	// Compression selects the body compression.
	Compression Compression
}

// snapshotHeader is stored uncompressed so a snapshot can be opened
// without knowing how it was written.
type snapshotHeader struct {
	Codec       string `json:"codec"`
	Compression string `json:"compression"`
}

type snapshotDoc struct {
	ID      model.DocumentID `json:"id"`
	Vector  []float32        `json:"vector"`
	Payload map[string]any   `json:"payload,omitempty"`
}

type snapshotData struct {
	Schema Schema        `json:"schema"`
	Docs   []snapshotDoc `json:"docs"`
}

// Snapshot persists the collection's documents and schema to the blob
// store. Indexes are not persisted; Restore rebuilds them from the
// documents.
func (c *Collection) Snapshot(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *SnapshotOptions)) error {
	if err := c.ready(); err != nil {
		return err
	}

	opts := SnapshotOptions{
		Codec:       codec.Default,
		Compression: CompressionZstd,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	start := time.Now()

	data := snapshotData{Schema: c.schema}
	for _, e := range c.docs.Scan() {
		data.Docs = append(data.Docs, snapshotDoc{ID: e.ID, Vector: e.Vector, Payload: e.Payload})
	}

	body, err := opts.Codec.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", ErrInternal, err)
	}

	body, err = compress(body, opts.Compression)
	if err != nil {
		return fmt.Errorf("%w: compress snapshot: %w", ErrInternal, err)
	}

	header, err := json.Marshal(snapshotHeader{
		Codec:       opts.Codec.Name(),
		Compression: string(opts.Compression),
	})
	if err != nil {
		return fmt.Errorf("%w: encode snapshot header: %w", ErrInternal, err)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic)

	var lenBuf [binary.MaxVarintLen64]byte
	buf.Write(lenBuf[:binary.PutUvarint(lenBuf[:], uint64(len(header)))])
	buf.Write(header)
	buf.Write(body)

	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("write snapshot %q: %w", name, err)
	}

	c.logger.Info("snapshot written",
		"name", name,
		"docs", len(data.Docs),
		"bytes", buf.Len(),
		"compression", string(opts.Compression),
		"took", time.Since(start),
	)

	return nil
}

// Restore loads a snapshot from the blob store and rebuilds a
// collection from it, re-indexing every document.
func Restore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Collection, error) {
	raw, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", name, err)
	}

	if len(raw) < len(snapshotMagic) || !bytes.Equal(raw[:len(snapshotMagic)], snapshotMagic) {
		return nil, fmt.Errorf("%w: snapshot %q: bad magic", ErrInternal, name)
	}

	raw = raw[len(snapshotMagic):]

	headerLen, n := binary.Uvarint(raw)
	if n <= 0 || headerLen > uint64(len(raw)-n) {
		return nil, fmt.Errorf("%w: snapshot %q: truncated header", ErrInternal, name)
	}

	raw = raw[n:]

	var header snapshotHeader
	if err := json.Unmarshal(raw[:headerLen], &header); err != nil {
		return nil, fmt.Errorf("%w: snapshot %q: decode header: %w", ErrInternal, name, err)
	}

	cdc, ok := codec.ByName(header.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: snapshot %q: unknown codec %q", ErrInternal, name, header.Codec)
	}

	body, err := decompress(raw[headerLen:], Compression(header.Compression))
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %q: decompress: %w", ErrInternal, name, err)
	}

	var data snapshotData
	if err := cdc.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: snapshot %q: decode body: %w", ErrInternal, name, err)
	}

	col, err := New(data.Schema, optFns...)
	if err != nil {
		return nil, err
	}

	for _, doc := range data.Docs {
		if err := col.Upsert(ctx, model.Document{ID: doc.ID, Vector: doc.Vector, Payload: doc.Payload}); err != nil {
			col.Close()
			return nil, fmt.Errorf("%w: snapshot %q: restore document %s: %w", ErrInternal, name, doc.ID, err)
		}
	}

	return col, nil
}

func compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone, "":
		return data, nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()

		return enc.EncodeAll(data, nil), nil

	case CompressionLZ4:
		var buf bytes.Buffer

		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}

		if err := w.Close(); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

func decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone, "":
		return data, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		return dec.DecodeAll(data, nil)

	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}
