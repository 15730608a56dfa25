package collection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fusego/docstore"
)

// ReconcileReport summarizes the repairs of one reconciliation pass.
type ReconcileReport struct {
	// VectorCompacted is the number of tombstoned nodes physically
	// removed before reconciling.
	VectorCompacted int

	// VectorAdded counts documents re-inserted into the vector index.
	VectorAdded int

	// VectorRemoved counts orphaned vector index nodes tombstoned.
	VectorRemoved int

	// LexicalAdded counts documents re-indexed lexically.
	LexicalAdded int

	// LexicalRemoved counts orphaned lexical entries removed.
	LexicalRemoved int
}

// Dirty reports whether the pass changed anything.
func (r *ReconcileReport) Dirty() bool {
	return r.VectorAdded+r.VectorRemoved+r.LexicalAdded+r.LexicalRemoved > 0
}

// Reconcile repairs index/store desynchronization: documents missing
// from an index are re-applied, index entries whose document is gone
// are removed. The document store is the source of truth. Writers are
// held off for the duration.
func (c *Collection) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	c.writeGate.Lock()
	defer c.writeGate.Unlock()

	c.pending.Wait()

	report := &ReconcileReport{}

	// Clear tombstones first, so a store entry whose handle is
	// tombstoned in the graph can be re-inserted under its handle.
	compacted, err := c.graph.Compact(ctx)
	if err != nil {
		return nil, err
	}

	report.VectorCompacted = compacted

	live := make(map[uint32]*docstore.Entry, c.docs.Len())
	for _, e := range c.docs.Scan() {
		live[e.Handle] = e
	}

	// The two index sides touch disjoint report fields.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var orphans []uint32

		c.graph.Range(func(ref uint32, _ []float32) bool {
			if _, ok := live[ref]; !ok {
				orphans = append(orphans, ref)
			}
			return true
		})

		for _, ref := range orphans {
			if c.graph.Delete(ref) {
				report.VectorRemoved++
			}
		}

		for handle, e := range live {
			if err := gctx.Err(); err != nil {
				return err
			}

			if c.graph.Contains(handle) {
				continue
			}

			if err := c.graph.Insert(gctx, handle, e.Vector); err != nil {
				return fmt.Errorf("%w: reconcile vector insert for %s: %w", ErrInternal, e.ID, err)
			}

			report.VectorAdded++
		}

		return nil
	})

	g.Go(func() error {
		for _, ref := range c.lex.Refs() {
			if _, ok := live[ref]; !ok && c.lex.Delete(ref) {
				report.LexicalRemoved++
			}
		}

		for handle, e := range live {
			if err := gctx.Err(); err != nil {
				return err
			}

			text := c.schema.TextFor(e.Payload)
			if text == "" {
				if c.lex.Delete(handle) {
					report.LexicalRemoved++
				}
				continue
			}

			if !c.lex.Contains(handle) {
				c.lex.Add(handle, text)
				report.LexicalAdded++
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.Dirty() {
		c.logger.Warn("reconcile repaired indexes",
			"vector_added", report.VectorAdded,
			"vector_removed", report.VectorRemoved,
			"lexical_added", report.LexicalAdded,
			"lexical_removed", report.LexicalRemoved,
		)
	}

	return report, nil
}
