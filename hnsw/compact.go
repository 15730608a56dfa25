package hnsw

import (
	"cmp"
	"context"
	"slices"

	"github.com/hupe1980/fusego/internal/queue"
)

// Compact physically removes tombstoned nodes in three phases: repair
// the adjacency of live nodes by splicing in two-hop neighbors reached
// through tombstoned ones, reassign the entry point if it is
// tombstoned, then clear the dead slots and tombstone bits. Returns the
// number of removed nodes.
//
// Compact may run concurrently with searches. Concurrent inserts and
// deletes must be held off by the caller.
func (g *Graph) Compact(ctx context.Context) (int, error) {
	g.tombMu.RLock()
	dead := g.tombstones.ToArray()
	g.tombMu.RUnlock()

	if len(dead) == 0 {
		return 0, nil
	}

	deadSet := make(map[uint32]struct{}, len(dead))
	for _, ref := range dead {
		deadSet[ref] = struct{}{}
	}

	// Phase 1: repair live neighbor lists.
	var repairErr error

	g.Range(func(ref uint32, vector []float32) bool {
		if repairErr = ctx.Err(); repairErr != nil {
			return false
		}

		n := g.node(ref)
		if n == nil {
			return true
		}

		for layer := 0; layer <= int(n.level); layer++ {
			g.repairLayer(ref, n, layer, deadSet)
		}

		return true
	})

	if repairErr != nil {
		return 0, repairErr
	}

	// Phase 2: move the entry point off a tombstoned node.
	g.reassignEntryPoint(deadSet)

	// Phase 3: drop the dead slots.
	for _, ref := range dead {
		g.clearNode(ref)
	}

	g.tombMu.Lock()
	for _, ref := range dead {
		g.tombstones.Remove(ref)
	}
	g.tombMu.Unlock()

	return len(dead), nil
}

// repairLayer rebuilds one layer adjacency of a live node when it
// references tombstoned neighbors, promoting the live neighbors of the
// dead ones as replacement candidates.
func (g *Graph) repairLayer(ref uint32, n *node, layer int, deadSet map[uint32]struct{}) {
	conns := g.connsAt(ref, layer)

	touched := false
	for _, nb := range conns {
		if _, dead := deadSet[nb]; dead {
			touched = true
			break
		}
	}

	if !touched {
		return
	}

	seen := map[uint32]struct{}{ref: {}}
	cands := make([]queue.Item, 0, len(conns)*2)

	appendCand := func(cand uint32) {
		if _, ok := seen[cand]; ok {
			return
		}
		seen[cand] = struct{}{}

		if _, dead := deadSet[cand]; dead {
			return
		}

		cn := g.node(cand)
		if cn == nil {
			return
		}

		cands = append(cands, queue.Item{Ref: cand, Dist: g.dist(n.vector, cn.vector)})
	}

	for _, nb := range conns {
		if _, dead := deadSet[nb]; !dead {
			appendCand(nb)
			continue
		}

		// Two-hop splice through the dead neighbor.
		for _, hop := range g.connsAt(nb, layer) {
			appendCand(hop)
		}
	}

	slices.SortFunc(cands, func(a, b queue.Item) int {
		if a.Dist != b.Dist {
			return cmp.Compare(a.Dist, b.Dist)
		}
		return cmp.Compare(a.Ref, b.Ref)
	})

	selected := g.selectNeighbors(cands, g.maxConns(layer))

	refs := make([]uint32, len(selected))
	for i, it := range selected {
		refs[i] = it.Ref
	}

	g.setConns(ref, layer, refs)
}

// reassignEntryPoint promotes the highest-level live node when the
// current entry point is tombstoned or missing.
func (g *Graph) reassignEntryPoint(deadSet map[uint32]struct{}) {
	g.epMu.Lock()
	defer g.epMu.Unlock()

	ep := g.entryPoint.Load()
	if ep >= 0 {
		if _, dead := deadSet[uint32(ep)]; !dead && g.node(uint32(ep)) != nil {
			return
		}
	}

	bestRef := int64(-1)
	bestLevel := int32(0)

	g.Range(func(ref uint32, _ []float32) bool {
		if n := g.node(ref); n != nil && (bestRef < 0 || n.level > bestLevel) {
			bestRef = int64(ref)
			bestLevel = n.level
		}
		return true
	})

	g.entryPoint.Store(bestRef)
	if bestRef < 0 {
		g.maxLevel.Store(0)
	} else {
		g.maxLevel.Store(bestLevel)
	}
}
