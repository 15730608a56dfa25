package hnsw

import (
	"cmp"
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/fusego/distance"
	"github.com/hupe1980/fusego/internal/queue"
	"github.com/hupe1980/fusego/internal/visited"
)

const (
	segSize    = 8192 // node slots per segment, power of two
	segShift   = 13
	segMask    = segSize - 1
	numStripes = 1024
	stripeMask = numStripes - 1
)

// Options configures the graph.
type Options struct {
	// M is the maximum number of connections per node on layers > 0.
	// Layer 0 allows 2*M.
	M int

	// EFConstruction is the size of the dynamic candidate list during
	// insertion.
	EFConstruction int

	// EFSearch is the default size of the dynamic candidate list during
	// search, used when a query does not specify its own.
	EFSearch int

	// Metric selects the distance metric.
	Metric distance.Metric

	// Heuristic enables diversity-aware neighbor selection instead of
	// picking the M closest candidates.
	Heuristic bool

	// RandomSeed seeds layer assignment. Zero picks a time-based seed.
	RandomSeed int64
}

// DefaultOptions holds the default graph parameters.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       50,
	Metric:         distance.MetricCosine,
	Heuristic:      true,
}

// Candidate is a search result: a node handle with its internal
// distance to the query (smaller is better).
type Candidate struct {
	Ref  uint32
	Dist float32
}

type node struct {
	vector []float32
	level  int32
	conns  []atomic.Pointer[[]uint32] // one immutable snapshot per layer
}

type nodeSegment [segSize]atomic.Pointer[node]

// Graph is a thread-safe HNSW index over caller-assigned uint32 handles.
type Graph struct {
	opts      Options
	dimension int
	dist      distance.Func
	ml        float64

	segments atomic.Pointer[[]*nodeSegment]
	growMu   sync.Mutex

	locks [numStripes]sync.Mutex

	epMu       sync.Mutex
	entryPoint atomic.Int64 // -1 when empty
	maxLevel   atomic.Int32

	tombMu     sync.RWMutex
	tombstones *roaring.Bitmap

	count    atomic.Int64
	refBound atomic.Int64 // exclusive upper bound on handles seen

	rngMu sync.Mutex
	rng   *rand.Rand

	minPool     sync.Pool
	maxPool     sync.Pool
	visitedPool sync.Pool
}

// New creates an empty graph for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, ErrEmptyVector
	}

	if opts.M < 2 {
		opts.M = DefaultOptions.M
	}

	if opts.EFConstruction < opts.M {
		opts.EFConstruction = DefaultOptions.EFConstruction
	}

	if opts.EFSearch < 1 {
		opts.EFSearch = DefaultOptions.EFSearch
	}

	dist, err := opts.Metric.Provider()
	if err != nil {
		return nil, err
	}

	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g := &Graph{
		opts:       opts,
		dimension:  dimension,
		dist:       dist,
		ml:         1 / math.Log(float64(opts.M)),
		tombstones: roaring.New(),
		rng:        rand.New(rand.NewSource(seed)),
	}

	g.entryPoint.Store(-1)

	segs := make([]*nodeSegment, 0)
	g.segments.Store(&segs)

	g.minPool.New = func() any { return queue.NewMin(opts.EFConstruction) }
	g.maxPool.New = func() any { return queue.NewMax(opts.EFConstruction) }
	g.visitedPool.New = func() any { return visited.New(int(g.refBound.Load()) + 1) }

	return g, nil
}

// Dimension returns the vector dimensionality of the graph.
func (g *Graph) Dimension() int { return g.dimension }

// Metric returns the configured distance metric.
func (g *Graph) Metric() distance.Metric { return g.opts.Metric }

// Len returns the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int { return int(g.count.Load()) }

// Contains reports whether the handle refers to a live node.
func (g *Graph) Contains(ref uint32) bool {
	return g.node(ref) != nil && !g.deleted(ref)
}

// VectorByRef returns a copy of the stored vector for a handle. For the
// Cosine metric the vector is the normalized form.
func (g *Graph) VectorByRef(ref uint32) ([]float32, bool) {
	n := g.node(ref)
	if n == nil || g.deleted(ref) {
		return nil, false
	}

	return slices.Clone(n.vector), true
}

// Range calls fn for every live node until fn returns false. The order
// is unspecified. Vectors must not be mutated by fn.
func (g *Graph) Range(fn func(ref uint32, vector []float32) bool) {
	segs := *g.segments.Load()
	for si, seg := range segs {
		if seg == nil {
			continue
		}

		for i := range seg {
			n := seg[i].Load()
			if n == nil {
				continue
			}

			ref := uint32(si<<segShift | i)
			if g.deleted(ref) {
				continue
			}

			if !fn(ref, n.vector) {
				return
			}
		}
	}
}

// Insert adds a vector under a fresh handle. The handle must not refer
// to an existing node, tombstoned or live.
func (g *Graph) Insert(ctx context.Context, ref uint32, vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}

	if len(vec) != g.dimension {
		return &ErrDimensionMismatch{Expected: g.dimension, Actual: len(vec)}
	}

	v := slices.Clone(vec)
	if g.opts.Metric.Normalizes() {
		if !distance.NormalizeL2InPlace(v) {
			return ErrZeroVector
		}
	}

	if g.node(ref) != nil {
		return &ErrRefInUse{Ref: ref}
	}

	level := g.randomLevel()

	n := &node{vector: v, level: int32(level), conns: make([]atomic.Pointer[[]uint32], level+1)}
	for i := range n.conns {
		empty := []uint32{}
		n.conns[i].Store(&empty)
	}

	g.storeNode(ref, n)
	g.bumpRefBound(ref)

	g.epMu.Lock()

	ep := g.entryPoint.Load()
	if ep < 0 {
		g.entryPoint.Store(int64(ref))
		g.maxLevel.Store(int32(level))
		g.epMu.Unlock()
		g.count.Add(1)

		return nil
	}

	g.epMu.Unlock()

	epNode := g.node(uint32(ep))
	if epNode == nil {
		// Entry point vanished under a concurrent compaction; restart
		// from whatever node is promoted next.
		return g.linkWithoutEntry(ref, level)
	}

	curr := queue.Item{Ref: uint32(ep), Dist: g.dist(v, epNode.vector)}
	maxL := int(g.maxLevel.Load())

	for layer := maxL; layer > level; layer-- {
		var err error
		if curr, err = g.greedyDescend(ctx, v, curr, layer); err != nil {
			return err
		}
	}

	for layer := min(level, maxL); layer >= 0; layer-- {
		results, err := g.searchLayer(ctx, v, curr, g.opts.EFConstruction, layer, acceptAll)
		if err != nil {
			return err
		}

		neighbors := g.selectNeighbors(results, g.opts.M)

		refs := make([]uint32, len(neighbors))
		for i, nb := range neighbors {
			refs[i] = nb.Ref
		}

		g.setConns(ref, layer, refs)

		for _, nb := range neighbors {
			g.addConn(nb.Ref, ref, layer)
		}

		if len(results) > 0 {
			curr = results[0]
		}
	}

	g.count.Add(1)

	if level > maxL {
		g.epMu.Lock()
		if int32(level) > g.maxLevel.Load() {
			g.maxLevel.Store(int32(level))
			g.entryPoint.Store(int64(ref))
		}
		g.epMu.Unlock()
	}

	return nil
}

// linkWithoutEntry covers the race where the entry point node was
// physically removed between reading it and resolving it.
func (g *Graph) linkWithoutEntry(ref uint32, level int) error {
	g.epMu.Lock()
	defer g.epMu.Unlock()

	ep := g.entryPoint.Load()
	if ep < 0 || g.node(uint32(ep)) == nil {
		g.entryPoint.Store(int64(ref))
		g.maxLevel.Store(int32(level))
	}

	g.count.Add(1)

	return nil
}

// Delete tombstones a node. The node stays routable until Compact but
// is excluded from all results. Returns false if the handle is unknown
// or already tombstoned.
func (g *Graph) Delete(ref uint32) bool {
	if g.node(ref) == nil {
		return false
	}

	g.tombMu.Lock()
	if g.tombstones.Contains(ref) {
		g.tombMu.Unlock()
		return false
	}

	g.tombstones.Add(ref)
	g.tombMu.Unlock()

	g.count.Add(-1)

	return true
}

// Search returns the k nearest live nodes to the query, ascending by
// internal distance with handle as tie-break. ef <= 0 falls back to the
// configured EFSearch; ef is always raised to at least k. The optional
// accept callback restricts results to handles it approves.
func (g *Graph) Search(ctx context.Context, query []float32, k, ef int, accept func(ref uint32) bool) ([]Candidate, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	if len(query) == 0 {
		return nil, ErrEmptyVector
	}

	if len(query) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(query)}
	}

	q := query
	if g.opts.Metric.Normalizes() {
		var ok bool
		if q, ok = distance.NormalizeL2Copy(query); !ok {
			return nil, ErrZeroVector
		}
	}

	if ef <= 0 {
		ef = g.opts.EFSearch
	}

	if ef < k {
		ef = k
	}

	ep := g.entryPoint.Load()
	if ep < 0 {
		return nil, nil
	}

	epNode := g.node(uint32(ep))
	if epNode == nil {
		return nil, nil
	}

	curr := queue.Item{Ref: uint32(ep), Dist: g.dist(q, epNode.vector)}

	for layer := int(g.maxLevel.Load()); layer > 0; layer-- {
		var err error
		if curr, err = g.greedyDescend(ctx, q, curr, layer); err != nil {
			return nil, err
		}
	}

	results, err := g.searchLayer(ctx, q, curr, ef, 0, accept)
	if err != nil {
		return nil, err
	}

	if len(results) > k {
		results = results[:k]
	}

	out := make([]Candidate, len(results))
	for i, it := range results {
		out[i] = Candidate{Ref: it.Ref, Dist: it.Dist}
	}

	return out, nil
}

// BruteSearch exhaustively scans all live nodes and returns the exact k
// nearest. Intended for tests and small collections.
func (g *Graph) BruteSearch(ctx context.Context, query []float32, k int, accept func(ref uint32) bool) ([]Candidate, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	if len(query) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(query)}
	}

	q := query
	if g.opts.Metric.Normalizes() {
		var ok bool
		if q, ok = distance.NormalizeL2Copy(query); !ok {
			return nil, ErrZeroVector
		}
	}

	best := queue.NewMax(k + 1)

	var err error

	g.Range(func(ref uint32, vector []float32) bool {
		if err = ctx.Err(); err != nil {
			return false
		}

		if accept != nil && !accept(ref) {
			return true
		}

		best.Push(queue.Item{Ref: ref, Dist: g.dist(q, vector)})
		if best.Len() > k {
			best.Pop()
		}

		return true
	})

	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, best.Len())
	for best.Len() > 0 {
		it, _ := best.Pop()
		out = append(out, Candidate{Ref: it.Ref, Dist: it.Dist})
	}

	sortCandidates(out)

	return out, nil
}

func sortCandidates(cands []Candidate) {
	slices.SortFunc(cands, func(a, b Candidate) int {
		if a.Dist != b.Dist {
			return cmp.Compare(a.Dist, b.Dist)
		}
		return cmp.Compare(a.Ref, b.Ref)
	})
}

// acceptAll is the accept callback for construction traversals; live
// filtering still applies on top of it.
func acceptAll(uint32) bool { return true }

// searchLayer runs a best-first traversal on one layer. Tombstoned
// nodes are expanded for routing but never enter the result set. The
// returned slice is sorted ascending by (distance, handle).
func (g *Graph) searchLayer(ctx context.Context, q []float32, entry queue.Item, ef, layer int, accept func(uint32) bool) ([]queue.Item, error) {
	vis := g.visitedPool.Get().(*visited.Set)
	frontier := g.minPool.Get().(*queue.Heap)
	results := g.maxPool.Get().(*queue.Heap)

	defer func() {
		vis.Reset()
		frontier.Reset()
		results.Reset()
		g.visitedPool.Put(vis)
		g.minPool.Put(frontier)
		g.maxPool.Put(results)
	}()

	vis.Visit(entry.Ref)
	frontier.Push(entry)

	if g.accepts(accept, entry.Ref) {
		results.Push(entry)
	}

	for frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cand, _ := frontier.Pop()

		if worst, ok := results.Top(); ok && results.Len() >= ef && cand.Dist > worst.Dist {
			break
		}

		for _, nb := range g.connsAt(cand.Ref, layer) {
			if vis.Visited(nb) {
				continue
			}

			vis.Visit(nb)

			n := g.node(nb)
			if n == nil {
				continue
			}

			d := g.dist(q, n.vector)

			worst, ok := results.Top()
			if !ok || results.Len() < ef || d < worst.Dist {
				frontier.Push(queue.Item{Ref: nb, Dist: d})

				if g.accepts(accept, nb) {
					results.Push(queue.Item{Ref: nb, Dist: d})
					if results.Len() > ef {
						results.Pop()
					}
				}
			}
		}
	}

	out := make([]queue.Item, 0, results.Len())
	for results.Len() > 0 {
		it, _ := results.Pop()
		out = append(out, it)
	}

	slices.SortFunc(out, func(a, b queue.Item) int {
		if a.Dist != b.Dist {
			return cmp.Compare(a.Dist, b.Dist)
		}
		return cmp.Compare(a.Ref, b.Ref)
	})

	return out, nil
}

// greedyDescend performs an ef=1 walk toward the query on one layer.
// Tombstoned nodes participate: they only route, so skipping them here
// would strand whole regions of the graph.
func (g *Graph) greedyDescend(ctx context.Context, q []float32, curr queue.Item, layer int) (queue.Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return curr, err
		}

		improved := false

		for _, nb := range g.connsAt(curr.Ref, layer) {
			n := g.node(nb)
			if n == nil {
				continue
			}

			if d := g.dist(q, n.vector); d < curr.Dist {
				curr = queue.Item{Ref: nb, Dist: d}
				improved = true
			}
		}

		if !improved {
			return curr, nil
		}
	}
}

// selectNeighbors picks up to m connection targets from candidates
// sorted ascending by distance to the base vector.
func (g *Graph) selectNeighbors(cands []queue.Item, m int) []queue.Item {
	if len(cands) <= m {
		return cands
	}

	if !g.opts.Heuristic {
		return cands[:m]
	}

	// Diversity heuristic: keep a candidate only if it is closer to the
	// base than to every neighbor already kept.
	out := make([]queue.Item, 0, m)

	for _, cand := range cands {
		if len(out) >= m {
			break
		}

		cn := g.node(cand.Ref)
		if cn == nil {
			continue
		}

		keep := true

		for _, sel := range out {
			sn := g.node(sel.Ref)
			if sn != nil && g.dist(cn.vector, sn.vector) < cand.Dist {
				keep = false
				break
			}
		}

		if keep {
			out = append(out, cand)
		}
	}

	return out
}

// addConn links nb into ref's layer adjacency, pruning back to the
// layer's connection budget when it overflows.
func (g *Graph) addConn(ref, nb uint32, layer int) {
	n := g.node(ref)
	if n == nil || int(n.level) < layer {
		return
	}

	mu := &g.locks[ref&stripeMask]
	mu.Lock()
	defer mu.Unlock()

	curr := *n.conns[layer].Load()
	if slices.Contains(curr, nb) {
		return
	}

	next := make([]uint32, 0, len(curr)+1)
	next = append(next, curr...)
	next = append(next, nb)

	if maxConns := g.maxConns(layer); len(next) > maxConns {
		next = g.pruneConns(n.vector, next, maxConns)
	}

	n.conns[layer].Store(&next)
}

// setConns replaces ref's layer adjacency with the given handles.
func (g *Graph) setConns(ref uint32, layer int, refs []uint32) {
	n := g.node(ref)
	if n == nil || int(n.level) < layer {
		return
	}

	mu := &g.locks[ref&stripeMask]
	mu.Lock()
	defer mu.Unlock()

	snapshot := slices.Clone(refs)
	n.conns[layer].Store(&snapshot)
}

// pruneConns reselects connection targets for a base vector from an
// overfull candidate list.
func (g *Graph) pruneConns(base []float32, refs []uint32, maxConns int) []uint32 {
	cands := make([]queue.Item, 0, len(refs))

	for _, ref := range refs {
		if n := g.node(ref); n != nil {
			cands = append(cands, queue.Item{Ref: ref, Dist: g.dist(base, n.vector)})
		}
	}

	slices.SortFunc(cands, func(a, b queue.Item) int {
		if a.Dist != b.Dist {
			return cmp.Compare(a.Dist, b.Dist)
		}
		return cmp.Compare(a.Ref, b.Ref)
	})

	selected := g.selectNeighbors(cands, maxConns)

	out := make([]uint32, len(selected))
	for i, it := range selected {
		out[i] = it.Ref
	}

	return out
}

func (g *Graph) maxConns(layer int) int {
	if layer == 0 {
		return 2 * g.opts.M
	}
	return g.opts.M
}

// connsAt returns the current immutable adjacency snapshot for a node
// layer, or nil when out of range.
func (g *Graph) connsAt(ref uint32, layer int) []uint32 {
	n := g.node(ref)
	if n == nil || int(n.level) < layer {
		return nil
	}
	return *n.conns[layer].Load()
}

func (g *Graph) accepts(accept func(uint32) bool, ref uint32) bool {
	if g.deleted(ref) {
		return false
	}
	return accept == nil || accept(ref)
}

func (g *Graph) deleted(ref uint32) bool {
	g.tombMu.RLock()
	defer g.tombMu.RUnlock()
	return g.tombstones.Contains(ref)
}

func (g *Graph) randomLevel() int {
	g.rngMu.Lock()
	r := g.rng.Float64()
	g.rngMu.Unlock()

	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}

	return int(math.Floor(-math.Log(r) * g.ml))
}

func (g *Graph) node(ref uint32) *node {
	segs := *g.segments.Load()

	si := int(ref >> segShift)
	if si >= len(segs) || segs[si] == nil {
		return nil
	}

	return segs[si][ref&segMask].Load()
}

// storeNode publishes a node slot, growing the segment directory
// copy-on-write when the handle lands past the current capacity.
func (g *Graph) storeNode(ref uint32, n *node) {
	si := int(ref >> segShift)

	segs := *g.segments.Load()
	if si >= len(segs) {
		g.growMu.Lock()

		segs = *g.segments.Load()
		if si >= len(segs) {
			next := make([]*nodeSegment, si+1)
			copy(next, segs)

			for i := len(segs); i <= si; i++ {
				next[i] = &nodeSegment{}
			}

			g.segments.Store(&next)
			segs = next
		}

		g.growMu.Unlock()
	}

	segs[si][ref&segMask].Store(n)
}

func (g *Graph) clearNode(ref uint32) {
	segs := *g.segments.Load()

	si := int(ref >> segShift)
	if si < len(segs) && segs[si] != nil {
		segs[si][ref&segMask].Store(nil)
	}
}

func (g *Graph) bumpRefBound(ref uint32) {
	bound := int64(ref) + 1
	for {
		curr := g.refBound.Load()
		if curr >= bound || g.refBound.CompareAndSwap(curr, bound) {
			return
		}
	}
}
