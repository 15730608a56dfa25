// Package queue implements value-based binary heaps over
// (handle, distance) pairs for graph traversal hot paths.
package queue

// Item is an entry in a priority queue. Value-based on purpose: no
// pointer indirection, no per-item allocations.
type Item struct {
	Ref  uint32  // internal node handle
	Dist float32 // priority (internal distance, smaller is better)
}

// Heap is a binary heap of Items. Min-heaps order by smallest Dist,
// max-heaps by largest. The zero value is not usable; construct with
// NewMin or NewMax.
type Heap struct {
	max   bool
	items []Item
}

// NewMin returns a min-heap with the given initial capacity.
func NewMin(capacity int) *Heap {
	return &Heap{max: false, items: make([]Item, 0, capacity)}
}

// NewMax returns a max-heap with the given initial capacity.
func NewMax(capacity int) *Heap {
	return &Heap{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the heap.
func (h *Heap) Len() int { return len(h.items) }

// Reset empties the heap, keeping the backing array for reuse.
func (h *Heap) Reset() { h.items = h.items[:0] }

// Top returns the root element without removing it.
func (h *Heap) Top() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (h *Heap) Push(it Item) {
	h.items = append(h.items, it)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the root element.
func (h *Heap) Pop() (Item, bool) {
	n := len(h.items)
	if n == 0 {
		return Item{}, false
	}
	root := h.items[0]
	last := h.items[n-1]
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.items[0] = last
		h.siftDown(0)
	}
	return root, true
}

// Min returns the item with the smallest Dist currently in the heap.
// For min-heaps this is the root; for max-heaps it scans the backing
// slice.
func (h *Heap) Min() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	if !h.max {
		return h.items[0], true
	}
	best := h.items[0]
	for _, it := range h.items[1:] {
		if it.Dist < best.Dist {
			best = it
		}
	}
	return best, true
}

func (h *Heap) less(i, j int) bool {
	if h.max {
		return h.items[i].Dist > h.items[j].Dist
	}
	return h.items[i].Dist < h.items[j].Dist
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(r, l) {
			best = r
		}
		if !h.less(best, i) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
