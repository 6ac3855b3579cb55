// Package query implements the bidirectional point-to-point CCH search
// (spec component C2): forward up-search, backward reverse-down search,
// meeting-node detection, and shortcut unpacking to base EBG edges.
package query

// pqItem is one entry of a concrete-typed binary min-heap over rank
// distances. A concrete struct heap avoids the interface-boxing overhead
// of container/heap, following the teacher's pkg/routing/dijkstra.go.
type pqItem struct {
	dist uint32
	rank uint32
}

// minHeap is a binary min-heap of pqItem ordered by dist, reused across
// queries via Reset rather than reallocated, mirroring the teacher's
// MinHeap type.
type minHeap struct {
	items []pqItem
}

func (h *minHeap) Reset() {
	h.items = h.items[:0]
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(it pqItem) {
	h.items = append(h.items, it)
	h.up(len(h.items) - 1)
}

func (h *minHeap) Pop() pqItem {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.down(0)
	}
	return top
}

func (h *minHeap) Peek() pqItem { return h.items[0] }

func (h *minHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[parent].dist <= h.items[i].dist {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *minHeap) down(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i
		if left < n && h.items[left].dist < h.items[smallest].dist {
			smallest = left
		}
		if right < n && h.items[right].dist < h.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.items[smallest], h.items[i] = h.items[i], h.items[smallest]
		i = smallest
	}
}
