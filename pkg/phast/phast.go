// Package phast implements the one-to-all PHAST scan (spec component C3):
// a two-phase shortest-path-tree computation from a single origin rank to
// every other rank in the CCH.
//
// Phase 1 (upward) is an ordinary PQ-based Dijkstra restricted to UP edges.
// Phase 2 (downward) needs no priority queue at all: because the CCH is
// rank-aligned, processing ranks in strictly decreasing order guarantees
// every predecessor of a DOWN edge has already settled by the time it's
// scanned, so a single linear pass over rank order suffices. That's the
// whole point of PHAST over plain one-to-all Dijkstra: the downward phase
// is a cache-friendly sequential scan instead of a heap-driven random walk.
package phast

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// BlockSize is the granularity of active-block gating in the downward
// phase: 4096 ranks per block keeps the active-block bitset tiny (a few
// hundred bytes even for a multi-million-node graph) while still being
// large enough that skipping a block skips real work.
const BlockSize = 4096

// GatingThreshold is the active-block-ratio cutoff above which gating
// overhead no longer pays for itself and a plain ungated downward scan
// wins; see QueryBounded's adaptive strategy selection.
const GatingThreshold = 0.25

// Stats reports per-phase counters, exposed for the debug CLI and tests;
// it is not part of the production query path's return contract.
type Stats struct {
	UpwardPushes      int
	UpwardPops        int
	UpwardRelaxations int
	UpwardSettled     int

	DownwardRelaxations int
	DownwardImproved    int

	BlocksSkipped   int
	BlocksProcessed int
	NodesSkipped    int
}

// Result is the outcome of a one-to-all query: a distance array indexed by
// rank, and the settle statistics.
type Result struct {
	Dist       []uint32
	NReachable int
	Stats      Stats
}

// pqItem and the heap wrapper mirror pkg/query's concrete min-heap; kept
// separate (rather than shared) because PHAST's queue never needs the
// parent-edge bookkeeping query.State carries, only (dist, rank) pairs.
type pqItem struct {
	dist uint32
	rank uint32
}

type pqHeap []pqItem

func (h pqHeap) Len() int            { return len(h) }
func (h pqHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h pqHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pqHeap) Push(x interface{}) { *h = append(*h, x.(pqItem)) }
func (h *pqHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Query runs unbounded one-to-all PHAST from origin: every rank's exact
// distance, no threshold pruning. Used when the caller needs the whole
// distance array (e.g. a matrix row with no meaningful cutoff).
func Query(topo *cch.Topology, w *cch.Weights, origin uint32) Result {
	n := topo.NumNodes
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[origin] = 0

	var stats Stats
	pq := &pqHeap{{dist: 0, rank: origin}}
	heap.Init(pq)
	stats.UpwardPushes++

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		stats.UpwardPops++
		u, d := item.rank, item.dist
		if d > dist[u] {
			continue
		}
		stats.UpwardSettled++

		start, end := topo.UpOffsets[u], topo.UpOffsets[u+1]
		for i := start; i < end; i++ {
			v := topo.UpTargets[i]
			wt := w.Up[i]
			if wt == cch.MaxWeight {
				continue
			}
			nd := d + wt
			stats.UpwardRelaxations++
			if nd < dist[v] {
				dist[v] = nd
				heap.Push(pq, pqItem{dist: nd, rank: v})
				stats.UpwardPushes++
			}
		}
	}

	for rank := int64(n) - 1; rank >= 0; rank-- {
		u := uint32(rank)
		du := dist[u]
		if du == cch.MaxWeight {
			continue
		}
		start, end := topo.DownOffsets[u], topo.DownOffsets[u+1]
		for i := start; i < end; i++ {
			v := topo.DownTargets[i]
			wt := w.Down[i]
			if wt == cch.MaxWeight {
				continue
			}
			nd := du + wt
			stats.DownwardRelaxations++
			if nd < dist[v] {
				dist[v] = nd
				stats.DownwardImproved++
			}
		}
	}

	reachable := 0
	for _, d := range dist {
		if d != cch.MaxWeight {
			reachable++
		}
	}
	return Result{Dist: dist, NReachable: reachable, Stats: stats}
}

// Reachability reports, for a finished distance array and a threshold: how
// many ranks are within threshold, and how many down-edges originate from
// one of those ranks. pkg/isochrone's frontier extraction does not call it.
func Reachability(topo *cch.Topology, dist []uint32, threshold uint32) (reachableNodes, reachableEdges, totalNodes, totalEdges int) {
	totalNodes = int(topo.NumNodes)
	totalEdges = len(topo.DownTargets)
	for u := uint32(0); u < topo.NumNodes; u++ {
		if dist[u] != cch.MaxWeight && dist[u] <= threshold {
			reachableNodes++
			reachableEdges += int(topo.DownOffsets[u+1] - topo.DownOffsets[u])
		}
	}
	return
}
