package phast

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// runReversePull is the PULL downward phase shared by both reverse
// queries below: for each rank in decreasing order, it pulls in the
// settled distance of every higher-rank up-neighbour. Ranks must be
// visited highest-first since dist[rank] is derived from its higher-rank
// neighbours' already-finalized distances. Block-gating never applies
// here (see QueryReverse's doc comment) so there's nothing to adapt —
// unlike the forward direction there's only one downward strategy.
func runReversePull(topo *cch.Topology, w *cch.Weights, dist []uint32, stats *Stats) {
	for r := int64(topo.NumNodes) - 1; r >= 0; r-- {
		rank := uint32(r)
		start, end := topo.UpOffsets[rank], topo.UpOffsets[rank+1]
		for i := start; i < end; i++ {
			v := topo.UpTargets[i]
			dv := dist[v]
			if dv == cch.MaxWeight {
				continue
			}
			wt := w.Up[i]
			if wt == cch.MaxWeight {
				continue
			}
			nd := dv + wt
			stats.DownwardRelaxations++
			if nd < dist[rank] {
				dist[rank] = nd
				stats.DownwardImproved++
			}
		}
	}
}

func countReachable(dist []uint32, threshold uint32) int {
	n := 0
	for _, d := range dist {
		if d <= threshold {
			n++
		}
	}
	return n
}

// QueryReverse runs reverse PHAST (all-to-one): exact distances from every
// rank to target, answering "from where can target be reached?" for
// reverse isochrones. It is structurally the forward PHAST query run on
// the reverse graph:
//
//   - Phase 1 (upward) relaxes the reverse-down index (rdown), which is
//     exactly the up-adjacency of the reverse graph — a down-edge (u, v)
//     in the forward graph is an up-edge (v, u) in the reverse graph.
//   - Phase 2 (downward) is a PULL scan over the forward up-adjacency
//     (topo.UpOffsets/UpTargets): for rank r, it looks at every
//     higher-rank up-neighbour v and pulls dist[r] = min(dist[r],
//     dist[v]+w). This is the reverse graph's down-adjacency, which this
//     package never materializes separately — the forward up-CSR already
//     *is* that adjacency, just read in the opposite role.
//
// Block-gating is not applied to the PULL scan: gating propagates
// activation in the direction data flows (newly-settled nodes activate
// blocks further along the scan), but PULL reads from higher-rank nodes
// that have already been visited, so a block's own activation can't be
// discovered before the block itself is scanned.
func QueryReverse(topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, target uint32) Result {
	n := int(topo.NumNodes)
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[target] = 0

	var stats Stats
	pq := &pqHeap{{dist: 0, rank: target}}
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

		for _, e := range rdown.Edges(u) {
			v := e.Source()
			nd := d + e.Weight()
			stats.UpwardRelaxations++
			if nd < dist[v] {
				dist[v] = nd
				heap.Push(pq, pqItem{dist: nd, rank: v})
				stats.UpwardPushes++
			}
		}
	}

	runReversePull(topo, w, dist, &stats)

	reachable := 0
	for _, d := range dist {
		if d != cch.MaxWeight {
			reachable++
		}
	}
	return Result{Dist: dist, NReachable: reachable, Stats: stats}
}

// QueryReverseBounded is QueryReverse with an early-stop on the upward
// phase once the priority queue's minimum exceeds threshold — cheaper
// when only the threshold-bounded reachable set matters (the common case
// for reverse isochrones), at the cost of distances beyond threshold no
// longer being guaranteed exact.
func QueryReverseBounded(topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, target, threshold uint32) Result {
	n := int(topo.NumNodes)
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[target] = 0

	var stats Stats
	pq := &pqHeap{{dist: 0, rank: target}}
	heap.Init(pq)
	stats.UpwardPushes++

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		stats.UpwardPops++
		u, d := item.rank, item.dist
		if d > threshold {
			break
		}
		if d > dist[u] {
			continue
		}
		stats.UpwardSettled++

		for _, e := range rdown.Edges(u) {
			v := e.Source()
			nd := d + e.Weight()
			stats.UpwardRelaxations++
			if nd < dist[v] {
				dist[v] = nd
				heap.Push(pq, pqItem{dist: nd, rank: v})
				stats.UpwardPushes++
			}
		}
	}

	runReversePull(topo, w, dist, &stats)

	return Result{Dist: dist, NReachable: countReachable(dist, threshold), Stats: stats}
}
