package phast

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// queryActiveSet is the active-set-gated PHAST variant (rPHAST-lite): a
// node-level (not block-level) active bitset propagated through the
// downward scan, skipping any node never marked reachable-within-threshold
// during the upward phase. It is not part of the production query
// surface — QueryBounded's block-gated adaptive strategy wins on real
// graphs — but it is kept as a second independent implementation of
// threshold-bounded PHAST so TestAdaptiveConsistency can cross-check
// QueryBounded's results against it (spec.md §8 property 7).
func queryActiveSet(topo *cch.Topology, w *cch.Weights, origin, threshold uint32) Result {
	n := int(topo.NumNodes)
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[origin] = 0

	var stats Stats
	activeWords := (n + 63) / 64
	active := make([]uint64, activeWords)
	markActive := func(v uint32) { active[v/64] |= 1 << (v % 64) }
	isActive := func(v uint32) bool { return active[v/64]&(1<<(v%64)) != 0 }
	markActive(origin)

	pq := &pqHeap{{dist: 0, rank: origin}}
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
				if nd <= threshold {
					markActive(v)
				}
			}
		}
	}

	for rank := n - 1; rank >= 0; rank-- {
		u := uint32(rank)
		if !isActive(u) {
			stats.NodesSkipped++
			continue
		}
		du := dist[u]
		if du == cch.MaxWeight || du > threshold {
			stats.NodesSkipped++
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
				if nd <= threshold {
					markActive(v)
				}
			}
		}
	}

	reachable := 0
	for _, d := range dist {
		if d <= threshold {
			reachable++
		}
	}
	return Result{Dist: dist, NReachable: reachable, Stats: stats}
}
