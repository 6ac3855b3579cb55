package phast

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// blockBitset is a word-packed bitset of block indices, sized for
// NumNodes/BlockSize blocks. Kept local rather than reusing
// internal/bitset.Set: this one is sized in blocks (a few hundred bits for
// a multi-million-node graph), not in nodes, and the call sites here only
// ever need set/test/popcount, not the general Set API.
type blockBitset []uint64

func newBlockBitset(nBlocks int) blockBitset {
	return make(blockBitset, (nBlocks+63)/64)
}

func (b blockBitset) set(i int) {
	b[i/64] |= 1 << uint(i%64)
}

func (b blockBitset) test(i int) bool {
	return b[i/64]&(1<<uint(i%64)) != 0
}

func (b blockBitset) popcount() int {
	n := 0
	for _, word := range b {
		n += popcount64(word)
	}
	return n
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

// QueryBounded runs threshold-bounded one-to-all PHAST from origin using
// the adaptive gating strategy (spec.md §4.3): the upward phase tracks
// which BlockSize-sized rank blocks it activates, then the downward phase
// picks block-gated or plain scanning depending on whether the active
// ratio exceeds GatingThreshold. Distances beyond threshold are not
// necessarily exact (the downward phase may skip gated blocks entirely),
// but every distance <= threshold is.
func QueryBounded(topo *cch.Topology, w *cch.Weights, origin, threshold uint32) Result {
	n := int(topo.NumNodes)
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[origin] = 0

	var stats Stats
	nBlocks := (n + BlockSize - 1) / BlockSize
	active := newBlockBitset(nBlocks)
	active.set(int(origin) / BlockSize)

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
					active.set(int(v) / BlockSize)
				}
			}
		}
	}

	activeRatio := float64(active.popcount()) / float64(nBlocks)

	if activeRatio > GatingThreshold {
		scanDownwardPlain(topo, w, dist, &stats)
	} else {
		scanDownwardGated(topo, w, dist, active, threshold, &stats)
	}

	reachable := 0
	for _, d := range dist {
		if d <= threshold {
			reachable++
		}
	}
	return Result{Dist: dist, NReachable: reachable, Stats: stats}
}

func scanDownwardPlain(topo *cch.Topology, w *cch.Weights, dist []uint32, stats *Stats) {
	for rank := int64(topo.NumNodes) - 1; rank >= 0; rank-- {
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
}

func scanDownwardGated(topo *cch.Topology, w *cch.Weights, dist []uint32, active blockBitset, threshold uint32, stats *Stats) {
	n := int(topo.NumNodes)
	nBlocks := (n + BlockSize - 1) / BlockSize
	for block := nBlocks - 1; block >= 0; block-- {
		if !active.test(block) {
			stats.BlocksSkipped++
			continue
		}
		stats.BlocksProcessed++

		rankStart := block * BlockSize
		rankEnd := rankStart + BlockSize
		if rankEnd > n {
			rankEnd = n
		}
		for rank := rankEnd - 1; rank >= rankStart; rank-- {
			u := uint32(rank)
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
						active.set(int(v) / BlockSize)
					}
				}
			}
		}
	}
}
