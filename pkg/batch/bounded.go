package batch

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// laneMaskBitset packs one lane-active mask per block: bit `lane` of
// masks[block] is set when that lane still has reachable work in that
// block. spec.md calls this out explicitly as a single u8-per-block mask
// (for K=8) rather than K parallel per-lane bitsets — a block with all
// lanes inactive collapses to a single zero-check instead of K separate
// ones.
type laneMaskBitset []uint8

func newLaneMaskBitset(nBlocks int) laneMaskBitset {
	return make(laneMaskBitset, nBlocks)
}

func (m laneMaskBitset) markActive(block, lane int) {
	m[block] |= 1 << uint(lane)
}

// QueryBatchBounded runs threshold-bounded K-lane batched PHAST: each
// lane's upward phase stops early once its heap minimum exceeds
// threshold, and the downward phase consults a per-block lane mask so a
// block with every lane inactive is skipped in a single comparison
// (spec.md §4.4 "Bounded batched PHAST").
func QueryBatchBounded(topo *cch.Topology, w *cch.Weights, sources []uint32, threshold uint32) Result {
	k := len(sources)
	if k > K {
		panic("batch: too many sources for one batch")
	}
	n := int(topo.NumNodes)

	soa := make([]uint32, n*K)
	for i := range soa {
		soa[i] = cch.MaxWeight
	}
	for lane, src := range sources {
		soa[int(src)*K+lane] = 0
	}

	var stats Stats
	stats.NSources = k

	nBlocks := (n + BlockSize - 1) / BlockSize
	masks := newLaneMaskBitset(nBlocks)

	for lane, src := range sources {
		masks.markActive(int(src)/BlockSize, lane)
	}

	for lane, origin := range sources {
		pq := &pqHeap{{dist: 0, rank: origin, lane: uint8(lane)}}
		heap.Init(pq)
		for pq.Len() > 0 {
			item := heap.Pop(pq).(pqItem)
			u, d := item.rank, item.dist
			if d > threshold {
				break
			}
			base := int(u)*K + lane
			if d > soa[base] {
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
				vbase := int(v)*K + lane
				if nd < soa[vbase] {
					soa[vbase] = nd
					heap.Push(pq, pqItem{dist: nd, rank: v, lane: uint8(lane)})
					if nd <= threshold {
						masks.markActive(int(v)/BlockSize, lane)
					}
				}
			}
		}
	}

	for rank := int64(n) - 1; rank >= 0; rank-- {
		u := uint32(rank)
		block := int(u) / BlockSize
		mask := masks[block]
		if mask == 0 {
			continue
		}

		start, end := topo.DownOffsets[u], topo.DownOffsets[u+1]
		if start == end {
			continue
		}

		base := int(u) * K
		for i := start; i < end; i++ {
			v := topo.DownTargets[i]
			wt := w.Down[i]
			if wt == cch.MaxWeight {
				continue
			}
			stats.DownwardRelaxations++
			vbase := int(v) * K

			for lane := 0; lane < k; lane++ {
				if mask&(1<<uint(lane)) == 0 {
					continue
				}
				du := soa[base+lane]
				if du == cch.MaxWeight {
					continue
				}
				nd := du + wt
				if nd <= threshold && nd < soa[vbase+lane] {
					soa[vbase+lane] = nd
					stats.DownwardImproved++
					masks.markActive(int(v)/BlockSize, lane)
				}
			}
		}
	}

	return Result{Dist: transpose(soa, n, k), Stats: stats}
}
