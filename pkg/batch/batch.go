// Package batch implements K-lane batched PHAST and bucket-CH many-to-many
// matrix computation (spec component C4).
//
// K-lane batched PHAST fuses up to K independent one-to-all PHAST
// downward scans into a single pass over the down-edge CSR: the edge
// (target, weight) is loaded once and applied to all K lanes, amortizing
// the dominant memory cost of the scan across however many sources share
// it. Bucket-CH (bucketch.go) instead targets the sparse |S|x|T| case,
// where running a full one-to-all scan per source would do far more work
// than a matrix actually needs.
package batch

import (
	"container/heap"

	"github.com/azybler/cchroute/pkg/cch"
)

// K is the lane width: 8 keeps one node's full set of distances (8 x
// uint32 = 32 bytes) inside a single cache line in the SoA layout below.
const K = 8

// BlockSize is the per-lane active-block granularity for
// QueryBatchBounded's lane masking. Finer than phast.BlockSize (512 vs
// 4096): with K lanes sharing one scan, a finer grid keeps more blocks
// maskable-off once only a few lanes remain active, which matters more
// here than in the single-lane case.
const BlockSize = 512

// Stats reports batched-scan counters, exposed for the debug CLI and
// tests, not part of the production query contract.
type Stats struct {
	NSources          int
	UpwardRelaxations int
	UpwardSettled     int

	DownwardRelaxations int
	DownwardImproved    int
}

// Result is the outcome of a batched query: one distance array per
// source lane (AoS — the natural shape for callers), plus stats. The
// downward scan itself operates on a transient SoA buffer (soa) and
// transposes into this AoS form only once, at the end.
type Result struct {
	Dist  [][]uint32 // len NLanes, each len NumNodes
	Stats Stats
}

type pqItem struct {
	dist uint32
	rank uint32
	lane uint8
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

// QueryBatch runs unbounded K-lane batched PHAST for up to K sources,
// producing an exact one-to-all distance array per source.
func QueryBatch(topo *cch.Topology, w *cch.Weights, sources []uint32) Result {
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

	for lane, origin := range sources {
		pq := &pqHeap{{dist: 0, rank: origin, lane: uint8(lane)}}
		heap.Init(pq)
		for pq.Len() > 0 {
			item := heap.Pop(pq).(pqItem)
			u, d := item.rank, item.dist
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
				}
			}
		}
	}

	for rank := int64(n) - 1; rank >= 0; rank-- {
		u := uint32(rank)
		base := int(u) * K

		start, end := topo.DownOffsets[u], topo.DownOffsets[u+1]
		if start == end {
			continue
		}

		anyReachable := false
		for lane := 0; lane < k; lane++ {
			if soa[base+lane] != cch.MaxWeight {
				anyReachable = true
				break
			}
		}
		if !anyReachable {
			continue
		}

		for i := start; i < end; i++ {
			v := topo.DownTargets[i]
			wt := w.Down[i]
			if wt == cch.MaxWeight {
				continue
			}
			stats.DownwardRelaxations++
			vbase := int(v) * K
			for lane := 0; lane < k; lane++ {
				du := soa[base+lane]
				if du == cch.MaxWeight {
					continue
				}
				nd := du + wt
				if nd < soa[vbase+lane] {
					soa[vbase+lane] = nd
					stats.DownwardImproved++
				}
			}
		}
	}

	return Result{Dist: transpose(soa, n, k), Stats: stats}
}

func transpose(soa []uint32, n, k int) [][]uint32 {
	dist := make([][]uint32, k)
	for lane := 0; lane < k; lane++ {
		dist[lane] = make([]uint32, n)
	}
	for v := 0; v < n; v++ {
		base := v * K
		for lane := 0; lane < k; lane++ {
			dist[lane][v] = soa[base+lane]
		}
	}
	return dist
}
