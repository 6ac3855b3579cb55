package batch

import (
	"container/heap"
	"sort"

	"github.com/azybler/cchroute/pkg/cch"
)

// bucketEntry is one (target, distance) pair stored at an apex node v,
// meaning dist(v -> t) == distance for some t in the target set.
type bucketEntry struct {
	targetIdx uint32 // index into the caller's target slice, not a rank
	dist      uint32
}

// Buckets is the per-rank bucket table built once from a target set and
// reused against any number of source sets (spec.md §4.4 "Bucket-CH").
// Each bucket is sorted by targetIdx, unused here but kept for a future
// merge-join variant; probing is a linear scan since |T| buckets per
// apex are typically small.
type Buckets struct {
	offsets []uint32
	entries []bucketEntry
}

// BuildBuckets runs one *backward* search per target — relaxing the
// reverse-down index exactly as pkg/query's backward phase does — and
// records, for every settled node v, the bucket entry (targetIdx,
// dist(v->t)). A backward search from t over rdown is what computes
// dist(v, t) for every v, the opposite of a forward up-search from t
// (which would compute dist(t, v)); spec.md's "run an upward search [on
// t]" means upward in the reverse graph, i.e. this backward search, not
// an upward search in the forward graph.
func BuildBuckets(topo *cch.Topology, rdown *cch.ReverseDown, targets []uint32) *Buckets {
	n := topo.NumNodes
	perNode := make([][]bucketEntry, n)

	for ti, t := range targets {
		dist := make([]uint32, n)
		for i := range dist {
			dist[i] = cch.MaxWeight
		}
		dist[t] = 0

		pq := &pqHeap{{dist: 0, rank: t}}
		heap.Init(pq)
		for pq.Len() > 0 {
			item := heap.Pop(pq).(pqItem)
			u, d := item.rank, item.dist
			if d > dist[u] {
				continue
			}
			perNode[u] = append(perNode[u], bucketEntry{targetIdx: uint32(ti), dist: d})

			for _, e := range rdown.Edges(u) {
				v := e.Source()
				nd := d + e.Weight()
				if nd < dist[v] {
					dist[v] = nd
					heap.Push(pq, pqItem{dist: nd, rank: v})
				}
			}
		}
	}

	offsets := make([]uint32, n+1)
	for r := uint32(0); r < n; r++ {
		offsets[r+1] = offsets[r] + uint32(len(perNode[r]))
	}
	entries := make([]bucketEntry, offsets[n])
	for r := uint32(0); r < n; r++ {
		row := perNode[r]
		sort.Slice(row, func(i, j int) bool { return row[i].targetIdx < row[j].targetIdx })
		copy(entries[offsets[r]:offsets[r+1]], row)
	}

	return &Buckets{offsets: offsets, entries: entries}
}

// Probe runs one upward search from source and, each time a node v's
// tentative distance improves, scans buckets[v] to update the row M[s, :] of the many-to-many table —
// spec.md §4.4 step 2. numTargets sizes the returned row; entries never
// improved (unreachable) stay at cch.MaxWeight.
func (b *Buckets) Probe(topo *cch.Topology, w *cch.Weights, source uint32, numTargets int) []uint32 {
	n := topo.NumNodes
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = cch.MaxWeight
	}
	dist[source] = 0

	row := make([]uint32, numTargets)
	for i := range row {
		row[i] = cch.MaxWeight
	}

	relax := func(u, d uint32) {
		start, end := b.offsets[u], b.offsets[u+1]
		for i := start; i < end; i++ {
			e := b.entries[i]
			cand := d + e.dist
			if cand < row[e.targetIdx] {
				row[e.targetIdx] = cand
			}
		}
	}

	relax(source, 0)

	pq := &pqHeap{{dist: 0, rank: source}}
	heap.Init(pq)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u, d := item.rank, item.dist
		if d > dist[u] {
			continue
		}

		start, end := topo.UpOffsets[u], topo.UpOffsets[u+1]
		for i := start; i < end; i++ {
			v := topo.UpTargets[i]
			wt := w.Up[i]
			if wt == cch.MaxWeight {
				continue
			}
			nd := d + wt
			if nd < dist[v] {
				dist[v] = nd
				heap.Push(pq, pqItem{dist: nd, rank: v})
				relax(v, nd)
			}
		}
	}

	return row
}

// Matrix runs Probe for every source and assembles the full |S|x|T|
// table, row-major (row s, column t).
func Matrix(topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, sources, targets []uint32) [][]uint32 {
	buckets := BuildBuckets(topo, rdown, targets)
	table := make([][]uint32, len(sources))
	for i, s := range sources {
		table[i] = buckets.Probe(topo, w, s, len(targets))
	}
	return table
}
