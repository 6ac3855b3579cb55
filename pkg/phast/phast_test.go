package phast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/azybler/cchroute/pkg/cch"
)

// arc and buildRankAlignedCCH duplicate pkg/query's test fixture builder
// (unexported there, so not reusable across packages) — same technique: a
// rank-aligned CCH with no flagged shortcuts, assembled from an arbitrary
// directed arc list by folding paths through lower ranks into direct arcs.
type arc struct {
	from, to uint32
	weight   uint32
}

func buildRankAlignedCCH(n uint32, arcs []arc) (*cch.Topology, *cch.Weights) {
	type row struct {
		target uint32
		weight uint32
	}
	upRows := make([][]row, n)
	downRows := make([][]row, n)

	// Contract ranks in increasing order: every path x -> v -> y through a
	// lower rank v is folded into a direct x -> y arc (kept only if shorter),
	// so every shortest path has an up-then-down form.
	const unreached = ^uint32(0)
	best := make([][]uint32, n)
	for i := range best {
		best[i] = make([]uint32, n)
		for j := range best[i] {
			best[i][j] = unreached
		}
	}
	for _, a := range arcs {
		if a.from != a.to && a.weight < best[a.from][a.to] {
			best[a.from][a.to] = a.weight
		}
	}
	for v := uint32(0); v < n; v++ {
		for x := v + 1; x < n; x++ {
			for y := v + 1; y < n; y++ {
				if x != y && best[x][v] != unreached && best[v][y] != unreached && best[x][v]+best[v][y] < best[x][y] {
					best[x][y] = best[x][v] + best[v][y]
				}
			}
		}
	}
	for x := uint32(0); x < n; x++ {
		for y := uint32(0); y < n; y++ {
			switch {
			case best[x][y] == unreached:
			case y > x:
				upRows[x] = append(upRows[x], row{y, best[x][y]})
			case y < x:
				downRows[x] = append(downRows[x], row{y, best[x][y]})
			}
		}
	}

	for r := uint32(0); r < n; r++ {
		rows := upRows[r]
		for i := 1; i < len(rows); i++ {
			for j := i; j > 0 && rows[j-1].target > rows[j].target; j-- {
				rows[j-1], rows[j] = rows[j], rows[j-1]
			}
		}
	}

	topo := &cch.Topology{NumNodes: n, RankToFiltered: make([]uint32, n)}
	for i := range topo.RankToFiltered {
		topo.RankToFiltered[i] = uint32(i)
	}
	w := &cch.Weights{}

	topo.UpOffsets = make([]uint32, n+1)
	topo.DownOffsets = make([]uint32, n+1)
	for r := uint32(0); r < n; r++ {
		topo.UpOffsets[r+1] = topo.UpOffsets[r] + uint32(len(upRows[r]))
		topo.DownOffsets[r+1] = topo.DownOffsets[r] + uint32(len(downRows[r]))
	}
	topo.UpTargets = make([]uint32, topo.UpOffsets[n])
	topo.UpShortcut = make([]bool, topo.UpOffsets[n])
	topo.UpMiddle = make([]int32, topo.UpOffsets[n])
	topo.DownTargets = make([]uint32, topo.DownOffsets[n])
	topo.DownShortcut = make([]bool, topo.DownOffsets[n])
	topo.DownMiddle = make([]int32, topo.DownOffsets[n])
	w.Up = make([]uint32, topo.UpOffsets[n])
	w.Down = make([]uint32, topo.DownOffsets[n])

	for r := uint32(0); r < n; r++ {
		for i, row := range upRows[r] {
			idx := topo.UpOffsets[r] + uint32(i)
			topo.UpTargets[idx] = row.target
			topo.UpMiddle[idx] = cch.NoMiddle
			w.Up[idx] = row.weight
		}
		for i, row := range downRows[r] {
			idx := topo.DownOffsets[r] + uint32(i)
			topo.DownTargets[idx] = row.target
			topo.DownMiddle[idx] = cch.NoMiddle
			w.Down[idx] = row.weight
		}
	}

	return topo, w
}

func plainDijkstra(n uint32, arcs []arc, source uint32) []uint32 {
	adj := make([][]arc, n)
	for _, a := range arcs {
		adj[a.from] = append(adj[a.from], a)
	}
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = math.MaxUint32
	}
	dist[source] = 0

	type item struct {
		node uint32
		dist uint32
	}
	pq := []item{{source, 0}}
	for len(pq) > 0 {
		minIdx := 0
		for i := 1; i < len(pq); i++ {
			if pq[i].dist < pq[minIdx].dist {
				minIdx = i
			}
		}
		cur := pq[minIdx]
		pq[minIdx] = pq[len(pq)-1]
		pq = pq[:len(pq)-1]
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, a := range adj[cur.node] {
			nd := cur.dist + a.weight
			if nd < dist[a.to] {
				dist[a.to] = nd
				pq = append(pq, item{a.to, nd})
			}
		}
	}
	return dist
}

func diamondFixture() (uint32, []arc) {
	arcs := []arc{
		{0, 1, 10}, {1, 0, 10},
		{0, 2, 25}, {2, 0, 25},
		{1, 2, 10}, {2, 1, 10},
		{1, 3, 50}, {3, 1, 50},
		{2, 3, 5}, {3, 2, 5},
	}
	return 4, arcs
}

// TestQueryMatchesDijkstra checks spec.md §8 property 2: PHAST = CCH-Dijkstra.
func TestQueryMatchesDijkstra(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)

	for s := uint32(0); s < n; s++ {
		want := plainDijkstra(n, arcs, s)
		res := Query(topo, w, s)
		for v := uint32(0); v < n; v++ {
			if want[v] == math.MaxUint32 {
				require.Equal(t, cch.MaxWeight, int(res.Dist[v]), "s=%d v=%d", s, v)
			} else {
				require.Equal(t, want[v], res.Dist[v], "s=%d v=%d", s, v)
			}
		}
	}
}

func TestQueryMatchesDijkstraProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(rt, "n")
		numArcs := rapid.IntRange(0, n*3).Draw(rt, "numArcs")

		arcs := make([]arc, 0, numArcs)
		for i := 0; i < numArcs; i++ {
			from := rapid.IntRange(0, n-1).Draw(rt, "from")
			to := rapid.IntRange(0, n-1).Draw(rt, "to")
			if from == to {
				continue
			}
			weight := rapid.IntRange(1, 1000).Draw(rt, "weight")
			arcs = append(arcs, arc{uint32(from), uint32(to), uint32(weight)})
		}

		s := rapid.IntRange(0, n-1).Draw(rt, "s")
		topo, w := buildRankAlignedCCH(uint32(n), arcs)
		want := plainDijkstra(uint32(n), arcs, uint32(s))
		res := Query(topo, w, uint32(s))

		for v := 0; v < n; v++ {
			if want[v] == math.MaxUint32 {
				if res.Dist[v] != cch.MaxWeight {
					rt.Fatalf("s=%d v=%d: expected unreachable, got %d", s, v, res.Dist[v])
				}
				continue
			}
			if res.Dist[v] != want[v] {
				rt.Fatalf("s=%d v=%d: PHAST=%d, Dijkstra=%d", s, v, res.Dist[v], want[v])
			}
		}
	})
}

// TestAdaptiveConsistency cross-checks the production adaptive
// block-gated QueryBounded against the unbounded Query and the
// independently-gated queryActiveSet oracle, for every threshold that
// changes which nodes fall in or out of range.
func TestAdaptiveConsistency(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)

	for s := uint32(0); s < n; s++ {
		full := Query(topo, w, s)
		for threshold := uint32(0); threshold <= 60; threshold += 5 {
			bounded := QueryBounded(topo, w, s, threshold)
			active := queryActiveSet(topo, w, s, threshold)

			for v := uint32(0); v < n; v++ {
				wantReachable := full.Dist[v] != cch.MaxWeight && full.Dist[v] <= threshold
				gotBounded := bounded.Dist[v] <= threshold
				gotActive := active.Dist[v] <= threshold
				require.Equalf(t, wantReachable, gotBounded, "bounded s=%d v=%d threshold=%d", s, v, threshold)
				require.Equalf(t, wantReachable, gotActive, "active-set s=%d v=%d threshold=%d", s, v, threshold)
				if wantReachable {
					require.Equal(t, full.Dist[v], bounded.Dist[v])
					require.Equal(t, full.Dist[v], active.Dist[v])
				}
			}
		}
	}
}

func TestQueryReverseMatchesForward(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)
	rdown := cch.BuildReverseDownFor(topo, w)

	for target := uint32(0); target < n; target++ {
		rev := QueryReverse(topo, w, rdown, target)
		for s := uint32(0); s < n; s++ {
			want := Query(topo, w, s).Dist[target]
			require.Equalf(t, want, rev.Dist[s], "s=%d target=%d", s, target)
		}
	}
}

func TestQueryReverseBoundedMatchesReverse(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)
	rdown := cch.BuildReverseDownFor(topo, w)

	for target := uint32(0); target < n; target++ {
		full := QueryReverse(topo, w, rdown, target)
		for threshold := uint32(0); threshold <= 60; threshold += 5 {
			bounded := QueryReverseBounded(topo, w, rdown, target, threshold)
			for v := uint32(0); v < n; v++ {
				wantReachable := full.Dist[v] != cch.MaxWeight && full.Dist[v] <= threshold
				gotReachable := bounded.Dist[v] <= threshold
				require.Equalf(t, wantReachable, gotReachable, "target=%d v=%d threshold=%d", target, v, threshold)
			}
		}
	}
}

func TestReachability(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)
	res := Query(topo, w, 0)

	reachNodes, reachEdges, totalNodes, totalEdges := Reachability(topo, res.Dist, 20)
	require.LessOrEqual(t, reachNodes, totalNodes)
	require.LessOrEqual(t, reachEdges, totalEdges)
	require.Equal(t, int(n), totalNodes)
}
