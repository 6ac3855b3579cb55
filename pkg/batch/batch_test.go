package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/azybler/cchroute/pkg/cch"
)

// arc/buildRankAlignedCCH/plainDijkstra mirror pkg/phast's test fixture
// builder (each package's is unexported, so duplicated rather than
// shared — the same pattern pkg/query and pkg/phast already use
// independently).
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
	const maxU32 = ^uint32(0)
	adj := make([][]arc, n)
	for _, a := range arcs {
		adj[a.from] = append(adj[a.from], a)
	}
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = maxU32
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

// TestQueryBatchMatchesSingle checks spec.md §8 property 5: "Batched =
// single" — every lane's distance array equals a single-source PHAST run
// on the same origin (here, equals plain Dijkstra directly, since the
// fixture is shortcut-free).
func TestQueryBatchMatchesSingle(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)

	sources := []uint32{0, 1, 2, 3}
	res := QueryBatch(topo, w, sources)
	require.Len(t, res.Dist, len(sources))

	for lane, s := range sources {
		want := plainDijkstra(n, arcs, s)
		for v := uint32(0); v < n; v++ {
			if want[v] == ^uint32(0) {
				require.Equal(t, cch.MaxWeight, int(res.Dist[lane][v]), "lane=%d v=%d", lane, v)
			} else {
				require.Equal(t, want[v], res.Dist[lane][v], "lane=%d v=%d", lane, v)
			}
		}
	}
}

func TestQueryBatchPartialLanes(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)

	res := QueryBatch(topo, w, []uint32{0, 2})
	require.Len(t, res.Dist, 2)
	want0 := plainDijkstra(n, arcs, 0)
	want2 := plainDijkstra(n, arcs, 2)
	for v := uint32(0); v < n; v++ {
		require.Equal(t, want0[v], res.Dist[0][v])
		require.Equal(t, want2[v], res.Dist[1][v])
	}
}

func TestQueryBatchBoundedMatchesUnbounded(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)
	sources := []uint32{0, 1, 3}

	full := QueryBatch(topo, w, sources)
	for threshold := uint32(0); threshold <= 60; threshold += 5 {
		bounded := QueryBatchBounded(topo, w, sources, threshold)
		for lane := range sources {
			for v := uint32(0); v < n; v++ {
				wantReachable := full.Dist[lane][v] != cch.MaxWeight && full.Dist[lane][v] <= threshold
				gotReachable := bounded.Dist[lane][v] <= threshold
				require.Equalf(t, wantReachable, gotReachable, "lane=%d v=%d threshold=%d", lane, v, threshold)
				if wantReachable {
					require.Equal(t, full.Dist[lane][v], bounded.Dist[lane][v])
				}
			}
		}
	}
}

// TestBucketCHMatchesPHAST checks spec.md §8 property 9: "Bucket-CH =
// PHAST" — every matrix entry equals the corresponding single-source
// distance.
func TestBucketCHMatchesPHAST(t *testing.T) {
	n, arcs := diamondFixture()
	topo, w := buildRankAlignedCCH(n, arcs)
	rdown := cch.BuildReverseDownFor(topo, w)

	sources := []uint32{0, 1, 2, 3}
	targets := []uint32{0, 1, 2, 3}
	table := Matrix(topo, w, rdown, sources, targets)

	for si, s := range sources {
		want := plainDijkstra(n, arcs, s)
		for ti, tt := range targets {
			if want[tt] == ^uint32(0) {
				require.Equal(t, cch.MaxWeight, int(table[si][ti]), "s=%d t=%d", s, tt)
			} else {
				require.Equal(t, want[tt], table[si][ti], "s=%d t=%d", s, tt)
			}
		}
	}
}

func TestBucketCHMatchesPHASTProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 16).Draw(rt, "n")
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

		topo, w := buildRankAlignedCCH(uint32(n), arcs)
		rdown := cch.BuildReverseDownFor(topo, w)

		numSources := rapid.IntRange(1, n).Draw(rt, "numSources")
		numTargets := rapid.IntRange(1, n).Draw(rt, "numTargets")
		sources := make([]uint32, numSources)
		targets := make([]uint32, numTargets)
		for i := range sources {
			sources[i] = uint32(rapid.IntRange(0, n-1).Draw(rt, "src"))
		}
		for i := range targets {
			targets[i] = uint32(rapid.IntRange(0, n-1).Draw(rt, "tgt"))
		}

		table := Matrix(topo, w, rdown, sources, targets)
		for si, s := range sources {
			want := plainDijkstra(uint32(n), arcs, s)
			for ti, tt := range targets {
				if want[tt] == ^uint32(0) {
					if table[si][ti] != cch.MaxWeight {
						rt.Fatalf("s=%d t=%d: expected unreachable, got %d", s, tt, table[si][ti])
					}
					continue
				}
				if table[si][ti] != want[tt] {
					rt.Fatalf("s=%d t=%d: bucket-CH=%d, want=%d", s, tt, table[si][ti], want[tt])
				}
			}
		}
	})
}
