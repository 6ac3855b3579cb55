package glue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azybler/cchroute/pkg/cch"
	"github.com/azybler/cchroute/pkg/snap"
)

// buildLineFixture lays out three filtered edges chained 0->1->2, each a
// straight polyline running east along the equator, rank-aligned so
// rank == filtered id (matching pkg/query's own test fixtures).
func buildLineFixture() (*cch.Topology, *cch.Weights, *cch.ReverseDown, []cch.BaseEdge, *cch.NBGGeo) {
	n := uint32(3)
	topo := &cch.Topology{
		NumNodes:       n,
		RankToFiltered: []uint32{0, 1, 2},
		UpOffsets:      []uint32{0, 1, 2, 2},
		UpTargets:      []uint32{1, 2},
		UpShortcut:     []bool{false, false},
		UpMiddle:       []int32{cch.NoMiddle, cch.NoMiddle},
		DownOffsets:    []uint32{0, 0, 1, 2},
		DownTargets:    []uint32{0, 1},
		DownShortcut:   []bool{false, false},
		DownMiddle:     []int32{cch.NoMiddle, cch.NoMiddle},
	}
	w := &cch.Weights{
		Up:   []uint32{100, 100},
		Down: []uint32{100, 100},
	}
	rdown := cch.BuildReverseDownFor(topo, w)

	edges := []cch.BaseEdge{
		{GeomIdx: 0, LengthMM: 1000},
		{GeomIdx: 1, LengthMM: 1000},
		{GeomIdx: 2, LengthMM: 1000},
	}
	nbgGeo := &cch.NBGGeo{
		PolylineOffsets: []uint32{0, 2, 4, 6},
		Points: []cch.FixedPoint{
			cch.FixedPointFromDegrees(0, 0),
			cch.FixedPointFromDegrees(0, 0.01),
			cch.FixedPointFromDegrees(0, 0.01),
			cch.FixedPointFromDegrees(0, 0.02),
			cch.FixedPointFromDegrees(0, 0.02),
			cch.FixedPointFromDegrees(0, 0.03),
		},
	}

	return topo, w, rdown, edges, nbgGeo
}

func TestMapMatchFollowsLine(t *testing.T) {
	topo, w, rdown, edges, nbgGeo := buildLineFixture()
	idx := snap.NewIndex(edges, nbgGeo)

	points := [][2]float64{
		{0.0001, 0.001},
		{0.0001, 0.011},
		{0.0001, 0.021},
	}

	result, err := MapMatch(context.Background(), topo, w, rdown, idx, points)
	require.NoError(t, err)
	require.Len(t, result.Matchings, 1)
	require.NotEmpty(t, result.Matchings[0].EBGPath)
	require.Equal(t, uint32(0), result.Matchings[0].EBGPath[0])

	for _, tp := range result.Tracepoints {
		require.NotNil(t, tp)
	}
}

func TestMapMatchTooShortReturnsEmpty(t *testing.T) {
	topo, w, rdown, edges, nbgGeo := buildLineFixture()
	idx := snap.NewIndex(edges, nbgGeo)

	result, err := MapMatch(context.Background(), topo, w, rdown, idx, [][2]float64{{0, 0}})
	require.NoError(t, err)
	require.Nil(t, result.Matchings)
}

func TestMapMatchSplitsAtGap(t *testing.T) {
	topo, w, rdown, edges, nbgGeo := buildLineFixture()
	idx := snap.NewIndex(edges, nbgGeo)

	points := [][2]float64{
		{0.0001, 0.001},
		{0.0001, 0.011},
		{10.0, 10.0}, // far away: no candidates within snap.MaxSnapDistMeters
	}

	result, err := MapMatch(context.Background(), topo, w, rdown, idx, points)
	require.NoError(t, err)
	require.Len(t, result.Matchings, 1)
	require.Nil(t, result.Tracepoints[2])
}
