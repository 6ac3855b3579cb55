package snap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azybler/cchroute/pkg/cch"
)

// buildFixture lays out two filtered edges as straight 2-point polylines:
// edge 0 runs along the equator from (0,0) to (0,0.01) (~1.1km east);
// edge 1 runs north from (0,1) to (0.01,1).
func buildFixture() ([]cch.BaseEdge, *cch.NBGGeo) {
	edges := []cch.BaseEdge{
		{GeomIdx: 0},
		{GeomIdx: 1},
	}
	nbgGeo := &cch.NBGGeo{
		PolylineOffsets: []uint32{0, 2, 4},
		Points: []cch.FixedPoint{
			cch.FixedPointFromDegrees(0, 0),
			cch.FixedPointFromDegrees(0, 0.01),
			cch.FixedPointFromDegrees(0, 1),
			cch.FixedPointFromDegrees(0.01, 1),
		},
	}
	return edges, nbgGeo
}

func TestSnapFindsNearestEdge(t *testing.T) {
	edges, nbgGeo := buildFixture()
	idx := NewIndex(edges, nbgGeo)

	r, err := idx.Snap(0.00001, 0.005)
	require.NoError(t, err)
	require.Equal(t, uint32(0), r.FilteredID)
	require.Less(t, r.Dist, 10.0)
}

func TestSnapPicksCloserOfTwoEdges(t *testing.T) {
	edges, nbgGeo := buildFixture()
	idx := NewIndex(edges, nbgGeo)

	r, err := idx.Snap(0.005, 1.00001)
	require.NoError(t, err)
	require.Equal(t, uint32(1), r.FilteredID)
}

func TestSnapTooFarReturnsError(t *testing.T) {
	edges, nbgGeo := buildFixture()
	idx := NewIndex(edges, nbgGeo)

	_, err := idx.Snap(45, 45)
	require.ErrorIs(t, err, ErrPointTooFar)
}

func TestSnapRatioAtEndpoints(t *testing.T) {
	edges, nbgGeo := buildFixture()
	idx := NewIndex(edges, nbgGeo)

	r, err := idx.Snap(0, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), r.FilteredID)
	require.InDelta(t, 0.0, r.Ratio, 1e-6)
}
