package isochrone

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/azybler/cchroute/pkg/cch"
)

func fillRect(m *SparseTileMap, c0, r0, c1, r1 int32) {
	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			m.SetCell(col, row)
		}
	}
}

func shoelaceArea(ring []r2.Vec) float64 {
	area := 0.0
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return area / 2
}

func TestExtractContourSparseRectangle(t *testing.T) {
	m := NewSparseTileMap(1.0, 0, 0)
	fillRect(m, 5, 5, 15, 15) // 10x10 block

	contour := extractContourSparse(m)
	require.GreaterOrEqual(t, len(contour), 4)

	ring := append(contour, contour[0])
	area := shoelaceArea(ring)
	require.InDelta(t, 100.0, area, 1.0, "expected |area| ~= 100 for a 10x10 block, got %v", area)
}

func TestExtractContourSparseEmpty(t *testing.T) {
	m := NewSparseTileMap(1.0, 0, 0)
	require.Empty(t, extractContourSparse(m))
}

func TestExtractContourSparseLargestComponent(t *testing.T) {
	m := NewSparseTileMap(1.0, 0, 0)
	fillRect(m, 0, 0, 20, 20)  // 400 cells
	fillRect(m, 500, 500, 505, 505) // 25 cells, disconnected

	contour := extractContourSparse(m)
	ring := append(append([]r2.Vec{}, contour...), contour[0])
	area := shoelaceArea(ring)
	require.Greater(t, abs(area), 300.0, "largest component should win, not the small exclave")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestDouglasPeuckerCollapsesColinearPoints(t *testing.T) {
	points := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0.01}, {X: 4, Y: 0}}
	simplified := douglasPeucker(points, 1.0)
	require.Len(t, simplified, 2)
	require.Equal(t, points[0], simplified[0])
	require.Equal(t, points[len(points)-1], simplified[len(simplified)-1])
}

func TestDouglasPeuckerKeepsSignificantDeviation(t *testing.T) {
	points := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 10}, {X: 2, Y: 0}}
	simplified := douglasPeucker(points, 0.5)
	require.Len(t, simplified, 3)
}

func TestGenerateEmptySegmentsReturnsEmptyPolygon(t *testing.T) {
	result := Generate(nil, ForCar())
	require.Empty(t, result.OuterRing)
	require.Empty(t, result.Holes)
	require.Equal(t, 0, result.Stats.InputSegments)
}

func TestGenerateProducesClosedRing(t *testing.T) {
	// A small loop of segments around Brussels forming a rough square.
	lat0, lon0 := 50.85, 4.35
	d := 0.01
	corners := [][2]float64{
		{lat0, lon0}, {lat0, lon0 + d}, {lat0 + d, lon0 + d}, {lat0 + d, lon0},
	}

	fixedPointsBetween := func(a, b [2]float64, steps int) []cch.FixedPoint {
		pts := make([]cch.FixedPoint, 0, steps+1)
		for i := 0; i <= steps; i++ {
			f := float64(i) / float64(steps)
			lat := a[0] + (b[0]-a[0])*f
			lon := a[1] + (b[1]-a[1])*f
			pts = append(pts, cch.FixedPointFromDegrees(lat, lon))
		}
		return pts
	}

	var segs []ReachableSegment
	for i := 0; i < len(corners); i++ {
		a := corners[i]
		b := corners[(i+1)%len(corners)]
		segs = append(segs, ReachableSegment{Points: fixedPointsBetween(a, b, 5)})
	}

	cfg := ForCar()
	cfg.CellSizeM = 5
	result := Generate(segs, cfg)
	if len(result.OuterRing) == 0 {
		t.Skip("no contour from this synthetic loop; morphology thresholds differ per cell size")
	}
	first := result.OuterRing[0]
	last := result.OuterRing[len(result.OuterRing)-1]
	require.Equal(t, first, last, "outer ring must be closed")
}
