package isochrone

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Config is a mode-indexed morphology preset, per spec.md §4.5's
// requirement that mode differences live in data, not branched code.
type Config struct {
	CellSizeM          float64
	DilationRounds     int
	ErosionRounds      int
	SimplifyToleranceM float64
}

// ForCar, ForBike, ForFoot are the default per-mode presets, matching
// SPEC_FULL.md §4's config schema table.
func ForCar() Config {
	return Config{CellSizeM: 30, DilationRounds: 2, ErosionRounds: 1, SimplifyToleranceM: 25}
}

func ForBike() Config {
	return Config{CellSizeM: 40, DilationRounds: 2, ErosionRounds: 1, SimplifyToleranceM: 30}
}

func ForFoot() Config {
	return Config{CellSizeM: 25, DilationRounds: 2, ErosionRounds: 1, SimplifyToleranceM: 20}
}

// Stats reports timing-free counters about a Generate call, exposed for
// the debug CLI and tests.
type Stats struct {
	InputSegments                int
	ActiveTiles                  int
	ActiveTilesAfterMorphology   int
	TotalCellsSet                int
	ContourVerticesBeforeSimplify int
	ContourVerticesAfterSimplify  int
}

// Result is the polygon produced by Generate: an outer ring (always) plus
// any holes (always empty — spec.md §4.5 step 5 keeps only the largest
// connected component and discards the rest rather than emitting a
// multipolygon).
type Result struct {
	OuterRing []r2.Vec // (lon, lat) degrees
	Holes     [][]r2.Vec
	Stats     Stats
}

// Generate runs spec.md §4.5 steps 3-6 over a set of reachable polyline
// segments (already produced by Extractor.ExtractReachableSegments):
// raster stamping, morphological closing, boundary tracing, simplification,
// and reprojection to WGS84.
func Generate(segments []ReachableSegment, cfg Config) Result {
	var stats Stats
	stats.InputSegments = len(segments)

	if len(segments) == 0 {
		return Result{Stats: stats}
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)

	mercSegments := make([][]r2.Vec, len(segments))
	for i, seg := range segments {
		pts := make([]r2.Vec, len(seg.Points))
		for j, p := range seg.Points {
			lat, lon := p.ToDegrees()
			pt := ToMercator(lat, lon)
			pts[j] = pt
			minX = math.Min(minX, pt.X)
			maxX = math.Max(maxX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxY = math.Max(maxY, pt.Y)
		}
		mercSegments[i] = pts
	}

	margin := cfg.CellSizeM * 3
	minX -= margin
	minY -= margin

	tileMap := NewSparseTileMap(cfg.CellSizeM, minX, minY)
	for _, seg := range mercSegments {
		for i := 0; i+1 < len(seg); i++ {
			tileMap.StampLine(seg[i].X, seg[i].Y, seg[i+1].X, seg[i+1].Y)
		}
		for _, pt := range seg {
			col, row := tileMap.MercatorToCell(pt.X, pt.Y)
			tileMap.SetCell(col, row)
		}
	}
	stats.ActiveTiles = len(tileMap.Tiles)

	closed := tileMap
	for i := 0; i < cfg.DilationRounds; i++ {
		closed = dilateSparse(closed)
	}
	for i := 0; i < cfg.ErosionRounds; i++ {
		closed = erodeSparse(closed)
	}
	stats.ActiveTilesAfterMorphology = len(closed.Tiles)
	stats.TotalCellsSet = closed.countSetCells()

	contour := extractContourSparse(closed)
	stats.ContourVerticesBeforeSimplify = len(contour)

	if len(contour) == 0 {
		return Result{Stats: stats}
	}

	wgs84 := make([]r2.Vec, len(contour))
	for i, c := range contour {
		x := minX + c.X*cfg.CellSizeM
		y := minY + c.Y*cfg.CellSizeM
		lon, lat := FromMercator(x, y)
		wgs84[i] = r2.Vec{X: lon, Y: lat}
	}

	toleranceDeg := cfg.SimplifyToleranceM / 111000.0
	simplified := douglasPeucker(wgs84, toleranceDeg)
	stats.ContourVerticesAfterSimplify = len(simplified)

	return Result{OuterRing: closeRing(simplified), Stats: stats}
}

// closeRing ensures the outer ring satisfies spec.md §4.5's "closed"
// output invariant (first == last vertex).
func closeRing(ring []r2.Vec) []r2.Vec {
	if len(ring) == 0 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first == last {
		return ring
	}
	return append(append([]r2.Vec{}, ring...), first)
}

// extractContourSparse traces every boundary component with Moore-neighbor
// tracing and keeps the one with the most vertices, per spec.md §4.5
// step 5. Tracing is O(perimeter): it walks only cells adjacent to the
// filled/empty boundary, never the filled area's interior.
func extractContourSparse(m *SparseTileMap) []r2.Vec {
	if len(m.Tiles) == 0 {
		return nil
	}

	visited := make(map[boundaryEdge]struct{})
	var largest []r2.Vec

	for _, start := range findAllBoundaryStarts(m) {
		if _, ok := visited[start]; ok {
			continue
		}
		contour := traceBoundaryEdges(m, start, visited)
		if len(contour) >= 3 && len(contour) > len(largest) {
			largest = contour
		}
	}

	return largest
}

type boundaryEdge struct {
	col, row int32
	edge     uint8 // 0=North 1=East 2=South 3=West
}

// findAllBoundaryStarts returns one candidate starting edge per filled
// cell that has at least one empty 4-neighbor, scanning every allocated
// tile's bitmap directly rather than densifying to a raster.
func findAllBoundaryStarts(m *SparseTileMap) []boundaryEdge {
	var starts []boundaryEdge

	for coord, tile := range m.Tiles {
		baseCol := coord.TX * TileSize
		baseRow := coord.TY * TileSize

		for lr := 0; lr < TileSize; lr++ {
			rowBits := tile.Bits[lr]
			if rowBits == 0 {
				continue
			}
			for lc := 0; lc < TileSize; lc++ {
				if (rowBits>>uint(lc))&1 == 0 {
					continue
				}
				col := baseCol + int32(lc)
				row := baseRow + int32(lr)

				switch {
				case !m.GetCell(col, row-1):
					starts = append(starts, boundaryEdge{col, row, 0})
				case !m.GetCell(col-1, row):
					starts = append(starts, boundaryEdge{col, row, 3})
				case !m.GetCell(col+1, row):
					starts = append(starts, boundaryEdge{col, row, 1})
				case !m.GetCell(col, row+1):
					starts = append(starts, boundaryEdge{col, row, 2})
				}
			}
		}
	}
	return starts
}

// traceBoundaryEdges walks one boundary component clockwise (filled cells
// on the walker's right), emitting the corner vertex at the start of each
// edge, and marks every edge visited so later starts on the same
// component are skipped.
func traceBoundaryEdges(m *SparseTileMap, start boundaryEdge, visited map[boundaryEdge]struct{}) []r2.Vec {
	var contour []r2.Vec

	cur := start
	maxIter := len(m.Tiles)*TileSize*TileSize*4 + 16
	for iter := 0; iter < maxIter; iter++ {
		visited[cur] = struct{}{}

		var vx, vy float64
		switch cur.edge {
		case 0:
			vx, vy = float64(cur.col), float64(cur.row)
		case 1:
			vx, vy = float64(cur.col)+1, float64(cur.row)
		case 2:
			vx, vy = float64(cur.col)+1, float64(cur.row)+1
		default:
			vx, vy = float64(cur.col), float64(cur.row)+1
		}
		contour = append(contour, r2.Vec{X: vx, Y: vy})

		next := nextBoundaryEdge(m, cur)
		if next == start {
			break
		}
		cur = next
	}

	return contour
}

// nextBoundaryEdge determines the next clockwise boundary edge: turn
// right at a convex corner, go straight along a flat boundary, or turn
// left at a concave corner — the canonical marching-squares transition
// spec.md §4.5 step 5 names explicitly.
func nextBoundaryEdge(m *SparseTileMap, e boundaryEdge) boundaryEdge {
	col, row := e.col, e.row
	switch e.edge {
	case 0: // North, walking East
		aheadRight := m.GetCell(col+1, row-1)
		ahead := m.GetCell(col+1, row)
		switch {
		case aheadRight:
			return boundaryEdge{col + 1, row - 1, 3}
		case ahead:
			return boundaryEdge{col + 1, row, 0}
		default:
			return boundaryEdge{col, row, 1}
		}
	case 1: // East, walking South
		aheadRight := m.GetCell(col+1, row+1)
		ahead := m.GetCell(col, row+1)
		switch {
		case aheadRight:
			return boundaryEdge{col + 1, row + 1, 0}
		case ahead:
			return boundaryEdge{col, row + 1, 1}
		default:
			return boundaryEdge{col, row, 2}
		}
	case 2: // South, walking West
		aheadRight := m.GetCell(col-1, row+1)
		ahead := m.GetCell(col-1, row)
		switch {
		case aheadRight:
			return boundaryEdge{col - 1, row + 1, 1}
		case ahead:
			return boundaryEdge{col - 1, row, 2}
		default:
			return boundaryEdge{col, row, 3}
		}
	default: // West, walking North
		aheadRight := m.GetCell(col-1, row-1)
		ahead := m.GetCell(col, row-1)
		switch {
		case aheadRight:
			return boundaryEdge{col - 1, row - 1, 2}
		case ahead:
			return boundaryEdge{col, row - 1, 3}
		default:
			return boundaryEdge{col, row, 0}
		}
	}
}

// douglasPeucker simplifies a polyline to within tolerance, recursively
// keeping only the point of maximum perpendicular deviation from the
// chord between the current endpoints (spec.md §4.5 step 6).
func douglasPeucker(points []r2.Vec, tolerance float64) []r2.Vec {
	if len(points) <= 2 {
		out := make([]r2.Vec, len(points))
		copy(out, points)
		return out
	}

	maxDist := 0.0
	maxIdx := 0
	start, end := points[0], points[len(points)-1]

	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], start, end)
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist > tolerance {
		left := douglasPeucker(points[:maxIdx+1], tolerance)
		right := douglasPeucker(points[maxIdx:], tolerance)
		out := append(left[:len(left)-1:len(left)-1], right...)
		return out
	}
	return []r2.Vec{start, end}
}

func perpendicularDistance(point, start, end r2.Vec) float64 {
	dx := end.X - start.X
	dy := end.Y - start.Y
	lenSq := dx*dx + dy*dy

	if lenSq < 1e-12 {
		pdx := point.X - start.X
		pdy := point.Y - start.Y
		return math.Sqrt(pdx*pdx + pdy*pdy)
	}

	t := ((point.X-start.X)*dx + (point.Y-start.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	projX := start.X + t*dx
	projY := start.Y + t*dy
	pdx := point.X - projX
	pdy := point.Y - projY
	return math.Sqrt(pdx*pdx + pdy*pdy)
}
