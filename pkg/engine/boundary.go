package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/azybler/cchroute/internal/config"
	"github.com/azybler/cchroute/pkg/batch"
	"github.com/azybler/cchroute/pkg/cch"
	"github.com/azybler/cchroute/pkg/isochrone"
	"github.com/azybler/cchroute/pkg/phast"
	"github.com/azybler/cchroute/pkg/query"
	"github.com/azybler/cchroute/pkg/snap"
)

// P2PResult is the outcome of a point-to-point query (spec.md §6's
// p2p): the route distance, the ordered sequence of filtered-EBG edges
// traversed, and the stitched-together geometry.
type P2PResult struct {
	DistanceDs uint32 // deciseconds
	EBGPath    []uint32
	Polyline   []cch.FixedPoint
}

// P2P runs a bidirectional point-to-point query between two filtered-EBG
// edges and reconstructs the route geometry. ok is false, with a zero
// P2PResult, when no route exists — a normal outcome, not an error.
func (e *Engine) P2P(ctx context.Context, modeName string, srcFiltered, dstFiltered uint32) (P2PResult, bool, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return P2PResult{}, false, err
	}
	if int(srcFiltered) >= len(m.filteredToRank) || int(dstFiltered) >= len(m.filteredToRank) {
		return P2PResult{}, false, fmt.Errorf("engine: filtered id out of range for mode %q", modeName)
	}

	st := m.getState()
	defer m.putState(st)

	srcRank, dstRank := m.filteredToRank[srcFiltered], m.filteredToRank[dstFiltered]
	path, err := query.P2P(ctx, m.topo, m.weights, m.rdown, st, srcRank, dstRank)
	if err != nil {
		if errors.Is(err, query.ErrUnreachable) {
			return P2PResult{}, false, nil
		}
		return P2PResult{}, false, err
	}

	ebgPath := ranksToFiltered(m.rankToFiltered, path)
	return P2PResult{
		DistanceDs: path.Distance,
		EBGPath:    ebgPath,
		Polyline:   stitchPolyline(e.geo, m.edges, ebgPath),
	}, true, nil
}

// ranksToFiltered turns a Path's rank-space arc chain into the filtered-id
// node sequence it visited: the From of the first arc, then every arc's
// To — the same translation buildMatchedPath in pkg/glue performs.
func ranksToFiltered(rankToFiltered []uint32, path query.Path) []uint32 {
	if len(path.Arcs) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(path.Arcs)+1)
	out = append(out, rankToFiltered[path.Arcs[0].From])
	for _, a := range path.Arcs {
		out = append(out, rankToFiltered[a.To])
	}
	return out
}

// stitchPolyline concatenates the polyline of every filtered-EBG edge in
// ebgPath, dropping each segment's leading point when it duplicates the
// previous segment's trailing point (the two edges share that vertex).
func stitchPolyline(geo *cch.NBGGeo, edges []cch.BaseEdge, ebgPath []uint32) []cch.FixedPoint {
	var out []cch.FixedPoint
	for _, fid := range ebgPath {
		pts := geo.Polyline(edges[fid].GeomIdx)
		if len(out) > 0 && len(pts) > 0 && out[len(out)-1] == pts[0] {
			pts = pts[1:]
		}
		out = append(out, pts...)
	}
	return out
}

// Snap resolves a WGS84 coordinate to the nearest filtered-EBG edge for
// modeName, for callers that work in coordinates rather than raw ids.
func (e *Engine) Snap(modeName string, lat, lon float64) (snap.Result, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return snap.Result{}, err
	}
	return m.snapIdx.Snap(lat, lon)
}

// FilteredToRank translates a filtered-EBG node id into the rank-space id
// phast/matrix/isochrone expect, for callers chaining off Snap or P2P's
// EBGPath.
func (e *Engine) FilteredToRank(modeName string, filteredID uint32) (uint32, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return 0, err
	}
	if int(filteredID) >= len(m.filteredToRank) {
		return 0, fmt.Errorf("engine: filtered id out of range for mode %q", modeName)
	}
	return m.filteredToRank[filteredID], nil
}

// PHAST runs the one-to-all scan from a single rank-space origin,
// optionally bounded to a travel-time threshold (in deciseconds, matching
// the CCH's weight unit). A nil threshold runs the unbounded scan.
func (e *Engine) PHAST(modeName string, originRank uint32, thresholdDs *uint32) ([]uint32, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return nil, err
	}
	if originRank >= m.topo.NumNodes {
		return nil, fmt.Errorf("engine: origin rank %d out of range for mode %q", originRank, modeName)
	}

	if thresholdDs != nil {
		return phast.QueryBounded(m.topo, m.weights, originRank, *thresholdDs).Dist, nil
	}
	return phast.Query(m.topo, m.weights, originRank).Dist, nil
}

// Matrix runs bucket-CH many-to-many between rank-space source and
// target sets, returning a row-major |sources|x|targets| table
// (cch.MaxWeight marks an unreachable pair).
func (e *Engine) Matrix(modeName string, sourcesRank, targetsRank []uint32) ([][]uint32, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return nil, err
	}
	for _, r := range sourcesRank {
		if r >= m.topo.NumNodes {
			return nil, fmt.Errorf("engine: source rank %d out of range for mode %q", r, modeName)
		}
	}
	for _, r := range targetsRank {
		if r >= m.topo.NumNodes {
			return nil, fmt.Errorf("engine: target rank %d out of range for mode %q", r, modeName)
		}
	}
	return batch.Matrix(m.topo, m.weights, m.rdown, sourcesRank, targetsRank), nil
}

// IsochroneResult is the polygon produced by Isochrone, in WGS84 degrees.
type IsochroneResult struct {
	OuterRing []r2.Vec
	Holes     [][]r2.Vec
	Stats     isochrone.Stats
}

// Isochrone runs PHAST from a rank-space origin bounded to thresholdMs,
// extracts the reachable frontier, and polygonizes it per spec.md §4.5,
// using the mode's configured rasterization morphology.
func (e *Engine) Isochrone(modeName string, originRank uint32, thresholdMs uint32) (IsochroneResult, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return IsochroneResult{}, err
	}
	if originRank >= m.topo.NumNodes {
		return IsochroneResult{}, fmt.Errorf("engine: origin rank %d out of range for mode %q", originRank, modeName)
	}

	thresholdDs := thresholdMs / 100
	phastDist := phast.QueryBounded(m.topo, m.weights, originRank, thresholdDs).Dist
	segments := m.extractor.ExtractReachableSegments(phastDist, thresholdMs)

	cfg := morphologyConfig(e.cfg.Get().ForMode(modeName))
	res := isochrone.Generate(segments, cfg)
	return IsochroneResult{OuterRing: res.OuterRing, Holes: res.Holes, Stats: res.Stats}, nil
}

func morphologyConfig(m config.Morphology) isochrone.Config {
	return isochrone.Config{
		CellSizeM:          m.CellSizeM,
		DilationRounds:     m.Dilation,
		ErosionRounds:      m.Erosion,
		SimplifyToleranceM: m.SimplifyToleranceM,
	}
}

// geoJSONPolygon is a minimal RFC 7946 Polygon geometry, [ring][point][lon,lat].
type geoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// IsochroneGeoJSON is Isochrone plus GeoJSON serialization, the
// supplemented export path SPEC_FULL.md §3 adds for hand-off to mapping
// clients (go-json, matching the teacher's dependency for hot-path JSON
// encoding rather than encoding/json).
func (e *Engine) IsochroneGeoJSON(modeName string, originRank uint32, thresholdMs uint32) ([]byte, error) {
	res, err := e.Isochrone(modeName, originRank, thresholdMs)
	if err != nil {
		return nil, err
	}

	poly := geoJSONPolygon{Type: "Polygon"}
	poly.Coordinates = append(poly.Coordinates, ringToCoords(res.OuterRing))
	for _, hole := range res.Holes {
		poly.Coordinates = append(poly.Coordinates, ringToCoords(hole))
	}

	b, err := json.Marshal(poly)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal isochrone geojson: %w", err)
	}
	return b, nil
}

func ringToCoords(ring []r2.Vec) [][]float64 {
	out := make([][]float64, len(ring))
	for i, v := range ring {
		out[i] = []float64{v.X, v.Y} // (lon, lat), per isochrone.Result's doc comment
	}
	return out
}
