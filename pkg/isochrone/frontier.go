package isochrone

import (
	"github.com/azybler/cchroute/pkg/cch"
)

// EdgeTimes holds the physical (turn-cost-free) traversal time of every
// filtered-EBG edge, in deciseconds, indexed the same way as the BaseEdge
// table. This is distinct from a CCH Weights profile: Up/Down carry
// shortcut and turn-cost-aware weights between *ranks*, whereas EdgeTimes
// is the plain "how long does traversing this one road segment take"
// figure frontier extraction needs to find where inside an edge the
// threshold falls.
type EdgeTimes []uint32

// FrontierCutPoint is the point where the threshold crosses a base edge,
// per spec.md §4.5 step 2.
type FrontierCutPoint struct {
	FilteredID uint32
	DistStart  uint32 // ms, distance from origin to edge tail
	EdgeWeight uint32 // ms, physical traversal time of the edge
	CutFrac    float32
	LatFxp     int32
	LonFxp     int32
}

// ReachablePoint is a single interior sample, used only for coarse
// reachable-area sampling (the Rust original's extract_reachable, kept as
// a test/debug aid rather than a contour input).
type ReachablePoint struct {
	LatFxp int32
	LonFxp int32
}

// ReachableSegment is a (possibly truncated) polyline of a reachable base
// edge, the unit the sparse raster stamps.
type ReachableSegment struct {
	Points []cch.FixedPoint
}

// Extractor turns a rank-indexed PHAST distance array into base-graph
// frontier geometry. It holds the three read-only tables needed to go
// from a filtered-EBG node back to real-world geometry.
type Extractor struct {
	topo    *cch.Topology
	edges   []cch.BaseEdge
	nbgGeo  *cch.NBGGeo
	times   EdgeTimes
}

// NewExtractor builds an Extractor over the graph's base-edge table,
// shared polyline geometry, and per-edge physical travel times.
func NewExtractor(topo *cch.Topology, edges []cch.BaseEdge, nbgGeo *cch.NBGGeo, times EdgeTimes) *Extractor {
	return &Extractor{topo: topo, edges: edges, nbgGeo: nbgGeo, times: times}
}

// distanceByFiltered re-indexes a rank-aligned PHAST distance array by
// filtered-EBG node id, since frontier extraction walks base edges, not
// ranks. dist and the returned slice are both cch.MaxWeight-filled for
// unreached nodes.
func (ex *Extractor) distanceByFiltered(dist []uint32) []uint32 {
	n := len(ex.edges)
	out := make([]uint32, n)
	for i := range out {
		out[i] = cch.MaxWeight
	}
	for rank, filtered := range ex.topo.RankToFiltered {
		out[filtered] = dist[rank]
	}
	return out
}

// msFromDeciseconds converts a deciseconds distance to milliseconds,
// saturating at MaxUint32 per spec.md §4.5 step 1.
func msFromDeciseconds(ds uint32) uint32 {
	if ds == cch.MaxWeight {
		return cch.MaxWeight
	}
	v := uint64(ds) * 100
	if v > cch.MaxWeight {
		return cch.MaxWeight
	}
	return uint32(v)
}

// Extract computes frontier cut points: for every base edge whose tail is
// reachable but whose head crosses the threshold, the interpolated
// boundary position (spec.md §4.5 step 2).
func (ex *Extractor) Extract(phastDist []uint32, thresholdMs uint32) []FrontierCutPoint {
	distByFiltered := ex.distanceByFiltered(phastDist)
	var cuts []FrontierCutPoint

	for filteredID, distDs := range distByFiltered {
		if distDs == cch.MaxWeight {
			continue
		}
		distMs := msFromDeciseconds(distDs)
		if distMs > thresholdMs {
			continue
		}

		weightDs := ex.times[filteredID]
		if weightDs == 0 {
			continue
		}
		weightMs := weightDs * 100

		distEndMs := saturatingAdd(distMs, weightMs)
		if distEndMs <= thresholdMs {
			continue // fully inside, not a frontier edge
		}

		cutFrac := float32(thresholdMs-distMs) / float32(weightMs)
		geomIdx := ex.edges[filteredID].GeomIdx
		lat, lon := ex.interpolatePosition(geomIdx, cutFrac)

		cuts = append(cuts, FrontierCutPoint{
			FilteredID: uint32(filteredID),
			DistStart:  distMs,
			EdgeWeight: weightMs,
			CutFrac:    cutFrac,
			LatFxp:     lat,
			LonFxp:     lon,
		})
	}
	return cuts
}

// ExtractReachable returns the midpoint of every base edge fully inside
// the threshold, for coarse interior sampling (spec.md §4.5's rasterizer
// uses ExtractReachableSegments instead; this mirrors the Rust original's
// extract_reachable for parity/debugging).
func (ex *Extractor) ExtractReachable(phastDist []uint32, thresholdMs uint32) []ReachablePoint {
	distByFiltered := ex.distanceByFiltered(phastDist)
	var pts []ReachablePoint

	for filteredID, distDs := range distByFiltered {
		if distDs == cch.MaxWeight {
			continue
		}
		distMs := msFromDeciseconds(distDs)
		if distMs > thresholdMs {
			continue
		}
		weightDs := ex.times[filteredID]
		if weightDs == 0 {
			continue
		}
		weightMs := weightDs * 100
		if saturatingAdd(distMs, weightMs) > thresholdMs {
			continue
		}
		geomIdx := ex.edges[filteredID].GeomIdx
		lat, lon := ex.interpolatePosition(geomIdx, 0.5)
		pts = append(pts, ReachablePoint{LatFxp: lat, LonFxp: lon})
	}
	return pts
}

// ExtractFrontierSegments returns only the truncated polylines of edges
// that cross the threshold boundary — the minimal input a concave-hull
// style polygonizer would need. The sparse raster (ExtractReachableSegments)
// is what pkg/isochrone's Generate actually stamps, since the morphological
// closing step needs interior coverage, not just the boundary edges.
func (ex *Extractor) ExtractFrontierSegments(phastDist []uint32, thresholdMs uint32) []ReachableSegment {
	distByFiltered := ex.distanceByFiltered(phastDist)
	var segs []ReachableSegment

	for filteredID, distDs := range distByFiltered {
		if distDs == cch.MaxWeight {
			continue
		}
		distMs := msFromDeciseconds(distDs)
		if distMs > thresholdMs {
			continue
		}
		weightDs := ex.times[filteredID]
		if weightDs == 0 {
			continue
		}
		weightMs := weightDs * 100
		distEndMs := saturatingAdd(distMs, weightMs)
		if distEndMs <= thresholdMs {
			continue
		}

		cutFrac := float32(thresholdMs-distMs) / float32(weightMs)
		geomIdx := ex.edges[filteredID].GeomIdx
		points := ex.extractPartialPolyline(geomIdx, cutFrac)
		if len(points) > 0 {
			segs = append(segs, ReachableSegment{Points: points})
		}
	}
	return segs
}

// ExtractReachableSegments returns full polylines for fully-reachable
// edges and truncated polylines for frontier edges — the complete set of
// geometry the sparse raster stamps (spec.md §4.5 step 2/3).
func (ex *Extractor) ExtractReachableSegments(phastDist []uint32, thresholdMs uint32) []ReachableSegment {
	distByFiltered := ex.distanceByFiltered(phastDist)
	var segs []ReachableSegment

	for filteredID, distDs := range distByFiltered {
		if distDs == cch.MaxWeight {
			continue
		}
		distMs := msFromDeciseconds(distDs)
		if distMs > thresholdMs {
			continue
		}
		weightDs := ex.times[filteredID]
		if weightDs == 0 {
			continue
		}
		weightMs := weightDs * 100
		geomIdx := ex.edges[filteredID].GeomIdx
		polyline := ex.nbgGeo.Polyline(geomIdx)
		if len(polyline) == 0 {
			continue
		}

		distEndMs := saturatingAdd(distMs, weightMs)
		if distEndMs <= thresholdMs {
			points := make([]cch.FixedPoint, len(polyline))
			copy(points, polyline)
			segs = append(segs, ReachableSegment{Points: points})
			continue
		}

		cutFrac := float32(thresholdMs-distMs) / float32(weightMs)
		points := ex.extractPartialPolyline(geomIdx, cutFrac)
		if len(points) > 0 {
			segs = append(segs, ReachableSegment{Points: points})
		}
	}
	return segs
}

// interpolatePosition is extractPartialPolyline's single-point form, used
// by Extract to locate just the cut vertex.
func (ex *Extractor) interpolatePosition(geomIdx uint32, fraction float32) (latFxp, lonFxp int32) {
	points := ex.extractPartialPolyline(geomIdx, fraction)
	if len(points) == 0 {
		return 0, 0
	}
	last := points[len(points)-1]
	return last.LatFxp, last.LonFxp
}

// extractPartialPolyline returns the prefix of the polyline at geomIdx up
// to and including the interpolated point at `fraction` of its length,
// assuming uniform distribution across polyline segments by index
// (matching the Rust original, which does not weight by per-segment
// physical length).
func (ex *Extractor) extractPartialPolyline(geomIdx uint32, fraction float32) []cch.FixedPoint {
	polyline := ex.nbgGeo.Polyline(geomIdx)
	nPts := len(polyline)
	if nPts == 0 || fraction <= 0 {
		return nil
	}
	if nPts == 1 {
		return []cch.FixedPoint{polyline[0]}
	}
	if fraction >= 1 {
		out := make([]cch.FixedPoint, nPts)
		copy(out, polyline)
		return out
	}

	nSegments := nPts - 1
	segmentFrac := fraction * float32(nSegments)
	segmentIdx := int(segmentFrac)
	if segmentIdx > nSegments-1 {
		segmentIdx = nSegments - 1
	}
	localFrac := segmentFrac - float32(segmentIdx)

	points := make([]cch.FixedPoint, segmentIdx+1)
	copy(points, polyline[:segmentIdx+1])

	if localFrac > 0 && segmentIdx+1 < nPts {
		p1 := polyline[segmentIdx]
		p2 := polyline[segmentIdx+1]
		lat := p1.LatFxp + int32(float32(p2.LatFxp-p1.LatFxp)*localFrac)
		lon := p1.LonFxp + int32(float32(p2.LonFxp-p1.LonFxp)*localFrac)
		points = append(points, cch.FixedPoint{LatFxp: lat, LonFxp: lon})
	}
	return points
}

func saturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > cch.MaxWeight {
		return cch.MaxWeight
	}
	return uint32(sum)
}
