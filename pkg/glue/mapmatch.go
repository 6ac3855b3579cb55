package glue

import (
	"context"
	"errors"
	"math"

	"github.com/azybler/cchroute/pkg/cch"
	"github.com/azybler/cchroute/pkg/query"
	"github.com/azybler/cchroute/pkg/snap"
)

// MaxCandidates bounds how many near-equidistant snap candidates are
// considered per GPS fix, matching step9/map_match.rs's MAX_CANDIDATES.
const MaxCandidates = 8

// GapThresholdM is the great-circle distance, in meters, beyond which two
// consecutive GPS fixes are treated as belonging to different traces
// (matching step9/map_match.rs's GAP_THRESHOLD_M).
const GapThresholdM = 2000.0

// metersPerDegLat approximates degrees-to-meters for the gap check; a
// flat local approximation is adequate since it only decides where to
// split a trace, never a reported distance.
const metersPerDegLat = 111_000.0

// Candidate is one snap candidate for a single GPS observation.
type Candidate struct {
	FilteredID uint32
	Lat, Lon   float64
	Dist       float64 // meters from the GPS fix to the snapped point
}

// Tracepoint is the matched position of a single input GPS observation.
type Tracepoint struct {
	Lat, Lon       float64
	FilteredID     uint32
	MatchingIndex  int
	WaypointIndex  int
}

// Matching is one continuous matched sub-route (a trace may be split into
// several, at gaps or at observations with no usable candidate).
type Matching struct {
	EBGPath    []uint32
	DurationDs uint32
}

// MatchResult is the outcome of matching a full GPS trace.
type MatchResult struct {
	Matchings   []Matching
	Tracepoints []*Tracepoint // nil entries mark unmatched observations
}

// MapMatch snaps a trace of (lat, lon) GPS points onto the road network.
// This is the "thin" version named in SPEC_FULL.md §3: each observation is
// independently snapped to its nearest candidate edges via idx.SnapK, and
// consecutive observations are connected by picking whichever pair of
// candidates minimizes cumulative P2P cost — a forward dynamic program
// over candidate indices, the same shape as step9/map_match.rs's Viterbi
// trellis but scored by actual path cost instead of a Gaussian/exponential
// HMM likelihood (the original's candidate-graph Viterbi is noted in
// DESIGN.md as a possible future upgrade, not implemented here).
func MapMatch(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, idx *snap.Index, points [][2]float64) (MatchResult, error) {
	n := len(points)
	if n < 2 {
		return MatchResult{}, nil
	}

	filteredToRank := invertRankToFiltered(topo)

	candidates := make([][]Candidate, n)
	for i, p := range points {
		lat, lon := p[0], p[1]
		for _, r := range idx.SnapK(lat, lon, MaxCandidates) {
			candidates[i] = append(candidates[i], Candidate{
				FilteredID: r.FilteredID,
				Lat:        r.Lat,
				Lon:        r.Lon,
				Dist:       r.Dist,
			})
		}
	}

	segments := findSegments(points, candidates)

	result := MatchResult{Tracepoints: make([]*Tracepoint, n)}
	st := query.NewState(topo.NumNodes)

	for _, seg := range segments {
		m, ok, err := matchSegment(ctx, topo, w, rdown, st, filteredToRank, points, candidates, seg)
		if err != nil {
			return MatchResult{}, err
		}
		if !ok {
			continue
		}
		matchingIdx := len(result.Matchings)
		result.Matchings = append(result.Matchings, m.matching)
		for pos, obsIdx := range seg {
			c := m.chosen[pos]
			result.Tracepoints[obsIdx] = &Tracepoint{
				Lat:           c.Lat,
				Lon:           c.Lon,
				FilteredID:    c.FilteredID,
				MatchingIndex: matchingIdx,
				WaypointIndex: pos,
			}
		}
	}

	return result, nil
}

// findSegments splits a trace into runs of consecutive observations that
// each have at least one candidate, breaking additionally wherever two
// consecutive fixes are farther apart than GapThresholdM.
func findSegments(points [][2]float64, candidates [][]Candidate) [][]int {
	var segments [][]int
	var cur []int

	flush := func() {
		if len(cur) >= 2 {
			segments = append(segments, cur)
		}
		cur = nil
	}

	for i, c := range candidates {
		if len(c) == 0 {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			if greatCircleM(points[prev], points[i]) > GapThresholdM {
				flush()
			}
		}
		cur = append(cur, i)
	}
	flush()
	return segments
}

func greatCircleM(a, b [2]float64) float64 {
	dLat := (b[0] - a[0]) * metersPerDegLat
	lonScale := metersPerDegLat * math.Cos(a[0]*math.Pi/180)
	dLon := (b[1] - a[1]) * lonScale
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

type segmentMatch struct {
	matching Matching
	chosen   []Candidate
}

// matchSegment runs the forward cost DP over one gap-free run of
// observations and reconstructs the EBG edge path along the winning
// candidate sequence.
func matchSegment(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, st *query.State, filteredToRank []uint32, points [][2]float64, candidates [][]Candidate, seg []int) (segmentMatch, bool, error) {
	n := len(seg)
	cands := make([][]Candidate, n)
	for i, obsIdx := range seg {
		cands[i] = candidates[obsIdx]
	}

	dp := make([][]uint32, n)
	parent := make([][]int, n)
	dp[0] = make([]uint32, len(cands[0]))
	parent[0] = make([]int, len(cands[0]))
	for c := range parent[0] {
		parent[0][c] = -1
	}

	for t := 1; t < n; t++ {
		dp[t] = make([]uint32, len(cands[t]))
		parent[t] = make([]int, len(cands[t]))
		for c := range dp[t] {
			dp[t][c] = math.MaxUint32
			parent[t][c] = -1
		}

		for p, prevCand := range cands[t-1] {
			if dp[t-1][p] == math.MaxUint32 {
				continue
			}
			for c, curCand := range cands[t] {
				step, ok, err := pairCost(ctx, topo, w, rdown, st, filteredToRank, prevCand.FilteredID, curCand.FilteredID)
				if err != nil {
					return segmentMatch{}, false, err
				}
				if !ok {
					continue
				}
				total := saturatingAddU32(dp[t-1][p], step)
				if total < dp[t][c] {
					dp[t][c] = total
					parent[t][c] = p
				}
			}
		}
	}

	best := -1
	var bestCost uint32 = math.MaxUint32
	for c, cost := range dp[n-1] {
		if cost < bestCost {
			bestCost = cost
			best = c
		}
	}
	if best == -1 {
		return segmentMatch{}, false, nil
	}

	chosenIdx := make([]int, n)
	chosenIdx[n-1] = best
	for t := n - 1; t > 0; t-- {
		chosenIdx[t-1] = parent[t][chosenIdx[t]]
	}

	chosen := make([]Candidate, n)
	for t := range chosenIdx {
		chosen[t] = cands[t][chosenIdx[t]]
	}

	ebgPath, err := buildMatchedPath(ctx, topo, w, rdown, st, filteredToRank, chosen)
	if err != nil {
		return segmentMatch{}, false, err
	}

	return segmentMatch{
		matching: Matching{EBGPath: ebgPath, DurationDs: bestCost},
		chosen:   chosen,
	}, true, nil
}

// pairCost returns the P2P cost from one filtered-EBG edge to another, or
// ok=false if there is no path. Identical edges cost zero.
func pairCost(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, st *query.State, filteredToRank []uint32, from, to uint32) (uint32, bool, error) {
	if from == to {
		return 0, true, nil
	}
	srcRank, dstRank := filteredToRank[from], filteredToRank[to]
	path, err := query.P2P(ctx, topo, w, rdown, st, srcRank, dstRank)
	if err != nil {
		if errors.Is(err, query.ErrUnreachable) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return path.Distance, true, nil
}

// buildMatchedPath connects the winning candidate sequence with P2P
// queries, concatenating their unpacked arc sequences and translating
// rank-space path edges back to filtered-EBG ids, deduplicating
// consecutive repeats at the seams.
func buildMatchedPath(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, st *query.State, filteredToRank []uint32, chosen []Candidate) ([]uint32, error) {
	full := []uint32{chosen[0].FilteredID}

	for t := 1; t < len(chosen); t++ {
		prev, cur := chosen[t-1].FilteredID, chosen[t].FilteredID
		if prev == cur {
			continue
		}
		srcRank, dstRank := filteredToRank[prev], filteredToRank[cur]
		path, err := query.P2P(ctx, topo, w, rdown, st, srcRank, dstRank)
		if err != nil {
			if errors.Is(err, query.ErrUnreachable) {
				full = append(full, cur)
				continue
			}
			return nil, err
		}
		for i, a := range path.Arcs {
			if i == 0 {
				continue // duplicate of the edge already appended
			}
			full = append(full, topo.RankToFiltered[a.From])
		}
		full = append(full, topo.RankToFiltered[path.Arcs[len(path.Arcs)-1].To])
	}

	return dedupConsecutive(full), nil
}

func dedupConsecutive(ids []uint32) []uint32 {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// invertRankToFiltered builds the filtered-EBG-id -> rank lookup that the
// query layer needs at its API boundary; cch.Topology only stores the
// rank -> filtered direction since that is all a query itself ever needs.
func invertRankToFiltered(topo *cch.Topology) []uint32 {
	maxFiltered := uint32(0)
	for _, f := range topo.RankToFiltered {
		if f > maxFiltered {
			maxFiltered = f
		}
	}
	inv := make([]uint32, maxFiltered+1)
	for rank, filtered := range topo.RankToFiltered {
		inv[filtered] = uint32(rank)
	}
	return inv
}
