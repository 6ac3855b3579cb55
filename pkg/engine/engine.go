// Package engine is the Boundary API (spec.md §6): the loaded, queryable
// instance of a routing deployment that every collaborator outside this
// module — an HTTP surface, a CLI, an offline contractor — is expected to
// import instead of reaching into pkg/cch/pkg/query/pkg/phast/pkg/batch
// directly.
//
// Load assembles one Engine from the six on-disk artifacts spec.md §6
// names: the two mode-independent tables (ebg.nodes, nbg.geo) shared by
// every mode, plus each mode's own CCH topology, rank-aligned weights,
// filtered<->original id mapping, and per-base-edge physical travel time
// (cch.w.<mode>.u32, filtered.<mode>.ebg, w.<mode>.u32 — cch.<mode>.topo
// is the fourth). Filtered-EBG ids are used directly as array indices
// into the per-mode edge/time tables throughout pkg/isochrone and
// pkg/snap; Load does the one-time re-indexing from the artifacts'
// original-id order into that filtered-id order so nothing downstream
// has to carry the translation.
package engine

import (
	"fmt"
	"sync"

	"github.com/azybler/cchroute/internal/config"
	"github.com/azybler/cchroute/pkg/cch"
	"github.com/azybler/cchroute/pkg/isochrone"
	"github.com/azybler/cchroute/pkg/query"
	"github.com/azybler/cchroute/pkg/snap"
)

// ModePaths names the on-disk artifacts for one mode, per spec.md §6.
type ModePaths struct {
	Topo        string // cch.<mode>.topo
	Weights     string // cch.w.<mode>.u32
	Filtered    string // filtered.<mode>.ebg
	EdgeWeights string // w.<mode>.u32
}

// mode bundles one mode's loaded CCH plus the filtered-id-order views
// derived from it, and the scratch-state pool its queries reuse.
type mode struct {
	topo     *cch.Topology
	weights  *cch.Weights
	rdown    *cch.ReverseDown
	filtered *cch.FilteredEBG

	rankToFiltered []uint32 // = topo.RankToFiltered, named here for clarity
	filteredToRank []uint32 // inverse of the above

	edges     []cch.BaseEdge      // filtered-id order
	edgeTimes isochrone.EdgeTimes // filtered-id order, deciseconds
	extractor *isochrone.Extractor
	snapIdx   *snap.Index

	statePool sync.Pool
}

// Engine is a loaded, queryable instance of the Boundary API: one or more
// modes sharing a mode-independent base-edge table and polyline store.
type Engine struct {
	edges []cch.BaseEdge // ebg.nodes, original-id order, shared across modes
	geo   *cch.NBGGeo    // nbg.geo, shared across modes
	cfg   *config.Store

	modes map[string]*mode
}

// Load reads the shared ebg.nodes/nbg.geo artifacts plus every named
// mode's four mode-specific files, validates them, and builds the
// per-mode query/snap/isochrone state.
func Load(ebgPath, nbgGeoPath string, modePaths map[string]ModePaths, cfg *config.Store) (*Engine, error) {
	edges, err := cch.ReadEBGNodes(ebgPath)
	if err != nil {
		return nil, fmt.Errorf("engine: load %s: %w", ebgPath, err)
	}
	geo, err := cch.ReadNBGGeo(nbgGeoPath)
	if err != nil {
		return nil, fmt.Errorf("engine: load %s: %w", nbgGeoPath, err)
	}

	e := &Engine{edges: edges, geo: geo, cfg: cfg, modes: make(map[string]*mode)}

	for name, paths := range modePaths {
		m, err := loadMode(edges, geo, paths)
		if err != nil {
			return nil, fmt.Errorf("engine: load mode %q: %w", name, err)
		}
		e.modes[name] = m
	}

	return e, nil
}

func loadMode(sharedEdges []cch.BaseEdge, geo *cch.NBGGeo, paths ModePaths) (*mode, error) {
	topo, weights, filtered, err := cch.LoadMode(paths.Topo, paths.Weights, paths.Filtered)
	if err != nil {
		return nil, err
	}
	edgeWeightsOrig, err := cch.ReadEdgeWeights(paths.EdgeWeights)
	if err != nil {
		return nil, fmt.Errorf("load edge weights %s: %w", paths.EdgeWeights, err)
	}

	filteredEdges := make([]cch.BaseEdge, filtered.NumFiltered)
	filteredTimes := make(isochrone.EdgeTimes, filtered.NumFiltered)
	for fid, origID := range filtered.FilteredToOrig {
		if int(origID) >= len(sharedEdges) {
			return nil, fmt.Errorf("filtered id %d maps to out-of-range ebg.nodes id %d", fid, origID)
		}
		if int(origID) >= len(edgeWeightsOrig) {
			return nil, fmt.Errorf("filtered id %d maps to out-of-range w.u32 id %d", fid, origID)
		}
		filteredEdges[fid] = sharedEdges[origID]
		filteredTimes[fid] = edgeWeightsOrig[origID]
	}

	rdown := cch.BuildReverseDownFor(topo, weights)
	filteredToRank := invertRankToFiltered(topo)

	m := &mode{
		topo:     topo,
		weights:  weights,
		rdown:    rdown,
		filtered: filtered,

		rankToFiltered: topo.RankToFiltered,
		filteredToRank: filteredToRank,

		edges:     filteredEdges,
		edgeTimes: filteredTimes,
		snapIdx:   snap.NewIndex(filteredEdges, geo),
		extractor: isochrone.NewExtractor(topo, filteredEdges, geo, filteredTimes),
	}
	m.statePool.New = func() any {
		return query.NewState(topo.NumNodes)
	}
	return m, nil
}

// invertRankToFiltered builds the filtered-EBG-id -> rank lookup the
// Boundary API needs at its edge, since cch.Topology only stores the
// rank -> filtered direction (all a query itself ever needs).
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

func (e *Engine) mustMode(name string) (*mode, error) {
	m, ok := e.modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

// getState and putState recycle query.State values across Boundary API
// calls, since a fresh State allocates four rank-sized arrays — wasteful
// under repeated queries. Grounded directly on pkg/routing.Engine's
// qsPool: a sync.Pool of query state, Get/Reset/Put around each query.
func (m *mode) getState() *query.State {
	return m.statePool.Get().(*query.State)
}

func (m *mode) putState(s *query.State) {
	s.Reset()
	m.statePool.Put(s)
}
