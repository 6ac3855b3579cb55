package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/azybler/cchroute/pkg/cache"
	"github.com/azybler/cchroute/pkg/glue"
)

// Trip solves the TSP over the rank-space stops, via Matrix + glue.Trip,
// and returns the visiting order expressed back in the caller's stop
// indices.
func (e *Engine) Trip(modeName string, stopsRank []uint32, roundTrip bool) (order []int, costDs uint32, err error) {
	matrix, err := e.Matrix(modeName, stopsRank, stopsRank)
	if err != nil {
		return nil, 0, err
	}
	order, costDs = glue.Trip(matrix, roundTrip)
	return order, costDs, nil
}

// MapMatch snaps and matches a GPS trace onto the named mode's road
// network.
func (e *Engine) MapMatch(ctx context.Context, modeName string, points [][2]float64) (glue.MatchResult, error) {
	m, err := e.mustMode(modeName)
	if err != nil {
		return glue.MatchResult{}, err
	}
	return glue.MapMatch(ctx, m.topo, m.weights, m.rdown, m.snapIdx, points)
}

// CachedIsochrone wraps Isochrone with a SQLite memoization layer (spec
// component glue; see SPEC_FULL.md's dependency table): repeated requests
// for the same (mode, origin, threshold) within the cache's lifetime skip
// the PHAST-bounded scan and polygon rasterization entirely.
func (e *Engine) CachedIsochrone(c *cache.Cache, modeName string, originRank, thresholdMs uint32) ([]byte, error) {
	digest := cache.Key(modeName, originRank, thresholdMs)
	now := time.Now().Unix()

	if v, ok, err := c.Get(digest, now); err != nil {
		return nil, fmt.Errorf("engine: cache get: %w", err)
	} else if ok {
		return v, nil
	}

	geojson, err := e.IsochroneGeoJSON(modeName, originRank, thresholdMs)
	if err != nil {
		return nil, err
	}
	if err := c.Put(digest, geojson, now); err != nil {
		return nil, fmt.Errorf("engine: cache put: %w", err)
	}
	return geojson, nil
}
