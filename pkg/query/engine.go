package query

import (
	"context"

	"github.com/azybler/cchroute/pkg/cch"
)

// P2P runs the full rank-to-rank point-to-point query: seed source and
// target at distance zero, search, and unpack. Callers starting mid-edge
// (the common case once a WGS84 coordinate has been snapped onto a base
// edge) should use SeedFwd/SeedBwd directly with the fractional edge
// offsets instead of this convenience wrapper — see pkg/snap. pkg/engine's
// P2P takes whole filtered-EBG edges and calls this wrapper.
func P2P(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, s *State, src, dst uint32) (Path, error) {
	s.Reset()
	SeedFwd(s, src, 0)
	SeedBwd(s, dst, 0)

	res, err := Run(ctx, topo, w, rdown, s)
	if err != nil {
		return Path{}, err
	}
	return Unpack(topo, w, s, res)
}
