package query

import (
	"fmt"
	"sort"

	"github.com/azybler/cchroute/pkg/cch"
)

// maxUnpackDepth bounds the explicit-stack shortcut expansion; actual CCH
// contraction trees are far shallower than this for any real road network,
// matching the teacher's pkg/routing/unpack.go maxUnpackDepth guard against
// a corrupt artifact producing a cyclic middle chain.
const maxUnpackDepth = 100

// hierEdge is one edge of the unexpanded hierarchy path: either an UP edge
// (from lower to higher rank) or a DOWN edge (from higher to lower rank),
// identified by its CSR position so Shortcut/Middle can be read directly.
type hierEdge struct {
	from, to uint32
	idx      uint32
	up       bool
}

// Path is the reconstructed point-to-point result: the total distance and
// the sequence of original (non-shortcut) arcs, each identified by its
// rank-space endpoints — the glue layer maps these to filtered/original EBG
// node ids and polylines.
type Path struct {
	Distance uint32
	Arcs     []OriginalArc
}

// OriginalArc is one leaf of shortcut expansion: a single original CCH arc
// between two ranks, directly traversable without further unpacking.
type OriginalArc struct {
	From, To uint32
	Weight   uint32
}

// Unpack reconstructs the full path from s to t given a completed Run
// result, by walking forward/backward parent chains to the meeting node and
// recursively expanding shortcuts with an explicit stack (spec.md §4.2
// step 4).
func Unpack(topo *cch.Topology, w *cch.Weights, s *State, res Result) (Path, error) {
	hier, err := hierarchyPath(topo, s, res.MeetNode)
	if err != nil {
		return Path{}, err
	}

	arcs := make([]OriginalArc, 0, len(hier)*2)
	stack := make([]hierEdge, 0, 32)
	for i := len(hier) - 1; i >= 0; i-- {
		stack = append(stack, hier[i])
	}

	depth := 0
	for len(stack) > 0 {
		depth++
		if depth > maxUnpackDepth*len(hier)+maxUnpackDepth {
			return Path{}, fmt.Errorf("query: shortcut unpack exceeded depth bound (corrupt artifact?)")
		}

		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var shortcut bool
		var middle int32
		var weight uint32
		if e.up {
			shortcut = topo.UpShortcut[e.idx]
			middle = topo.UpMiddle[e.idx]
		} else {
			shortcut = topo.DownShortcut[e.idx]
			middle = topo.DownMiddle[e.idx]
		}

		if !shortcut {
			if e.up {
				weight = w.Up[e.idx]
			} else {
				weight = w.Down[e.idx]
			}
			arcs = append(arcs, OriginalArc{From: e.from, To: e.to, Weight: weight})
			continue
		}

		m := uint32(middle)
		var first, second hierEdge
		if e.up {
			fi, ok := findUpEdge(topo, e.from, m)
			if !ok {
				return Path{}, fmt.Errorf("query: shortcut (%d->%d) missing up-edge to middle %d", e.from, e.to, m)
			}
			si, ok := findUpEdge(topo, m, e.to)
			if !ok {
				return Path{}, fmt.Errorf("query: shortcut (%d->%d) missing up-edge from middle %d", e.from, e.to, m)
			}
			first = hierEdge{from: e.from, to: m, idx: fi, up: true}
			second = hierEdge{from: m, to: e.to, idx: si, up: true}
		} else {
			fi, ok := findDownEdge(topo, e.from, m)
			if !ok {
				return Path{}, fmt.Errorf("query: shortcut (%d->%d) missing down-edge to middle %d", e.from, e.to, m)
			}
			si, ok := findDownEdge(topo, m, e.to)
			if !ok {
				return Path{}, fmt.Errorf("query: shortcut (%d->%d) missing down-edge from middle %d", e.from, e.to, m)
			}
			first = hierEdge{from: e.from, to: m, idx: fi, up: false}
			second = hierEdge{from: m, to: e.to, idx: si, up: false}
		}
		// Push second before first so first pops next, preserving order.
		stack = append(stack, second, first)
	}

	return Path{Distance: res.Distance, Arcs: arcs}, nil
}

// hierarchyPath walks the forward chain s -> meet and the backward chain
// meet -> t, producing the unexpanded sequence of UP/DOWN edges in
// traversal order.
func hierarchyPath(topo *cch.Topology, s *State, meet uint32) ([]hierEdge, error) {
	var fwd []hierEdge
	node := meet
	for {
		p := s.predFwd[node]
		if p.pred == noNode {
			break
		}
		fwd = append(fwd, hierEdge{from: p.pred, to: node, idx: p.edgeIdx, up: true})
		node = p.pred
		if len(fwd) > maxUnpackDepth*4 {
			return nil, fmt.Errorf("query: forward parent chain too long (corrupt state?)")
		}
	}
	for i, j := 0, len(fwd)-1; i < j; i, j = i+1, j-1 {
		fwd[i], fwd[j] = fwd[j], fwd[i]
	}

	var bwd []hierEdge
	node = meet
	for {
		p := s.predBwd[node]
		if p.pred == noNode {
			break
		}
		bwd = append(bwd, hierEdge{from: node, to: p.pred, idx: p.edgeIdx, up: false})
		node = p.pred
		if len(bwd) > maxUnpackDepth*4 {
			return nil, fmt.Errorf("query: backward parent chain too long (corrupt state?)")
		}
	}

	return append(fwd, bwd...), nil
}

// findUpEdge binary-searches u's sorted up-adjacency for target v,
// following the invariant validated at load (spec.md §4.1: up_targets
// sorted ascending by target rank).
func findUpEdge(topo *cch.Topology, u, v uint32) (uint32, bool) {
	start, end := topo.UpOffsets[u], topo.UpOffsets[u+1]
	targets := topo.UpTargets[start:end]
	i := sort.Search(len(targets), func(i int) bool { return targets[i] >= v })
	if i < len(targets) && targets[i] == v {
		return start + uint32(i), true
	}
	return 0, false
}

// findDownEdge linear-scans u's down-adjacency for target v. Down
// adjacency carries no sortedness guarantee (only up does, per spec.md
// §3), but per-node degree is small so a scan is cheap relative to the
// shortcut expansion it serves.
func findDownEdge(topo *cch.Topology, u, v uint32) (uint32, bool) {
	start, end := topo.DownOffsets[u], topo.DownOffsets[u+1]
	for i := start; i < end; i++ {
		if topo.DownTargets[i] == v {
			return i, true
		}
	}
	return 0, false
}
