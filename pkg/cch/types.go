// Package cch implements the CCH store (spec component C1): loading and
// validating rank-aligned CSR topology and weights, and exposing the
// reverse-down index used by backward search and reverse PHAST.
//
// Node IDs in this package are contraction ranks in [0, N): rank-aligned,
// so rank r's adjacency lives at offset r in every CSR array. A separate
// RankToFiltered mapping recovers the upstream filtered-EBG node for
// geometry lookup; callers crossing the API boundary deal in filtered-space
// IDs and convert at the edges (pkg/engine), never inside a query.
package cch

import "math"

// NoMiddle is the sentinel stored in Middle for an original (non-shortcut)
// arc.
const NoMiddle = -1

// MaxWeight is the sentinel meaning "edge absent for this mode/weight
// profile."
const MaxWeight = math.MaxUint32

// Topology is the immutable rank-aligned CSR adjacency of a CCH: up-edges
// (source rank < target rank) and down-edges (source rank > target rank),
// plus the mapping back to filtered-EBG node space.
type Topology struct {
	NumNodes uint32

	UpOffsets   []uint32 // len NumNodes+1
	UpTargets   []uint32 // len M_up
	UpShortcut  []bool   // len M_up
	UpMiddle    []int32  // len M_up; NoMiddle for original arcs

	DownOffsets  []uint32
	DownTargets  []uint32
	DownShortcut []bool
	DownMiddle   []int32

	RankToFiltered []uint32 // len NumNodes

	NumOriginalArcs uint32
	NumShortcuts    uint32
}

// Weights holds one customizable weight profile (e.g. travel time or
// distance) matching a Topology's edge counts 1:1.
type Weights struct {
	Up   []uint32 // len M_up, deciseconds or millimeters; MaxWeight = absent
	Down []uint32 // len M_down
}

// revDownEntry is one entry of the reverse-down index: an edge (u -> v) in
// the down graph, stored indexed by v as "an up-neighbour of v in the
// reverse graph". downIdx is the position of this edge in the Topology's
// DownTargets/DownShortcut/DownMiddle arrays, kept so callers can recover
// shortcut-unpacking metadata for an edge discovered via the reverse index.
type revDownEntry struct {
	from    uint32
	weight  uint32
	downIdx uint32
}

// ReverseDown is the eagerly-built index over down-edges, keyed by target
// rank, required for backward P2P search and reverse PHAST. Entries with
// MaxWeight are pre-filtered out at build time so the hot loop is
// branch-free.
type ReverseDown struct {
	offsets []uint32       // len NumNodes+1
	entries []revDownEntry // len <= M_down
}

// Edges returns the reverse-down adjacency of rank v: source ranks u and
// weights w such that the down-edge (u -> v, w) exists in the CCH and
// w != MaxWeight.
func (r *ReverseDown) Edges(v uint32) []revDownEntry {
	return r.entries[r.offsets[v]:r.offsets[v+1]]
}

// Source returns the predecessor rank of a reverse-down entry.
func (e revDownEntry) Source() uint32 { return e.from }

// Weight returns the edge weight of a reverse-down entry.
func (e revDownEntry) Weight() uint32 { return e.weight }

// DownIndex returns the position of this edge in the owning Topology's
// Down* CSR arrays, for recovering Shortcut/Middle metadata during
// path unpacking.
func (e revDownEntry) DownIndex() uint32 { return e.downIdx }

// UpEdge is one row of edges_up(u) per spec.md §4.1.
type UpEdge struct {
	Target    uint32
	Weight    uint32
	Shortcut  bool
	Middle    int32
}

// DownEdge is one row of edges_down(u).
type DownEdge struct {
	Target   uint32
	Weight   uint32
	Shortcut bool
	Middle   int32
}
