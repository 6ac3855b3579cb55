package cch

import (
	"fmt"
	"sort"
)

// Store is the loaded, validated CCH for one mode: topology, one or more
// weight profiles, and the eagerly-built reverse-down index. Topology and
// weights are owned once by the engine process; all queries take immutable
// slices from here. Topology and weight arrays are not mutated after
// NewStore returns; AddWeights inserts into the profile map without locking.
type Store struct {
	Topo    *Topology
	weights map[string]*Weights
	rdown   *ReverseDown
}

// NewStore validates topo, builds the reverse-down index, and wraps the
// default weight profile. Additional profiles can be attached with
// AddWeights (e.g. a "distance" profile alongside "time").
func NewStore(topo *Topology, weightProfile string, weights *Weights) (*Store, error) {
	if err := validateTopology(topo); err != nil {
		return nil, fmt.Errorf("cch: invalid topology: %w", err)
	}
	if err := validateWeights(topo, weights); err != nil {
		return nil, fmt.Errorf("cch: invalid weights %q: %w", weightProfile, err)
	}

	s := &Store{
		Topo:    topo,
		weights: map[string]*Weights{weightProfile: weights},
		rdown:   buildReverseDown(topo, weights),
	}
	return s, nil
}

// AddWeights validates and attaches an additional weight profile
// (recustomization leaves topology untouched, per spec.md §3).
func (s *Store) AddWeights(profile string, w *Weights) error {
	if err := validateWeights(s.Topo, w); err != nil {
		return fmt.Errorf("cch: invalid weights %q: %w", profile, err)
	}
	s.weights[profile] = w
	return nil
}

// Weights returns the named weight profile, or nil if it wasn't loaded.
func (s *Store) Weights(profile string) *Weights {
	return s.weights[profile]
}

// NumNodes returns the number of ranks in the CCH.
func (s *Store) NumNodes() uint32 { return s.Topo.NumNodes }

// EdgesUp returns the up-adjacency of rank u: O(deg).
func (s *Store) EdgesUp(w *Weights, u uint32) []UpEdge {
	t := s.Topo
	start, end := t.UpOffsets[u], t.UpOffsets[u+1]
	out := make([]UpEdge, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, UpEdge{
			Target:   t.UpTargets[i],
			Weight:   w.Up[i],
			Shortcut: t.UpShortcut[i],
			Middle:   t.UpMiddle[i],
		})
	}
	return out
}

// EdgesDown returns the down-adjacency of rank u: O(deg).
func (s *Store) EdgesDown(w *Weights, u uint32) []DownEdge {
	t := s.Topo
	start, end := t.DownOffsets[u], t.DownOffsets[u+1]
	out := make([]DownEdge, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, DownEdge{
			Target:   t.DownTargets[i],
			Weight:   w.Down[i],
			Shortcut: t.DownShortcut[i],
			Middle:   t.DownMiddle[i],
		})
	}
	return out
}

// ReverseDown returns the reverse-down index built against the Store's
// default weight profile (the one passed to NewStore).
func (s *Store) ReverseDown() *ReverseDown { return s.rdown }

// BuildReverseDownFor builds a reverse-down index against an arbitrary,
// already-attached weight profile — needed when a backward search or
// reverse PHAST runs against a non-default profile (e.g. "distance"
// alongside the default "time").
func BuildReverseDownFor(t *Topology, w *Weights) *ReverseDown {
	return buildReverseDown(t, w)
}

// buildReverseDown builds, for every down-edge (u -> v, w), an entry (u, w)
// indexed by v — an up-adjacency in the reverse graph. Entries with
// MaxWeight are dropped at build time so the hot loop in the backward
// search and reverse PHAST never has to check for the sentinel.
func buildReverseDown(t *Topology, w *Weights) *ReverseDown {
	n := t.NumNodes
	counts := make([]uint32, n+1)

	// First pass: count live (non-MaxWeight) down-edges per target rank so
	// the second pass can scatter directly into a CSR array, following the
	// teacher's two-pass prefix-sum CSR construction in pkg/graph/builder.go.
	for u := uint32(0); u < n; u++ {
		start, end := t.DownOffsets[u], t.DownOffsets[u+1]
		for i := start; i < end; i++ {
			if w.Down[i] == MaxWeight {
				continue
			}
			v := t.DownTargets[i]
			counts[v+1]++
		}
	}
	for v := uint32(1); v <= n; v++ {
		counts[v] += counts[v-1]
	}

	offsets := counts
	entries := make([]revDownEntry, offsets[n])
	cursor := make([]uint32, n)
	copy(cursor, offsets[:n])

	for u := uint32(0); u < n; u++ {
		start, end := t.DownOffsets[u], t.DownOffsets[u+1]
		for i := start; i < end; i++ {
			wt := w.Down[i]
			if wt == MaxWeight {
				continue
			}
			v := t.DownTargets[i]
			entries[cursor[v]] = revDownEntry{from: u, weight: wt, downIdx: i}
			cursor[v]++
		}
	}

	return &ReverseDown{offsets: offsets, entries: entries}
}

// validateTopology checks the invariants from spec.md §4.1.
func validateTopology(t *Topology) error {
	n := t.NumNodes

	if err := validateCSRShape(t.UpOffsets, t.UpTargets, n, "up"); err != nil {
		return err
	}
	if err := validateCSRShape(t.DownOffsets, t.DownTargets, n, "down"); err != nil {
		return err
	}
	if uint32(len(t.RankToFiltered)) != n {
		return fmt.Errorf("rank_to_filtered length %d != n_nodes %d", len(t.RankToFiltered), n)
	}

	// For every up-edge (u,v): rank(v) > rank(u). Since node IDs are ranks,
	// this is v > u.
	for u := uint32(0); u < n; u++ {
		for i := t.UpOffsets[u]; i < t.UpOffsets[u+1]; i++ {
			v := t.UpTargets[i]
			if v <= u {
				return fmt.Errorf("up-edge (%d -> %d) violates rank(u) < rank(v)", u, v)
			}
		}
		// Up adjacency must be sorted ascending by target rank (enables
		// binary search / cache-line streaming per spec.md §3).
		if !sort.SliceIsSorted(t.UpTargets[t.UpOffsets[u]:t.UpOffsets[u+1]], func(i, j int) bool {
			return t.UpTargets[int(t.UpOffsets[u])+i] < t.UpTargets[int(t.UpOffsets[u])+j]
		}) {
			return fmt.Errorf("up-adjacency of rank %d is not sorted by target rank", u)
		}
	}
	for u := uint32(0); u < n; u++ {
		for i := t.DownOffsets[u]; i < t.DownOffsets[u+1]; i++ {
			v := t.DownTargets[i]
			if v >= u {
				return fmt.Errorf("down-edge (%d -> %d) violates rank(v) < rank(u)", u, v)
			}
		}
	}

	// Sampled shortcut-triangle check: for every up-shortcut (u -> v) via m,
	// both (u -> m) and (m -> v) must exist as UP edges out of u and m
	// respectively. Checked for a bounded sample to keep load time bounded.
	if err := sampleCheckShortcutTriangles(t); err != nil {
		return err
	}

	return nil
}

func validateCSRShape(offsets, targets []uint32, n uint32, name string) error {
	if uint32(len(offsets)) != n+1 {
		return fmt.Errorf("%s_offsets length %d != n_nodes+1 %d", name, len(offsets), n+1)
	}
	if offsets[0] != 0 {
		return fmt.Errorf("%s_offsets[0] = %d, want 0", name, offsets[0])
	}
	for i := uint32(1); i <= n; i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("%s_offsets not monotonic at %d: %d < %d", name, i, offsets[i], offsets[i-1])
		}
	}
	if offsets[n] != uint32(len(targets)) {
		return fmt.Errorf("%s_offsets[n] = %d != len(targets) %d", name, offsets[n], len(targets))
	}
	for _, v := range targets {
		if v >= n {
			return fmt.Errorf("%s target %d >= n_nodes %d", name, v, n)
		}
	}
	return nil
}

// maxTriangleSamples bounds the shortcut-triangle check's total cost; see
// spec.md §4.1 ("checked for a sampled subset to keep load time bounded").
const maxTriangleSamples = 200_000

func sampleCheckShortcutTriangles(t *Topology) error {
	checked := 0
	for u := uint32(0); u < t.NumNodes && checked < maxTriangleSamples; u++ {
		for i := t.UpOffsets[u]; i < t.UpOffsets[u+1]; i++ {
			if !t.UpShortcut[i] {
				continue
			}
			m := t.UpMiddle[i]
			if m < 0 {
				return fmt.Errorf("up-shortcut at edge %d has no middle rank", i)
			}
			mid := uint32(m)
			v := t.UpTargets[i]

			if !hasUpEdgeTo(t, u, mid) {
				return fmt.Errorf("shortcut (%d -> %d via %d): missing up-edge %d -> %d", u, v, mid, u, mid)
			}
			if !hasUpEdgeTo(t, mid, v) {
				return fmt.Errorf("shortcut (%d -> %d via %d): missing up-edge %d -> %d", u, v, mid, mid, v)
			}

			checked++
			if checked >= maxTriangleSamples {
				break
			}
		}
	}
	return nil
}

// hasUpEdgeTo binary-searches u's sorted up-adjacency for target v.
func hasUpEdgeTo(t *Topology, u, v uint32) bool {
	start, end := t.UpOffsets[u], t.UpOffsets[u+1]
	targets := t.UpTargets[start:end]
	i := sort.Search(len(targets), func(i int) bool { return targets[i] >= v })
	return i < len(targets) && targets[i] == v
}

func validateWeights(t *Topology, w *Weights) error {
	if len(w.Up) != len(t.UpTargets) {
		return fmt.Errorf("up-weights length %d != up-edge count %d", len(w.Up), len(t.UpTargets))
	}
	if len(w.Down) != len(t.DownTargets) {
		return fmt.Errorf("down-weights length %d != down-edge count %d", len(w.Down), len(t.DownTargets))
	}
	return nil
}
