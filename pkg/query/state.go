package query

import "github.com/azybler/cchroute/pkg/cch"

// parentEdge records enough to retrace one hop of the hierarchy path: the
// predecessor rank and the CSR position of the edge taken, so unpacking can
// read Shortcut/Middle straight out of the Topology without a second
// lookup.
type parentEdge struct {
	pred    uint32
	edgeIdx uint32
}

// State holds the reusable scratch arrays for one bidirectional search:
// distance and parent arrays for both directions, the two priority queues,
// and touched-node lists so Reset costs O(touched) instead of O(N) — the
// same pattern as the teacher's pkg/routing/dijkstra.go QueryState.
type State struct {
	distFwd []uint32
	distBwd []uint32
	predFwd []parentEdge
	predBwd []parentEdge

	touchedFwd []uint32
	touchedBwd []uint32

	fwdPQ minHeap
	bwdPQ minHeap
}

// NewState allocates a State sized for a CCH of n ranks.
func NewState(n uint32) *State {
	s := &State{
		distFwd: make([]uint32, n),
		distBwd: make([]uint32, n),
		predFwd: make([]parentEdge, n),
		predBwd: make([]parentEdge, n),
	}
	for i := range s.distFwd {
		s.distFwd[i] = cch.MaxWeight
		s.distBwd[i] = cch.MaxWeight
	}
	return s
}

// Reset clears only the nodes touched by the previous query, so repeated
// queries against a large CCH stay cheap regardless of N.
func (s *State) Reset() {
	for _, v := range s.touchedFwd {
		s.distFwd[v] = cch.MaxWeight
		s.predFwd[v] = parentEdge{pred: noNode}
	}
	for _, v := range s.touchedBwd {
		s.distBwd[v] = cch.MaxWeight
		s.predBwd[v] = parentEdge{pred: noNode}
	}
	s.touchedFwd = s.touchedFwd[:0]
	s.touchedBwd = s.touchedBwd[:0]
	s.fwdPQ.Reset()
	s.bwdPQ.Reset()
}

func (s *State) touchFwd(v uint32) {
	if s.distFwd[v] == cch.MaxWeight {
		s.touchedFwd = append(s.touchedFwd, v)
	}
}

func (s *State) touchBwd(v uint32) {
	if s.distBwd[v] == cch.MaxWeight {
		s.touchedBwd = append(s.touchedBwd, v)
	}
}
