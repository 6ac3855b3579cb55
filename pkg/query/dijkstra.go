package query

import (
	"context"

	"github.com/azybler/cchroute/pkg/cch"
)

const noNode = ^uint32(0)

// Result is the outcome of a successful bidirectional search: the total
// distance and the meeting rank, from which Unpack reconstructs the base
// EBG path.
type Result struct {
	Distance uint32
	MeetNode uint32
}

// SeedFwd pushes an already-settled forward distance for rank v (e.g. the
// snap-point offset from the source onto its containing base edge).
func SeedFwd(s *State, v uint32, dist uint32) {
	if dist >= s.distFwd[v] {
		return
	}
	s.touchFwd(v)
	s.distFwd[v] = dist
	s.predFwd[v] = parentEdge{pred: noNode}
	s.fwdPQ.Push(pqItem{dist: dist, rank: v})
}

// SeedBwd pushes an already-settled backward distance for rank v.
func SeedBwd(s *State, v uint32, dist uint32) {
	if dist >= s.distBwd[v] {
		return
	}
	s.touchBwd(v)
	s.distBwd[v] = dist
	s.predBwd[v] = parentEdge{pred: noNode}
	s.bwdPQ.Push(pqItem{dist: dist, rank: v})
}

// peekDist returns the minimum distance in the queue, or MaxWeight if empty
// — folding the empty-queue case into the ordinary comparison against mu,
// following the teacher's PeekDist convention.
func peekDist(h *minHeap) uint32 {
	if h.Len() == 0 {
		return cch.MaxWeight
	}
	return h.Peek().dist
}

// Run executes the bidirectional up-search of spec.md §4.2: forward relaxes
// only UP edges of topo/weights, backward relaxes only the reverse-down
// index. Termination is "both queue minima exceed best_total". ctx is
// checked every 256 iterations, the same coarse checkpoint interval the
// teacher uses, and yields ErrCancelled without losing any work already
// committed to state (a retried query reuses nothing — callers get a fresh
// State per attempt).
func Run(ctx context.Context, topo *cch.Topology, w *cch.Weights, rdown *cch.ReverseDown, s *State) (Result, error) {
	mu := uint32(cch.MaxWeight)
	meet := noNode

	iterations := 0
	for {
		fwdMin := peekDist(&s.fwdPQ)
		bwdMin := peekDist(&s.bwdPQ)
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		iterations++
		if iterations&255 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, ErrCancelled
			}
		}

		if fwdMin < mu {
			item := s.fwdPQ.Pop()
			u, d := item.rank, item.dist
			if d <= s.distFwd[u] {
				if s.distBwd[u] != cch.MaxWeight {
					if cand := d + s.distBwd[u]; cand < mu {
						mu = cand
						meet = u
					}
				}
				start, end := topo.UpOffsets[u], topo.UpOffsets[u+1]
				for ei := start; ei < end; ei++ {
					v := topo.UpTargets[ei]
					wt := w.Up[ei]
					if wt == cch.MaxWeight {
						continue
					}
					nd := d + wt
					if nd < s.distFwd[v] {
						s.touchFwd(v)
						s.distFwd[v] = nd
						s.predFwd[v] = parentEdge{pred: u, edgeIdx: ei}
						s.fwdPQ.Push(pqItem{dist: nd, rank: v})
					}
				}
			}
		}

		if peekDist(&s.bwdPQ) < mu {
			item := s.bwdPQ.Pop()
			u, d := item.rank, item.dist
			if d <= s.distBwd[u] {
				if s.distFwd[u] != cch.MaxWeight {
					if cand := s.distFwd[u] + d; cand < mu {
						mu = cand
						meet = u
					}
				}
				for _, e := range rdown.Edges(u) {
					v := e.Source()
					nd := d + e.Weight()
					if nd < s.distBwd[v] {
						s.touchBwd(v)
						s.distBwd[v] = nd
						s.predBwd[v] = parentEdge{pred: u, edgeIdx: e.DownIndex()}
						s.bwdPQ.Push(pqItem{dist: nd, rank: v})
					}
				}
			}
		}
	}

	if meet == noNode || mu == cch.MaxWeight {
		return Result{}, ErrUnreachable
	}
	return Result{Distance: mu, MeetNode: meet}, nil
}
