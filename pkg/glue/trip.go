// Package glue implements the Boundary API's thin convenience layer on top
// of pkg/batch and pkg/query: the TSP trip solver and GPS map-matching
// (spec component glue, see SPEC_FULL.md §3).
package glue

import "math"

// Trip solves the (open or closed) traveling-salesman problem over a
// precomputed N×N cost matrix, grounded on step9/trip.rs's doc comment
// ("nearest-neighbor greedy heuristic followed by 2-opt local
// improvement") — the Rust function body itself wasn't present in the
// retrieval pack, so this is an algorithm-description port rather than a
// line-level one; see DESIGN.md.
//
// matrix[i][j] is the cost from location i to location j (cch.MaxWeight
// for "no path"); it is typically pkg/batch.Matrix's bucket-CH output.
// When roundTrip is true the tour returns to its start and that closing
// edge counts toward cost; when false the tour is an open path and the
// last location need not connect back to the first.
//
// Trip also runs Or-opt (relocating runs of 1-3 consecutive stops) after
// 2-opt converges, since 2-opt alone cannot fix a badly placed single
// stop without also reversing the segment around it — the combination is
// the standard strengthening of nearest-neighbor + 2-opt noted in the
// trip.rs doc comment.
func Trip(matrix [][]uint32, roundTrip bool) (order []int, cost uint32) {
	n := len(matrix)
	if n == 0 {
		return nil, 0
	}
	if n == 1 {
		return []int{0}, 0
	}

	order = nearestNeighborTour(matrix, n)
	order = twoOpt(matrix, order, roundTrip)
	order = orOpt(matrix, order, roundTrip)
	return order, tourCost(matrix, order, roundTrip)
}

// nearestNeighborTour greedily extends a tour from location 0, always
// stepping to the nearest unvisited location.
func nearestNeighborTour(matrix [][]uint32, n int) []int {
	visited := make([]bool, n)
	order := make([]int, 0, n)

	cur := 0
	visited[cur] = true
	order = append(order, cur)

	for len(order) < n {
		best := -1
		var bestCost uint32 = math.MaxUint32
		for j := 0; j < n; j++ {
			if visited[j] || matrix[cur][j] >= bestCost {
				continue
			}
			bestCost = matrix[cur][j]
			best = j
		}
		if best == -1 {
			// No reachable unvisited node from cur: fall back to the first
			// unvisited index so every location still appears exactly once.
			for j := 0; j < n; j++ {
				if !visited[j] {
					best = j
					break
				}
			}
		}
		visited[best] = true
		order = append(order, best)
		cur = best
	}
	return order
}

// edgeCost returns the cost of the tour edge leaving position i (wrapping
// to position 0 only when roundTrip closes the loop).
func edgeCost(matrix [][]uint32, order []int, i int, roundTrip bool) uint32 {
	n := len(order)
	j := i + 1
	if j == n {
		if !roundTrip {
			return 0
		}
		j = 0
	}
	return matrix[order[i]][order[j]]
}

func tourCost(matrix [][]uint32, order []int, roundTrip bool) uint32 {
	var total uint32
	last := len(order) - 1
	if !roundTrip {
		last--
	}
	for i := 0; i <= last; i++ {
		total = saturatingAddU32(total, edgeCost(matrix, order, i, roundTrip))
	}
	return total
}

func saturatingAddU32(a, b uint32) uint32 {
	if b > math.MaxUint32-a {
		return math.MaxUint32
	}
	return a + b
}

// twoOpt repeatedly reverses a sub-tour segment whenever doing so shortens
// the tour, until no improving move remains (first-improvement strategy).
func twoOpt(matrix [][]uint32, order []int, roundTrip bool) []int {
	n := len(order)
	if n < 4 {
		return order
	}

	improved := true
	for improved {
		improved = false
		for i := 0; i < n-1; i++ {
			for j := i + 2; j < n; j++ {
				if !roundTrip && j == n-1 && i == 0 {
					continue // open path: reversing positions 1..n-1 is not tried
				}
				before := edgeCost(matrix, order, i, roundTrip) + edgeCost(matrix, order, j, roundTrip)

				reversed := make([]int, n)
				copy(reversed, order)
				reverseSegment(reversed, i+1, j)
				after := edgeCost(matrix, reversed, i, roundTrip) + edgeCost(matrix, reversed, j, roundTrip)

				if after < before {
					order = reversed
					improved = true
				}
			}
		}
	}
	return order
}

func reverseSegment(order []int, i, j int) {
	for i < j {
		order[i], order[j] = order[j], order[i]
		i++
		j--
	}
}

// orOpt relocates runs of 1 to 3 consecutive stops to a better position
// elsewhere in the tour, the standard complement to 2-opt for fixing a
// single badly placed stop without a full segment reversal.
func orOpt(matrix [][]uint32, order []int, roundTrip bool) []int {
	n := len(order)
	if n < 5 {
		return order
	}

	improved := true
	for improved {
		improved = false
		for segLen := 1; segLen <= 3; segLen++ {
			for i := 0; i+segLen <= n; i++ {
				if newOrder, ok := tryRelocate(matrix, order, i, segLen, roundTrip); ok {
					order = newOrder
					improved = true
				}
			}
		}
	}
	return order
}

// tryRelocate attempts to move the segment order[i:i+segLen] to every
// other gap in the tour, keeping the first improving placement found.
func tryRelocate(matrix [][]uint32, order []int, i, segLen int, roundTrip bool) ([]int, bool) {
	n := len(order)
	baseCost := tourCost(matrix, order, roundTrip)

	rest := make([]int, 0, n-segLen)
	seg := append([]int(nil), order[i:i+segLen]...)
	rest = append(rest, order[:i]...)
	rest = append(rest, order[i+segLen:]...)

	for gap := 0; gap <= len(rest); gap++ {
		candidate := make([]int, 0, n)
		candidate = append(candidate, rest[:gap]...)
		candidate = append(candidate, seg...)
		candidate = append(candidate, rest[gap:]...)

		if tourCost(matrix, candidate, roundTrip) < baseCost {
			return candidate, true
		}
	}
	return order, false
}
