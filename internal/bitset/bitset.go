// Package bitset implements a word-packed bitset used for block-gating,
// lane masks, and tile visited-sets throughout the query engine.
package bitset

import "math/bits"

// Set is a fixed-size bitset backed by 64-bit words.
type Set struct {
	words []uint64
	n     int
}

// New creates a Set holding n bits, all initially clear.
func New(n int) *Set {
	return &Set{words: make([]uint64, (n+63)/64), n: n}
}

// Len returns the number of bits the set was created with.
func (s *Set) Len() int { return s.n }

// Set marks bit i as set.
func (s *Set) Set(i int) {
	s.words[i/64] |= 1 << uint(i%64)
}

// Clear resets every bit to zero without reallocating.
func (s *Set) Clear() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Test reports whether bit i is set.
func (s *Set) Test(i int) bool {
	return s.words[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of set bits.
func (s *Set) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// LaneMask is an 8-bit mask used by block-gated batched PHAST (K=8 lanes).
type LaneMask = uint8
