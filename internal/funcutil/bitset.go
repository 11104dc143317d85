// Copyright (c) the analysis-net project authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funcutil

import (
	"math/bits"
	"strconv"
	"strings"
)

// BitSet is a fixed-capacity set of small non-negative integers, used to
// represent subsets of a universe whose size is known up front (basic blocks,
// instruction indices). Operations that combine two sets require both to have
// the same capacity.
type BitSet struct {
	words []uint64
	size  int
}

// NewBitSet returns an empty set over a universe of size elements.
func NewBitSet(size int) *BitSet {
	return &BitSet{words: make([]uint64, (size+63)/64), size: size}
}

// NewFullBitSet returns the set {0, ..., size-1}.
func NewFullBitSet(size int) *BitSet {
	s := NewBitSet(size)
	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	if r := size % 64; r != 0 && len(s.words) > 0 {
		s.words[len(s.words)-1] = (uint64(1) << r) - 1
	}
	return s
}

// Size returns the size of the universe, not the number of elements.
func (s *BitSet) Size() int { return s.size }

// Add inserts i into the set.
func (s *BitSet) Add(i int) { s.words[i/64] |= uint64(1) << (i % 64) }

// Remove removes i from the set.
func (s *BitSet) Remove(i int) { s.words[i/64] &^= uint64(1) << (i % 64) }

// Has returns true when i is in the set.
func (s *BitSet) Has(i int) bool { return s.words[i/64]&(uint64(1)<<(i%64)) != 0 }

// Count returns the number of elements in the set.
func (s *BitSet) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IntersectWith replaces s with the intersection of s and other.
// Returns true when s changed.
func (s *BitSet) IntersectWith(other *BitSet) bool {
	changed := false
	for i := range s.words {
		w := s.words[i] & other.words[i]
		if w != s.words[i] {
			changed = true
			s.words[i] = w
		}
	}
	return changed
}

// UnionWith replaces s with the union of s and other. Returns true when s changed.
func (s *BitSet) UnionWith(other *BitSet) bool {
	changed := false
	for i := range s.words {
		w := s.words[i] | other.words[i]
		if w != s.words[i] {
			changed = true
			s.words[i] = w
		}
	}
	return changed
}

// DifferenceWith removes from s every element of other. Returns true when s changed.
func (s *BitSet) DifferenceWith(other *BitSet) bool {
	changed := false
	for i := range s.words {
		w := s.words[i] &^ other.words[i]
		if w != s.words[i] {
			changed = true
			s.words[i] = w
		}
	}
	return changed
}

// Equals returns true when both sets contain the same elements.
func (s *BitSet) Equals(other *BitSet) bool {
	if s.size != other.size {
		return false
	}
	for i := range s.words {
		if s.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the set.
func (s *BitSet) Clone() *BitSet {
	c := NewBitSet(s.size)
	copy(c.words, s.words)
	return c
}

// ForEach calls f on every element of the set in increasing order.
func (s *BitSet) ForEach(f func(i int)) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			f(wi*64 + b)
			w &= w - 1
		}
	}
}

// Elements returns the elements of the set in increasing order.
func (s *BitSet) Elements() []int {
	var out []int
	s.ForEach(func(i int) { out = append(out, i) })
	return out
}

func (s *BitSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(i int) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Itoa(i))
	})
	b.WriteByte('}')
	return b.String()
}
