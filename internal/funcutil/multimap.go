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

// MultiMap maps keys to sets of values. The zero value is not usable; construct
// with NewMultiMap. A key can be present with an empty set (after AddKey, or
// after Remove of its last value); Has and Values treat it like an absent key,
// while Equals and len count it.
type MultiMap[K comparable, V comparable] map[K]map[V]bool

// NewMultiMap returns an empty multimap.
func NewMultiMap[K comparable, V comparable]() MultiMap[K, V] {
	return make(MultiMap[K, V])
}

// AddKey ensures k is present, possibly with an empty value set.
func (m MultiMap[K, V]) AddKey(k K) {
	if _, ok := m[k]; !ok {
		m[k] = make(map[V]bool)
	}
}

// Add inserts v into the set of values of k.
func (m MultiMap[K, V]) Add(k K, v V) {
	if s, ok := m[k]; ok {
		s[v] = true
	} else {
		m[k] = map[V]bool{v: true}
	}
}

// Remove removes v from the set of values of k. The key remains present.
func (m MultiMap[K, V]) Remove(k K, v V) {
	if s, ok := m[k]; ok {
		delete(s, v)
	}
}

// RemoveKey removes k and all its values.
func (m MultiMap[K, V]) RemoveKey(k K) {
	delete(m, k)
}

// Has returns true when v is in the set of values of k.
func (m MultiMap[K, V]) Has(k K, v V) bool {
	return m[k][v]
}

// Values returns the value set of k, which may be nil. The returned map is the
// internal set; callers must not mutate it.
func (m MultiMap[K, V]) Values(k K) map[V]bool {
	return m[k]
}

// Equals returns true when both multimaps have the same keys mapped to equal sets.
// Keys with empty sets count: a key present in one map but absent (or non-empty)
// in the other makes the maps unequal.
func (m MultiMap[K, V]) Equals(other MultiMap[K, V]) bool {
	if len(m) != len(other) {
		return false
	}
	for k, s := range m {
		t, ok := other[k]
		if !ok || !SetEquals(s, t) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the multimap.
func (m MultiMap[K, V]) Clone() MultiMap[K, V] {
	c := make(MultiMap[K, V], len(m))
	for k, s := range m {
		c[k] = CopySet(s)
	}
	return c
}
