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

package cfg

import (
	"github.com/garbervetsky/analysis-net/internal/funcutil"
)

// ComputeOrders assigns ForwardIndex (reverse postorder from Entry over
// successors) and BackwardIndex (reverse postorder from Exit over
// predecessors) to every node. Unreachable nodes get -1.
func (g *Graph) ComputeOrders() {
	for _, n := range g.nodes {
		n.ForwardIndex = -1
		n.BackwardIndex = -1
	}
	forward := postorder(g.Entry, func(n *Node) []*Node { return n.Successors })
	for i, n := range forward {
		n.ForwardIndex = len(forward) - 1 - i
	}
	backward := postorder(g.Exit, func(n *Node) []*Node { return n.Predecessors })
	for i, n := range backward {
		n.BackwardIndex = len(backward) - 1 - i
	}
}

func postorder(root *Node, next func(*Node) []*Node) []*Node {
	var order []*Node
	seen := map[*Node]bool{root: true}
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, s := range next(n) {
			if !seen[s] {
				seen[s] = true
				visit(s)
			}
		}
		order = append(order, n)
	}
	visit(root)
	return order
}

// DominatorInfo holds the dominator sets computed for a graph.
type DominatorInfo struct {
	byIndex []*Node
	dom     map[*Node]*funcutil.BitSet
}

// Dominates reports whether d dominates n. Every node dominates itself.
func (di *DominatorInfo) Dominates(d, n *Node) bool {
	set, ok := di.dom[n]
	if !ok || d.ForwardIndex < 0 {
		return false
	}
	return set.Has(d.ForwardIndex)
}

// Dominators returns the set of dominators of n.
func (di *DominatorInfo) Dominators(n *Node) []*Node {
	set, ok := di.dom[n]
	if !ok {
		return nil
	}
	var out []*Node
	set.ForEach(func(i int) { out = append(out, di.byIndex[i]) })
	return out
}

// ComputeDominators runs the iterative dominator computation over the forward
// topological order and fills in ImmediateDominator and ImmediateDominated.
// Dom(Entry) = {Entry}; for any other node, Dom(n) = {n} ∪ ⋂ Dom(p) over its
// predecessors, to fixpoint. The immediate dominator is the dominator distinct
// from n with maximum forward topological index.
func (g *Graph) ComputeDominators() *DominatorInfo {
	g.ComputeOrders()

	var ordered []*Node
	for _, n := range g.nodes {
		if n.ForwardIndex >= 0 {
			ordered = append(ordered, n)
		}
		n.ImmediateDominator = nil
		n.ImmediateDominated = nil
	}
	byIndex := make([]*Node, len(ordered))
	for _, n := range ordered {
		byIndex[n.ForwardIndex] = n
	}

	size := len(byIndex)
	dom := make(map[*Node]*funcutil.BitSet, size)
	for _, n := range byIndex {
		if n == g.Entry {
			s := funcutil.NewBitSet(size)
			s.Add(n.ForwardIndex)
			dom[n] = s
		} else {
			dom[n] = funcutil.NewFullBitSet(size)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, n := range byIndex {
			if n == g.Entry {
				continue
			}
			newDom := funcutil.NewFullBitSet(size)
			for _, p := range n.Predecessors {
				if p.ForwardIndex >= 0 {
					newDom.IntersectWith(dom[p])
				}
			}
			newDom.Add(n.ForwardIndex)
			if !newDom.Equals(dom[n]) {
				dom[n] = newDom
				changed = true
			}
		}
	}

	for _, n := range byIndex {
		if n == g.Entry {
			continue
		}
		best := -1
		dom[n].ForEach(func(i int) {
			if i != n.ForwardIndex && i > best {
				best = i
			}
		})
		if best >= 0 {
			idom := byIndex[best]
			n.ImmediateDominator = idom
			idom.ImmediateDominated = append(idom.ImmediateDominated, n)
		}
	}

	return &DominatorInfo{byIndex: byIndex, dom: dom}
}

// ComputeDominanceFrontier fills in DominanceFrontier for every node: for each
// join node n, every node on the immediate-dominator chain from a predecessor
// of n up to (excluding) n's immediate dominator has n in its frontier.
// ComputeDominators must have run.
func (g *Graph) ComputeDominanceFrontier() {
	for _, n := range g.nodes {
		n.DominanceFrontier = nil
	}
	for _, n := range g.nodes {
		if len(n.Predecessors) < 2 || n.ImmediateDominator == nil {
			continue
		}
		for _, p := range n.Predecessors {
			runner := p
			for runner != nil && runner != n.ImmediateDominator {
				if !funcutil.Contains(runner.DominanceFrontier, n) {
					runner.DominanceFrontier = append(runner.DominanceFrontier, n)
				}
				runner = runner.ImmediateDominator
			}
		}
	}
}
