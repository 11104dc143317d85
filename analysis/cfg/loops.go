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

// BackEdge is an edge whose target dominates its source.
type BackEdge struct {
	Source *Node
	Target *Node
}

// FindBackEdges returns the back edges of the graph under the given dominator
// information.
func (g *Graph) FindBackEdges(di *DominatorInfo) []BackEdge {
	var edges []BackEdge
	for _, n := range g.nodes {
		for _, s := range n.Successors {
			if di.Dominates(s, n) {
				edges = append(edges, BackEdge{Source: n, Target: s})
			}
		}
	}
	return edges
}

// ComputeLoops finds the natural loop of every back edge and appends the loop
// regions to the graph. The natural loop of s → t is t plus every node that
// reaches s backwards without passing through t.
func (g *Graph) ComputeLoops(di *DominatorInfo) []*Loop {
	var loops []*Loop
	for _, e := range g.FindBackEdges(di) {
		l := &Loop{regionBase: regionBase{nodes: map[*Node]bool{}}}
		l.add(e.Target)
		collectLoopBody(l, e.Source, e.Target)
		g.Regions = append(g.Regions, l)
		loops = append(loops, l)
	}
	return loops
}

func collectLoopBody(l *Loop, source, header *Node) {
	if l.Contains(source) {
		return
	}
	l.nodes[source] = true
	worklist := []*Node{source}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range n.Predecessors {
			if p != header && !l.Contains(p) {
				l.nodes[p] = true
				worklist = append(worklist, p)
			}
		}
	}
}
