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
	yourbasic "github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph"
)

// Adapter exposes a control-flow graph through the interfaces of the graph
// libraries: yourbasic's graph.Iterator and gonum's graph.Directed. Node ids
// are the CFG node ids, which are dense starting at 0.
type Adapter struct {
	g *Graph
}

// NewAdapter wraps the graph. The adapter reflects later mutations of the
// underlying graph.
func NewAdapter(g *Graph) *Adapter { return &Adapter{g: g} }

var (
	_ yourbasic.Iterator = (*Adapter)(nil)
	_ graph.Directed     = (*Adapter)(nil)
)

// *************** yourbasic graph.Iterator implementation ***************

// Order returns the number of nodes.
func (a *Adapter) Order() int { return len(a.g.nodes) }

// Visit calls do for every successor of v. Costs are always 1.
func (a *Adapter) Visit(v int, do func(w int, c int64) bool) bool {
	if v < 0 || v >= len(a.g.nodes) {
		return false
	}
	for _, s := range a.g.nodes[v].Successors {
		if do(s.ID, 1) {
			return true
		}
	}
	return false
}

// StrongComponents returns the strongly connected components of the graph.
func (a *Adapter) StrongComponents() [][]*Node {
	var out [][]*Node
	for _, comp := range yourbasic.StrongComponents(a) {
		nodes := make([]*Node, len(comp))
		for i, id := range comp {
			nodes[i] = a.g.nodes[id]
		}
		out = append(out, nodes)
	}
	return out
}

// IsReducible reports whether every cycle of the graph has a single entry
// point: each multi-node strongly connected component is entered through
// exactly one node.
func (a *Adapter) IsReducible() bool {
	for _, comp := range a.StrongComponents() {
		if len(comp) < 2 {
			continue
		}
		inComp := map[*Node]bool{}
		for _, n := range comp {
			inComp[n] = true
		}
		entries := 0
		for _, n := range comp {
			for _, p := range n.Predecessors {
				if !inComp[p] {
					entries++
					break
				}
			}
		}
		if entries > 1 {
			return false
		}
	}
	return true
}

// *************** gonum graph.Directed implementation ***************

type gonumNode struct {
	n *Node
}

func (gn gonumNode) ID() int64 { return int64(gn.n.ID) }

type gonumEdge struct {
	from, to *Node
}

func (e gonumEdge) From() graph.Node         { return gonumNode{e.from} }
func (e gonumEdge) To() graph.Node           { return gonumNode{e.to} }
func (e gonumEdge) ReversedEdge() graph.Edge { return gonumEdge{from: e.to, to: e.from} }

// nodeIterator implements graph.Nodes over a slice of CFG nodes.
type nodeIterator struct {
	nodes []*Node
	cur   int
}

func (it *nodeIterator) Len() int { return len(it.nodes) - it.cur }

func (it *nodeIterator) Next() bool {
	if it.cur < len(it.nodes) {
		it.cur++
		return true
	}
	return false
}

func (it *nodeIterator) Node() graph.Node {
	if it.cur == 0 || it.cur > len(it.nodes) {
		return nil
	}
	return gonumNode{it.nodes[it.cur-1]}
}

func (it *nodeIterator) Reset() { it.cur = 0 }

// Node returns the node with the given id, or nil.
func (a *Adapter) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(a.g.nodes)) {
		return nil
	}
	return gonumNode{a.g.nodes[id]}
}

// Nodes returns an iterator over all nodes.
func (a *Adapter) Nodes() graph.Nodes {
	return &nodeIterator{nodes: a.g.nodes}
}

// From returns an iterator over the successors of id.
func (a *Adapter) From(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(a.g.nodes)) {
		return &nodeIterator{}
	}
	return &nodeIterator{nodes: a.g.nodes[id].Successors}
}

// To returns an iterator over the predecessors of id.
func (a *Adapter) To(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(a.g.nodes)) {
		return &nodeIterator{}
	}
	return &nodeIterator{nodes: a.g.nodes[id].Predecessors}
}

// HasEdgeBetween reports whether an edge exists in either direction.
func (a *Adapter) HasEdgeBetween(xid, yid int64) bool {
	return a.HasEdgeFromTo(xid, yid) || a.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo reports whether the directed edge uid → vid exists.
func (a *Adapter) HasEdgeFromTo(uid, vid int64) bool {
	if uid < 0 || uid >= int64(len(a.g.nodes)) || vid < 0 || vid >= int64(len(a.g.nodes)) {
		return false
	}
	return a.g.nodes[uid].hasSuccessor(a.g.nodes[vid])
}

// Edge returns the edge uid → vid, or nil when absent.
func (a *Adapter) Edge(uid, vid int64) graph.Edge {
	if !a.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return gonumEdge{from: a.g.nodes[uid], to: a.g.nodes[vid]}
}
