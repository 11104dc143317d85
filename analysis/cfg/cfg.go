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

// Package cfg builds control-flow graphs over TAC method bodies, including
// exception-handler regions, dominator information and natural loops.
package cfg

import (
	"fmt"
	"strings"

	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// NodeKind enumerates the kinds of CFG nodes.
type NodeKind uint8

const (
	EntryKind NodeKind = iota
	ExitKind
	NormalExitKind
	ExceptionalExitKind
	BasicBlockKind
)

func (k NodeKind) String() string {
	switch k {
	case EntryKind:
		return "entry"
	case ExitKind:
		return "exit"
	case NormalExitKind:
		return "normal-exit"
	case ExceptionalExitKind:
		return "exceptional-exit"
	}
	return "block"
}

// Reserved node ids. Basic blocks are numbered from FirstBlockID.
const (
	EntryID           = 0
	ExitID            = 1
	NormalExitID      = 2
	ExceptionalExitID = 3
	FirstBlockID      = 4
)

// Node is a CFG node. The four distinguished nodes carry no instructions.
type Node struct {
	ID           int
	Kind         NodeKind
	Instructions []tac.Instruction

	Predecessors []*Node
	Successors   []*Node

	ImmediateDominator *Node
	ImmediateDominated []*Node
	DominanceFrontier  []*Node

	// ForwardIndex and BackwardIndex are the node's positions in the forward
	// (from Entry over successors) and backward (from Exit over predecessors)
	// topological orders. -1 when the node is unreachable in that direction.
	ForwardIndex  int
	BackwardIndex int
}

// StartOffset returns the offset of the node's first instruction.
func (n *Node) StartOffset() (uint32, bool) {
	if len(n.Instructions) == 0 {
		return 0, false
	}
	return n.Instructions[0].Offset(), true
}

// StartLabel returns the label of the node's first instruction, or "".
func (n *Node) StartLabel() string {
	if len(n.Instructions) == 0 {
		return ""
	}
	return n.Instructions[0].Label()
}

// Last returns the node's last instruction, or nil.
func (n *Node) Last() tac.Instruction {
	if len(n.Instructions) == 0 {
		return nil
	}
	return n.Instructions[len(n.Instructions)-1]
}

func (n *Node) String() string {
	if n.Kind != BasicBlockKind {
		return n.Kind.String()
	}
	return fmt.Sprintf("B%d", n.ID)
}

// hasSuccessor returns true when to is already a successor of n.
func (n *Node) hasSuccessor(to *Node) bool {
	for _, s := range n.Successors {
		if s == to {
			return true
		}
	}
	return false
}

// RegionKind enumerates the kinds of CFG regions.
type RegionKind uint8

const (
	TryRegion RegionKind = iota
	CatchRegion
	FaultRegion
	FinallyRegion
	LoopRegion
)

func (k RegionKind) String() string {
	switch k {
	case TryRegion:
		return "try"
	case CatchRegion:
		return "catch"
	case FaultRegion:
		return "fault"
	case FinallyRegion:
		return "finally"
	}
	return "loop"
}

// Region is a set of nodes with a distinguished header.
type Region interface {
	Kind() RegionKind
	Header() *Node
	Nodes() map[*Node]bool
	Contains(n *Node) bool

	add(n *Node)
}

type regionBase struct {
	header *Node
	nodes  map[*Node]bool
}

func (r *regionBase) Header() *Node          { return r.header }
func (r *regionBase) Nodes() map[*Node]bool  { return r.nodes }
func (r *regionBase) Contains(n *Node) bool  { return r.nodes[n] }
func (r *regionBase) add(n *Node) {
	if r.header == nil {
		r.header = n
	}
	r.nodes[n] = true
}

// ProtectedRegion is the node set of a try block together with its handler region.
type ProtectedRegion struct {
	regionBase
	Handler *HandlerRegion
}

func (r *ProtectedRegion) Kind() RegionKind { return TryRegion }

// HandlerRegion is the node set of an exception handler.
type HandlerRegion struct {
	regionBase
	kind      RegionKind
	Protected *ProtectedRegion
}

func (r *HandlerRegion) Kind() RegionKind { return r.kind }

// Loop is a natural loop: the header and every node from which the back edge's
// source is reachable without passing through the header.
type Loop struct {
	regionBase
}

func (r *Loop) Kind() RegionKind { return LoopRegion }

// Graph is a control-flow graph. NormalExit and ExceptionalExit both flow into
// Exit; a method's returning blocks connect to NormalExit and its throwing
// blocks to ExceptionalExit. In normal mode throwing blocks connect to
// NormalExit instead.
type Graph struct {
	Entry           *Node
	Exit            *Node
	NormalExit      *Node
	ExceptionalExit *Node

	Regions []Region

	nodes  []*Node
	nextID int
}

// NewGraph returns a graph with only the four distinguished nodes and the
// NormalExit/ExceptionalExit edges into Exit.
func NewGraph() *Graph {
	g := &Graph{
		Entry:           &Node{ID: EntryID, Kind: EntryKind},
		Exit:            &Node{ID: ExitID, Kind: ExitKind},
		NormalExit:      &Node{ID: NormalExitID, Kind: NormalExitKind},
		ExceptionalExit: &Node{ID: ExceptionalExitID, Kind: ExceptionalExitKind},
		nextID:          FirstBlockID,
	}
	g.nodes = []*Node{g.Entry, g.Exit, g.NormalExit, g.ExceptionalExit}
	g.Connect(g.NormalExit, g.Exit)
	g.Connect(g.ExceptionalExit, g.Exit)
	return g
}

// NewBlock allocates a fresh basic block node.
func (g *Graph) NewBlock() *Node {
	n := &Node{ID: g.nextID, Kind: BasicBlockKind}
	g.nextID++
	g.nodes = append(g.nodes, n)
	return n
}

// Nodes returns all nodes of the graph, the distinguished ones first, basic
// blocks in creation order. Node ids index this slice.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Connect adds the edge from → to, once.
func (g *Graph) Connect(from, to *Node) {
	if from.hasSuccessor(to) {
		return
	}
	from.Successors = append(from.Successors, to)
	to.Predecessors = append(to.Predecessors, from)
}

// Blocks returns only the basic-block nodes.
func (g *Graph) Blocks() []*Node {
	return g.nodes[FirstBlockID:]
}

// Loops returns the loop regions of the graph.
func (g *Graph) Loops() []*Loop {
	var loops []*Loop
	for _, r := range g.Regions {
		if l, ok := r.(*Loop); ok {
			loops = append(loops, l)
		}
	}
	return loops
}

// ProtectedRegions returns the protected (try) regions of the graph.
func (g *Graph) ProtectedRegions() []*ProtectedRegion {
	var regions []*ProtectedRegion
	for _, r := range g.Regions {
		if p, ok := r.(*ProtectedRegion); ok {
			regions = append(regions, p)
		}
	}
	return regions
}

// String returns a multi-line dump of nodes, edges and regions.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, n := range g.nodes {
		fmt.Fprintf(&sb, "%v ->", n)
		for _, s := range n.Successors {
			fmt.Fprintf(&sb, " %v", s)
		}
		sb.WriteByte('\n')
		for _, ins := range n.Instructions {
			fmt.Fprintf(&sb, "    %s: %s\n", ins.Label(), ins)
		}
	}
	for _, r := range g.Regions {
		fmt.Fprintf(&sb, "%s region, header %v, %d nodes\n", r.Kind(), r.Header(), len(r.Nodes()))
	}
	return sb.String()
}
