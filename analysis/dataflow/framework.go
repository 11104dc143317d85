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

// Package dataflow implements the generic monotone dataflow framework and the
// analyses built as instances of it: live variables, reaching definitions,
// copy propagation, type inference, web analysis and SSA construction.
package dataflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/garbervetsky/analysis-net/analysis/cfg"
)

// ErrIterationLimit trips when a solver exceeds its iteration bound. The
// monotone framework terminates on any finite-height lattice; hitting the
// bound indicates a misdesigned lattice or transfer function.
var ErrIterationLimit = errors.New("dataflow solver exceeded its iteration bound")

// Analysis is a monotone dataflow problem over a lattice L. The framework
// requires Join and Flow to be monotone and L to be of finite height.
type Analysis[L any] interface {
	// Initial is the value of a node before any flow, usually bottom
	// everywhere except at the boundary node.
	Initial(n *cfg.Node) L

	// Compare returns true when both values are equal.
	Compare(a, b L) bool

	// Join is the least upper bound. Join must not mutate its arguments.
	Join(a, b L) L

	// Flow is the transfer function of a node.
	Flow(n *cfg.Node, input L) L
}

// Result holds the fixpoint values at the entry and exit of every node, in
// flow direction: for a backward analysis Input is the value after the node.
type Result[L any] struct {
	Input  map[*cfg.Node]L
	Output map[*cfg.Node]L
}

// RunForward solves the analysis forward, joining over predecessors. Nodes are
// seeded in forward topological order; the worklist is FIFO. maxIterations
// bounds the number of node visits; values ≤ 0 use no bound.
func RunForward[L any](g *cfg.Graph, a Analysis[L], maxIterations int) (*Result[L], error) {
	g.ComputeOrders()
	order := nodesInOrder(g, func(n *cfg.Node) int { return n.ForwardIndex })
	return run(a, order, func(n *cfg.Node) []*cfg.Node { return n.Predecessors },
		func(n *cfg.Node) []*cfg.Node { return n.Successors }, maxIterations)
}

// RunBackward solves the analysis backward, joining over successors. Nodes are
// seeded in backward topological order.
func RunBackward[L any](g *cfg.Graph, a Analysis[L], maxIterations int) (*Result[L], error) {
	g.ComputeOrders()
	order := nodesInOrder(g, func(n *cfg.Node) int { return n.BackwardIndex })
	return run(a, order, func(n *cfg.Node) []*cfg.Node { return n.Successors },
		func(n *cfg.Node) []*cfg.Node { return n.Predecessors }, maxIterations)
}

func nodesInOrder(g *cfg.Graph, index func(*cfg.Node) int) []*cfg.Node {
	var order []*cfg.Node
	for _, n := range g.Nodes() {
		if index(n) >= 0 {
			order = append(order, n)
		}
	}
	sort.Slice(order, func(i, j int) bool { return index(order[i]) < index(order[j]) })
	return order
}

func run[L any](a Analysis[L], order []*cfg.Node, sources, targets func(*cfg.Node) []*cfg.Node,
	maxIterations int) (*Result[L], error) {

	res := &Result[L]{
		Input:  make(map[*cfg.Node]L, len(order)),
		Output: make(map[*cfg.Node]L, len(order)),
	}
	for _, n := range order {
		res.Input[n] = a.Initial(n)
		res.Output[n] = a.Flow(n, res.Input[n])
	}

	worklist := make([]*cfg.Node, len(order))
	copy(worklist, order)
	onList := map[*cfg.Node]bool{}
	for _, n := range order {
		onList[n] = true
	}

	iterations := 0
	for len(worklist) > 0 {
		n := worklist[0]
		worklist = worklist[1:]
		onList[n] = false

		iterations++
		if maxIterations > 0 && iterations > maxIterations {
			return nil, fmt.Errorf("%w (%d iterations)", ErrIterationLimit, iterations)
		}

		var newIn L
		first := true
		for _, p := range sources(n) {
			out, ok := res.Output[p]
			if !ok {
				continue
			}
			if first {
				newIn = out
				first = false
			} else {
				newIn = a.Join(newIn, out)
			}
		}
		if first {
			continue
		}
		if a.Compare(newIn, res.Input[n]) {
			continue
		}
		res.Input[n] = newIn
		newOut := a.Flow(n, newIn)
		if a.Compare(newOut, res.Output[n]) {
			continue
		}
		res.Output[n] = newOut
		for _, s := range targets(n) {
			if !onList[s] {
				onList[s] = true
				worklist = append(worklist, s)
			}
		}
	}
	return res, nil
}
