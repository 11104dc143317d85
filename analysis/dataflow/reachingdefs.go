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

package dataflow

import (
	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/tac"
	"github.com/garbervetsky/analysis-net/internal/funcutil"
)

// ReachingDefinitions is the forward may-analysis over definition sites. The
// lattice element is the subset of definition sites that may reach a point,
// represented as a bitvector indexed by definition number.
type ReachingDefinitions struct {
	// Definitions lists every defining instruction of the graph; a
	// definition's number is its index here.
	Definitions []tac.Definition

	// defNode maps a definition number to the node holding the instruction.
	defNode []*cfg.Node

	// defsOf maps a variable name to the numbers of its definitions.
	defsOf map[string][]int
}

// NewReachingDefinitions indexes the definition sites of the graph.
func NewReachingDefinitions(g *cfg.Graph) *ReachingDefinitions {
	rd := &ReachingDefinitions{defsOf: map[string][]int{}}
	for _, n := range g.Nodes() {
		for _, ins := range n.Instructions {
			if d, ok := ins.(tac.Definition); ok && d.Result() != nil {
				num := len(rd.Definitions)
				rd.Definitions = append(rd.Definitions, d)
				rd.defNode = append(rd.defNode, n)
				name := d.Result().Name()
				rd.defsOf[name] = append(rd.defsOf[name], num)
			}
		}
	}
	return rd
}

// DefinitionsOf returns the numbers of the definitions of the variable name.
func (rd *ReachingDefinitions) DefinitionsOf(name string) []int { return rd.defsOf[name] }

// NodeOf returns the node containing definition num.
func (rd *ReachingDefinitions) NodeOf(num int) *cfg.Node { return rd.defNode[num] }

func (rd *ReachingDefinitions) Initial(n *cfg.Node) *funcutil.BitSet {
	return funcutil.NewBitSet(len(rd.Definitions))
}

func (rd *ReachingDefinitions) Compare(a, b *funcutil.BitSet) bool { return a.Equals(b) }

func (rd *ReachingDefinitions) Join(a, b *funcutil.BitSet) *funcutil.BitSet {
	out := a.Clone()
	out.UnionWith(b)
	return out
}

// Flow kills every other definition of a defined variable and generates the
// instruction's own definition.
func (rd *ReachingDefinitions) Flow(n *cfg.Node, input *funcutil.BitSet) *funcutil.BitSet {
	out := input.Clone()
	num := rd.numbersIn(n)
	for i, ins := range n.Instructions {
		d, ok := ins.(tac.Definition)
		if !ok || d.Result() == nil {
			continue
		}
		for _, other := range rd.defsOf[d.Result().Name()] {
			out.Remove(other)
		}
		out.Add(num[i])
	}
	return out
}

// numbersIn maps instruction positions in the node to definition numbers.
func (rd *ReachingDefinitions) numbersIn(n *cfg.Node) map[int]int {
	nums := map[int]int{}
	for num, node := range rd.defNode {
		if node != n {
			continue
		}
		def := rd.Definitions[num]
		for i, ins := range n.Instructions {
			if ins == tac.Instruction(def) {
				nums[i] = num
			}
		}
	}
	return nums
}

// ComputeReachingDefinitions runs the analysis to fixpoint.
func ComputeReachingDefinitions(g *cfg.Graph, maxIterations int) (*ReachingDefinitions, *Result[*funcutil.BitSet], error) {
	rd := NewReachingDefinitions(g)
	res, err := RunForward[*funcutil.BitSet](g, rd, maxIterations)
	if err != nil {
		return nil, nil, err
	}
	return rd, res, nil
}

// ReachesUse reports whether definition num may reach the use of its variable
// at instruction index useIdx of node n: the definition is live at node entry
// and not killed by an earlier definition in the node, or it occurs in the
// node before the use.
func (rd *ReachingDefinitions) ReachesUse(res *Result[*funcutil.BitSet], num int, n *cfg.Node, useIdx int) bool {
	name := rd.Definitions[num].Result().Name()
	nums := rd.numbersIn(n)
	// scan backwards from the use for a local definition of the same variable
	for i := useIdx - 1; i >= 0; i-- {
		d, ok := n.Instructions[i].(tac.Definition)
		if !ok || d.Result() == nil || d.Result().Name() != name {
			continue
		}
		return nums[i] == num
	}
	in, ok := res.Input[n]
	return ok && in.Has(num)
}
