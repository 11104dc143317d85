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
)

// Copies is the copy-propagation lattice element: a partial map from variable
// name to the value it is a copy of.
type Copies map[string]tac.Value

// CopyPropagation is the forward must-analysis collecting r ↦ v facts for
// copies r = v, where v is a variable or constant. The join is intersection:
// a fact survives only when all incoming paths agree.
type CopyPropagation struct{}

func (CopyPropagation) Initial(n *cfg.Node) Copies { return Copies{} }

func (CopyPropagation) Compare(a, b Copies) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || v.String() != w.String() {
			return false
		}
	}
	return true
}

func (CopyPropagation) Join(a, b Copies) Copies {
	out := Copies{}
	for k, v := range a {
		if w, ok := b[k]; ok && v.String() == w.String() {
			out[k] = v
		}
	}
	return out
}

// Flow kills a variable's fact (and every fact copying from it) on any
// definition, and introduces r ↦ v on a copy.
func (CopyPropagation) Flow(n *cfg.Node, input Copies) Copies {
	out := Copies{}
	for k, v := range input {
		out[k] = v
	}
	for _, ins := range n.Instructions {
		for name := range ins.ModifiedVariables() {
			kill(out, name)
		}
		load, ok := ins.(*tac.Load)
		if !ok {
			continue
		}
		switch src := load.Source.(type) {
		case tac.Variable:
			if src.Name() != load.Dest.Name() {
				out[load.Dest.Name()] = src
			}
		case *tac.Constant:
			out[load.Dest.Name()] = src
		}
	}
	return out
}

func kill(c Copies, name string) {
	delete(c, name)
	for k, v := range c {
		if _, mentions := v.Variables()[name]; mentions {
			delete(c, k)
		}
	}
}

// PropagateCopies runs the analysis and rewrites uses through the collected
// facts: within each node, a use of a variable known to be a copy of v is
// replaced by v. Only copies of variables are substituted; a use whose fact is
// a constant is left as it is. Returns the number of rewritten uses.
func PropagateCopies(g *cfg.Graph, maxIterations int) (int, error) {
	res, err := RunForward[Copies](g, CopyPropagation{}, maxIterations)
	if err != nil {
		return 0, err
	}
	rewritten := 0
	for _, n := range g.Nodes() {
		facts := Copies{}
		for k, v := range res.Input[n] {
			facts[k] = v
		}
		for _, ins := range n.Instructions {
			for name := range ins.UsedVariables() {
				v, ok := facts[name]
				if !ok {
					continue
				}
				if copied, isVar := v.(tac.Variable); isVar {
					ins.ReplaceUses(ins.UsedVariables()[name], copied)
					rewritten++
				}
			}
			for name := range ins.ModifiedVariables() {
				kill(facts, name)
			}
			if load, ok := ins.(*tac.Load); ok {
				switch src := load.Source.(type) {
				case tac.Variable:
					if src.Name() != load.Dest.Name() {
						facts[load.Dest.Name()] = src
					}
				case *tac.Constant:
					facts[load.Dest.Name()] = src
				}
			}
		}
	}
	return rewritten, nil
}
