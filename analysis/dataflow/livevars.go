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

// LiveVariables is the backward may-analysis computing, for every node, the
// variables whose value may still be read later. gen = used, kill = defined.
type LiveVariables struct{}

// Initial is the empty set everywhere.
func (LiveVariables) Initial(n *cfg.Node) tac.VarSet { return tac.VarSet{} }

func (LiveVariables) Compare(a, b tac.VarSet) bool { return a.Equals(b) }

func (LiveVariables) Join(a, b tac.VarSet) tac.VarSet {
	out := tac.VarSet{}
	out.UnionWith(a)
	out.UnionWith(b)
	return out
}

// Flow walks the node's instructions in reverse: each instruction kills its
// definitions and generates its uses.
func (LiveVariables) Flow(n *cfg.Node, input tac.VarSet) tac.VarSet {
	live := tac.VarSet{}
	live.UnionWith(input)
	for i := len(n.Instructions) - 1; i >= 0; i-- {
		ins := n.Instructions[i]
		for name := range ins.ModifiedVariables() {
			delete(live, name)
		}
		live.UnionWith(ins.UsedVariables())
	}
	return live
}

// ComputeLiveVariables runs the analysis to fixpoint. The Output of a node is
// its live-in set (the value in flow direction, i.e. before the node when read
// against execution order).
func ComputeLiveVariables(g *cfg.Graph, maxIterations int) (*Result[tac.VarSet], error) {
	return RunBackward[tac.VarSet](g, LiveVariables{}, maxIterations)
}

// LiveAtEntry returns the live-in set of a node from a live-variables result.
func LiveAtEntry(res *Result[tac.VarSet], n *cfg.Node) tac.VarSet {
	if s, ok := res.Output[n]; ok {
		return s
	}
	return tac.VarSet{}
}
