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

// ConstructSSA converts the method body, through its graph, into SSA form:
// phi instructions are placed at the dominance frontiers of definitions and
// every variable is renamed to a DerivedVariable per definition. Phis for
// variables that are dead at the join are pruned (never inserted). The body's
// declared locals are resynchronized afterwards.
func ConstructSSA(g *cfg.Graph, body *tac.MethodBody, maxIterations int) error {
	g.ComputeDominators()
	g.ComputeDominanceFrontier()
	live, err := ComputeLiveVariables(g, maxIterations)
	if err != nil {
		return err
	}
	s := &ssaState{
		graph:     g,
		body:      body,
		phiOrigin: map[*tac.Phi]tac.Variable{},
		counters:  map[string]int{},
		stacks:    map[string][]*tac.DerivedVariable{},
	}
	s.insertPhis(live)
	s.rename()
	body.UpdateVariables()
	return nil
}

type ssaState struct {
	graph     *cfg.Graph
	body      *tac.MethodBody
	phiOrigin map[*tac.Phi]tac.Variable
	counters  map[string]int
	stacks    map[string][]*tac.DerivedVariable
}

// collectVariables returns every variable of the body keyed by name:
// parameters plus everything mentioned by an instruction.
func (s *ssaState) collectVariables() tac.VarSet {
	vars := tac.NewVarSet(s.body.Parameters...)
	for _, n := range s.graph.Nodes() {
		for _, ins := range n.Instructions {
			vars.UnionWith(ins.Variables())
		}
	}
	return vars
}

func (s *ssaState) insertPhis(live *Result[tac.VarSet]) {
	vars := s.collectVariables()
	for name, v := range vars {
		defBlocks := map[*cfg.Node]bool{}
		for _, n := range s.graph.Nodes() {
			for _, ins := range n.Instructions {
				if _, defines := ins.ModifiedVariables()[name]; defines {
					defBlocks[n] = true
				}
			}
		}
		placed := map[*cfg.Node]bool{}
		worklist := make([]*cfg.Node, 0, len(defBlocks))
		for n := range defBlocks {
			worklist = append(worklist, n)
		}
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, f := range b.DominanceFrontier {
				if placed[f] || len(f.Instructions) == 0 {
					continue
				}
				if _, isLive := LiveAtEntry(live, f)[name]; !isLive {
					continue
				}
				args := make([]tac.Variable, len(f.Predecessors))
				for i := range args {
					args[i] = v
				}
				phi := tac.NewPhi(f.Instructions[0].Offset(), v, args)
				f.Instructions = append([]tac.Instruction{phi}, f.Instructions...)
				s.phiOrigin[phi] = v
				placed[f] = true
				if !defBlocks[f] {
					defBlocks[f] = true
					worklist = append(worklist, f)
				}
			}
		}
	}
}

func (s *ssaState) rename() {
	origins := s.collectVariables()
	for name, v := range origins {
		s.stacks[name] = []*tac.DerivedVariable{tac.NewDerived(v, 0)}
		s.counters[name] = 1
	}
	s.renameBlock(s.graph.Entry, origins)
}

func (s *ssaState) top(name string) *tac.DerivedVariable {
	stack := s.stacks[name]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

func (s *ssaState) renameBlock(n *cfg.Node, origins tac.VarSet) {
	pushed := map[string]int{}
	for _, ins := range n.Instructions {
		if _, isPhi := ins.(*tac.Phi); !isPhi {
			for name, u := range ins.UsedVariables() {
				if cur := s.top(name); cur != nil {
					ins.ReplaceUses(u, cur)
				}
			}
		}
		d, ok := ins.(tac.Definition)
		if !ok || d.Result() == nil {
			continue
		}
		name := d.Result().Name()
		origin, known := origins[name]
		if !known {
			continue
		}
		idx := s.counters[name]
		s.counters[name] = idx + 1
		version := tac.NewDerived(origin, idx)
		d.SetResult(version)
		s.stacks[name] = append(s.stacks[name], version)
		pushed[name]++
	}

	for _, succ := range n.Successors {
		j := predecessorIndex(succ, n)
		if j < 0 {
			continue
		}
		for _, ins := range succ.Instructions {
			phi, isPhi := ins.(*tac.Phi)
			if !isPhi {
				break
			}
			origin := s.phiOrigin[phi]
			if origin == nil {
				continue
			}
			if cur := s.top(origin.Name()); cur != nil {
				phi.Arguments[j] = cur
			}
		}
	}

	for _, child := range n.ImmediateDominated {
		s.renameBlock(child, origins)
	}

	for name, count := range pushed {
		stack := s.stacks[name]
		s.stacks[name] = stack[:len(stack)-count]
	}
}

func predecessorIndex(n, pred *cfg.Node) int {
	for i, p := range n.Predecessors {
		if p == pred {
			return i
		}
	}
	return -1
}
