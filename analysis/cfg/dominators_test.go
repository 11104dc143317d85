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
	"testing"

	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// diamondGraph builds if c { a = 2 } else { a = 1 }; return a.
func diamondGraph(t *testing.T) (*Graph, []*Node) {
	t.Helper()
	a := tac.NewLocal("a", tac.IntType)
	c := tac.NewLocal("c", tac.BoolType)
	body := newBody(
		tac.NewConditionalBranch(0, c, "L_0003"),
		tac.NewLoad(1, a, tac.NewConstant(1, tac.IntType)),
		tac.NewUnconditionalBranch(2, "L_0004"),
		tac.NewLoad(3, a, tac.NewConstant(2, tac.IntType)),
		tac.NewReturn(4, a),
	)
	g, err := Build(body, NormalMode)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g, g.Blocks()
}

func TestDominatorInvariants(t *testing.T) {
	g, _ := diamondGraph(t)
	di := g.ComputeDominators()
	for _, n := range g.Nodes() {
		if n.ForwardIndex < 0 {
			continue
		}
		if !di.Dominates(g.Entry, n) {
			t.Errorf("entry must dominate %v", n)
		}
		if !di.Dominates(n, n) {
			t.Errorf("%v must dominate itself", n)
		}
	}
}

func TestImmediateDominators(t *testing.T) {
	g, blocks := diamondGraph(t)
	g.ComputeDominators()
	cond, then, other, join := blocks[0], blocks[1], blocks[2], blocks[3]

	if cond.ImmediateDominator != g.Entry {
		t.Errorf("idom(cond): got %v", cond.ImmediateDominator)
	}
	for _, b := range []*Node{then, other, join} {
		if b.ImmediateDominator != cond {
			t.Errorf("idom(%v): got %v, want %v", b, b.ImmediateDominator, cond)
		}
	}
	found := map[*Node]bool{}
	for _, d := range cond.ImmediateDominated {
		found[d] = true
	}
	if !found[then] || !found[other] || !found[join] {
		t.Errorf("cond must immediately dominate the three blocks, got %v", cond.ImmediateDominated)
	}
}

func TestDominanceFrontier(t *testing.T) {
	g, blocks := diamondGraph(t)
	g.ComputeDominators()
	g.ComputeDominanceFrontier()
	_, then, other, join := blocks[0], blocks[1], blocks[2], blocks[3]

	for _, b := range []*Node{then, other} {
		if len(b.DominanceFrontier) != 1 || b.DominanceFrontier[0] != join {
			t.Errorf("frontier(%v): got %v, want {%v}", b, b.DominanceFrontier, join)
		}
	}
	if len(join.DominanceFrontier) != 0 {
		t.Errorf("frontier(join): got %v", join.DominanceFrontier)
	}
}

// loopGraph builds i = 0; while (c) { i = i + 1 }; return.
func loopGraph(t *testing.T) (*Graph, []*Node) {
	t.Helper()
	i := tac.NewLocal("i", tac.IntType)
	c := tac.NewLocal("c", tac.BoolType)
	body := newBody(
		tac.NewLoad(0, i, tac.NewConstant(0, tac.IntType)),
		tac.NewConditionalBranch(1, c, "L_0004"),
		tac.NewBinary(2, i, tac.Add, i, tac.NewConstant(1, tac.IntType)),
		tac.NewUnconditionalBranch(3, "L_0001"),
		tac.NewReturn(4, nil),
	)
	g, err := Build(body, NormalMode)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g, g.Blocks()
}

func TestBackEdgesAndNaturalLoops(t *testing.T) {
	g, blocks := loopGraph(t)
	di := g.ComputeDominators()
	header, bodyBlock := blocks[1], blocks[2]

	backs := g.FindBackEdges(di)
	if len(backs) != 1 {
		t.Fatalf("expected one back edge, got %v", backs)
	}
	if backs[0].Source != bodyBlock || backs[0].Target != header {
		t.Errorf("back edge: got %v -> %v", backs[0].Source, backs[0].Target)
	}

	loops := g.ComputeLoops(di)
	if len(loops) != 1 {
		t.Fatalf("expected one loop, got %d", len(loops))
	}
	l := loops[0]
	if l.Header() != header {
		t.Errorf("loop header: got %v, want %v", l.Header(), header)
	}
	if !l.Contains(header) || !l.Contains(bodyBlock) || len(l.Nodes()) != 2 {
		t.Errorf("loop body: got %v", l.Nodes())
	}
}

func TestTopologicalIndexes(t *testing.T) {
	g, _ := diamondGraph(t)
	g.ComputeOrders()
	for _, n := range g.Nodes() {
		// ExceptionalExit is unreachable forward in a graph without throws
		if n.ForwardIndex < 0 && n.Kind != ExceptionalExitKind {
			t.Errorf("%v unreachable forward", n)
		}
		if n.BackwardIndex < 0 {
			t.Errorf("%v unreachable backward", n)
		}
		for _, s := range n.Successors {
			// an edge that is not a back edge respects the forward order
			if s.ForwardIndex >= 0 && s.ForwardIndex < n.ForwardIndex && s != n {
				// tolerated only for back edges; the diamond has none
				t.Errorf("forward order violated on %v -> %v", n, s)
			}
		}
	}
	if g.Entry.ForwardIndex != 0 {
		t.Errorf("entry must be first in forward order")
	}
	if g.Exit.BackwardIndex != 0 {
		t.Errorf("exit must be first in backward order")
	}
}

func TestReducibility(t *testing.T) {
	g, _ := loopGraph(t)
	a := NewAdapter(g)
	if !a.IsReducible() {
		t.Errorf("a while loop is reducible")
	}
	comps := a.StrongComponents()
	multi := 0
	for _, comp := range comps {
		if len(comp) >= 2 {
			multi++
			if len(comp) != 2 {
				t.Errorf("loop SCC: got %d nodes", len(comp))
			}
		}
	}
	if multi != 1 {
		t.Errorf("expected exactly one multi-node SCC, got %d", multi)
	}
}
