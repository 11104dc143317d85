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

package pointsto

import (
	"testing"

	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/dataflow"
	"github.com/garbervetsky/analysis-net/analysis/tac"
)

func analyze(t *testing.T, body *tac.MethodBody) (*Graph, *cfg.Graph, *dataflow.Result[*Graph]) {
	t.Helper()
	g, err := cfg.Build(body, cfg.NormalMode)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a := NewAnalysis(body, nil, nil)
	res, err := a.Analyze(g, 0)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	exit := res.Output[g.NormalExit]
	if exit == nil {
		t.Fatalf("no graph at NormalExit")
	}
	return exit, g, res
}

func newBody(params []tac.Variable, instructions ...tac.Instruction) *tac.MethodBody {
	body := &tac.MethodBody{
		Method:       testMethod,
		Parameters:   params,
		Instructions: instructions,
	}
	body.UpdateVariables()
	return body
}

func singleTarget(t *testing.T, g *Graph, v tac.Variable) *Node {
	t.Helper()
	targets := g.GetTargets(v)
	if len(targets) != 1 {
		t.Fatalf("%s: expected a single target, got %d\n%s", v.Name(), len(targets), g.Debug())
	}
	for n := range targets {
		return n
	}
	return nil
}

// Allocation flow: p = new T; q = p; r = q.f. The allocation does not escape,
// so the field load synthesizes nothing and r points nowhere.
func TestAllocationFlow(t *testing.T) {
	p := tac.NewLocal("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	r := tac.NewLocal("r", nodeType)
	body := newBody(nil,
		tac.NewCreateObject(0, p, nodeType),
		tac.NewLoad(1, q, p),
		tac.NewLoad(2, r, &tac.InstanceFieldAccess{Instance: q, Field: fieldF}),
		tac.NewReturn(3, nil),
	)
	exit, _, _ := analyze(t, body)

	alloc := singleTarget(t, exit, p)
	if alloc.Kind != ObjectNode || alloc.ID != MethodNodeID(testMethod, 0) {
		t.Errorf("allocation node: %v", alloc)
	}
	if singleTarget(t, exit, q) != alloc {
		t.Errorf("q must alias p")
	}
	if len(alloc.Targets[fieldF]) != 0 {
		t.Errorf("f of a fresh local allocation has no targets, got %v", alloc.Targets[fieldF])
	}
	if len(exit.GetTargets(r)) != 0 {
		t.Errorf("r points at %v, want nothing", exit.GetTargets(r))
	}
}

// A field load through a parameter synthesizes an Unknown stand-in: the
// caller may have stored there.
func TestFieldLoadThroughParameterSynthesizesUnknown(t *testing.T) {
	p := tac.NewParameter("p", nodeType)
	r := tac.NewLocal("r", nodeType)
	body := newBody([]tac.Variable{p},
		tac.NewLoad(0, r, &tac.InstanceFieldAccess{Instance: p, Field: fieldF}),
		tac.NewReturn(1, nil),
	)
	exit, _, _ := analyze(t, body)

	unknown := singleTarget(t, exit, r)
	if unknown.Kind != UnknownNode {
		t.Errorf("expected an unknown node, got %v", unknown)
	}
	pNode := singleTarget(t, exit, p)
	if !pNode.Targets[fieldF][unknown] {
		t.Errorf("the unknown node must hang off the parameter's field")
	}
}

// A field load through a mix of escaping and non-escaping receivers
// synthesizes the Unknown stand-in only on the escaping node.
func TestFieldLoadMixedReceiversSynthesizesPerNode(t *testing.T) {
	p := tac.NewParameter("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	r := tac.NewLocal("r", nodeType)
	s := tac.NewLocal("s", nodeType)
	body := newBody([]tac.Variable{p},
		tac.NewCreateObject(0, q, nodeType),
		tac.NewPhi(1, r, []tac.Variable{p, q}),
		tac.NewLoad(2, s, &tac.InstanceFieldAccess{Instance: r, Field: fieldF}),
		tac.NewReturn(3, nil),
	)
	exit, _, _ := analyze(t, body)

	pNode := singleTarget(t, exit, p)
	alloc := singleTarget(t, exit, q)
	if len(alloc.Targets[fieldF]) != 0 {
		t.Errorf("the non-escaping allocation must get no synthesized edge, got %v", alloc.Targets[fieldF])
	}
	if len(pNode.Targets[fieldF]) != 1 {
		t.Fatalf("the escaping parameter node must get the unknown stand-in, got %v\n%s",
			pNode.Targets[fieldF], exit.Debug())
	}
	unknown := singleTarget(t, exit, s)
	if unknown.Kind != UnknownNode || !pNode.Targets[fieldF][unknown] {
		t.Errorf("s must point only at the parameter's unknown stand-in, got %v", unknown)
	}
}

// Null displacement: p.f = null; p.f = q replaces the null edge.
func TestNullDisplacementThroughStores(t *testing.T) {
	p := tac.NewLocal("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	body := newBody(nil,
		tac.NewCreateObject(0, p, nodeType),
		tac.NewCreateObject(1, q, nodeType),
		tac.NewStore(2, &tac.InstanceFieldAccess{Instance: p, Field: fieldF}, tac.Null()),
		tac.NewStore(3, &tac.InstanceFieldAccess{Instance: p, Field: fieldF}, q),
		tac.NewReturn(4, nil),
	)
	exit, _, _ := analyze(t, body)

	pNode := singleTarget(t, exit, p)
	qNode := singleTarget(t, exit, q)
	targets := pNode.Targets[fieldF]
	if len(targets) != 1 || !targets[qNode] {
		t.Errorf("after the second store f must point only at q's node, got %v", targets)
	}
}

// Phi join: if c then p = new A else p = new B; q = p.
func TestJoinOverBranches(t *testing.T) {
	p := tac.NewLocal("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	c := tac.NewParameter("c", tac.BoolType)
	body := newBody([]tac.Variable{c},
		tac.NewConditionalBranch(0, c, "L_0003"),
		tac.NewCreateObject(1, p, nodeType),
		tac.NewUnconditionalBranch(2, "L_0004"),
		tac.NewCreateObject(3, p, nodeType),
		tac.NewLoad(4, q, p),
		tac.NewReturn(5, nil),
	)
	exit, _, _ := analyze(t, body)

	targets := exit.GetTargets(q)
	if len(targets) != 2 {
		t.Fatalf("q must point at both allocation sites, got %d\n%s", len(targets), exit.Debug())
	}
	want := map[NodeID]bool{MethodNodeID(testMethod, 1): true, MethodNodeID(testMethod, 3): true}
	for n := range targets {
		if !want[n.ID] {
			t.Errorf("unexpected target %v", n)
		}
	}
}

// Explicit phi instructions union their operands.
func TestPhiTransfer(t *testing.T) {
	p1 := tac.NewLocal("p1", nodeType)
	p2 := tac.NewLocal("p2", nodeType)
	q := tac.NewLocal("q", nodeType)
	body := newBody(nil,
		tac.NewCreateObject(0, p1, nodeType),
		tac.NewCreateObject(1, p2, nodeType),
		tac.NewPhi(2, q, []tac.Variable{p1, p2}),
		tac.NewReturn(3, nil),
	)
	exit, _, _ := analyze(t, body)
	if len(exit.GetTargets(q)) != 2 {
		t.Errorf("phi must union both operands, got %v", exit.GetTargets(q))
	}
}

// Delegate construction: t = &obj::foo; d.ctor(d, obj, t).
func TestDelegateConstruction(t *testing.T) {
	obj := tac.NewParameter("obj", nodeType)
	d := tac.NewLocal("d", nodeType)
	tmp := tac.NewLocal("t", tac.NativeIntType)
	foo := tac.MethodReference{Name: "foo", ContainingType: "Node", ReturnType: tac.VoidType, ParameterCount: 0}
	ctor := tac.MethodReference{Name: ".ctor", ContainingType: "Action", ReturnType: tac.VoidType, ParameterCount: 2}
	body := newBody([]tac.Variable{obj},
		tac.NewLoad(0, tmp, &tac.VirtualMethodReference{Instance: obj, Method: foo}),
		tac.NewMethodCall(1, tac.VirtualCall, ctor, nil, []tac.Value{d, obj, tmp}),
		tac.NewReturn(2, nil),
	)
	exit, _, _ := analyze(t, body)

	targets := exit.GetTargets(d)
	if len(targets) == 0 {
		t.Fatalf("d points nowhere\n%s", exit.Debug())
	}
	for n := range targets {
		if n.Kind != DelegateNode {
			t.Errorf("d must point at delegate nodes, got %v", n)
			continue
		}
		if n.Method != foo {
			t.Errorf("delegate method: got %v, want %v", n.Method, foo)
		}
		if n.Instance == nil || n.Instance.Name() != "obj" {
			t.Errorf("delegate instance: got %v, want obj", n.Instance)
		}
	}
}

// Return routes targets into the distinguished result variable.
func TestReturnFlowsIntoResultVariable(t *testing.T) {
	p := tac.NewLocal("p", nodeType)
	body := newBody(nil,
		tac.NewCreateObject(0, p, nodeType),
		tac.NewReturn(1, p),
	)
	exit, _, _ := analyze(t, body)
	rv := tac.NewLocal(ResultVariable, nodeType)
	if len(exit.GetTargets(rv)) != 1 {
		t.Errorf("$RV must hold the returned targets, got %v", exit.GetTargets(rv))
	}
}

// Loop invariance: a while loop storing new Cons into head.next converges
// with exactly one allocation-site target.
func TestLoopReachesFixpoint(t *testing.T) {
	head := tac.NewLocal("head", nodeType)
	x := tac.NewLocal("x", nodeType)
	c := tac.NewParameter("c", tac.BoolType)
	next := tac.FieldReference{Name: "next", ContainingType: "Node", Type: nodeType}
	body := newBody([]tac.Variable{c},
		tac.NewCreateObject(0, head, nodeType),
		tac.NewConditionalBranch(1, c, "L_0005"),
		tac.NewCreateObject(2, x, nodeType),
		tac.NewStore(3, &tac.InstanceFieldAccess{Instance: head, Field: next}, x),
		tac.NewUnconditionalBranch(4, "L_0001"),
		tac.NewReturn(5, nil),
	)
	exit, _, _ := analyze(t, body)

	headNode := singleTarget(t, exit, head)
	targets := headNode.Targets[next]
	if len(targets) != 1 {
		t.Fatalf("head.next must have exactly one allocation-site target, got %v", targets)
	}
	for n := range targets {
		if n.ID != MethodNodeID(testMethod, 2) {
			t.Errorf("unexpected target %v", n)
		}
	}
}

// Monotonicity: growing the input graph grows the output.
func TestTransferIsMonotone(t *testing.T) {
	p := tac.NewLocal("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	body := newBody(nil,
		tac.NewLoad(0, q, p),
		tac.NewReturn(1, nil),
	)
	g, err := cfg.Build(body, cfg.NormalMode)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a := NewAnalysis(body, nil, nil)
	block := g.Blocks()[0]

	small := NewGraph()
	obj := small.GetOrInsertNode(MethodNodeID(testMethod, 9), nodeType, ObjectNode)
	small.PointsTo(p, obj)

	big := small.Clone()
	extra := big.GetOrInsertNode(MethodNodeID(testMethod, 10), nodeType, ObjectNode)
	big.PointsTo(p, big.Node(extra.ID))

	outSmall := a.Flow(block, small)
	outBig := a.Flow(block, big)
	joined := a.Join(outSmall, outBig)
	if !joined.GraphEquals(outBig) {
		t.Errorf("output on the larger input must contain the output on the smaller")
	}
}
