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
	"errors"
	"testing"

	"github.com/garbervetsky/analysis-net/analysis/tac"
)

var (
	nodeType   = tac.BasicType{Name: "Node", TypeKind: tac.ReferenceKind}
	testMethod = tac.MethodReference{Name: "m", ContainingType: "T", ReturnType: nodeType, ParameterCount: 0}
	fieldF     = tac.FieldReference{Name: "f", ContainingType: "Node", Type: nodeType}
)

// checkInvariants verifies the root and edge symmetry invariants of a graph.
func checkInvariants(t *testing.T, g *Graph) {
	t.Helper()
	if g.Node(NullID) == nil {
		t.Errorf("the null node must always be present")
	}
	for _, n := range g.Nodes() {
		for name := range n.Variables {
			if !g.roots.Has(name, n) {
				t.Errorf("node %v claims variable %s but the root map disagrees", n, name)
			}
		}
		for field, set := range n.Targets {
			for dst := range set {
				if !dst.Sources[field][n] {
					t.Errorf("edge %v --%s--> %v has no inverse", n, field.Name, dst)
				}
			}
		}
		for field, set := range n.Sources {
			for src := range set {
				if !src.Targets[field][n] {
					t.Errorf("inverse edge %v --%s--> %v has no forward edge", src, field.Name, n)
				}
			}
		}
	}
	for name, set := range g.roots {
		for n := range set {
			if _, ok := n.Variables[name]; !ok {
				t.Errorf("root %s -> %v has no back reference", name, n)
			}
		}
	}
}

func TestRootAndEdgeInvariants(t *testing.T) {
	g := NewGraph()
	v := tac.NewLocal("v", nodeType)
	w := tac.NewLocal("w", nodeType)
	a := g.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
	b := g.GetOrInsertNode(MethodNodeID(testMethod, 1), nodeType, ObjectNode)

	g.PointsTo(v, a)
	g.PointsTo(w, a)
	g.PointsTo(w, b)
	g.PointsToField(a, fieldF, b)
	checkInvariants(t, g)

	g.RemoveEdges(w)
	if len(g.GetTargets(w)) != 0 {
		t.Errorf("remove edges left targets behind")
	}
	if _, ok := g.Variables()["w"]; !ok {
		t.Errorf("remove edges must keep the variable registered")
	}
	checkInvariants(t, g)

	g.RemoveVariable(v)
	if _, ok := g.Variables()["v"]; ok {
		t.Errorf("remove variable must unregister it")
	}
	checkInvariants(t, g)
}

func TestGetOrInsertIsIdempotent(t *testing.T) {
	g := NewGraph()
	id := MethodNodeID(testMethod, 7)
	a := g.GetOrInsertNode(id, nodeType, ObjectNode)
	b := g.GetOrInsertNode(id, nodeType, ObjectNode)
	if a != b {
		t.Errorf("equal ids must resolve to the same node")
	}
}

func TestNullDisplacement(t *testing.T) {
	g := NewGraph()
	a := g.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
	m := g.GetOrInsertNode(MethodNodeID(testMethod, 1), nodeType, ObjectNode)

	g.PointsToField(a, fieldF, g.Null())
	if !a.Targets[fieldF][g.Null()] {
		t.Fatalf("null edge missing")
	}
	g.PointsToField(a, fieldF, m)
	if a.Targets[fieldF][g.Null()] {
		t.Errorf("learning a real target must displace the lone null edge")
	}
	if !a.Targets[fieldF][m] || len(a.Targets[fieldF]) != 1 {
		t.Errorf("targets after displacement: %v", a.Targets[fieldF])
	}
	// once a real target exists, null can join it and stays
	g.PointsToField(a, fieldF, g.Null())
	if len(a.Targets[fieldF]) != 2 {
		t.Errorf("null alongside a real target must be kept, got %v", a.Targets[fieldF])
	}
	checkInvariants(t, g)
}

func TestCloneEqualsOriginal(t *testing.T) {
	g := NewGraph()
	v := tac.NewLocal("v", nodeType)
	a := g.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
	b := g.GetOrInsertNode(MethodNodeID(testMethod, 1), nodeType, ObjectNode)
	g.PointsTo(v, a)
	g.PointsToField(a, fieldF, b)

	c := g.Clone()
	if !g.GraphEquals(c) || !c.GraphEquals(g) {
		t.Fatalf("clone must equal the original")
	}
	checkInvariants(t, c)

	// the clone shares no nodes with the original
	for id, n := range g.Nodes() {
		if c.Node(id) == n {
			t.Errorf("clone shares node %v", n)
		}
	}
	// mutating the clone leaves the original untouched
	w := tac.NewLocal("w", nodeType)
	c.PointsTo(w, c.Node(b.ID))
	if g.GraphEquals(c) {
		t.Errorf("graphs must differ after mutating the clone")
	}
}

func TestUnionLaws(t *testing.T) {
	build := func() (*Graph, *Graph) {
		g1 := NewGraph()
		v := tac.NewLocal("v", nodeType)
		a := g1.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
		g1.PointsTo(v, a)

		g2 := NewGraph()
		w := tac.NewLocal("w", nodeType)
		a2 := g2.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
		b2 := g2.GetOrInsertNode(MethodNodeID(testMethod, 1), nodeType, ObjectNode)
		g2.PointsTo(w, b2)
		g2.PointsToField(a2, fieldF, b2)
		return g1, g2
	}

	// idempotent
	g1, _ := build()
	once := g1.Clone()
	if err := once.Union(g1); err != nil {
		t.Fatalf("union: %v", err)
	}
	if !once.GraphEquals(g1) {
		t.Errorf("union with self must be a no-op")
	}

	// commutative up to node identity
	g1, g2 := build()
	left := g1.Clone()
	if err := left.Union(g2); err != nil {
		t.Fatalf("union: %v", err)
	}
	right := g2.Clone()
	if err := right.Union(g1); err != nil {
		t.Fatalf("union: %v", err)
	}
	if !left.GraphEquals(right) {
		t.Errorf("union must be commutative:\n%s\nvs\n%s", left.Debug(), right.Debug())
	}
	checkInvariants(t, left)
	checkInvariants(t, right)

	// associative
	g3 := NewGraph()
	u := tac.NewLocal("u", nodeType)
	c3 := g3.GetOrInsertNode(MethodNodeID(testMethod, 2), nodeType, ObjectNode)
	g3.PointsTo(u, c3)

	g1, g2 = build()
	ab := g1.Clone()
	ab.Union(g2)
	abc1 := ab.Clone()
	if err := abc1.Union(g3); err != nil {
		t.Fatalf("union: %v", err)
	}
	bc := g2.Clone()
	bc.Union(g3)
	abc2 := g1.Clone()
	if err := abc2.Union(bc); err != nil {
		t.Fatalf("union: %v", err)
	}
	if !abc1.GraphEquals(abc2) {
		t.Errorf("union must be associative")
	}
}

func TestUnionDetectsInconsistentNodes(t *testing.T) {
	g1 := NewGraph()
	g1.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
	g2 := NewGraph()
	g2.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, DelegateNode)
	if err := g1.Union(g2); !errors.Is(err, ErrInconsistentGraph) {
		t.Fatalf("expected ErrInconsistentGraph, got %v", err)
	}
}

func TestFramesAndGarbageCollection(t *testing.T) {
	g := NewGraph()
	caller := tac.NewLocal("x", nodeType)
	obj := g.GetOrInsertNode(MethodNodeID(testMethod, 0), nodeType, ObjectNode)
	g.PointsTo(caller, obj)

	formal := tac.NewParameter("p", nodeType)
	g.NewFrameBinding([]Binding{{Formal: formal, Actual: caller}})
	if !g.GetTargets(formal)[obj] {
		t.Fatalf("formal must point at the actual's targets")
	}
	if len(g.GetTargets(caller)) != 0 {
		t.Errorf("caller roots must be hidden inside the callee frame")
	}

	// the callee allocates a return value and garbage
	callee := tac.MethodReference{Name: "callee", ContainingType: "T", ReturnType: nodeType}
	ret := tac.NewLocal(ResultVariable, nodeType)
	retObj := g.GetOrInsertNode(MethodNodeID(callee, 3), nodeType, ObjectNode)
	junk := g.GetOrInsertNode(MethodNodeID(callee, 4), nodeType, ObjectNode)
	tmp := tac.NewLocal("t", nodeType)
	g.PointsTo(ret, retObj)
	g.PointsTo(tmp, junk)

	dest := tac.NewLocal("r", nodeType)
	g.RestoreFrame(ret, dest)

	if !g.GetTargets(caller)[obj] {
		t.Errorf("caller roots must be re-linked after restore")
	}
	if !g.GetTargets(dest)[retObj] {
		t.Errorf("destination must take the callee's return targets")
	}
	if g.Node(junk.ID) != nil {
		t.Errorf("unreachable callee allocation must be collected")
	}
	if g.Node(NullID) == nil {
		t.Errorf("null survives garbage collection")
	}
	checkInvariants(t, g)
}
