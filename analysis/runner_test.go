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

package analysis

import (
	"io"
	"testing"

	"github.com/garbervetsky/analysis-net/analysis/config"
	"github.com/garbervetsky/analysis-net/analysis/tac"
)

var nodeType = tac.BasicType{Name: "Node", TypeKind: tac.ReferenceKind}

// emptyResolver resolves nothing; every method reference is unresolved.
type emptyResolver struct{}

func (emptyResolver) ResolveType(ref tac.TypeRef) (*tac.TypeDefinition, bool)            { return nil, false }
func (emptyResolver) ResolveMethod(ref tac.MethodReference) (*tac.MethodDefinition, bool) { return nil, false }
func (emptyResolver) ResolveField(ref tac.FieldReference) (*tac.FieldDefinition, bool)    { return nil, false }
func (emptyResolver) IsDelegateType(t tac.TypeRef) bool                                   { return false }
func (emptyResolver) IsValueType(t tac.TypeRef) bool                                      { return t.Kind() == tac.ValueKind }
func (emptyResolver) IsContainerType(t tac.TypeRef) bool                                  { return false }

func quietLog() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(io.Discard)
	return l
}

func TestAnalyzeMethodPipeline(t *testing.T) {
	p := tac.NewParameter("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	next := tac.FieldReference{Name: "next", ContainingType: "Node", Type: nodeType}
	body := &tac.MethodBody{
		Method:     tac.MethodReference{Name: "f", ContainingType: "T", ReturnType: nodeType, ParameterCount: 1},
		Parameters: []tac.Variable{p},
		Instructions: []tac.Instruction{
			tac.NewCreateObject(0, q, nodeType),
			tac.NewStore(1, &tac.InstanceFieldAccess{Instance: q, Field: next}, p),
			tac.NewReturn(2, q),
		},
	}
	body.UpdateVariables()

	res, err := AnalyzeMethod(body, emptyResolver{}, config.NewDefault(), quietLog())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.ExitGraph == nil {
		t.Fatalf("no exit graph")
	}
	qNode := res.ExitGraph.GetTargets(q)
	if len(qNode) != 1 {
		t.Fatalf("q targets: %v", qNode)
	}
	for n := range qNode {
		if len(n.Targets[next]) != 1 {
			t.Errorf("q.next must point at p's node, got %v", n.Targets[next])
		}
	}
	if res.Partial {
		t.Errorf("no calls, so nothing can be unresolved")
	}
	if !res.Reducible {
		t.Errorf("a straight-line body has a reducible flow graph")
	}
}

func TestAnalyzeMethodMarksPartialResults(t *testing.T) {
	r := tac.NewLocal("r", nodeType)
	missing := tac.MethodReference{Name: "g", ContainingType: "Elsewhere", ReturnType: nodeType}
	body := &tac.MethodBody{
		Method: tac.MethodReference{Name: "f", ContainingType: "T", ReturnType: nodeType},
		Instructions: []tac.Instruction{
			tac.NewMethodCall(0, tac.StaticCall, missing, r, nil),
			tac.NewReturn(1, r),
		},
	}
	body.UpdateVariables()

	res, err := AnalyzeMethod(body, emptyResolver{}, config.NewDefault(), quietLog())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !res.Partial {
		t.Errorf("an unresolved callee must mark the result partial")
	}
	if len(res.ExitGraph.GetTargets(r)) != 1 {
		t.Errorf("the unresolved result degrades to an unknown node, got %v", res.ExitGraph.GetTargets(r))
	}
}
