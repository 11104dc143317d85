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

package inline

import (
	"errors"
	"strings"
	"testing"

	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/tac"
)

var nodeType = tac.BasicType{Name: "Node", TypeKind: tac.ReferenceKind}

// calleeBody is Node id(Node x) { return x }.
func calleeBody() *tac.MethodBody {
	x := tac.NewParameter("x", nodeType)
	body := &tac.MethodBody{
		Method: tac.MethodReference{
			Name: "id", ContainingType: "T", ReturnType: nodeType, ParameterCount: 1,
		},
		Parameters: []tac.Variable{x},
		Instructions: []tac.Instruction{
			tac.NewReturn(0, x),
		},
	}
	body.UpdateVariables()
	return body
}

func TestInlineSplicesCallee(t *testing.T) {
	a := tac.NewLocal("a", nodeType)
	r := tac.NewLocal("r", nodeType)
	call := tac.NewMethodCall(1, tac.StaticCall, calleeBody().Method, r, []tac.Value{a})
	caller := &tac.MethodBody{
		Method: tac.MethodReference{Name: "main", ContainingType: "T", ReturnType: nodeType},
		Instructions: []tac.Instruction{
			tac.NewCreateObject(0, a, nodeType),
			call,
			tac.NewReturn(2, r),
		},
	}
	caller.UpdateVariables()

	if err := Inline(caller, call, calleeBody()); err != nil {
		t.Fatalf("inline: %v", err)
	}
	for _, ins := range caller.Instructions {
		if _, isCall := ins.(*tac.MethodCall); isCall {
			t.Errorf("the call must be gone: %s", ins)
		}
	}
	// the callee's labels carry the call-site prefix
	prefixed := 0
	for _, ins := range caller.Instructions {
		if strings.HasPrefix(ins.Label(), "L_0001_") {
			prefixed++
		}
	}
	if prefixed == 0 {
		t.Errorf("no instruction carries the call-site prefix")
	}
	// the result variable receives the returned value
	var gotLoad *tac.Load
	for _, ins := range caller.Instructions {
		if l, ok := ins.(*tac.Load); ok && l.Dest.Name() == "r" {
			gotLoad = l
		}
	}
	if gotLoad == nil {
		t.Fatalf("no assignment to the call result:\n%s", caller)
	}
	if _, uses := gotLoad.UsedVariables()["L_0001_x"]; !uses {
		t.Errorf("returned value must be the renamed formal, got %s", gotLoad)
	}

	// the spliced body still builds a well-formed graph
	if _, err := cfg.Build(caller, cfg.NormalMode); err != nil {
		t.Errorf("spliced body does not build: %v", err)
	}
}

func TestInlineErrors(t *testing.T) {
	a := tac.NewLocal("a", nodeType)
	r := tac.NewLocal("r", nodeType)
	stray := tac.NewMethodCall(7, tac.StaticCall, calleeBody().Method, r, []tac.Value{a})
	caller := &tac.MethodBody{
		Method:       tac.MethodReference{Name: "main", ContainingType: "T"},
		Instructions: []tac.Instruction{tac.NewReturn(0, nil)},
	}
	if err := Inline(caller, stray, calleeBody()); !errors.Is(err, ErrCallSiteNotFound) {
		t.Errorf("expected ErrCallSiteNotFound, got %v", err)
	}

	call := tac.NewMethodCall(0, tac.StaticCall, calleeBody().Method, r, []tac.Value{a, a})
	caller2 := &tac.MethodBody{
		Method:       tac.MethodReference{Name: "main", ContainingType: "T"},
		Instructions: []tac.Instruction{call, tac.NewReturn(1, nil)},
	}
	if err := Inline(caller2, call, calleeBody()); !errors.Is(err, ErrArgumentMismatch) {
		t.Errorf("expected ErrArgumentMismatch, got %v", err)
	}
}
