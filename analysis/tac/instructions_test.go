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

package tac

import "testing"

func TestLabels(t *testing.T) {
	ins := NewNop(0x2A)
	if ins.Label() != "L_002A" {
		t.Errorf("label: got %s, want L_002A", ins.Label())
	}
	if ins.Offset() != 0x2A {
		t.Errorf("offset: got %d", ins.Offset())
	}
}

func TestUsedAndModifiedVariables(t *testing.T) {
	a := NewLocal("a", nodeType)
	b := NewLocal("b", nodeType)
	r := NewLocal("r", nodeType)

	load := NewLoad(0, r, a)
	if !load.UsedVariables().Contains(a) || load.UsedVariables().Contains(r) {
		t.Errorf("load uses: %v", load.UsedVariables())
	}
	if !load.ModifiedVariables().Contains(r) {
		t.Errorf("load modifies: %v", load.ModifiedVariables())
	}

	store := NewStore(1, &InstanceFieldAccess{Instance: a, Field: nextField()}, b)
	used := store.UsedVariables()
	if !used.Contains(a) || !used.Contains(b) {
		t.Errorf("store uses: %v", used)
	}
	if len(store.ModifiedVariables()) != 0 {
		t.Errorf("a store modifies no variables: %v", store.ModifiedVariables())
	}

	call := NewMethodCall(2, StaticCall, MethodReference{Name: "m", ContainingType: "T", ReturnType: nodeType},
		r, []Value{a, b})
	if len(call.UsedVariables()) != 2 || !call.ModifiedVariables().Contains(r) {
		t.Errorf("call uses %v modifies %v", call.UsedVariables(), call.ModifiedVariables())
	}

	phi := NewPhi(3, r, []Variable{a, b})
	if len(phi.UsedVariables()) != 2 {
		t.Errorf("phi uses: %v", phi.UsedVariables())
	}
}

func TestReplaceRewritesUsesAndDefs(t *testing.T) {
	a := NewLocal("a", nodeType)
	y := NewLocal("y", nodeType)
	r := NewLocal("r", nodeType)

	load := NewLoad(0, r, &InstanceFieldAccess{Instance: a, Field: nextField()})
	load.Replace(a, y)
	if !load.UsedVariables().Contains(y) || load.UsedVariables().Contains(a) {
		t.Errorf("uses not rewritten: %v", load.UsedVariables())
	}

	load2 := NewLoad(1, r, a)
	load2.Replace(r, y)
	if load2.Dest.Name() != "y" {
		t.Errorf("definition not rewritten: %s", load2.Dest)
	}

	// ReplaceUses must leave the definition alone
	load3 := NewLoad(2, r, r)
	load3.ReplaceUses(r, y)
	if load3.Dest.Name() != "r" || !load3.UsedVariables().Contains(y) {
		t.Errorf("ReplaceUses touched the definition: %s", load3)
	}
}

func TestTerminators(t *testing.T) {
	term := []Instruction{
		NewReturn(0, nil),
		NewThrow(1, nil),
		NewUnconditionalBranch(2, "L_0000"),
	}
	for _, ins := range term {
		if _, ok := ins.(Terminator); !ok {
			t.Errorf("%s must be a terminator", ins)
		}
	}
	fall := []Instruction{
		NewNop(3),
		NewConditionalBranch(4, NewLocal("c", BoolType), "L_0000"),
		NewSwitch(5, NewLocal("c", IntType), []string{"L_0000"}),
		NewMethodCall(6, StaticCall, MethodReference{Name: "m"}, nil, nil),
	}
	for _, ins := range fall {
		if _, ok := ins.(Terminator); ok {
			t.Errorf("%s must be able to fall through", ins)
		}
	}
}

func TestUpdateVariables(t *testing.T) {
	p := NewParameter("p", nodeType)
	q := NewLocal("q", nodeType)
	body := &MethodBody{
		Method:     MethodReference{Name: "f", ContainingType: "T"},
		Parameters: []Variable{p},
		Instructions: []Instruction{
			NewCreateObject(0, q, nodeType),
			NewStore(1, &InstanceFieldAccess{Instance: q, Field: nextField()}, p),
			NewReturn(2, q),
		},
	}
	body.UpdateVariables()
	if len(body.LocalVariables) != 1 || body.LocalVariables[0].Name() != "q" {
		t.Errorf("locals: %v", body.LocalVariables)
	}
}
