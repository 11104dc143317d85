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

// TypeInference propagates most-specific types through copies, loads and
// calls. Temporaries produced by the disassembler start with an unknown type;
// one pass per forward-topological node order settles them, iterated until no
// type changes (phi joins may need a second visit).
type TypeInference struct {
	// Resolver, when present, is consulted for the least common supertype at
	// phi joins; without it joins of distinct types fall back to Object.
	Resolver tac.TypeResolver
}

// Run infers and assigns types over the graph. Returns the number of
// variables whose type changed.
func (ti TypeInference) Run(g *cfg.Graph) int {
	changedTotal := 0
	for {
		changed := 0
		for _, n := range nodesInOrder(g, func(n *cfg.Node) int { return n.ForwardIndex }) {
			for _, ins := range n.Instructions {
				if ti.inferInstruction(ins) {
					changed++
				}
			}
		}
		changedTotal += changed
		if changed == 0 {
			return changedTotal
		}
	}
}

func (ti TypeInference) inferInstruction(ins tac.Instruction) bool {
	d, ok := ins.(tac.Definition)
	if !ok || d.Result() == nil {
		return false
	}
	var t tac.TypeRef
	switch i := ins.(type) {
	case *tac.Load:
		t = i.Source.Type()
	case *tac.Convert:
		t = i.ConversionType
	case *tac.CreateObject:
		t = i.AllocationType
	case *tac.CreateArray:
		t = tac.ArrayType{ElementType: i.ElementType, Rank: i.Rank}
	case *tac.Binary:
		t = ti.binaryType(i)
	case *tac.Unary:
		t = i.Operand.Type()
	case *tac.MethodCall:
		t = i.Method.ReturnType
	case *tac.Phi:
		t = ti.joinTypes(i.Arguments)
	case *tac.Catch:
		t = i.ExceptionType
	}
	if t == nil || t == tac.TypeRef(tac.UnknownType) {
		return false
	}
	return setVariableType(d.Result(), t)
}

func (ti TypeInference) binaryType(i *tac.Binary) tac.TypeRef {
	switch i.Op {
	case tac.Eq, tac.Neq, tac.Gt, tac.Ge, tac.Lt, tac.Le:
		return tac.BoolType
	}
	return i.Left.Type()
}

// joinTypes returns the least common supertype of the phi arguments: the
// common type when all known argument types agree, the resolver's common base
// when they do not, and Object as the last resort.
func (ti TypeInference) joinTypes(args []tac.Variable) tac.TypeRef {
	var t tac.TypeRef
	for _, a := range args {
		at := a.Type()
		if at == nil || at == tac.TypeRef(tac.UnknownType) {
			continue
		}
		switch {
		case t == nil:
			t = at
		case t == at:
		default:
			if base, ok := ti.commonBase(t, at); ok {
				t = base
			} else {
				t = tac.ObjectType
			}
		}
	}
	return t
}

// commonBase walks the base-type chains through the resolver looking for a
// shared ancestor.
func (ti TypeInference) commonBase(a, b tac.TypeRef) (tac.TypeRef, bool) {
	if ti.Resolver == nil {
		return nil, false
	}
	ancestors := map[string]bool{}
	for cur := a; cur != nil; {
		ancestors[cur.TypeName()] = true
		def, ok := ti.Resolver.ResolveType(cur)
		if !ok || def.Base == "" {
			break
		}
		cur = tac.BasicType{Name: def.Base, TypeKind: tac.ReferenceKind}
	}
	for cur := b; cur != nil; {
		if ancestors[cur.TypeName()] {
			return cur, true
		}
		def, ok := ti.Resolver.ResolveType(cur)
		if !ok || def.Base == "" {
			return nil, false
		}
		cur = tac.BasicType{Name: def.Base, TypeKind: tac.ReferenceKind}
	}
	return nil, false
}

func setVariableType(v tac.Variable, t tac.TypeRef) bool {
	type settable interface{ SetType(tac.TypeRef) }
	s, ok := v.(settable)
	if !ok {
		return false
	}
	if v.Type() == t {
		return false
	}
	if v.Type() != nil && v.Type() != tac.TypeRef(tac.UnknownType) {
		return false
	}
	s.SetType(t)
	return true
}
