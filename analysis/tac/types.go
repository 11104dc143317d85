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

import (
	"fmt"
	"strings"
)

// TypeKind distinguishes value types from reference types. The distinction is
// what the points-to analysis keys on: value-typed assignments never create
// heap aliases.
type TypeKind uint8

const (
	// ReferenceKind marks heap-allocated reference types.
	ReferenceKind TypeKind = iota
	// ValueKind marks stack-allocated value types (primitives, structs).
	ValueKind
	// UnknownKind marks types the resolver could not classify.
	UnknownKind
)

// TypeRef is a reference to a metadata type. Implementations are small
// comparable value structs so they can be used as map keys.
type TypeRef interface {
	TypeName() string
	Kind() TypeKind
}

// BasicType is a named type reference.
type BasicType struct {
	Name     string
	TypeKind TypeKind
}

func (t BasicType) TypeName() string { return t.Name }
func (t BasicType) Kind() TypeKind   { return t.TypeKind }
func (t BasicType) String() string   { return t.Name }

// PointerType is a managed pointer to its target type.
type PointerType struct {
	Target TypeRef
}

func (t PointerType) TypeName() string { return t.Target.TypeName() + "*" }
func (t PointerType) Kind() TypeKind   { return ReferenceKind }
func (t PointerType) String() string   { return t.TypeName() }

// ArrayType is an array of its element type.
type ArrayType struct {
	ElementType TypeRef
	Rank        int
}

func (t ArrayType) TypeName() string {
	return t.ElementType.TypeName() + "[" + strings.Repeat(",", t.Rank-1) + "]"
}
func (t ArrayType) Kind() TypeKind { return ReferenceKind }
func (t ArrayType) String() string { return t.TypeName() }

// Builtin type references used when lifting bytecode.
var (
	ObjectType    = BasicType{Name: "System.Object", TypeKind: ReferenceKind}
	StringType    = BasicType{Name: "System.String", TypeKind: ReferenceKind}
	IntType       = BasicType{Name: "System.Int32", TypeKind: ValueKind}
	BoolType      = BasicType{Name: "System.Boolean", TypeKind: ValueKind}
	NativeIntType = BasicType{Name: "System.IntPtr", TypeKind: ValueKind}
	SizeType      = BasicType{Name: "System.UIntPtr", TypeKind: ValueKind}
	VoidType      = BasicType{Name: "System.Void", TypeKind: ValueKind}
	UnknownType   = BasicType{Name: "<unknown>", TypeKind: UnknownKind}
)

// FieldReference identifies a field by name and containing type. It is a
// comparable value; the points-to graph uses it as an edge label. Callers must
// use structurally identical references for the same field.
type FieldReference struct {
	Name           string
	ContainingType string
	Type           TypeRef
	IsStatic       bool
}

func (f FieldReference) String() string {
	return f.ContainingType + "::" + f.Name
}

// MethodReference identifies a method by name, containing type and arity.
type MethodReference struct {
	Name           string
	ContainingType string
	ReturnType     TypeRef
	ParameterCount int
	IsStatic       bool
}

func (m MethodReference) String() string {
	return fmt.Sprintf("%s::%s/%d", m.ContainingType, m.Name, m.ParameterCount)
}

// HasResult returns true when calls to the method produce a value.
func (m MethodReference) HasResult() bool {
	return m.ReturnType != nil && m.ReturnType != TypeRef(VoidType)
}
