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

// TypeDefinition is the resolved metadata of a type.
type TypeDefinition struct {
	Ref     BasicType
	Base    string
	Fields  []FieldReference
	Methods []MethodReference
}

// MethodDefinition is the resolved metadata of a method, possibly with a
// disassembled body attached.
type MethodDefinition struct {
	Ref  MethodReference
	Body *MethodBody
}

// FieldDefinition is the resolved metadata of a field.
type FieldDefinition struct {
	Ref FieldReference
}

// TypeResolver resolves metadata references against the loaded assemblies.
// Resolution may fail for references into assemblies that were not loaded; the
// analyses then degrade to unknown placeholders and mark their result partial.
// Implementations must be safe for concurrent read: distinct methods may be
// analyzed in parallel against one resolver.
type TypeResolver interface {
	ResolveType(ref TypeRef) (*TypeDefinition, bool)
	ResolveMethod(ref MethodReference) (*MethodDefinition, bool)
	ResolveField(ref FieldReference) (*FieldDefinition, bool)

	// IsDelegateType reports whether the type derives from the IL's delegate base types.
	IsDelegateType(t TypeRef) bool
	// IsValueType reports whether assignments of the type copy the value rather than alias it.
	IsValueType(t TypeRef) bool
	// IsContainerType reports whether the type is one of the IL's collection types.
	// No analysis in this module calls it.
	IsContainerType(t TypeRef) bool
}

// RawInstruction is a stack-machine bytecode instruction as delivered by a
// BytecodeLoader. The operand encoding is the loader's business.
type RawInstruction struct {
	Offset  uint32
	Opcode  string
	Operand any
}

// RawMethodBody is a method body in raw stack-machine form.
type RawMethodBody struct {
	Method         MethodReference
	MaxStack       int
	Instructions   []RawInstruction
	Locals         []Variable
	ExceptionTable []*ProtectedBlock
}

// BytecodeLoader produces raw method bodies from an on-disk assembly.
// Bit-exact fidelity to the assembly's instruction encoding is the loader's
// responsibility.
type BytecodeLoader interface {
	Load(assembly string) ([]*RawMethodBody, error)
}

// Disassembler lifts a raw stack-machine body into a register-based TAC body.
type Disassembler interface {
	Disassemble(raw *RawMethodBody) (*MethodBody, error)
}
