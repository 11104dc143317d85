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

// Package tac defines the register-based three-address-code IR the analyses
// run over: values, expressions, instructions and method bodies, plus the
// collaborator interfaces that produce them from compiled assemblies.
//
// Variables are identified by name: two variable values denote the same
// variable iff their names are equal, across variants. Variable sets are
// therefore keyed on names.
package tac

import (
	"fmt"
	"strings"
)

// Value is anything that can appear as an operand of an instruction.
type Value interface {
	fmt.Stringer

	// Type returns the static type of the value.
	Type() TypeRef

	// Variables returns the set of variables syntactically mentioned in the value.
	Variables() VarSet

	// Replace returns the value with every free occurrence of oldVar replaced
	// by newVar. The result is of the same variant; composite values return a
	// fresh value sharing no mutable sub-structure with the receiver when any
	// sub-value changed.
	Replace(oldVar, newVar Variable) Value
}

// Variable is a value with a name. Equality is by name.
type Variable interface {
	Value
	Name() string
	IsParameter() bool
}

// Referenceable marks the values whose address can be taken: variables, field
// accesses, array elements and dereferences.
type Referenceable interface {
	Value
	referenceable()
}

// VarSet is a set of variables keyed by name.
type VarSet map[string]Variable

// NewVarSet returns a set containing the given variables.
func NewVarSet(vs ...Variable) VarSet {
	s := make(VarSet, len(vs))
	for _, v := range vs {
		s[v.Name()] = v
	}
	return s
}

// Add inserts v into the set.
func (s VarSet) Add(v Variable) { s[v.Name()] = v }

// Contains returns true when a variable named like v is in the set.
func (s VarSet) Contains(v Variable) bool {
	_, ok := s[v.Name()]
	return ok
}

// UnionWith adds all variables of other to s.
func (s VarSet) UnionWith(other VarSet) {
	for n, v := range other {
		s[n] = v
	}
}

// Equals returns true when both sets contain the same variable names.
func (s VarSet) Equals(other VarSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// replaceVar is the variable-position rewrite shared by all composite values:
// a variable occurrence is replaced as a whole when its name matches.
func replaceVar(v, oldVar, newVar Variable) Variable {
	if v.Name() == oldVar.Name() {
		return newVar
	}
	return v
}

// Constant is a compile-time literal. The payload encoding is opaque to the IR.
type Constant struct {
	Value     any
	ConstType TypeRef
}

// NewConstant returns a constant with the given payload and type.
func NewConstant(value any, t TypeRef) *Constant {
	return &Constant{Value: value, ConstType: t}
}

// Null is the null literal.
func Null() *Constant { return &Constant{Value: nil, ConstType: ObjectType} }

// IsNull returns true for the null literal.
func (c *Constant) IsNull() bool { return c.Value == nil }

func (c *Constant) Type() TypeRef { return c.ConstType }

func (c *Constant) Variables() VarSet { return VarSet{} }

func (c *Constant) Replace(oldVar, newVar Variable) Value { return c }

func (c *Constant) String() string {
	if c.Value == nil {
		return "null"
	}
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(c.Value)
}

// UnknownValue denotes a value that is not statically known. There is exactly
// one instance per process; use Unknown.
type UnknownValue struct{}

// Unknown is the process-wide UnknownValue singleton.
var Unknown = &UnknownValue{}

func (u *UnknownValue) Type() TypeRef                        { return UnknownType }
func (u *UnknownValue) Variables() VarSet                    { return VarSet{} }
func (u *UnknownValue) Replace(oldVar, newVar Variable) Value { return u }
func (u *UnknownValue) String() string                       { return "UNK" }

// LocalVariable is a source-level local or parameter.
type LocalVariable struct {
	name    string
	varType TypeRef
	param   bool
}

// NewLocal returns a non-parameter local variable.
func NewLocal(name string, t TypeRef) *LocalVariable {
	return &LocalVariable{name: name, varType: t}
}

// NewParameter returns a parameter variable.
func NewParameter(name string, t TypeRef) *LocalVariable {
	return &LocalVariable{name: name, varType: t, param: true}
}

func (v *LocalVariable) Name() string      { return v.name }
func (v *LocalVariable) IsParameter() bool { return v.param }
func (v *LocalVariable) Type() TypeRef     { return v.varType }

// SetType updates the variable's type; used by type inference.
func (v *LocalVariable) SetType(t TypeRef) { v.varType = t }

func (v *LocalVariable) Variables() VarSet { return NewVarSet(v) }

func (v *LocalVariable) Replace(oldVar, newVar Variable) Value {
	return replaceVar(v, oldVar, newVar)
}

func (v *LocalVariable) String() string { return v.name }

func (v *LocalVariable) referenceable() {}

// TemporalVariable is a compiler-introduced temporary. Its name is the base
// name followed by the index.
type TemporalVariable struct {
	base    string
	index   int
	varType TypeRef
}

// NewTemporal returns the index-th temporary over the given base name.
func NewTemporal(base string, index int) *TemporalVariable {
	return &TemporalVariable{base: base, index: index, varType: UnknownType}
}

func (v *TemporalVariable) Name() string      { return fmt.Sprintf("%s%d", v.base, v.index) }
func (v *TemporalVariable) Index() int        { return v.index }
func (v *TemporalVariable) IsParameter() bool { return false }
func (v *TemporalVariable) Type() TypeRef     { return v.varType }
func (v *TemporalVariable) SetType(t TypeRef) { v.varType = t }

func (v *TemporalVariable) Variables() VarSet { return NewVarSet(v) }

func (v *TemporalVariable) Replace(oldVar, newVar Variable) Value {
	return replaceVar(v, oldVar, newVar)
}

func (v *TemporalVariable) String() string { return v.Name() }

func (v *TemporalVariable) referenceable() {}

// DerivedVariable is an SSA version of another variable.
type DerivedVariable struct {
	Origin Variable
	Index  int
}

// NewDerived returns the index-th SSA version of origin.
func NewDerived(origin Variable, index int) *DerivedVariable {
	return &DerivedVariable{Origin: origin, Index: index}
}

// Name is the origin's name suffixed with the version, except that version 0
// keeps the origin's name unchanged.
func (v *DerivedVariable) Name() string {
	if v.Index == 0 {
		return v.Origin.Name()
	}
	return fmt.Sprintf("%s_%d", v.Origin.Name(), v.Index)
}

// IsParameter holds only for version 0 of a parameter: later versions are
// redefinitions inside the body.
func (v *DerivedVariable) IsParameter() bool { return v.Origin.IsParameter() && v.Index == 0 }

func (v *DerivedVariable) Type() TypeRef { return v.Origin.Type() }

func (v *DerivedVariable) Variables() VarSet { return NewVarSet(v) }

func (v *DerivedVariable) Replace(oldVar, newVar Variable) Value {
	return replaceVar(v, oldVar, newVar)
}

func (v *DerivedVariable) String() string { return v.Name() }

func (v *DerivedVariable) referenceable() {}

// InstanceFieldAccess is obj.f.
type InstanceFieldAccess struct {
	Instance Variable
	Field    FieldReference
}

func (a *InstanceFieldAccess) Type() TypeRef { return a.Field.Type }

func (a *InstanceFieldAccess) Variables() VarSet { return NewVarSet(a.Instance) }

func (a *InstanceFieldAccess) Replace(oldVar, newVar Variable) Value {
	instance := replaceVar(a.Instance, oldVar, newVar)
	if instance == a.Instance {
		return a
	}
	return &InstanceFieldAccess{Instance: instance, Field: a.Field}
}

func (a *InstanceFieldAccess) String() string {
	return fmt.Sprintf("%s.%s", a.Instance, a.Field.Name)
}

func (a *InstanceFieldAccess) referenceable() {}

// StaticFieldAccess is T.f.
type StaticFieldAccess struct {
	Field FieldReference
}

func (a *StaticFieldAccess) Type() TypeRef                        { return a.Field.Type }
func (a *StaticFieldAccess) Variables() VarSet                    { return VarSet{} }
func (a *StaticFieldAccess) Replace(oldVar, newVar Variable) Value { return a }
func (a *StaticFieldAccess) String() string                       { return a.Field.String() }
func (a *StaticFieldAccess) referenceable()                       {}

// ArrayLengthAccess is a.Length.
type ArrayLengthAccess struct {
	Instance Variable
}

func (a *ArrayLengthAccess) Type() TypeRef { return SizeType }

func (a *ArrayLengthAccess) Variables() VarSet { return NewVarSet(a.Instance) }

func (a *ArrayLengthAccess) Replace(oldVar, newVar Variable) Value {
	instance := replaceVar(a.Instance, oldVar, newVar)
	if instance == a.Instance {
		return a
	}
	return &ArrayLengthAccess{Instance: instance}
}

func (a *ArrayLengthAccess) String() string { return fmt.Sprintf("%s.Length", a.Instance) }

// ArrayElementAccess is a[i, ...].
type ArrayElementAccess struct {
	Array   Variable
	Indices []Value
}

// Type is the array's element type when the array's type is known.
func (a *ArrayElementAccess) Type() TypeRef {
	if at, ok := a.Array.Type().(ArrayType); ok {
		return at.ElementType
	}
	return UnknownType
}

func (a *ArrayElementAccess) Variables() VarSet {
	s := NewVarSet(a.Array)
	for _, ix := range a.Indices {
		s.UnionWith(ix.Variables())
	}
	return s
}

func (a *ArrayElementAccess) Replace(oldVar, newVar Variable) Value {
	array := replaceVar(a.Array, oldVar, newVar)
	changed := array != a.Array
	indices := make([]Value, len(a.Indices))
	for i, ix := range a.Indices {
		indices[i] = ix.Replace(oldVar, newVar)
		if indices[i] != ix {
			changed = true
		}
	}
	if !changed {
		return a
	}
	return &ArrayElementAccess{Array: array, Indices: indices}
}

func (a *ArrayElementAccess) String() string {
	parts := make([]string, len(a.Indices))
	for i, ix := range a.Indices {
		parts[i] = ix.String()
	}
	return fmt.Sprintf("%s[%s]", a.Array, strings.Join(parts, ", "))
}

func (a *ArrayElementAccess) referenceable() {}

// Dereference is *p.
type Dereference struct {
	Pointer Variable
}

func (d *Dereference) Type() TypeRef {
	if pt, ok := d.Pointer.Type().(PointerType); ok {
		return pt.Target
	}
	return UnknownType
}

func (d *Dereference) Variables() VarSet { return NewVarSet(d.Pointer) }

func (d *Dereference) Replace(oldVar, newVar Variable) Value {
	pointer := replaceVar(d.Pointer, oldVar, newVar)
	if pointer == d.Pointer {
		return d
	}
	return &Dereference{Pointer: pointer}
}

func (d *Dereference) String() string { return fmt.Sprintf("*%s", d.Pointer) }

func (d *Dereference) referenceable() {}

// Reference is &target.
type Reference struct {
	Target Referenceable
}

func (r *Reference) Type() TypeRef { return PointerType{Target: r.Target.Type()} }

func (r *Reference) Variables() VarSet { return r.Target.Variables() }

func (r *Reference) Replace(oldVar, newVar Variable) Value {
	target := r.Target.Replace(oldVar, newVar).(Referenceable)
	if target == r.Target {
		return r
	}
	return &Reference{Target: target}
}

func (r *Reference) String() string { return fmt.Sprintf("&%s", r.Target) }

// StaticMethodReference is a first-class pointer to a static method.
type StaticMethodReference struct {
	Method MethodReference
}

func (m *StaticMethodReference) Type() TypeRef                        { return NativeIntType }
func (m *StaticMethodReference) Variables() VarSet                    { return VarSet{} }
func (m *StaticMethodReference) Replace(oldVar, newVar Variable) Value { return m }
func (m *StaticMethodReference) String() string                       { return fmt.Sprintf("&%s", m.Method) }

// VirtualMethodReference is a first-class pointer to a method bound to an instance.
type VirtualMethodReference struct {
	Instance Variable
	Method   MethodReference
}

func (m *VirtualMethodReference) Type() TypeRef { return NativeIntType }

func (m *VirtualMethodReference) Variables() VarSet { return NewVarSet(m.Instance) }

func (m *VirtualMethodReference) Replace(oldVar, newVar Variable) Value {
	instance := replaceVar(m.Instance, oldVar, newVar)
	if instance == m.Instance {
		return m
	}
	return &VirtualMethodReference{Instance: instance, Method: m.Method}
}

func (m *VirtualMethodReference) String() string {
	return fmt.Sprintf("&%s::%s", m.Instance, m.Method.Name)
}
