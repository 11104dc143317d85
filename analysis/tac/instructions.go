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

// Instruction is a single TAC instruction. Instructions are mutable: the
// rewriting transformations (copy propagation, SSA renaming, inlining) update
// operands in place through ReplaceUses and Definition.SetResult.
type Instruction interface {
	fmt.Stringer

	// Offset is the bytecode address the instruction was lifted from. Offsets
	// are monotone non-decreasing within a method.
	Offset() uint32

	// Label returns the instruction's textual label, canonically L_<offset:04X>.
	Label() string

	// SetLabel overrides the label; inlining rewrites callee labels this way.
	SetLabel(label string)

	// Variables returns all variables mentioned by the instruction.
	Variables() VarSet

	// UsedVariables returns the variables read by the instruction.
	UsedVariables() VarSet

	// ModifiedVariables returns the variables written by the instruction.
	ModifiedVariables() VarSet

	// ReplaceUses rewrites every use position of oldVar to newVar.
	ReplaceUses(oldVar, newVar Variable)

	// Replace rewrites both uses and definitions of oldVar to newVar.
	Replace(oldVar, newVar Variable)
}

// Definition is an instruction that assigns a result variable.
type Definition interface {
	Instruction
	Result() Variable
	SetResult(v Variable)
}

// Terminator marks instructions that end a basic block unconditionally:
// unconditional branches, returns and throws. Conditional branches and
// switches also end blocks but may fall through or branch.
type Terminator interface {
	Instruction
	terminator()
}

// NewLabel formats the canonical label of a bytecode offset.
func NewLabel(offset uint32) string { return fmt.Sprintf("L_%04X", offset) }

type instrBase struct {
	offset uint32
	label  string
}

func at(offset uint32) instrBase {
	return instrBase{offset: offset, label: NewLabel(offset)}
}

func (i *instrBase) Offset() uint32        { return i.offset }
func (i *instrBase) Label() string         { return i.label }
func (i *instrBase) SetLabel(label string) { i.label = label }

// allVariables is the default Variables implementation: uses plus definitions.
func allVariables(i Instruction) VarSet {
	s := i.UsedVariables()
	s.UnionWith(i.ModifiedVariables())
	return s
}

// replaceOn rewrites uses, and the result when the instruction defines one.
func replaceOn(i Instruction, oldVar, newVar Variable) {
	i.ReplaceUses(oldVar, newVar)
	if d, ok := i.(Definition); ok {
		if r := d.Result(); r != nil && r.Name() == oldVar.Name() {
			d.SetResult(newVar)
		}
	}
}

// Load is dest = source.
type Load struct {
	instrBase
	Dest   Variable
	Source Value
}

func NewLoad(offset uint32, dest Variable, source Value) *Load {
	return &Load{instrBase: at(offset), Dest: dest, Source: source}
}

func (i *Load) Result() Variable            { return i.Dest }
func (i *Load) SetResult(v Variable)        { i.Dest = v }
func (i *Load) Variables() VarSet           { return allVariables(i) }
func (i *Load) UsedVariables() VarSet       { return i.Source.Variables() }
func (i *Load) ModifiedVariables() VarSet   { return NewVarSet(i.Dest) }
func (i *Load) ReplaceUses(o, n Variable)   { i.Source = i.Source.Replace(o, n) }
func (i *Load) Replace(o, n Variable)       { replaceOn(i, o, n) }
func (i *Load) String() string              { return fmt.Sprintf("%s = %s", i.Dest, i.Source) }

// Store is dest = source where dest is an assignable non-variable position:
// a field access, array element or dereference.
type Store struct {
	instrBase
	Dest   Referenceable
	Source Value
}

func NewStore(offset uint32, dest Referenceable, source Value) *Store {
	return &Store{instrBase: at(offset), Dest: dest, Source: source}
}

func (i *Store) Variables() VarSet { return allVariables(i) }

func (i *Store) UsedVariables() VarSet {
	s := i.Dest.Variables()
	s.UnionWith(i.Source.Variables())
	return s
}

// ModifiedVariables is empty: a store writes through the heap or a pointer,
// never to a variable.
func (i *Store) ModifiedVariables() VarSet { return VarSet{} }

func (i *Store) ReplaceUses(o, n Variable) {
	i.Dest = i.Dest.Replace(o, n).(Referenceable)
	i.Source = i.Source.Replace(o, n)
}

func (i *Store) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *Store) String() string { return fmt.Sprintf("%s = %s", i.Dest, i.Source) }

// Binary is dest = left op right.
type Binary struct {
	instrBase
	Dest  Variable
	Left  Value
	Right Value
	Op    BinaryOperator
}

func NewBinary(offset uint32, dest Variable, op BinaryOperator, left, right Value) *Binary {
	return &Binary{instrBase: at(offset), Dest: dest, Op: op, Left: left, Right: right}
}

func (i *Binary) Result() Variable     { return i.Dest }
func (i *Binary) SetResult(v Variable) { i.Dest = v }
func (i *Binary) Variables() VarSet    { return allVariables(i) }

func (i *Binary) UsedVariables() VarSet {
	s := i.Left.Variables()
	s.UnionWith(i.Right.Variables())
	return s
}

func (i *Binary) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }

func (i *Binary) ReplaceUses(o, n Variable) {
	i.Left = i.Left.Replace(o, n)
	i.Right = i.Right.Replace(o, n)
}

func (i *Binary) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *Binary) String() string {
	return fmt.Sprintf("%s = %s %s %s", i.Dest, i.Left, i.Op, i.Right)
}

// Unary is dest = op operand.
type Unary struct {
	instrBase
	Dest    Variable
	Operand Value
	Op      UnaryOperator
}

func NewUnary(offset uint32, dest Variable, op UnaryOperator, operand Value) *Unary {
	return &Unary{instrBase: at(offset), Dest: dest, Op: op, Operand: operand}
}

func (i *Unary) Result() Variable          { return i.Dest }
func (i *Unary) SetResult(v Variable)      { i.Dest = v }
func (i *Unary) Variables() VarSet         { return allVariables(i) }
func (i *Unary) UsedVariables() VarSet     { return i.Operand.Variables() }
func (i *Unary) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }
func (i *Unary) ReplaceUses(o, n Variable) { i.Operand = i.Operand.Replace(o, n) }
func (i *Unary) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *Unary) String() string            { return fmt.Sprintf("%s = %s%s", i.Dest, i.Op, i.Operand) }

// CreateObject is dest = new T.
type CreateObject struct {
	instrBase
	Dest           Variable
	AllocationType TypeRef
}

func NewCreateObject(offset uint32, dest Variable, t TypeRef) *CreateObject {
	return &CreateObject{instrBase: at(offset), Dest: dest, AllocationType: t}
}

func (i *CreateObject) Result() Variable          { return i.Dest }
func (i *CreateObject) SetResult(v Variable)      { i.Dest = v }
func (i *CreateObject) Variables() VarSet         { return allVariables(i) }
func (i *CreateObject) UsedVariables() VarSet     { return VarSet{} }
func (i *CreateObject) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }
func (i *CreateObject) ReplaceUses(o, n Variable) {}
func (i *CreateObject) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *CreateObject) String() string {
	return fmt.Sprintf("%s = new %s", i.Dest, i.AllocationType.TypeName())
}

// CreateArray is dest = new T[sizes].
type CreateArray struct {
	instrBase
	Dest        Variable
	ElementType TypeRef
	Rank        int
	Sizes       []Value
}

func NewCreateArray(offset uint32, dest Variable, elem TypeRef, rank int, sizes []Value) *CreateArray {
	return &CreateArray{instrBase: at(offset), Dest: dest, ElementType: elem, Rank: rank, Sizes: sizes}
}

func (i *CreateArray) Result() Variable     { return i.Dest }
func (i *CreateArray) SetResult(v Variable) { i.Dest = v }
func (i *CreateArray) Variables() VarSet    { return allVariables(i) }

func (i *CreateArray) UsedVariables() VarSet {
	s := VarSet{}
	for _, sz := range i.Sizes {
		s.UnionWith(sz.Variables())
	}
	return s
}

func (i *CreateArray) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }

func (i *CreateArray) ReplaceUses(o, n Variable) {
	for k, sz := range i.Sizes {
		i.Sizes[k] = sz.Replace(o, n)
	}
}

func (i *CreateArray) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *CreateArray) String() string {
	parts := make([]string, len(i.Sizes))
	for k, sz := range i.Sizes {
		parts[k] = sz.String()
	}
	return fmt.Sprintf("%s = new %s[%s]", i.Dest, i.ElementType.TypeName(), strings.Join(parts, ", "))
}

// Convert is dest = (T) operand.
type Convert struct {
	instrBase
	Dest           Variable
	Operand        Value
	ConversionType TypeRef
}

func NewConvert(offset uint32, dest Variable, operand Value, t TypeRef) *Convert {
	return &Convert{instrBase: at(offset), Dest: dest, Operand: operand, ConversionType: t}
}

func (i *Convert) Result() Variable          { return i.Dest }
func (i *Convert) SetResult(v Variable)      { i.Dest = v }
func (i *Convert) Variables() VarSet         { return allVariables(i) }
func (i *Convert) UsedVariables() VarSet     { return i.Operand.Variables() }
func (i *Convert) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }
func (i *Convert) ReplaceUses(o, n Variable) { i.Operand = i.Operand.Replace(o, n) }
func (i *Convert) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *Convert) String() string {
	return fmt.Sprintf("%s = (%s) %s", i.Dest, i.ConversionType.TypeName(), i.Operand)
}

// CallKind distinguishes static dispatch from virtual dispatch.
type CallKind uint8

const (
	StaticCall CallKind = iota
	VirtualCall
)

// MethodCall is dest = method(args...) or method(args...).
type MethodCall struct {
	instrBase
	Kind      CallKind
	Method    MethodReference
	Arguments []Value
	Dest      Variable // nil when the method returns no value
}

func NewMethodCall(offset uint32, kind CallKind, method MethodReference, dest Variable, args []Value) *MethodCall {
	return &MethodCall{instrBase: at(offset), Kind: kind, Method: method, Dest: dest, Arguments: args}
}

// HasResult returns true when the call assigns its result to a variable.
func (i *MethodCall) HasResult() bool { return i.Dest != nil }

func (i *MethodCall) Result() Variable     { return i.Dest }
func (i *MethodCall) SetResult(v Variable) { i.Dest = v }
func (i *MethodCall) Variables() VarSet    { return allVariables(i) }

func (i *MethodCall) UsedVariables() VarSet {
	s := VarSet{}
	for _, a := range i.Arguments {
		s.UnionWith(a.Variables())
	}
	return s
}

func (i *MethodCall) ModifiedVariables() VarSet {
	if i.Dest == nil {
		return VarSet{}
	}
	return NewVarSet(i.Dest)
}

func (i *MethodCall) ReplaceUses(o, n Variable) {
	for k, a := range i.Arguments {
		i.Arguments[k] = a.Replace(o, n)
	}
}

func (i *MethodCall) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *MethodCall) String() string {
	parts := make([]string, len(i.Arguments))
	for k, a := range i.Arguments {
		parts[k] = a.String()
	}
	call := fmt.Sprintf("%s(%s)", i.Method, strings.Join(parts, ", "))
	if i.Dest != nil {
		return fmt.Sprintf("%s = %s", i.Dest, call)
	}
	return call
}

// Phi is dest = phi(args...).
type Phi struct {
	instrBase
	Dest      Variable
	Arguments []Variable
}

func NewPhi(offset uint32, dest Variable, args []Variable) *Phi {
	return &Phi{instrBase: at(offset), Dest: dest, Arguments: args}
}

func (i *Phi) Result() Variable     { return i.Dest }
func (i *Phi) SetResult(v Variable) { i.Dest = v }
func (i *Phi) Variables() VarSet    { return allVariables(i) }

func (i *Phi) UsedVariables() VarSet {
	s := VarSet{}
	for _, a := range i.Arguments {
		s.Add(a)
	}
	return s
}

func (i *Phi) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }

func (i *Phi) ReplaceUses(o, n Variable) {
	for k, a := range i.Arguments {
		if a.Name() == o.Name() {
			i.Arguments[k] = n
		}
	}
}

func (i *Phi) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *Phi) String() string {
	parts := make([]string, len(i.Arguments))
	for k, a := range i.Arguments {
		parts[k] = a.String()
	}
	return fmt.Sprintf("%s = phi(%s)", i.Dest, strings.Join(parts, ", "))
}

// Return leaves the method, optionally with a value.
type Return struct {
	instrBase
	Operand Value // nil for void returns
}

func NewReturn(offset uint32, operand Value) *Return {
	return &Return{instrBase: at(offset), Operand: operand}
}

func (i *Return) Variables() VarSet { return allVariables(i) }

func (i *Return) UsedVariables() VarSet {
	if i.Operand == nil {
		return VarSet{}
	}
	return i.Operand.Variables()
}

func (i *Return) ModifiedVariables() VarSet { return VarSet{} }

func (i *Return) ReplaceUses(o, n Variable) {
	if i.Operand != nil {
		i.Operand = i.Operand.Replace(o, n)
	}
}

func (i *Return) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *Return) String() string {
	if i.Operand == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", i.Operand)
}

func (i *Return) terminator() {}

// Throw raises an exception, or rethrows the current one when Operand is nil.
type Throw struct {
	instrBase
	Operand Value
}

func NewThrow(offset uint32, operand Value) *Throw {
	return &Throw{instrBase: at(offset), Operand: operand}
}

func (i *Throw) Variables() VarSet { return allVariables(i) }

func (i *Throw) UsedVariables() VarSet {
	if i.Operand == nil {
		return VarSet{}
	}
	return i.Operand.Variables()
}

func (i *Throw) ModifiedVariables() VarSet { return VarSet{} }

func (i *Throw) ReplaceUses(o, n Variable) {
	if i.Operand != nil {
		i.Operand = i.Operand.Replace(o, n)
	}
}

func (i *Throw) Replace(o, n Variable) { replaceOn(i, o, n) }

func (i *Throw) String() string {
	if i.Operand == nil {
		return "rethrow"
	}
	return fmt.Sprintf("throw %s", i.Operand)
}

func (i *Throw) terminator() {}

// ConditionalBranch jumps to Target when Condition is true and falls through
// otherwise.
type ConditionalBranch struct {
	instrBase
	Condition Value
	Target    string
}

func NewConditionalBranch(offset uint32, condition Value, target string) *ConditionalBranch {
	return &ConditionalBranch{instrBase: at(offset), Condition: condition, Target: target}
}

func (i *ConditionalBranch) Variables() VarSet         { return allVariables(i) }
func (i *ConditionalBranch) UsedVariables() VarSet     { return i.Condition.Variables() }
func (i *ConditionalBranch) ModifiedVariables() VarSet { return VarSet{} }
func (i *ConditionalBranch) ReplaceUses(o, n Variable) { i.Condition = i.Condition.Replace(o, n) }
func (i *ConditionalBranch) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *ConditionalBranch) String() string {
	return fmt.Sprintf("if %s goto %s", i.Condition, i.Target)
}

// UnconditionalBranch always jumps to Target.
type UnconditionalBranch struct {
	instrBase
	Target string
}

func NewUnconditionalBranch(offset uint32, target string) *UnconditionalBranch {
	return &UnconditionalBranch{instrBase: at(offset), Target: target}
}

func (i *UnconditionalBranch) Variables() VarSet         { return VarSet{} }
func (i *UnconditionalBranch) UsedVariables() VarSet     { return VarSet{} }
func (i *UnconditionalBranch) ModifiedVariables() VarSet { return VarSet{} }
func (i *UnconditionalBranch) ReplaceUses(o, n Variable) {}
func (i *UnconditionalBranch) Replace(o, n Variable)     {}
func (i *UnconditionalBranch) String() string            { return fmt.Sprintf("goto %s", i.Target) }

func (i *UnconditionalBranch) terminator() {}

// Switch jumps to Targets[operand] when the operand indexes a target and
// falls through otherwise.
type Switch struct {
	instrBase
	Operand Value
	Targets []string
}

func NewSwitch(offset uint32, operand Value, targets []string) *Switch {
	return &Switch{instrBase: at(offset), Operand: operand, Targets: targets}
}

func (i *Switch) Variables() VarSet         { return allVariables(i) }
func (i *Switch) UsedVariables() VarSet     { return i.Operand.Variables() }
func (i *Switch) ModifiedVariables() VarSet { return VarSet{} }
func (i *Switch) ReplaceUses(o, n Variable) { i.Operand = i.Operand.Replace(o, n) }
func (i *Switch) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *Switch) String() string {
	return fmt.Sprintf("switch %s [%s]", i.Operand, strings.Join(i.Targets, ", "))
}

// Nop does nothing. The disassembler emits one for padding opcodes so offsets
// remain dense.
type Nop struct {
	instrBase
}

func NewNop(offset uint32) *Nop { return &Nop{instrBase: at(offset)} }

func (i *Nop) Variables() VarSet         { return VarSet{} }
func (i *Nop) UsedVariables() VarSet     { return VarSet{} }
func (i *Nop) ModifiedVariables() VarSet { return VarSet{} }
func (i *Nop) ReplaceUses(o, n Variable) {}
func (i *Nop) Replace(o, n Variable)     {}
func (i *Nop) String() string            { return "nop" }

// Try marks the start of a protected block.
type Try struct {
	instrBase
}

func NewTry(offset uint32) *Try { return &Try{instrBase: at(offset)} }

func (i *Try) Variables() VarSet         { return VarSet{} }
func (i *Try) UsedVariables() VarSet     { return VarSet{} }
func (i *Try) ModifiedVariables() VarSet { return VarSet{} }
func (i *Try) ReplaceUses(o, n Variable) {}
func (i *Try) Replace(o, n Variable)     {}
func (i *Try) String() string            { return "try" }

// Catch marks the start of a catch handler and defines the caught exception.
type Catch struct {
	instrBase
	Dest          Variable
	ExceptionType TypeRef
}

func NewCatch(offset uint32, dest Variable, t TypeRef) *Catch {
	return &Catch{instrBase: at(offset), Dest: dest, ExceptionType: t}
}

func (i *Catch) Result() Variable          { return i.Dest }
func (i *Catch) SetResult(v Variable)      { i.Dest = v }
func (i *Catch) Variables() VarSet         { return allVariables(i) }
func (i *Catch) UsedVariables() VarSet     { return VarSet{} }
func (i *Catch) ModifiedVariables() VarSet { return NewVarSet(i.Dest) }
func (i *Catch) ReplaceUses(o, n Variable) {}
func (i *Catch) Replace(o, n Variable)     { replaceOn(i, o, n) }
func (i *Catch) String() string {
	return fmt.Sprintf("catch %s %s", i.ExceptionType.TypeName(), i.Dest)
}

// Finally marks the start of a finally handler.
type Finally struct {
	instrBase
}

func NewFinally(offset uint32) *Finally { return &Finally{instrBase: at(offset)} }

func (i *Finally) Variables() VarSet         { return VarSet{} }
func (i *Finally) UsedVariables() VarSet     { return VarSet{} }
func (i *Finally) ModifiedVariables() VarSet { return VarSet{} }
func (i *Finally) ReplaceUses(o, n Variable) {}
func (i *Finally) Replace(o, n Variable)     {}
func (i *Finally) String() string            { return "finally" }

// Fault marks the start of a fault handler.
type Fault struct {
	instrBase
}

func NewFault(offset uint32) *Fault { return &Fault{instrBase: at(offset)} }

func (i *Fault) Variables() VarSet         { return VarSet{} }
func (i *Fault) UsedVariables() VarSet     { return VarSet{} }
func (i *Fault) ModifiedVariables() VarSet { return VarSet{} }
func (i *Fault) ReplaceUses(o, n Variable) {}
func (i *Fault) Replace(o, n Variable)     {}
func (i *Fault) String() string            { return "fault" }
