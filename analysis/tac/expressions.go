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

import "fmt"

// BinaryOperator enumerates the binary operators of the IL's arithmetic,
// logic and comparison instructions.
type BinaryOperator uint8

const (
	Add BinaryOperator = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	Eq
	Neq
	Gt
	Ge
	Lt
	Le
)

var binaryOperatorNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	And: "&", Or: "|", Xor: "^", Shl: "<<", Shr: ">>",
	Eq: "==", Neq: "!=", Gt: ">", Ge: ">=", Lt: "<", Le: "<=",
}

func (op BinaryOperator) String() string { return binaryOperatorNames[op] }

// UnaryOperator enumerates the unary operators.
type UnaryOperator uint8

const (
	Neg UnaryOperator = iota
	Not
)

var unaryOperatorNames = [...]string{Neg: "-", Not: "!"}

func (op UnaryOperator) String() string { return unaryOperatorNames[op] }

// BinaryExpression is left op right.
type BinaryExpression struct {
	Left     Value
	Right    Value
	Op       BinaryOperator
	ExprType TypeRef
}

func (e *BinaryExpression) Type() TypeRef { return e.ExprType }

func (e *BinaryExpression) Variables() VarSet {
	s := e.Left.Variables()
	s.UnionWith(e.Right.Variables())
	return s
}

func (e *BinaryExpression) Replace(oldVar, newVar Variable) Value {
	left := e.Left.Replace(oldVar, newVar)
	right := e.Right.Replace(oldVar, newVar)
	if left == e.Left && right == e.Right {
		return e
	}
	return &BinaryExpression{Left: left, Right: right, Op: e.Op, ExprType: e.ExprType}
}

func (e *BinaryExpression) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// UnaryExpression is op operand.
type UnaryExpression struct {
	Operand  Value
	Op       UnaryOperator
	ExprType TypeRef
}

func (e *UnaryExpression) Type() TypeRef { return e.ExprType }

func (e *UnaryExpression) Variables() VarSet { return e.Operand.Variables() }

func (e *UnaryExpression) Replace(oldVar, newVar Variable) Value {
	operand := e.Operand.Replace(oldVar, newVar)
	if operand == e.Operand {
		return e
	}
	return &UnaryExpression{Operand: operand, Op: e.Op, ExprType: e.ExprType}
}

func (e *UnaryExpression) String() string {
	return fmt.Sprintf("%s%s", e.Op, e.Operand)
}
