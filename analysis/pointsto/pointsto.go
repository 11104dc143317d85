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
	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/config"
	"github.com/garbervetsky/analysis-net/analysis/dataflow"
	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// ResultVariable is the distinguished variable holding a method's return
// targets.
const ResultVariable = "$RV"

// elementField is the pseudo-field under which array contents are tracked.
// All elements of an array collapse into it.
func elementField(arrayType tac.TypeRef) tac.FieldReference {
	return tac.FieldReference{Name: "$elem", ContainingType: arrayType.TypeName(), Type: tac.ObjectType}
}

// Analysis is the forward points-to analysis of one method. The lattice is
// the points-to graph, join is graph union and the transfer functions
// implement a field-sensitive may-analysis with allocation-site abstraction.
type Analysis struct {
	body     *tac.MethodBody
	resolver tac.TypeResolver
	log      *config.LogGroup

	retVar  tac.Variable
	partial bool
}

// NewAnalysis builds the analysis of body. The resolver may be nil; value-type
// classification then falls back to the IR's type kinds and every unresolved
// reference degrades to unknown nodes.
func NewAnalysis(body *tac.MethodBody, resolver tac.TypeResolver, log *config.LogGroup) *Analysis {
	return &Analysis{
		body:     body,
		resolver: resolver,
		log:      log,
		retVar:   tac.NewLocal(ResultVariable, body.Method.ReturnType),
	}
}

// Partial reports whether an unresolved reference forced a placeholder into
// the result.
func (a *Analysis) Partial() bool { return a.partial }

// Analyze runs the analysis to fixpoint over the graph. The points-to graph
// at method exit is the Output of the NormalExit node.
func (a *Analysis) Analyze(g *cfg.Graph, maxIterations int) (*dataflow.Result[*Graph], error) {
	return dataflow.RunForward[*Graph](g, a, maxIterations)
}

// Initial is the empty graph everywhere except at Entry, where every
// reference-typed parameter points at a fresh node: an Object node for the
// receiver (known to exist and be non-null), a Parameter node for the rest.
func (a *Analysis) Initial(n *cfg.Node) *Graph {
	g := NewGraph()
	if n.Kind != cfg.EntryKind {
		return g
	}
	for i, p := range a.body.Parameters {
		if a.isValueType(p.Type()) {
			continue
		}
		g.AddVariable(p)
		id := MethodNodeID(a.body.Method, -(i + 1))
		kind := ParameterNode
		if p.Name() == "this" {
			kind = ObjectNode
		}
		node := g.GetOrInsertNode(id, p.Type(), kind)
		node.Parameter = p.Name()
		g.PointsTo(p, node)
	}
	return g
}

func (a *Analysis) Compare(x, y *Graph) bool { return x.GraphEquals(y) }

// Join unions both graphs into a fresh one. An id collision with conflicting
// node metadata is a contract violation and panics.
func (a *Analysis) Join(x, y *Graph) *Graph {
	out := x.Clone()
	if err := out.Union(y); err != nil {
		panic(err)
	}
	return out
}

// Flow applies the per-instruction transfer functions over a copy of the input.
func (a *Analysis) Flow(n *cfg.Node, input *Graph) *Graph {
	g := input.Clone()
	for _, ins := range n.Instructions {
		a.transfer(g, ins)
	}
	return g
}

//gocyclo:ignore
func (a *Analysis) transfer(g *Graph, ins tac.Instruction) {
	switch i := ins.(type) {
	case *tac.Load:
		a.transferLoad(g, i)
	case *tac.Store:
		a.transferStore(g, i)
	case *tac.CreateObject:
		a.allocate(g, i.Dest, i.AllocationType, int(i.Offset()))
	case *tac.CreateArray:
		a.allocate(g, i.Dest, tac.ArrayType{ElementType: i.ElementType, Rank: i.Rank}, int(i.Offset()))
	case *tac.Convert:
		if v, ok := i.Operand.(tac.Variable); ok {
			a.copyTargets(g, i.Dest, v)
		}
	case *tac.Phi:
		a.transferPhi(g, i)
	case *tac.Return:
		if v, ok := i.Operand.(tac.Variable); ok {
			a.copyTargets(g, a.retVar, v)
		}
	case *tac.MethodCall:
		a.transferCall(g, i)
	case *tac.Catch:
		if i.Dest != nil && !a.isValueType(i.ExceptionType) {
			g.RemoveEdges(i.Dest)
			node := g.GetOrInsertNode(MethodNodeID(a.body.Method, int(i.Offset())), i.ExceptionType, UnknownNode)
			g.PointsTo(i.Dest, node)
		}
	}
}

func (a *Analysis) transferLoad(g *Graph, i *tac.Load) {
	switch src := i.Source.(type) {
	case *tac.Constant:
		if src.IsNull() {
			g.RemoveEdges(i.Dest)
			g.PointsTo(i.Dest, g.Null())
		}
	case tac.Variable:
		a.copyTargets(g, i.Dest, src)
	case *tac.InstanceFieldAccess:
		a.loadField(g, i.Dest, g.GetTargets(src.Instance), src.Field, int(i.Offset()), a.escapesThroughParameter)
	case *tac.StaticFieldAccess:
		a.loadField(g, i.Dest, map[*Node]bool{g.Global(): true}, src.Field, int(i.Offset()), alwaysEscaped)
	case *tac.ArrayElementAccess:
		field := elementField(src.Array.Type())
		a.loadField(g, i.Dest, g.GetTargets(src.Array), field, int(i.Offset()), a.escapesThroughParameter)
	case *tac.Dereference:
		g.RemoveEdges(i.Dest)
		node := g.GetOrInsertNode(MethodNodeID(a.body.Method, int(i.Offset())), i.Dest.Type(), UnknownNode)
		g.PointsTo(i.Dest, node)
	case *tac.StaticMethodReference:
		a.createDelegate(g, i.Dest, src.Method, nil, int(i.Offset()))
	case *tac.VirtualMethodReference:
		a.createDelegate(g, i.Dest, src.Method, src.Instance, int(i.Offset()))
	}
}

func (a *Analysis) transferStore(g *Graph, i *tac.Store) {
	values := a.valueTargets(g, i.Source)
	if len(values) == 0 {
		return
	}
	switch dst := i.Dest.(type) {
	case *tac.InstanceFieldAccess:
		for n := range g.GetTargets(dst.Instance) {
			for t := range values {
				g.PointsToField(n, dst.Field, t)
			}
		}
	case *tac.StaticFieldAccess:
		for t := range values {
			g.PointsToField(g.Global(), dst.Field, t)
		}
	case *tac.ArrayElementAccess:
		field := elementField(dst.Array.Type())
		for n := range g.GetTargets(dst.Array) {
			for t := range values {
				g.PointsToField(n, field, t)
			}
		}
	}
}

// valueTargets abstracts the right-hand side of a store: the null node for
// the null literal, the root targets for a variable, nothing otherwise.
func (a *Analysis) valueTargets(g *Graph, v tac.Value) map[*Node]bool {
	switch src := v.(type) {
	case *tac.Constant:
		if src.IsNull() {
			return map[*Node]bool{g.Null(): true}
		}
	case tac.Variable:
		if !a.isValueType(src.Type()) {
			return g.GetTargets(src)
		}
	}
	return nil
}

// copyTargets is the variable-copy transfer: dest drops its targets and takes
// the source's. Value-typed copies never alias and are skipped.
func (a *Analysis) copyTargets(g *Graph, dest tac.Variable, src tac.Variable) {
	if a.isValueType(dest.Type()) || a.isValueType(src.Type()) {
		return
	}
	targets := make([]*Node, 0, len(g.GetTargets(src)))
	for n := range g.GetTargets(src) {
		targets = append(targets, n)
	}
	g.RemoveEdges(dest)
	for _, n := range targets {
		g.PointsTo(dest, n)
	}
}

// loadField is the field-load transfer. The escaped predicate is evaluated on
// each receiver node individually: a receiver that escapes through a
// parameter and has no known target for the field gets a fresh Unknown node
// first (the caller may have stored something there before the call), while
// purely local receivers in the same target set are left alone.
func (a *Analysis) loadField(g *Graph, dest tac.Variable, receivers map[*Node]bool,
	field tac.FieldReference, offset int, escaped func(g *Graph, n *Node) bool) {

	if a.isValueType(field.Type) {
		return
	}
	for n := range receivers {
		if len(n.Targets[field]) == 0 && escaped(g, n) {
			unknown := g.GetOrInsertNode(MethodNodeID(a.body.Method, offset), field.Type, UnknownNode)
			g.PointsToField(n, field, unknown)
		}
	}
	g.RemoveEdges(dest)
	for n := range receivers {
		for t := range n.Targets[field] {
			g.PointsTo(dest, t)
		}
	}
}

// escapesThroughParameter reports whether the node is reachable from some
// parameter of the method: the heap it lives in escapes to the caller.
func (a *Analysis) escapesThroughParameter(g *Graph, n *Node) bool {
	for _, p := range a.body.Parameters {
		if a.isValueType(p.Type()) {
			continue
		}
		if g.Reachable(p, n) {
			return true
		}
	}
	return false
}

func alwaysEscaped(*Graph, *Node) bool { return true }

// allocate is the allocation transfer: one abstract node per allocation site,
// keyed by method and offset.
func (a *Analysis) allocate(g *Graph, dest tac.Variable, t tac.TypeRef, offset int) {
	node := g.GetOrInsertNode(MethodNodeID(a.body.Method, offset), t, ObjectNode)
	g.RemoveEdges(dest)
	g.PointsTo(dest, node)
}

// transferPhi unions the operands' targets into the result, without removal.
func (a *Analysis) transferPhi(g *Graph, i *tac.Phi) {
	if a.isValueType(i.Dest.Type()) {
		return
	}
	g.AddVariable(i.Dest)
	for _, arg := range i.Arguments {
		for n := range g.GetTargets(arg) {
			g.PointsTo(i.Dest, n)
		}
	}
}

func (a *Analysis) createDelegate(g *Graph, dest tac.Variable, method tac.MethodReference,
	instance tac.Variable, offset int) {

	node := g.GetOrInsertNode(MethodNodeID(a.body.Method, offset), tac.NativeIntType, DelegateNode)
	node.Method = method
	node.Instance = instance
	g.RemoveEdges(dest)
	g.PointsTo(dest, node)
}

// transferCall handles delegate construction and models every other call's
// result as an unknown node. Interprocedural composition is out of scope; the
// frame operations of the graph support clients that do it.
func (a *Analysis) transferCall(g *Graph, i *tac.MethodCall) {
	if i.Method.Name == ".ctor" && a.retargetDelegate(g, i) {
		return
	}
	a.warnUnresolved(i)
	if i.Dest == nil || a.isValueType(i.Dest.Type()) {
		return
	}
	g.RemoveEdges(i.Dest)
	node := g.GetOrInsertNode(MethodNodeID(a.body.Method, int(i.Offset())), i.Dest.Type(), UnknownNode)
	g.PointsTo(i.Dest, node)
}

func (a *Analysis) methodUnresolved(m tac.MethodReference) bool {
	if a.resolver == nil {
		return false
	}
	_, ok := a.resolver.ResolveMethod(m)
	return !ok
}

func (a *Analysis) warnUnresolved(i *tac.MethodCall) {
	if !a.methodUnresolved(i.Method) {
		return
	}
	a.partial = true
	if a.log != nil {
		a.log.Warnf("unresolved method %s at %s; result is partial", i.Method, i.Label())
	}
}

// retargetDelegate recognizes a delegate constructor call: the delegate nodes
// reachable from the function-pointer argument get their instance rebound to
// the actual receiver argument, and the destination (the constructed
// delegate) points at all of them.
func (a *Analysis) retargetDelegate(g *Graph, i *tac.MethodCall) bool {
	if a.resolver != nil && !a.resolver.IsDelegateType(tac.BasicType{Name: i.Method.ContainingType, TypeKind: tac.ReferenceKind}) {
		return false
	}
	var dest tac.Variable
	var instance tac.Variable
	var delegates []*Node
	for idx, arg := range i.Arguments {
		v, ok := arg.(tac.Variable)
		if !ok {
			continue
		}
		if idx == 0 {
			dest = v
			continue
		}
		found := false
		for n := range g.GetTargets(v) {
			if n.Kind == DelegateNode {
				delegates = append(delegates, n)
				found = true
			}
		}
		if !found && instance == nil {
			instance = v
		}
	}
	if dest == nil || len(delegates) == 0 {
		return false
	}
	for _, d := range delegates {
		d.Instance = instance
		g.PointsTo(dest, d)
	}
	return true
}

// isValueType classifies through the resolver when available, and through the
// IR's type kinds otherwise.
func (a *Analysis) isValueType(t tac.TypeRef) bool {
	if t == nil {
		return false
	}
	if a.resolver != nil {
		return a.resolver.IsValueType(t)
	}
	return t.Kind() == tac.ValueKind
}
