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

// Package pointsto implements the points-to graph and the field-sensitive,
// allocation-site-abstracted points-to analysis over TAC method bodies.
package pointsto

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/garbervetsky/analysis-net/analysis/tac"
	"github.com/garbervetsky/analysis-net/internal/funcutil"
)

// ErrInconsistentGraph reports a union of two nodes with equal ids but
// different kind or type. This is an id-collision bug upstream, not a runtime
// condition; callers treat it as a contract violation.
var ErrInconsistentGraph = errors.New("inconsistent points-to graph")

// ContextKind qualifies node ids: allocation sites live in a method context,
// the null and global singletons in their own global contexts.
type ContextKind uint8

const (
	MethodContext ContextKind = iota
	GlobalNullContext
	GlobalStaticContext
)

// NodeID identifies a node. Two nodes with equal ids must be merged, never
// duplicated: within one graph an id resolves to exactly one node.
type NodeID struct {
	Context ContextKind
	Method  string
	Offset  int
}

// NullID is the id of the null singleton of every graph.
var NullID = NodeID{Context: GlobalNullContext, Offset: 0}

// GlobalID is the id of the static-roots singleton.
var GlobalID = NodeID{Context: GlobalStaticContext, Offset: -1}

// MethodNodeID returns the id of the allocation site at offset in method m.
func MethodNodeID(m tac.MethodReference, offset int) NodeID {
	return NodeID{Context: MethodContext, Method: m.String(), Offset: offset}
}

func (id NodeID) String() string {
	switch id.Context {
	case GlobalNullContext:
		return "null"
	case GlobalStaticContext:
		return "global"
	}
	return fmt.Sprintf("%s@%d", id.Method, id.Offset)
}

// NodeKind enumerates the kinds of abstract heap locations.
type NodeKind uint8

const (
	NullNode NodeKind = iota
	ObjectNode
	UnknownNode
	ParameterNode
	DelegateNode
	GlobalNode
)

func (k NodeKind) String() string {
	switch k {
	case NullNode:
		return "null"
	case ObjectNode:
		return "object"
	case UnknownNode:
		return "unknown"
	case ParameterNode:
		return "parameter"
	case DelegateNode:
		return "delegate"
	}
	return "global"
}

// Node is an abstract heap location: an allocation site, a parameter's
// pointee, an unknown placeholder, a delegate or one of the singletons.
// Sources is maintained as the exact inverse of Targets.
type Node struct {
	ID   NodeID
	Kind NodeKind
	Type tac.TypeRef

	// Parameter is the parameter name of a ParameterNode.
	Parameter string

	// Method and Instance describe a DelegateNode: the target method and the
	// bound receiver (nil for static delegates).
	Method   tac.MethodReference
	Instance tac.Variable

	// Variables are the root variables pointing at this node.
	Variables tac.VarSet

	Targets map[tac.FieldReference]map[*Node]bool
	Sources map[tac.FieldReference]map[*Node]bool
}

func newNode(id NodeID, t tac.TypeRef, kind NodeKind) *Node {
	return &Node{
		ID:        id,
		Kind:      kind,
		Type:      t,
		Variables: tac.VarSet{},
		Targets:   map[tac.FieldReference]map[*Node]bool{},
		Sources:   map[tac.FieldReference]map[*Node]bool{},
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s<%s>", n.Kind, n.ID)
}

// frame is a saved root set for the interprocedural call stack.
type frame struct {
	roots funcutil.MultiMap[string, *Node]
	vars  map[string]tac.Variable
}

// Graph is the points-to graph: a directed multigraph of abstract heap nodes
// with field-labeled edges, plus the roots relating variables to nodes.
// The null node is always present.
type Graph struct {
	nodes  map[NodeID]*Node
	roots  funcutil.MultiMap[string, *Node]
	vars   map[string]tac.Variable
	frames []frame
}

// NewGraph returns a graph containing only the null node.
func NewGraph() *Graph {
	g := &Graph{
		nodes: map[NodeID]*Node{},
		roots: funcutil.NewMultiMap[string, *Node](),
		vars:  map[string]tac.Variable{},
	}
	g.nodes[NullID] = newNode(NullID, tac.ObjectType, NullNode)
	return g
}

// Null returns the null singleton of this graph.
func (g *Graph) Null() *Node { return g.nodes[NullID] }

// Global returns the static-roots singleton, creating it on first use.
func (g *Graph) Global() *Node {
	return g.GetOrInsertNode(GlobalID, tac.ObjectType, GlobalNode)
}

// GetOrInsertNode returns the node with the given id, creating it when
// missing. The call is idempotent by id; kind and type of an existing node are
// left untouched.
func (g *Graph) GetOrInsertNode(id NodeID, t tac.TypeRef, kind NodeKind) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := newNode(id, t, kind)
	g.nodes[id] = n
	return n
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Nodes returns the node map keyed by id. Callers must not mutate it.
func (g *Graph) Nodes() map[NodeID]*Node { return g.nodes }

// Variables returns the registered root variables.
func (g *Graph) Variables() tac.VarSet {
	s := tac.VarSet{}
	for _, v := range g.vars {
		s.Add(v)
	}
	return s
}

// AddVariable registers v as a root, with no targets yet.
func (g *Graph) AddVariable(v tac.Variable) {
	g.roots.AddKey(v.Name())
	g.vars[v.Name()] = v
}

// RemoveVariable unregisters v and drops all its root edges.
func (g *Graph) RemoveVariable(v tac.Variable) {
	g.RemoveEdges(v)
	g.roots.RemoveKey(v.Name())
	delete(g.vars, v.Name())
}

// RemoveEdges drops all root edges of v but keeps it registered.
func (g *Graph) RemoveEdges(v tac.Variable) {
	name := v.Name()
	for n := range g.roots.Values(name) {
		delete(n.Variables, name)
	}
	g.roots.RemoveKey(name)
	g.roots.AddKey(name)
	g.vars[name] = v
}

// PointsTo adds the root edge v → n.
func (g *Graph) PointsTo(v tac.Variable, n *Node) {
	g.vars[v.Name()] = v
	g.roots.Add(v.Name(), n)
	n.Variables.Add(v)
}

// PointsToField adds the edge src --field--> dst and its inverse. A previous
// lone null target of the field is displaced: the null edge stands for
// "assume null until a real target is learned".
func (g *Graph) PointsToField(src *Node, field tac.FieldReference, dst *Node) {
	if targets, ok := src.Targets[field]; ok && len(targets) == 1 && targets[g.Null()] && dst != g.Null() {
		g.removeFieldEdge(src, field, g.Null())
	}
	addEdge(src.Targets, field, dst)
	addEdge(dst.Sources, field, src)
}

func addEdge(edges map[tac.FieldReference]map[*Node]bool, field tac.FieldReference, n *Node) {
	if s, ok := edges[field]; ok {
		s[n] = true
	} else {
		edges[field] = map[*Node]bool{n: true}
	}
}

func (g *Graph) removeFieldEdge(src *Node, field tac.FieldReference, dst *Node) {
	delete(src.Targets[field], dst)
	if len(src.Targets[field]) == 0 {
		delete(src.Targets, field)
	}
	delete(dst.Sources[field], src)
	if len(dst.Sources[field]) == 0 {
		delete(dst.Sources, field)
	}
}

// GetTargets returns the nodes v points to. The returned set is internal;
// callers must not mutate it.
func (g *Graph) GetTargets(v tac.Variable) map[*Node]bool {
	return g.roots.Values(v.Name())
}

// GetFieldTargets returns the union of n.Targets[field] over the targets of v.
func (g *Graph) GetFieldTargets(v tac.Variable, field tac.FieldReference) map[*Node]bool {
	out := map[*Node]bool{}
	for n := range g.GetTargets(v) {
		for t := range n.Targets[field] {
			out[t] = true
		}
	}
	return out
}

// Union adds every node, root and edge of other into g, keyed by node id.
// Fails when two nodes share an id but disagree on kind or type.
func (g *Graph) Union(other *Graph) error {
	for id, on := range other.nodes {
		if local, ok := g.nodes[id]; ok {
			if local.Kind != on.Kind || local.Type != on.Type {
				return fmt.Errorf("%w: id %v has kind %v/%v type %v/%v",
					ErrInconsistentGraph, id, local.Kind, on.Kind, local.Type, on.Type)
			}
			continue
		}
		fresh := newNode(id, on.Type, on.Kind)
		fresh.Parameter = on.Parameter
		fresh.Method = on.Method
		fresh.Instance = on.Instance
		g.nodes[id] = fresh
	}
	for name, set := range other.roots {
		v, registered := other.vars[name]
		if registered {
			g.vars[name] = v
			g.roots.AddKey(name)
		}
		for on := range set {
			local := g.nodes[on.ID]
			g.roots.Add(name, local)
			if registered {
				local.Variables.Add(v)
			}
		}
	}
	for _, on := range other.nodes {
		local := g.nodes[on.ID]
		for field, set := range on.Targets {
			for t := range set {
				dst := g.nodes[t.ID]
				addEdge(local.Targets, field, dst)
				addEdge(dst.Sources, field, local)
			}
		}
	}
	return nil
}

// GraphEquals returns true when both graphs have the same roots, the same
// node ids and identical edges on every node.
func (g *Graph) GraphEquals(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) {
		return false
	}
	if !rootsEqual(g.roots, other.roots) {
		return false
	}
	for id, n := range g.nodes {
		on, ok := other.nodes[id]
		if !ok {
			return false
		}
		if !edgesEqual(n.Targets, on.Targets) || !edgesEqual(n.Sources, on.Sources) {
			return false
		}
	}
	return true
}

func rootsEqual(a, b funcutil.MultiMap[string, *Node]) bool {
	if len(a) != len(b) {
		return false
	}
	for name, set := range a {
		bset, ok := b[name]
		if !ok || len(set) != len(bset) {
			return false
		}
		for n := range set {
			if !containsID(bset, n.ID) {
				return false
			}
		}
	}
	return true
}

func edgesEqual(a, b map[tac.FieldReference]map[*Node]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for field, set := range a {
		bset, ok := b[field]
		if !ok || len(set) != len(bset) {
			return false
		}
		for n := range set {
			if !containsID(bset, n.ID) {
				return false
			}
		}
	}
	return true
}

func containsID(set map[*Node]bool, id NodeID) bool {
	for n := range set {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Node identity is preserved through ids: the copy
// has fresh nodes carrying the same ids.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes: make(map[NodeID]*Node, len(g.nodes)),
		roots: funcutil.NewMultiMap[string, *Node](),
		vars:  make(map[string]tac.Variable, len(g.vars)),
	}
	mapped := make(map[*Node]*Node, len(g.nodes))
	for id, n := range g.nodes {
		fresh := newNode(id, n.Type, n.Kind)
		fresh.Parameter = n.Parameter
		fresh.Method = n.Method
		fresh.Instance = n.Instance
		c.nodes[id] = fresh
		mapped[n] = fresh
	}
	copyEdges := func(src, dst map[tac.FieldReference]map[*Node]bool) {
		for field, set := range src {
			fresh := make(map[*Node]bool, len(set))
			for n := range set {
				fresh[mapped[n]] = true
			}
			dst[field] = fresh
		}
	}
	for _, n := range g.nodes {
		fresh := mapped[n]
		fresh.Variables.UnionWith(n.Variables)
		copyEdges(n.Targets, fresh.Targets)
		copyEdges(n.Sources, fresh.Sources)
	}
	for name, v := range g.vars {
		c.vars[name] = v
		c.roots.AddKey(name)
	}
	for name, set := range g.roots {
		for n := range set {
			c.roots.Add(name, mapped[n])
		}
	}
	for _, f := range g.frames {
		cf := frame{roots: funcutil.NewMultiMap[string, *Node](), vars: map[string]tac.Variable{}}
		for name, v := range f.vars {
			cf.vars[name] = v
			cf.roots.AddKey(name)
		}
		for name, set := range f.roots {
			for n := range set {
				cf.roots.Add(name, mapped[n])
			}
		}
		c.frames = append(c.frames, cf)
	}
	return c
}

// NewFrame pushes the current roots and starts an empty root set. The node
// graph is shared with the caller's frame.
func (g *Graph) NewFrame() {
	for name, set := range g.roots {
		for n := range set {
			delete(n.Variables, name)
		}
	}
	g.frames = append(g.frames, frame{roots: g.roots, vars: g.vars})
	g.roots = funcutil.NewMultiMap[string, *Node]()
	g.vars = map[string]tac.Variable{}
}

// Binding ties a callee formal parameter to the caller's actual argument.
type Binding struct {
	Formal tac.Variable
	Actual tac.Variable
}

// NewFrameBinding pushes a frame and points each formal parameter at the
// targets of the caller's corresponding actual.
func (g *Graph) NewFrameBinding(bindings []Binding) {
	captured := make([][]*Node, len(bindings))
	for i, b := range bindings {
		for n := range g.GetTargets(b.Actual) {
			captured[i] = append(captured[i], n)
		}
	}
	g.NewFrame()
	for i, b := range bindings {
		g.AddVariable(b.Formal)
		for _, n := range captured[i] {
			g.PointsTo(b.Formal, n)
		}
	}
}

// RestoreFrame pops the callee's roots, re-links the caller's variables to
// their nodes, routes the callee's return targets (the targets of retVar) to
// destVar when destVar is non-nil, and garbage-collects nodes no longer
// reachable from any root.
func (g *Graph) RestoreFrame(retVar, destVar tac.Variable) {
	var returned []*Node
	if retVar != nil {
		for n := range g.GetTargets(retVar) {
			returned = append(returned, n)
		}
	}
	for name, set := range g.roots {
		for n := range set {
			delete(n.Variables, name)
		}
	}
	top := g.frames[len(g.frames)-1]
	g.frames = g.frames[:len(g.frames)-1]
	g.roots = top.roots
	g.vars = top.vars
	for name, set := range g.roots {
		v := g.vars[name]
		for n := range set {
			if v != nil {
				n.Variables.Add(v)
			}
		}
	}
	if destVar != nil {
		g.RemoveEdges(destVar)
		for _, n := range returned {
			g.PointsTo(destVar, n)
		}
	}
	g.CollectGarbage()
}

// CollectGarbage removes every node unreachable from the current roots and
// the roots of all stacked frames, cleaning the back references of the
// survivors. The null and global singletons always survive.
func (g *Graph) CollectGarbage() {
	reachable := map[*Node]bool{g.Null(): true}
	if global, ok := g.nodes[GlobalID]; ok {
		reachable[global] = true
	}
	var worklist []*Node
	mark := func(n *Node) {
		if !reachable[n] {
			reachable[n] = true
			worklist = append(worklist, n)
		}
	}
	for _, set := range g.roots {
		for n := range set {
			mark(n)
		}
	}
	for _, f := range g.frames {
		for _, set := range f.roots {
			for n := range set {
				mark(n)
			}
		}
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, set := range n.Targets {
			for t := range set {
				mark(t)
			}
		}
	}
	for id, n := range g.nodes {
		if reachable[n] {
			continue
		}
		for field, set := range n.Targets {
			for t := range set {
				if reachable[t] {
					delete(t.Sources[field], n)
					if len(t.Sources[field]) == 0 {
						delete(t.Sources, field)
					}
				}
			}
		}
		delete(g.nodes, id)
	}
}

// Reachable reports whether target can be reached from the targets of v by
// following field edges, stopping at the null node.
func (g *Graph) Reachable(v tac.Variable, target *Node) bool {
	seen := map[*Node]bool{}
	var worklist []*Node
	for n := range g.GetTargets(v) {
		if n == g.Null() {
			continue
		}
		seen[n] = true
		worklist = append(worklist, n)
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if n == target {
			return true
		}
		for _, set := range n.Targets {
			for t := range set {
				if t != g.Null() && !seen[t] {
					seen[t] = true
					worklist = append(worklist, t)
				}
			}
		}
	}
	return false
}

// Debug returns a multi-line dump of roots and edges, ordered for stable output.
func (g *Graph) Debug() string {
	var sb strings.Builder
	names := make([]string, 0, len(g.roots))
	for name := range g.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var targets []string
		for n := range g.roots.Values(name) {
			targets = append(targets, n.String())
		}
		sort.Strings(targets)
		fmt.Fprintf(&sb, "%s -> %s\n", name, strings.Join(targets, ", "))
	}
	ids := make([]string, 0, len(g.nodes))
	byName := map[string]*Node{}
	for id, n := range g.nodes {
		ids = append(ids, id.String())
		byName[id.String()] = n
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := byName[id]
		for field, set := range n.Targets {
			var targets []string
			for t := range set {
				targets = append(targets, t.String())
			}
			sort.Strings(targets)
			fmt.Fprintf(&sb, "%s --%s--> %s\n", n, field.Name, strings.Join(targets, ", "))
		}
	}
	return sb.String()
}
