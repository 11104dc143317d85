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

package cfg

import (
	"errors"
	"fmt"

	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// ErrMalformedBody reports a method body whose control flow cannot be
// resolved: a branch targets a label no instruction carries, or a handler
// range does not start at an existing instruction. The error is fatal to that
// method's analysis; other methods are unaffected.
var ErrMalformedBody = errors.New("malformed method body")

func malformedf(method tac.MethodReference, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedBody, method, fmt.Sprintf(format, args...))
}

// Mode selects whether exception handlers take part in the graph.
type Mode uint8

const (
	// NormalMode excises handler instructions and collapses throws into NormalExit.
	NormalMode Mode = iota
	// ExceptionalMode includes handlers, builds protected/handler regions and
	// adds the exceptional edges from protected nodes to their handler header.
	ExceptionalMode
)

// Build partitions the method body into basic blocks and wires the graph.
func Build(body *tac.MethodBody, mode Mode) (*Graph, error) {
	instructions := body.Instructions
	if mode == NormalMode {
		filtered, err := filterExceptionHandlers(body)
		if err != nil {
			return nil, err
		}
		instructions = filtered
	}

	g := NewGraph()
	if len(instructions) == 0 {
		g.Connect(g.Entry, g.NormalExit)
		return g, nil
	}

	leaders := findLeaders(body, instructions, mode)
	blocks, blockAt := createBlocks(g, instructions, leaders)
	if err := connectBlocks(g, body, blocks, blockAt, mode); err != nil {
		return nil, err
	}
	if mode == ExceptionalMode {
		buildRegions(g, body, blocks)
	}
	return g, nil
}

// filterExceptionHandlers removes every instruction within a handler's label
// range. A handler range whose start label is not present makes the body
// malformed.
func filterExceptionHandlers(body *tac.MethodBody) ([]tac.Instruction, error) {
	skipFrom := map[string]string{}
	for _, pb := range body.ExceptionInfo {
		h := pb.Handler
		if _, ok := body.InstructionAt(h.HandlerStart()); !ok {
			return nil, malformedf(body.Method, "handler start %s not found", h.HandlerStart())
		}
		skipFrom[h.HandlerStart()] = h.HandlerEnd()
	}
	var out []tac.Instruction
	skipUntil := ""
	for _, ins := range body.Instructions {
		if skipUntil != "" {
			if ins.Label() != skipUntil {
				continue
			}
			skipUntil = ""
		}
		if end, ok := skipFrom[ins.Label()]; ok {
			skipUntil = end
			continue
		}
		out = append(out, ins)
	}
	return out, nil
}

// findLeaders marks the instructions that start a basic block: the first
// instruction, every branch target, every instruction following a branch,
// switch, return or throw, and (in exceptional mode) the start of every
// protected block and handler.
func findLeaders(body *tac.MethodBody, instructions []tac.Instruction, mode Mode) map[string]bool {
	leaders := map[string]bool{instructions[0].Label(): true}
	markNext := false
	for _, ins := range instructions {
		if markNext {
			leaders[ins.Label()] = true
			markNext = false
		}
		switch b := ins.(type) {
		case *tac.ConditionalBranch:
			leaders[b.Target] = true
			markNext = true
		case *tac.UnconditionalBranch:
			leaders[b.Target] = true
			markNext = true
		case *tac.Switch:
			for _, t := range b.Targets {
				leaders[t] = true
			}
			markNext = true
		case *tac.Return, *tac.Throw:
			markNext = true
		}
	}
	if mode == ExceptionalMode {
		for _, pb := range body.ExceptionInfo {
			leaders[pb.Start] = true
			leaders[pb.Handler.HandlerStart()] = true
		}
	}
	return leaders
}

// createBlocks walks the instructions, opening a fresh block at each leader.
// Returns the blocks in offset order and the map from leader label to block.
func createBlocks(g *Graph, instructions []tac.Instruction, leaders map[string]bool) ([]*Node, map[string]*Node) {
	var blocks []*Node
	blockAt := map[string]*Node{}
	var current *Node
	for _, ins := range instructions {
		if current == nil || leaders[ins.Label()] {
			current = g.NewBlock()
			blocks = append(blocks, current)
			blockAt[ins.Label()] = current
		}
		current.Instructions = append(current.Instructions, ins)
	}
	return blocks, blockAt
}

// canFallThrough reports whether execution can continue past the instruction:
// every instruction except unconditional branches, returns and throws.
func canFallThrough(ins tac.Instruction) bool {
	_, isTerminator := ins.(tac.Terminator)
	return !isTerminator
}

func connectBlocks(g *Graph, body *tac.MethodBody, blocks []*Node, blockAt map[string]*Node, mode Mode) error {
	target := func(label string) (*Node, error) {
		b, ok := blockAt[label]
		if !ok {
			return nil, malformedf(body.Method, "branch target %s not owned by any block", label)
		}
		return b, nil
	}

	g.Connect(g.Entry, blocks[0])
	for i, b := range blocks {
		last := b.Last()
		if canFallThrough(last) {
			if i+1 < len(blocks) {
				g.Connect(b, blocks[i+1])
			} else {
				g.Connect(b, g.NormalExit)
			}
		}
		switch ins := last.(type) {
		case *tac.ConditionalBranch:
			t, err := target(ins.Target)
			if err != nil {
				return err
			}
			g.Connect(b, t)
		case *tac.UnconditionalBranch:
			t, err := target(ins.Target)
			if err != nil {
				return err
			}
			g.Connect(b, t)
		case *tac.Switch:
			for _, label := range ins.Targets {
				t, err := target(label)
				if err != nil {
					return err
				}
				g.Connect(b, t)
			}
		case *tac.Return:
			g.Connect(b, g.NormalExit)
		case *tac.Throw:
			if mode == ExceptionalMode {
				g.Connect(b, g.ExceptionalExit)
			} else {
				g.Connect(b, g.NormalExit)
			}
		}
	}
	return nil
}

// buildRegions sweeps the blocks in offset order, tracking the currently
// active protected and handler regions, and finally adds the exceptional
// edges from every protected node to its handler's header.
func buildRegions(g *Graph, body *tac.MethodBody, blocks []*Node) {
	openAt := map[string][]Region{}
	closeAt := map[string][]Region{}
	for _, pb := range body.ExceptionInfo {
		p := &ProtectedRegion{regionBase: regionBase{nodes: map[*Node]bool{}}}
		h := &HandlerRegion{
			regionBase: regionBase{nodes: map[*Node]bool{}},
			kind:       handlerRegionKind(pb.Handler.Kind()),
			Protected:  p,
		}
		p.Handler = h
		g.Regions = append(g.Regions, p, h)

		openAt[pb.Start] = append(openAt[pb.Start], p)
		closeAt[pb.End] = append(closeAt[pb.End], p)
		openAt[pb.Handler.HandlerStart()] = append(openAt[pb.Handler.HandlerStart()], h)
		closeAt[pb.Handler.HandlerEnd()] = append(closeAt[pb.Handler.HandlerEnd()], h)
	}

	active := map[Region]bool{}
	for _, b := range blocks {
		label := b.StartLabel()
		for _, r := range closeAt[label] {
			delete(active, r)
		}
		for _, r := range openAt[label] {
			active[r] = true
		}
		for r := range active {
			r.add(b)
		}
	}

	for _, p := range g.ProtectedRegions() {
		header := p.Handler.Header()
		if header == nil {
			continue
		}
		for n := range p.Nodes() {
			g.Connect(n, header)
		}
	}
}

func handlerRegionKind(k tac.HandlerKind) RegionKind {
	switch k {
	case tac.FinallyHandlerKind:
		return FinallyRegion
	case tac.FaultHandlerKind:
		return FaultRegion
	default:
		return CatchRegion
	}
}
