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

// Package inline splices a callee's TAC body into a caller at a call site.
//
// Label discipline: every callee label is rewritten to
// L_<callOffset:04X>_<calleeLabel>, so inlined labels are unique within the
// caller and traceable to their call site. Branch targets inside the callee
// are rewritten the same way.
package inline

import (
	"errors"
	"fmt"

	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// ErrCallSiteNotFound reports that the call instruction is not part of the
// caller's body.
var ErrCallSiteNotFound = errors.New("call site not found in caller body")

// ErrArgumentMismatch reports a call whose argument count differs from the
// callee's parameter count.
var ErrArgumentMismatch = errors.New("argument count does not match callee parameters")

// Inline replaces the call instruction in caller with the callee's body. The
// callee body is consumed: its instructions are rewritten in place and
// spliced into the caller, so it must be a fresh disassembly, not a shared
// instance.
func Inline(caller *tac.MethodBody, call *tac.MethodCall, callee *tac.MethodBody) error {
	callIdx := -1
	for i, ins := range caller.Instructions {
		if ins == tac.Instruction(call) {
			callIdx = i
			break
		}
	}
	if callIdx < 0 {
		return fmt.Errorf("%w: %s in %s", ErrCallSiteNotFound, call, caller.Method)
	}
	if len(call.Arguments) != len(callee.Parameters) {
		return fmt.Errorf("%w: %d arguments for %d parameters of %s",
			ErrArgumentMismatch, len(call.Arguments), len(callee.Parameters), callee.Method)
	}

	prefix := fmt.Sprintf("L_%04X_", call.Offset())

	// Rename every callee variable with the call-site prefix so caller and
	// callee locals cannot collide.
	renamed := map[string]tac.Variable{}
	renameVar := func(v tac.Variable) tac.Variable {
		if r, ok := renamed[v.Name()]; ok {
			return r
		}
		r := tac.NewLocal(prefix+v.Name(), v.Type())
		renamed[v.Name()] = r
		return r
	}
	calleeVars := tac.NewVarSet(callee.Parameters...)
	for _, ins := range callee.Instructions {
		calleeVars.UnionWith(ins.Variables())
	}
	for _, ins := range callee.Instructions {
		for _, v := range calleeVars {
			ins.Replace(v, renameVar(v))
		}
	}

	// Prologue: bind the renamed formals to the actuals. Labels must stay
	// unique within the caller, so each binding gets its own.
	var spliced []tac.Instruction
	for i, p := range callee.Parameters {
		bind := tac.NewLoad(call.Offset(), renameVar(p), call.Arguments[i])
		bind.SetLabel(fmt.Sprintf("%sarg%d", prefix, i))
		spliced = append(spliced, bind)
	}

	// The continuation is the instruction after the call; returns branch there.
	continuation := ""
	if callIdx+1 < len(caller.Instructions) {
		continuation = caller.Instructions[callIdx+1].Label()
	}

	for _, ins := range callee.Instructions {
		switch i := ins.(type) {
		case *tac.Return:
			if call.Dest != nil && i.Operand != nil {
				load := tac.NewLoad(i.Offset(), call.Dest, i.Operand)
				load.SetLabel(prefix + i.Label())
				spliced = append(spliced, load)
				if continuation != "" {
					br := tac.NewUnconditionalBranch(i.Offset(), continuation)
					br.SetLabel(prefix + i.Label() + "_ret")
					spliced = append(spliced, br)
				}
				continue
			}
			if continuation != "" {
				br := tac.NewUnconditionalBranch(i.Offset(), continuation)
				br.SetLabel(prefix + i.Label())
				spliced = append(spliced, br)
				continue
			}
			ins.SetLabel(prefix + ins.Label())
			spliced = append(spliced, ins)
		case *tac.ConditionalBranch:
			i.Target = prefix + i.Target
			i.SetLabel(prefix + i.Label())
			spliced = append(spliced, i)
		case *tac.UnconditionalBranch:
			i.Target = prefix + i.Target
			i.SetLabel(prefix + i.Label())
			spliced = append(spliced, i)
		case *tac.Switch:
			for k, t := range i.Targets {
				i.Targets[k] = prefix + t
			}
			i.SetLabel(prefix + i.Label())
			spliced = append(spliced, i)
		default:
			ins.SetLabel(prefix + ins.Label())
			spliced = append(spliced, ins)
		}
	}

	// Exception regions of the callee come along, under the same discipline.
	for _, pb := range callee.ExceptionInfo {
		caller.ExceptionInfo = append(caller.ExceptionInfo, prefixProtectedBlock(prefix, pb))
	}

	out := make([]tac.Instruction, 0, len(caller.Instructions)+len(spliced)-1)
	out = append(out, caller.Instructions[:callIdx]...)
	out = append(out, spliced...)
	out = append(out, caller.Instructions[callIdx+1:]...)
	caller.Instructions = out
	caller.UpdateVariables()
	return nil
}

func prefixProtectedBlock(prefix string, pb *tac.ProtectedBlock) *tac.ProtectedBlock {
	var handler tac.ExceptionHandler
	switch h := pb.Handler.(type) {
	case *tac.CatchHandler:
		handler = &tac.CatchHandler{Start: prefix + h.Start, End: prefix + h.End, ExceptionType: h.ExceptionType}
	case *tac.FinallyHandler:
		handler = &tac.FinallyHandler{Start: prefix + h.Start, End: prefix + h.End}
	case *tac.FaultHandler:
		handler = &tac.FaultHandler{Start: prefix + h.Start, End: prefix + h.End}
	case *tac.FilterHandler:
		handler = &tac.FilterHandler{
			Start: prefix + h.Start, End: prefix + h.End,
			FilterStart: prefix + h.FilterStart, ExceptionType: h.ExceptionType,
		}
	}
	return &tac.ProtectedBlock{Start: prefix + pb.Start, End: prefix + pb.End, Handler: handler}
}
