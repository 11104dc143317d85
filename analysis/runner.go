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

// Package analysis ties the pipeline together: CFG construction, dominators
// and loops, type inference, live variables and the points-to analysis over
// one method body.
package analysis

import (
	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/config"
	"github.com/garbervetsky/analysis-net/analysis/dataflow"
	"github.com/garbervetsky/analysis-net/analysis/pointsto"
	"github.com/garbervetsky/analysis-net/analysis/tac"
)

// MethodResult bundles the per-method analysis artifacts.
type MethodResult struct {
	Graph *cfg.Graph

	// Loops are the natural loops discovered from the back edges.
	Loops []*cfg.Loop

	// Reducible reports whether every cycle of the graph has a single entry.
	// On an irreducible graph the natural loops do not cover all cycles.
	Reducible bool

	// Live maps nodes to live-variable sets (Output is live-in).
	Live *dataflow.Result[tac.VarSet]

	// PointsTo holds the per-node points-to graphs.
	PointsTo *dataflow.Result[*pointsto.Graph]

	// ExitGraph is the points-to graph at NormalExit.
	ExitGraph *pointsto.Graph

	// Partial is set when unresolved references degraded the result.
	Partial bool
}

// AnalyzeMethod runs the full pipeline over one method body. Methods can be
// analyzed in parallel: each call owns its graph and framework state, and the
// resolver is only read.
func AnalyzeMethod(body *tac.MethodBody, resolver tac.TypeResolver,
	conf *config.Config, log *config.LogGroup) (*MethodResult, error) {

	mode := cfg.NormalMode
	if conf.ExceptionalFlow {
		mode = cfg.ExceptionalMode
	}
	log.Debugf("building %s flow graph for %s", modeName(mode), body.Method)
	g, err := cfg.Build(body, mode)
	if err != nil {
		return nil, err
	}

	di := g.ComputeDominators()
	g.ComputeDominanceFrontier()
	loops := g.ComputeLoops(di)

	reducible := cfg.NewAdapter(g).IsReducible()
	if !reducible {
		log.Warnf("%s has an irreducible flow graph; natural loops do not cover all cycles", body.Method)
	}

	ti := dataflow.TypeInference{Resolver: resolver}
	if changed := ti.Run(g); changed > 0 {
		log.Debugf("type inference settled %d variables in %s", changed, body.Method)
	}

	live, err := dataflow.ComputeLiveVariables(g, conf.MaxIterations)
	if err != nil {
		return nil, err
	}

	pta := pointsto.NewAnalysis(body, resolver, log)
	ptres, err := pta.Analyze(g, conf.MaxIterations)
	if err != nil {
		return nil, err
	}

	return &MethodResult{
		Graph:     g,
		Loops:     loops,
		Reducible: reducible,
		Live:      live,
		PointsTo:  ptres,
		ExitGraph: ptres.Output[g.NormalExit],
		Partial:   pta.Partial(),
	}, nil
}

func modeName(m cfg.Mode) string {
	if m == cfg.ExceptionalMode {
		return "exceptional"
	}
	return "normal"
}
