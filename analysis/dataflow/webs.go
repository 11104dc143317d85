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

package dataflow

import (
	"fmt"

	"github.com/garbervetsky/analysis-net/analysis/cfg"
	"github.com/garbervetsky/analysis-net/analysis/tac"
	"github.com/garbervetsky/analysis-net/internal/funcutil"
	"github.com/garbervetsky/analysis-net/internal/graphutil"
)

// webItem is a definition or a use of one variable. Definitions are keyed by
// their reaching-definitions number, uses by their position.
type webItem struct {
	isDef   bool
	def     int
	useNode *cfg.Node
	useIdx  int
}

// SplitWebs partitions each variable's definitions and uses into webs, the
// connected components of the def-use relation under reaching definitions,
// and renames every web after the first to a fresh variable. This is the
// pre-SSA renaming that separates independent reuses of one variable name.
// Parameters are never split. Returns the number of webs that were renamed.
func SplitWebs(g *cfg.Graph, body *tac.MethodBody, maxIterations int) (int, error) {
	rd, res, err := ComputeReachingDefinitions(g, maxIterations)
	if err != nil {
		return 0, err
	}

	params := tac.NewVarSet(body.Parameters...)
	renamed := 0
	for _, name := range variableNames(g) {
		if _, isParam := params[name]; isParam {
			continue
		}
		defs := rd.DefinitionsOf(name)
		if len(defs) < 2 {
			continue
		}
		items, succ := defUseComponents(g, rd, res, name, defs)
		components := graphutil.StronglyConnectedComponents(items, succ)
		if len(components) < 2 {
			continue
		}
		web := 0
		for _, comp := range components {
			if !hasDef(comp) {
				continue
			}
			if web > 0 {
				renameWeb(rd, name, web, comp)
				renamed++
			}
			web++
		}
	}
	if renamed > 0 {
		body.UpdateVariables()
	}
	return renamed, nil
}

func variableNames(g *cfg.Graph) []string {
	seen := map[string]bool{}
	var names []string
	for _, n := range g.Nodes() {
		for _, ins := range n.Instructions {
			for name := range ins.Variables() {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	return names
}

// defUseComponents builds the symmetric def-use relation of one variable:
// a definition is connected to every use it may reach.
func defUseComponents(g *cfg.Graph, rd *ReachingDefinitions, res *Result[*funcutil.BitSet], name string, defs []int) ([]webItem, func(webItem) []webItem) {
	var items []webItem
	defItems := map[int]webItem{}
	for _, d := range defs {
		it := webItem{isDef: true, def: d}
		items = append(items, it)
		defItems[d] = it
	}
	edges := map[webItem][]webItem{}
	for _, n := range g.Nodes() {
		for i, ins := range n.Instructions {
			if _, used := ins.UsedVariables()[name]; !used {
				continue
			}
			use := webItem{useNode: n, useIdx: i}
			items = append(items, use)
			for _, d := range defs {
				if rd.ReachesUse(res, d, n, i) {
					edges[defItems[d]] = append(edges[defItems[d]], use)
					edges[use] = append(edges[use], defItems[d])
				}
			}
		}
	}
	return items, func(it webItem) []webItem { return edges[it] }
}

func hasDef(comp []webItem) bool {
	for _, it := range comp {
		if it.isDef {
			return true
		}
	}
	return false
}

func renameWeb(rd *ReachingDefinitions, name string, web int, comp []webItem) {
	var sample tac.Variable
	for _, it := range comp {
		if it.isDef {
			sample = rd.Definitions[it.def].Result()
			break
		}
	}
	fresh := tac.NewLocal(fmt.Sprintf("%s#%d", name, web), sample.Type())
	for _, it := range comp {
		if it.isDef {
			rd.Definitions[it.def].SetResult(fresh)
		} else {
			ins := it.useNode.Instructions[it.useIdx]
			if u, ok := ins.UsedVariables()[name]; ok {
				ins.ReplaceUses(u, fresh)
			}
		}
	}
}
