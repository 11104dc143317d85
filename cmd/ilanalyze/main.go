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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/garbervetsky/analysis-net/analysis"
	"github.com/garbervetsky/analysis-net/analysis/config"
	"github.com/garbervetsky/analysis-net/analysis/tac"
	format "github.com/garbervetsky/analysis-net/internal/formatutil"
)

// flags
var (
	configPath = ""
	verbose    = false
	demo       = false
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a yaml analysis config")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&demo, "demo", false, "Analyze the built-in sample method")
}

const usage = `Run the analysis pipeline over TAC method bodies.

Usage:
  ilanalyze -demo [-config config.yaml]

-demo analyzes a built-in sample body, which is useful to exercise a
configuration; no other source of method bodies is wired in.

Use the -help flag to display the options.
`

func main() {
	if err := doMain(); err != nil {
		fmt.Fprintf(os.Stderr, "ilanalyze: %s\n", err)
		os.Exit(1)
	}
}

func doMain() error {
	flag.Parse()

	conf := config.NewDefault()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		conf = loaded
	}
	if verbose {
		conf.LogLevel = int(config.DebugLevel)
	}
	log := config.NewLogGroup(conf)

	if !demo {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, format.Faint("Analyzing sample body")+"\n")

	body := sampleBody()
	result, err := analysis.AnalyzeMethod(body, nil, conf, log)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", format.Bold("method"), body.Method)
	fmt.Printf("%s %d nodes, %d loops\n", format.Bold("cfg"),
		len(result.Graph.Nodes()), len(result.Loops))
	if !result.Reducible {
		fmt.Printf("%s\n", format.Yellow("flow graph is irreducible"))
	}
	if result.ExitGraph != nil {
		fmt.Printf("%s\n%s", format.Bold("points-to at exit"), result.ExitGraph.Debug())
	}
	if result.Partial {
		fmt.Printf("%s\n", format.Yellow("result is partial"))
	}
	return nil
}

// sampleBody builds the equivalent of
//
//	Node f(Node p) { var q = new Node(); q.next = p; return q; }
func sampleBody() *tac.MethodBody {
	nodeType := tac.BasicType{Name: "Node", TypeKind: tac.ReferenceKind}
	next := tac.FieldReference{Name: "next", ContainingType: "Node", Type: nodeType}
	p := tac.NewParameter("p", nodeType)
	q := tac.NewLocal("q", nodeType)
	method := tac.MethodReference{
		Name: "f", ContainingType: "Sample", ReturnType: nodeType, ParameterCount: 1, IsStatic: true,
	}
	body := &tac.MethodBody{
		Method:     method,
		Parameters: []tac.Variable{p},
		Instructions: []tac.Instruction{
			tac.NewCreateObject(0, q, nodeType),
			tac.NewStore(1, &tac.InstanceFieldAccess{Instance: q, Field: next}, p),
			tac.NewReturn(2, q),
		},
	}
	body.UpdateVariables()
	return body
}
