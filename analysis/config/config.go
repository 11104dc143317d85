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

// Package config defines the analysis options and the leveled logging used by
// every analysis in the module. Options are loaded from a yaml file; a zero
// Config with defaults applied is usable without a file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config contains the options of an analysis run.
// If some field is not defined in the config file, it will be empty/zero in the struct
// and replaced by its default on load.
type Config struct {
	sourceFile string

	// LogLevel controls the verbosity of the LogGroup built from this config.
	LogLevel int `yaml:"log-level"`

	// MaxIterations bounds the number of worklist iterations of a dataflow solver.
	// The monotone framework terminates on its own; this is a guard against
	// misdesigned lattices and trips as a programmer error, not a runtime condition.
	MaxIterations int `yaml:"max-iterations"`

	// ExceptionalFlow selects the CFG construction mode: when true, exception
	// handlers are included in the graph and protected regions get exceptional edges.
	ExceptionalFlow bool `yaml:"exceptional-flow"`

	// Analyses lists analysis names read from the config file. Neither the driver
	// nor analysis.AnalyzeMethod consults it: every analysis runs on each method body.
	Analyses []string `yaml:"analyses"`
}

const (
	// DefaultMaxIterations is the solver iteration bound used when the config does not set one.
	DefaultMaxIterations = 10000
)

// NewDefault returns a config with all defaults applied and no source file.
func NewDefault() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
}

// SourceFile returns the name of the file the config was loaded from, or "" when
// the config was built programmatically.
func (c *Config) SourceFile() string { return c.sourceFile }

// Load reads a Config from the yaml file at filename.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", filename, err)
	}
	c.sourceFile = filename
	if c.MaxIterations < 0 {
		return nil, fmt.Errorf("config file %s: max-iterations must be non-negative", filename)
	}
	if c.LogLevel < 0 || c.LogLevel > int(TraceLevel) {
		return nil, fmt.Errorf("config file %s: log-level must be between 0 and %d", filename, TraceLevel)
	}
	c.applyDefaults()
	return c, nil
}
