// SPDX-License-Identifier: GPL-3.0-or-later

package stage

import (
	"errors"
	"sort"

	"github.com/capport-dev/capport/capperr"
)

// Pipeline is an ordered list of stages plus the dependency graph
// inferred from their argument maps (§3 Pipeline).
type Pipeline struct {
	Name   string
	Stages []Stage
}

// Error is this package's own leaf error type, following the same
// pattern as transform.Error and frame.AlgebraError (see DESIGN.md):
// stage-local failures are reported with this type and translated to
// *capperr.Error by callers that know the pipeline's name.
type Error struct {
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// byLabel indexes Stages by label for dependency-graph construction.
func (p Pipeline) byLabel() map[string]Stage {
	m := make(map[string]Stage, len(p.Stages))
	for _, s := range p.Stages {
		m[s.Label] = s
	}
	return m
}

// producers maps a cell name to the label of the stage that publishes
// it. Callers reach this only after Validate has already rejected a
// Pipeline with two producers for the same cell (see
// checkUniqueProducers), so the last-write-wins behavior here never
// actually arises on a validated Pipeline.
func (p Pipeline) producers() map[string]string {
	out := map[string]string{}
	for _, s := range p.Stages {
		for _, cell := range s.OutputCells() {
			out[cell] = s.Label
		}
	}
	return out
}

// DependsOn returns the labels of stages that produce a cell s reads,
// in no particular order.
func (p Pipeline) DependsOn(s Stage) []string {
	prod := p.producers()
	var out []string
	for _, cell := range s.InputCells() {
		if label, ok := prod[cell]; ok && label != s.Label {
			out = append(out, label)
		}
	}
	return out
}

// RootStages returns every stage with no recognized input cell.
func (p Pipeline) RootStages() []Stage {
	var out []Stage
	for _, s := range p.Stages {
		if s.IsRoot() {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the invariants §3 and §4.7 place on a Pipeline: stage
// labels are unique, at most one stage produces any given cell ("output
// references must be unique"), and the input→output graph is acyclic
// unless every cycle it finds contains at least one loop-root stage
// (Every > 0) — a schedule-driven stage intentionally reads a cell it
// (transitively) feeds, and the periodic wakeup is what advances the
// loop instead of an upstream generation bump.
func (p Pipeline) Validate() error {
	seen := map[string]bool{}
	for _, s := range p.Stages {
		if seen[s.Label] {
			return &Error{Detail: "pipeline " + p.Name + ": duplicate stage label " + s.Label}
		}
		seen[s.Label] = true
	}

	if err := p.checkUniqueProducers(); err != nil {
		return err
	}

	graph := p.dependencyGraph()
	for _, cycle := range findCycles(graph) {
		if cycleHasLoopRoot(cycle, p.byLabel()) {
			continue
		}
		sort.Strings(cycle)
		return &Error{Detail: "pipeline " + p.Name + ": dependency cycle among stages " + joinLabels(cycle) + " with no loop-root schedule"}
	}
	return nil
}

// checkUniqueProducers enforces §3's "output references must be unique
// (one producer per cell)": the Universe only tracks one current Frame
// per cell, so two stages publishing to the same cell would silently
// race each other's writes at runtime with no load-time signal.
func (p Pipeline) checkUniqueProducers() error {
	byCell := map[string]string{}
	for _, s := range p.Stages {
		for _, cell := range s.OutputCells() {
			if existing, ok := byCell[cell]; ok {
				return &Error{Detail: "pipeline " + p.Name + ": cell " + cell + " has two producers: " + existing + " and " + s.Label}
			}
			byCell[cell] = s.Label
		}
	}
	return nil
}

// dependencyGraph returns, for each stage label, the labels of stages
// it depends on (producers of its input cells).
func (p Pipeline) dependencyGraph() map[string][]string {
	prod := p.producers()
	graph := make(map[string][]string, len(p.Stages))
	for _, s := range p.Stages {
		var deps []string
		for _, cell := range s.InputCells() {
			if label, ok := prod[cell]; ok && label != s.Label {
				deps = append(deps, label)
			}
		}
		graph[s.Label] = deps
	}
	return graph
}

func cycleHasLoopRoot(cycle []string, byLabel map[string]Stage) bool {
	for _, label := range cycle {
		if s, ok := byLabel[label]; ok && s.Every > 0 {
			return true
		}
	}
	return false
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}

// findCycles runs a DFS over graph (label -> dependency labels) and
// returns every distinct cycle encountered, each as the set of labels
// participating in it.
func findCycles(graph map[string][]string) [][]string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(graph))
	var stack []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		state[node] = visiting
		stack = append(stack, node)
		for _, dep := range graph[node] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				cycles = append(cycles, cycleSlice(stack, dep))
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
	}

	// Iterate in a stable order so repeated calls over the same graph
	// produce the same cycle report.
	labels := make([]string, 0, len(graph))
	for label := range graph {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if state[label] == unvisited {
			visit(label)
		}
	}
	return cycles
}

// cycleSlice extracts the portion of stack from the first occurrence of
// target onward — the cycle's participating labels.
func cycleSlice(stack []string, target string) []string {
	for i, label := range stack {
		if label == target {
			cp := make([]string, len(stack)-i)
			copy(cp, stack[i:])
			return cp
		}
	}
	return nil
}

// Translate wraps a stage-package error in *capperr.Error, for callers
// (the config loader, the runner) that need the standard taxonomy.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var stErr *Error
	if errors.As(err, &stErr) {
		return capperr.New(capperr.ConfigValidate, "", stErr)
	}
	return err
}
