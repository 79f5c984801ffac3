// SPDX-License-Identifier: GPL-3.0-or-later

// Package stage holds the declarative Stage and Pipeline types (§3): a
// Stage names a task and its resolved arguments, a Pipeline is an ordered
// list of stages with a dependency graph inferred from recognized
// argument keys (§9 "document which argument keys are input-like and
// output-like so the validator can mechanically derive the graph").
package stage

import "time"

// Kind is a stage's task category.
type Kind string

const (
	Source    Kind = "source"
	Transform Kind = "transform"
	Sink      Kind = "sink"
)

// inputKeys and outputKeys are the argument names the dependency
// inference mechanically recognizes as naming a cell this stage reads or
// writes, per §9's design note. A source stage's args carry no
// recognized input key (it is always a root); a sink's args carry no
// recognized output key (it never publishes to the Universe).
var (
	inputKeys  = []string{"input", "right"}
	outputKeys = []string{"output", "to_save", "save_df"}
)

// Stage is one labelled unit of a pipeline (§3 Stage): a task reference
// plus its resolved (post-$var) argument map.
type Stage struct {
	// Label uniquely identifies this stage within its Pipeline.
	Label string

	Kind     Kind
	TaskName string

	// Args is the stage's fully resolved argument map — by the time a
	// Stage reaches this package, $var substitution (transform/expr's
	// ResolveVars) has already run.
	Args map[string]any

	// Every is this stage's loop-root trigger duration, zero if the
	// stage carries no per-stage schedule (§4.7 "every: <duration>
	// schedule, which injects a periodic wakeup source and breaks the
	// cycle").
	Every time.Duration
}

// IsRoot reports whether this stage declares no input-like argument — a
// source stage, or a transform/sink with no recognized input cell.
func (s Stage) IsRoot() bool {
	return len(s.InputCells()) == 0
}

// InputCells returns every cell name named under a recognized input-like
// argument key.
func (s Stage) InputCells() []string {
	return collectCells(s.Args, inputKeys)
}

// OutputCells returns every cell name named under a recognized
// output-like argument key.
func (s Stage) OutputCells() []string {
	return collectCells(s.Args, outputKeys)
}

func collectCells(args map[string]any, keys []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(v any) {
		name, ok := v.(string)
		if !ok || name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, key := range keys {
		v, ok := args[key]
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case string:
			add(vv)
		case []string:
			for _, s := range vv {
				add(s)
			}
		case []any:
			for _, e := range vv {
				add(e)
			}
		}
	}
	return out
}
