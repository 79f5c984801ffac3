// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/transform"
	"github.com/capport-dev/capport/transform/expr"
)

// JoinSpec decodes a `join` op's arguments (§4.1/§4.2, §8 S2).
type JoinSpec struct {
	Right       string         `yaml:"right"`
	How         string         `yaml:"how"`
	LeftOn      []string       `yaml:"left_on"`
	RightOn     []string       `yaml:"right_on"`
	RightSelect orderedAliases `yaml:"right_select"`
}

func (j JoinSpec) toOptions() frame.JoinOptions {
	cols := make([]string, 0, len(j.RightSelect))
	rename := make(map[string]string, len(j.RightSelect))
	for _, p := range j.RightSelect {
		cols = append(cols, p.Source)
		if p.Alias != p.Source {
			rename[p.Source] = p.Alias
		}
	}
	return frame.JoinOptions{
		How:         frame.JoinHow(j.How),
		LeftOn:      j.LeftOn,
		RightOn:     j.RightOn,
		RightSelect: cols,
		RightRename: rename,
	}
}

// OpSpec is one entry of a TransformSpec's ops list: a kind discriminator
// plus every op kind's own (optional) fields. Only the fields matching
// Kind are populated; buildOp reads just those.
type OpSpec struct {
	Kind string `yaml:"kind"`

	Select          TargetList        `yaml:"select"`
	WithColumns     TargetList        `yaml:"with_columns"`
	AllowTypeChange bool              `yaml:"allow_type_change"`
	Project         []string          `yaml:"project"`
	Drop            dropSpec          `yaml:"drop"`
	IgnoreMissing   bool              `yaml:"ignore_missing"`
	Rename          map[string]string `yaml:"rename"`
	Join            JoinSpec          `yaml:"join"`
	Column          string            `yaml:"column"`
	Filter          any               `yaml:"filter"`
	Layout          string            `yaml:"layout"`
	Into            string            `yaml:"into"`
	Cols            []string          `yaml:"cols"`
}

// buildOp compiles one OpSpec into a [transform.Op], resolving $var
// references in the op's expression-bearing fields (select, with_columns,
// filter) and in a join's right-hand cell name against args — the core
// DSL surfaces where a stage author plausibly parameterizes the op
// per-invocation; the rest of join's options and rename/drop/project
// take literal configuration values (§9 Design Notes decision, see
// DESIGN.md).
func buildOp(spec OpSpec, args map[string]any) (transform.Op, error) {
	switch spec.Kind {
	case "select":
		targets, err := resolveTargets(spec.Select, args)
		if err != nil {
			return transform.Op{}, err
		}
		return transform.OpSelect(targets), nil
	case "with_columns":
		targets, err := resolveTargets(spec.WithColumns, args)
		if err != nil {
			return transform.Op{}, err
		}
		return transform.OpWithColumns(targets, spec.AllowTypeChange), nil
	case "project":
		return transform.OpProject(spec.Project), nil
	case "drop":
		return transform.OpDrop(spec.Drop, spec.IgnoreMissing), nil
	case "rename":
		return transform.OpRename(spec.Rename), nil
	case "join":
		right, err := resolveString(spec.Join.Right, args)
		if err != nil {
			return transform.Op{}, err
		}
		return transform.OpJoin(right, spec.Join.toOptions()), nil
	case "unnest_list_of_struct":
		return transform.OpUnnestListOfStruct(spec.Column), nil
	case "unnest_struct":
		return transform.OpUnnestStruct(spec.Column), nil
	case "filter":
		resolved, err := expr.ResolveVars(spec.Filter, args)
		if err != nil {
			return transform.Op{}, err
		}
		return transform.OpFilter(resolved), nil
	case "time_parse":
		return transform.OpTimeParse(spec.Column, spec.Layout, frame.DType(spec.Into)), nil
	case "uniform_id_type":
		return transform.OpUniformIDType(spec.Cols, frame.DType(spec.Into)), nil
	default:
		return transform.Op{}, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("transform: unrecognized op kind %q", spec.Kind)}
	}
}

func resolveTargets(targets TargetList, args map[string]any) (TargetList, error) {
	out := make(TargetList, len(targets))
	for i, t := range targets {
		resolved, err := expr.ResolveVars(t.Raw, args)
		if err != nil {
			return nil, err
		}
		out[i] = expr.Target{Name: t.Name, Raw: resolved}
	}
	return out, nil
}

func resolveString(s string, args map[string]any) (string, error) {
	resolved, err := expr.ResolveVars(s, args)
	if err != nil {
		return "", err
	}
	str, _ := resolved.(string)
	return str, nil
}
