// SPDX-License-Identifier: GPL-3.0-or-later

// Package transform implements the transform task (§4.3 RootTransform):
// an ordered sequence of steps applied to a working Frame, the first of
// which may read a named input cell and the last of which may publish to
// a named output cell.
package transform

import (
	"context"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/transform/expr"
)

// Op is one compiled step of a transform task (§4.1's algebra, wrapped so
// it can also read cells other than the working Frame — e.g. join's
// right side — through a [CellReader]).
type Op struct {
	// Label identifies the op kind for error/log messages ("project",
	// "join", "select", ...).
	Label string

	// ReadsOther lists cell names this op reads besides the working
	// Frame (e.g. join's right cell). Used by Validate for the
	// deadlock-hazard check (§4.3: "must not read and write the same
	// cell name within one task").
	ReadsOther []string

	// Run applies the op to the working Frame.
	Run func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error)
}

// OpSelect compiles and applies a `select` block (§4.2).
func OpSelect(targets []expr.Target) Op {
	return Op{
		Label: "select",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			compiled, err := expr.Compile(targets, working.Schema())
			if err != nil {
				return frame.Frame{}, err
			}
			return compiled.Apply(working)
		},
	}
}

// OpProject wraps frame.Project (§4.1).
func OpProject(cols []string) Op {
	return Op{
		Label: "project",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.Project(working, cols)
		},
	}
}

// OpWithColumns compiles a `with_columns` mapping via the select compiler
// (the same DSL) and applies it without reprojecting, unlike select
// (§4.2 targets a `select` block; with_columns reuses the expr vocabulary
// but is additive, per §4.1).
func OpWithColumns(targets []expr.Target, allowTypeChange bool) Op {
	return Op{
		Label: "with_columns",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			exprs := make(map[string]frame.Expr, len(targets))
			order := make([]string, 0, len(targets))
			for _, t := range targets {
				e, err := compileTargetExpr(t, working.Schema())
				if err != nil {
					return frame.Frame{}, err
				}
				exprs[t.Name] = e
				order = append(order, t.Name)
			}
			return frame.WithColumns(working, exprs, order, allowTypeChange)
		},
	}
}

// compileTargetExpr compiles a single target's expr by routing it through
// a one-target select compile and pulling the first (only) resulting
// Expr back out; this reuses expr.Compile's dispatch logic instead of
// duplicating compileOne/compileAction, which are unexported.
func compileTargetExpr(t expr.Target, source frame.Schema) (frame.Expr, error) {
	compiled, err := expr.Compile([]expr.Target{t}, source)
	if err != nil {
		return nil, err
	}
	return func(f frame.Frame) (frame.DType, []any, error) {
		applied, err := compiled.Apply(f)
		if err != nil {
			return "", nil, err
		}
		col, _ := applied.Column(t.Name)
		field, _ := applied.Schema().Field(t.Name)
		return field.DType, col, nil
	}, nil
}

// OpDrop wraps frame.Drop (§4.1).
func OpDrop(spec map[string]bool, ignoreMissing bool) Op {
	return Op{
		Label: "drop",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.Drop(working, spec, ignoreMissing)
		},
	}
}

// OpRename wraps frame.Rename (§4.1).
func OpRename(mapping map[string]string) Op {
	return Op{
		Label: "rename",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.Rename(working, mapping)
		},
	}
}

// OpJoin wraps frame.Join, reading the right-hand Frame from rightCell at
// the moment this op runs (§4.3 "reads that frame as of the publication
// generation current at the moment the read lock is acquired").
func OpJoin(rightCell string, opts frame.JoinOptions) Op {
	return Op{
		Label:      "join",
		ReadsOther: []string{rightCell},
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			right, _, err := reader.Read(ctx, rightCell)
			if err != nil {
				return frame.Frame{}, err
			}
			return frame.Join(working, right, opts)
		},
	}
}

// OpUnnestListOfStruct wraps frame.UnnestListOfStruct (§4.1).
func OpUnnestListOfStruct(col string) Op {
	return Op{
		Label: "unnest_list_of_struct",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.UnnestListOfStruct(working, col)
		},
	}
}

// OpUnnestStruct wraps frame.UnnestStruct (§4.1).
func OpUnnestStruct(col string) Op {
	return Op{
		Label: "unnest_struct",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.UnnestStruct(working, col)
		},
	}
}

// OpFilter compiles a single boolean expr target and keeps rows where it
// evaluates true (§4.1 filter(pred), §4.2 for the expr vocabulary used to
// build the predicate).
func OpFilter(predExpr any) Op {
	return Op{
		Label: "filter",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			target := expr.Target{Name: "__filter__", Raw: predExpr}
			e, err := compileTargetExpr(target, working.Schema())
			if err != nil {
				return frame.Frame{}, err
			}
			_, mask, err := e(working)
			if err != nil {
				return frame.Frame{}, err
			}
			return frame.Filter(working, func(f frame.Frame, row int) (bool, error) {
				b, _ := mask[row].(bool)
				return b, nil
			})
		},
	}
}

// OpTimeParse wraps frame.TimeParse (§4.1).
func OpTimeParse(col, layout string, into frame.DType) Op {
	return Op{
		Label: "time_parse",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.TimeParse(working, col, layout, into)
		},
	}
}

// OpUniformIDType wraps frame.UniformIDType (§4.1).
func OpUniformIDType(cols []string, into frame.DType) Op {
	return Op{
		Label: "uniform_id_type",
		Run: func(ctx context.Context, working frame.Frame, reader CellReader) (frame.Frame, error) {
			return frame.UniformIDType(working, cols, into)
		},
	}
}
