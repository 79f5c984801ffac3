// SPDX-License-Identifier: GPL-3.0-or-later

package transform

import (
	"context"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/internal/fx"
)

// RootTransform is one transform stage's compiled step sequence (§4.3):
// an optional input cell, an ordered list of ops, and an optional output
// cell.
type RootTransform struct {
	Label      string
	InputCell  string // empty if this transform has no declared input
	Ops        []Op
	OutputCell string // empty if this transform's result is not published
}

// Validate checks the deadlock-hazard contract of §4.3: no op may read a
// cell that is also this transform's output cell. input == output on the
// SAME cell is explicitly allowed (see DESIGN.md Open Question #1) — the
// runner always finishes evaluating the full step list and installs the
// new Frame as a single atomic write, so a transform can never observe
// its own in-flight write.
func (t RootTransform) Validate() error {
	if t.OutputCell == "" {
		return nil
	}
	for _, op := range t.Ops {
		for _, name := range op.ReadsOther {
			if name == t.OutputCell {
				return &Error{
					Kind:   Deadlock,
					Detail: "transform " + t.Label + ": op " + op.Label + " reads output cell " + name + " within the same task",
				}
			}
		}
	}
	return nil
}

// Run applies every op in order to the working Frame, starting from
// InputCell's current contents (or an empty Frame if this transform
// declares no input), and returns the final Frame. It does not publish —
// callers (Compiled.AsTask) are responsible for writing the result to
// OutputCell.
func (t RootTransform) Run(ctx context.Context, reader CellReader) (frame.Frame, error) {
	working := frame.Empty()
	if t.InputCell != "" {
		f, _, err := reader.Read(ctx, t.InputCell)
		if err != nil {
			return frame.Frame{}, err
		}
		working = f
	}

	steps := make([]fx.Func[frame.Frame, frame.Frame], len(t.Ops))
	for i, op := range t.Ops {
		op := op
		steps[i] = fx.FuncAdapter[frame.Frame, frame.Frame](func(ctx context.Context, working frame.Frame) (frame.Frame, error) {
			return op.Run(ctx, working, reader)
		})
	}
	return fx.Pipe(ctx, working, steps...)
}

// ReadCells returns every cell this transform reads: its input cell (if
// any) plus every op's ReadsOther, deduplicated.
func (t RootTransform) ReadCells() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	add(t.InputCell)
	for _, op := range t.Ops {
		for _, name := range op.ReadsOther {
			add(name)
		}
	}
	return out
}
