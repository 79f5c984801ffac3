// SPDX-License-Identifier: GPL-3.0-or-later

package universe

import "fmt"

// Universe is the name → Cell directory for one pipeline run (§3
// "Ownership: the Universe owns all FrameCells for the run"). It is built
// once, from the set of cell names inferred from every stage's input/
// output argument keys, and never grows or shrinks afterward.
type Universe struct {
	cells map[string]*Cell
}

// New builds a Universe with one empty Cell per name in names. Duplicate
// names are harmless (idempotent); the caller is expected to have already
// deduplicated its cell-name set during dependency inference.
func New(names []string) *Universe {
	u := &Universe{cells: make(map[string]*Cell, len(names))}
	for _, name := range names {
		if _, ok := u.cells[name]; ok {
			continue
		}
		u.cells[name] = newCell(name)
	}
	return u
}

// Cell returns the named cell, or false if no stage ever declared it.
func (u *Universe) Cell(name string) (*Cell, bool) {
	c, ok := u.cells[name]
	return c, ok
}

// MustCell is like Cell but panics if name is absent; used once stage
// validation has already confirmed every referenced name exists (§3 "a
// stage's declared input references must resolve to existing universe
// cell names at runtime").
func (u *Universe) MustCell(name string) *Cell {
	c, ok := u.cells[name]
	if !ok {
		panic(fmt.Sprintf("universe: cell %q not found", name))
	}
	return c
}

// Names returns every cell name in the Universe, in no particular order.
func (u *Universe) Names() []string {
	names := make([]string, 0, len(u.cells))
	for name := range u.cells {
		names = append(names, name)
	}
	return names
}

// CloseAll closes every cell's subscriber channels; called once by the
// async runner during shutdown (§4.7 Cancellation).
func (u *Universe) CloseAll() {
	for _, c := range u.cells {
		c.CloseSubscriptions()
	}
}
