// SPDX-License-Identifier: GPL-3.0-or-later

package transform

import (
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
)

// Compiled binds a validated [RootTransform] to the Universe it will run
// against, and adapts it to [registry.Task] dispatch — it satisfies
// registry.CompiledTransform.
type Compiled struct {
	RootTransform
	Universe *universe.Universe
}

var _ registry.CompiledTransform = (*Compiled)(nil)

// NewCompiled validates t and binds it to u.
func NewCompiled(t RootTransform, u *universe.Universe) (*Compiled, error) {
	if err := t.Validate(); err != nil {
		return nil, translate(t.Label, err)
	}
	return &Compiled{RootTransform: t, Universe: u}, nil
}

// AsTask implements registry.CompiledTransform.
func (c *Compiled) AsTask() registry.Task {
	return func(rc registry.Context) error {
		reader := UniverseReader{Universe: c.Universe}
		result, err := c.Run(rc, reader)
		if err != nil {
			return translate(c.Label, err)
		}
		if c.OutputCell == "" {
			return nil
		}
		cell := c.Universe.MustCell(c.OutputCell)
		if _, err := cell.Write(rc, result, c.Label); err != nil {
			return translate(c.Label, err)
		}
		return nil
	}
}
