// SPDX-License-Identifier: GPL-3.0-or-later

package transform

import (
	"context"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/universe"
)

// CellReader is the narrow view a transform step needs of the Universe:
// read one named cell, as of the generation current at the moment the
// read lock is acquired (§4.3: "reads that frame as of the publication
// generation current at the moment the read lock is acquired").
type CellReader interface {
	Read(ctx context.Context, cellName string) (frame.Frame, uint64, error)
}

// UniverseReader adapts a *universe.Universe to [CellReader].
type UniverseReader struct {
	Universe *universe.Universe
}

// Read implements CellReader.
func (r UniverseReader) Read(ctx context.Context, cellName string) (frame.Frame, uint64, error) {
	cell, ok := r.Universe.Cell(cellName)
	if !ok {
		return frame.Frame{}, 0, &Error{Kind: SchemaMissing, Detail: "cell " + cellName + " not found in universe"}
	}
	held, gen, err := cell.Read(ctx)
	if err != nil {
		return frame.Frame{}, 0, err
	}
	if held == nil {
		return frame.Empty(), gen, nil
	}
	f, ok := held.(frame.Frame)
	if !ok {
		return frame.Frame{}, 0, &Error{Kind: SchemaMissing, Detail: "cell " + cellName + " does not hold a Frame"}
	}
	return f, gen, nil
}
