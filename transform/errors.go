// SPDX-License-Identifier: GPL-3.0-or-later

package transform

import (
	"context"
	"errors"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/transform/expr"
)

// ErrKind mirrors frame.AlgebraErrorKind/expr.ErrKind for errors raised
// directly by this package (deadlock-hazard validation, missing cells).
type ErrKind string

const (
	SchemaMissing ErrKind = "SCHEMA_MISSING"
	Deadlock      ErrKind = "CONFIG_VALIDATE"
)

// Error is this package's own leaf error type, following the same
// leaf-package pattern as frame.AlgebraError and expr.Error (see
// DESIGN.md): transform sits one layer above those two and is
// responsible for translating all three into *capperr.Error once it
// knows the failing stage's label.
type Error struct {
	Kind   ErrKind
	Detail string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Detail }

// translate converts an error from frame, expr, or this package into a
// *capperr.Error tagged with stage, choosing the Kind from whichever
// leaf error type err actually is.
func translate(stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return capperr.New(capperr.Cancelled, stage, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return capperr.New(capperr.Timeout, stage, err)
	}
	var algErr *frame.AlgebraError
	if errors.As(err, &algErr) {
		return capperr.New(capperr.Kind(algErr.Kind), stage, err)
	}
	var exprErr *expr.Error
	if errors.As(err, &exprErr) {
		kind := capperr.Kind(exprErr.Kind)
		if exprErr.Kind == expr.VarUnresolved {
			kind = capperr.ConfigValidate
		}
		return capperr.New(kind, stage, err)
	}
	var ownErr *Error
	if errors.As(err, &ownErr) {
		return capperr.New(capperr.Kind(ownErr.Kind), stage, err)
	}
	// An error that isn't one of frame/expr/transform's own leaf types
	// reached us from somewhere unexpected (a driver bug, a panic
	// recovery path); SchemaType is the closest taxonomy entry for "this
	// stage's computation could not complete".
	return capperr.New(capperr.SchemaType, stage, err)
}
