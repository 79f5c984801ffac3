// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/transform/expr"
)

// ErrKind mirrors the subset of §7's taxonomy config loading and
// building can raise.
type ErrKind string

const (
	ConfigParse    ErrKind = "CONFIG_PARSE"
	ConfigValidate ErrKind = "CONFIG_VALIDATE"
)

// Error is this package's own leaf error type, following the same
// leaf-package pattern as frame.AlgebraError, expr.Error, transform.Error
// and stage.Error (see DESIGN.md).
type Error struct {
	Kind   ErrKind
	Detail string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Detail }

// Translate converts an error from this package, or a *registry.
// DuplicateError surfaced while registering catalog entries, into a
// *capperr.Error (§7: duplicate names, unresolved $var, unknown task,
// cycle without schedule, and deadlock hazard are all CONFIG_VALIDATE).
func Translate(err error) error {
	if err == nil {
		return nil
	}
	// A leaf op (transform.NewCompiled, stage.Translate, a driver factory)
	// may already have translated its own error before returning it to
	// Build; re-wrapping it here would lose the original Kind.
	var already *capperr.Error
	if errors.As(err, &already) {
		return err
	}
	var dup *registry.DuplicateError
	if errors.As(err, &dup) {
		return capperr.New(capperr.ConfigValidate, "", err)
	}
	var cfgErr *Error
	if errors.As(err, &cfgErr) {
		return capperr.New(capperr.Kind(cfgErr.Kind), "", err)
	}
	var exprErr *expr.Error
	if errors.As(err, &exprErr) {
		kind := capperr.Kind(exprErr.Kind)
		if exprErr.Kind == expr.VarUnresolved {
			kind = capperr.ConfigValidate
		}
		return capperr.New(kind, "", err)
	}
	// Any other error reaching here (a plain fmt.Errorf from this
	// package, or an unexpected error from a driver factory) is still a
	// load-time failure; CONFIG_VALIDATE is the closest taxonomy entry
	// for "the configuration, not a running stage, is at fault".
	return capperr.New(capperr.ConfigValidate, "", fmt.Errorf("config: %w", err))
}
