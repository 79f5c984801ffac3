// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's ErrClassifier idiom (a func-adaptable
// interface mapping raw errors onto short categorical labels).

// Package capperr defines Capport's error-kind taxonomy (§7 of the spec)
// and a small [Error] type carrying a [Kind] plus the failing stage label,
// so the runner and tests can match on kind with errors.As rather than
// string comparison.
package capperr

import "fmt"

// Kind is one entry of the error taxonomy from §7.
type Kind string

const (
	ConfigParse     Kind = "CONFIG_PARSE"
	ConfigValidate  Kind = "CONFIG_VALIDATE"
	SchemaMissing   Kind = "SCHEMA_MISSING"
	SchemaType      Kind = "SCHEMA_TYPE"
	SchemaDup       Kind = "SCHEMA_DUP"
	Coercion        Kind = "COERCION"
	TemplateArity   Kind = "TEMPLATE_ARITY"
	SourceFail      Kind = "SOURCE_FAIL"
	SinkFail        Kind = "SINK_FAIL"
	Timeout         Kind = "TIMEOUT"
	Cancelled       Kind = "CANCELLED"
	ModelValidation Kind = "MODEL_VALIDATION"
)

// Error wraps a failure with the [Kind] that classifies it and the stage
// label that produced it, so callers can recover both without parsing
// error strings.
type Error struct {
	Kind  Kind
	Stage string
	Cause error
}

func New(kind Kind, stage string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Cause: cause}
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, capperr.New(capperr.Cancelled, "", nil)) style checks
// where only the Kind matters.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Classifier maps a raw driver error onto a [Kind] for structured logging
// and retry policy decisions (§4.4: "any driver failure is reported with
// kind SOURCE_FAIL, carrying the driver-specific cause").
//
// ClassifierFunc adapts a plain function to the interface, mirroring the
// teacher's ErrClassifierFunc so drivers can supply ad-hoc classification
// without defining a named type:
//
//	driver.Classifier = capperr.ClassifierFunc(myDriver.classify)
type Classifier interface {
	Classify(err error) Kind
}

type ClassifierFunc func(error) Kind

var _ Classifier = ClassifierFunc(nil)

func (f ClassifierFunc) Classify(err error) Kind {
	return f(err)
}

// DefaultClassifier classifies every non-nil error as its caller's default
// kind; it never inspects the error itself, unlike a driver-specific
// classifier that can recognize e.g. a duplicate-key constraint violation.
func DefaultClassifier(kind Kind) Classifier {
	return ClassifierFunc(func(error) Kind { return kind })
}

// ExitCode maps a Kind onto the CLI exit codes of §6: 1 for a
// configuration/validation failure caught before any stage runs, 2 for
// every other runtime error kind. Cancellation triggered by a signal is
// mapped to 130 by cmd/capport directly, since that is a property of how
// the run ended (SIGINT) rather than of the Kind alone — a stage can
// also observe CANCELLED from a context deadline unrelated to SIGINT.
func ExitCode(kind Kind) int {
	switch kind {
	case ConfigParse, ConfigValidate:
		return 1
	default:
		return 2
	}
}
