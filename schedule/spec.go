// SPDX-License-Identifier: GPL-3.0-or-later

// Package schedule wraps robfig/cron/v3 behind a narrow [Trigger]
// interface so the core Runner never imports a cron library directly
// (§9 design note: "cron parsing itself stays out of the core"). [Spec]
// is the declarative shape of a runner-level schedule (§4.8); [Scheduler]
// is the at-most-one-active-run-with-one-pending-coalesced-trigger loop
// that drives a Pipeline run from a Trigger's fire events.
package schedule

import "time"

// Spec is a runner's schedule configuration (§4.8
// `{timezone, every, at?, repeating_every?, times?}`).
type Spec struct {
	// Timezone is an IANA zone name ("Europe/Rome"); empty means UTC.
	Timezone string

	// Every is a fixed-interval trigger ("fire every 10m").
	Every time.Duration

	// At is a time-of-day trigger ("15:04", daily).
	At string

	// RepeatingEvery is a fixed-interval trigger, the same as Every. When
	// At is also set, RepeatingEvery takes precedence: fires come every
	// RepeatingEvery from the moment the trigger starts, and At's time of
	// day is not used.
	RepeatingEvery time.Duration

	// Times caps the number of fires; zero means unlimited.
	Times int
}

// ErrKind classifies a schedule configuration failure.
type ErrKind string

const (
	// BadTimezone means Timezone did not resolve via time.LoadLocation.
	BadTimezone ErrKind = "CONFIG_VALIDATE"
	// BadSpec means none of Every/At/RepeatingEvery was set, or At was
	// not a parseable "HH:MM".
	BadSpec ErrKind = "CONFIG_VALIDATE"
)

// Error is this package's own leaf error type (see DESIGN.md's
// leaf-package pattern).
type Error struct {
	Kind   ErrKind
	Detail string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Detail }
