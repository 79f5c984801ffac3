// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's NewSpanID helper.

// Package genid mints the identifiers Capport attaches to a pipeline run
// and to each stage invocation, for correlating log records across the
// async runner's concurrent stages.
package genid

import "github.com/google/uuid"

// NewRunID returns a UUIDv7 identifying one pipeline run.
//
// UUIDv7 is time-ordered, so run IDs sort chronologically in logs without
// needing a separate timestamp column.
//
// Panics if the system random number generator fails, which should only
// happen under extraordinary circumstances.
func NewRunID() string {
	return mustUUIDv7()
}

// NewSpanID returns a UUIDv7 identifying one stage invocation.
//
// A span is a single run of one stage's task; every log record emitted
// during that invocation should carry the same span ID so per-stage
// timelines can be reconstructed from an interleaved async log.
func NewSpanID() string {
	return mustUUIDv7()
}

func mustUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}
