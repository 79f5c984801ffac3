// SPDX-License-Identifier: GPL-3.0-or-later

package registry

import (
	"context"

	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/universe"
)

// Context is the narrow view a dispatched [Task] needs of the stage
// invocation it is running within. It is declared here, not in package
// capctx, so that registry has no dependency on the concrete context
// type — capctx.Context satisfies this interface structurally, and
// capctx is the package that imports registry (for [Registries]), never
// the reverse.
type Context interface {
	context.Context

	// StageLabel is this invocation's owning stage label (§3 Stage.label),
	// used in logging and error tagging.
	StageLabel() string

	// Arg returns one resolved (post-$var) argument value from the
	// stage's arg map.
	Arg(name string) (any, bool)

	// Args returns the full resolved argument map.
	Args() map[string]any

	// Universe is the shared cell directory for this run.
	Universe() *universe.Universe

	// Registries is the build-time dictionaries for this run.
	Registries() *Registries

	// Env is the process-scoped EnvRegistry for this run (§4.9).
	Env() *envreg.Registry

	// Logger is this invocation's logger, already tagged with the stage
	// label and a span ID via Logger.With.
	Logger() capplog.Logger
}

// Task is one dispatched unit of work — a source, transform, or sink
// implementation registered under a task-kind name (§9 "single dynamic
// dispatch point per task kind, with drivers registered by name").
type Task func(ctx Context) error
