// SPDX-License-Identifier: GPL-3.0-or-later

// Package capctx provides [Context], the handle every [registry.Task]
// invocation receives: the run's Universe, Registries, EnvRegistry, a
// stage-scoped Logger, and the stage's own resolved argument map (§2
// Context component).
package capctx

import (
	"context"

	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
)

// Context satisfies registry.Context; it is what runner and stage pass to
// a dispatched task.
type Context struct {
	context.Context

	stageLabel string
	args       map[string]any
	universe   *universe.Universe
	registries *registry.Registries
	env        *envreg.Registry
	logger     capplog.Logger
}

var _ registry.Context = (*Context)(nil)

// New builds a Context for one stage invocation. logger should already be
// tagged with the stage label and a span ID (via Logger.With) by the
// caller, per the teacher's span-per-invocation logging idiom.
func New(
	ctx context.Context,
	stageLabel string,
	args map[string]any,
	u *universe.Universe,
	regs *registry.Registries,
	env *envreg.Registry,
	logger capplog.Logger,
) *Context {
	return &Context{
		Context:    ctx,
		stageLabel: stageLabel,
		args:       args,
		universe:   u,
		registries: regs,
		env:        env,
		logger:     logger,
	}
}

// StageLabel returns the owning stage's label.
func (c *Context) StageLabel() string { return c.stageLabel }

// Arg returns one resolved argument.
func (c *Context) Arg(name string) (any, bool) {
	v, ok := c.args[name]
	return v, ok
}

// Args returns the full resolved argument map. Callers must treat it as
// read-only: it is shared across concurrent invocations of tasks on the
// same stage's args template.
func (c *Context) Args() map[string]any { return c.args }

// Universe returns the run's shared cell directory.
func (c *Context) Universe() *universe.Universe { return c.universe }

// Registries returns the run's build-time dictionaries.
func (c *Context) Registries() *registry.Registries { return c.registries }

// Env returns the run's EnvRegistry.
func (c *Context) Env() *envreg.Registry { return c.env }

// Logger returns this invocation's logger.
func (c *Context) Logger() capplog.Logger { return c.logger }

// WithLogger returns a shallow copy of c with a different logger attached,
// used to thread a span-scoped logger (e.g. tagged with a retry attempt
// number) through a sub-operation without mutating the shared Context.
func (c *Context) WithLogger(logger capplog.Logger) *Context {
	cp := *c
	cp.logger = logger
	return &cp
}
