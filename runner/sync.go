// SPDX-License-Identifier: GPL-3.0-or-later

// Package runner implements the two execution strategies a compiled
// Pipeline can be driven by (§4.6 linear synchronous, §4.7 concurrent
// asynchronous): [Sync] walks stages in declaration order on the
// caller's goroutine; [Async] runs them as update-driven cooperating
// tasks over a shared Universe.
package runner

import (
	"context"
	"fmt"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/internal/genid"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/stage"
	"github.com/capport-dev/capport/universe"
)

// Sync is the "run-once" linear strategy (§4.6): it invokes each stage's
// task synchronously in pipeline declaration order, holds no locks
// across stage boundaries, and aborts on the first error.
type Sync struct {
	Pipeline   stage.Pipeline
	Registries *registry.Registries
	Universe   *universe.Universe
	Env        *envreg.Registry
	Logger     capplog.Logger
}

// Run executes every stage once, in order, returning the first error
// encountered (a stage's task error is returned unmodified — it is
// already a *capperr.Error by the time it reaches here, since drivers
// and transform both translate their own leaf errors before returning).
func (r Sync) Run(ctx context.Context) error {
	for _, s := range r.Pipeline.Stages {
		if err := ctx.Err(); err != nil {
			return capperr.New(capperr.Cancelled, s.Label, err)
		}

		task, ok := r.Registries.Tasks.Get(s.TaskName)
		if !ok {
			return capperr.New(capperr.ConfigValidate, s.Label, fmt.Errorf("task %q is not registered", s.TaskName))
		}

		logger := r.Logger.With("stage", s.Label, "span", genid.NewSpanID())
		rc := capctx.New(ctx, s.Label, s.Args, r.Universe, r.Registries, r.Env, logger)

		logger.Info("stage started")
		if err := task(rc); err != nil {
			logger.Error("stage failed", "error", err)
			return err
		}
		logger.Info("stage finished")
	}
	return nil
}
