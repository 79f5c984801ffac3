// SPDX-License-Identifier: GPL-3.0-or-later

package capport

import (
	"context"
	"fmt"

	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/driver/clickhousesink"
	"github.com/capport-dev/capport/driver/csvsrc"
	"github.com/capport-dev/capport/driver/httpsrc"
	"github.com/capport-dev/capport/driver/jsonsrc"
	"github.com/capport-dev/capport/driver/mongosink"
	"github.com/capport-dev/capport/driver/mongosrc"
	"github.com/capport-dev/capport/driver/sqlsink"
	"github.com/capport-dev/capport/driver/sqlsrc"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/runner"
	"github.com/capport-dev/capport/schedule"
	"github.com/capport-dev/capport/universe"
)

// DefaultDrivers is the set of connector kinds package capport wires out
// of the box, keyed the way a SourceSpec/SinkSpec's "kind" field names
// them in configuration. A caller embedding this module with its own
// connectors can build its own [config.Drivers] instead of calling
// [Build].
func DefaultDrivers() config.Drivers {
	return config.Drivers{
		Sources: map[string]config.SourceBuilder{
			"csv":         csvsrc.Builder,
			"json":        jsonsrc.Builder,
			"http_single": httpsrc.SingleBuilder,
			"http_batch":  httpsrc.BatchBuilder,
			"sql":         sqlsrc.Builder,
			"mongo":       mongosrc.Builder,
		},
		Sinks: map[string]config.SinkBuilder{
			"sql":        sqlsink.Builder,
			"clickhouse": clickhousesink.Builder,
			"mongo":      mongosink.Builder,
		},
	}
}

// Engine is a compiled, runnable pipeline (§2 System Overview): its
// registries, its cell universe, the pipeline itself, and the
// environment/logger it was built against.
type Engine struct {
	Built  *config.Built
	Env    *envreg.Registry
	Logger capplog.Logger
}

// Build loads pipelineName out of doc, registering [DefaultDrivers],
// and returns a ready-to-run Engine.
func Build(doc *config.Document, pipelineName string, env *envreg.Registry, logger capplog.Logger) (*Engine, error) {
	built, err := config.Build(doc, pipelineName, env, DefaultDrivers())
	if err != nil {
		return nil, err
	}
	return &Engine{Built: built, Env: env, Logger: logger}, nil
}

// RunOnce executes every stage of the pipeline exactly once, in
// declaration order (§4.6).
func (e *Engine) RunOnce(ctx context.Context) error {
	r := runner.Sync{
		Pipeline:   e.Built.Pipeline,
		Registries: e.Built.Registries,
		Universe:   e.Built.Universe,
		Env:        e.Env,
		Logger:     e.Logger,
	}
	return r.Run(ctx)
}

// RunLoop runs the pipeline as an update-driven async loop (§4.7) until
// ctx is cancelled. once selects run-once-fanout semantics instead of an
// indefinite loop (see [runner.Async]'s doc comment).
func (e *Engine) RunLoop(ctx context.Context, once bool) error {
	r := runner.Async{
		Pipeline:   e.Built.Pipeline,
		Registries: e.Built.Registries,
		Universe:   e.Built.Universe,
		Env:        e.Env,
		Logger:     e.Logger,
		Once:       once,
	}
	return r.Run(ctx)
}

// RunWithRunner dispatches to RunOnce or RunLoop according to
// runnerSpec.Mode, and — for async mode with a schedule — drives
// repeated runs through a [schedule.Scheduler] (§4.8).
func (e *Engine) RunWithRunner(ctx context.Context, runnerSpec config.RunnerSpec) error {
	switch runnerSpec.Mode {
	case "", "sync":
		return e.RunOnce(ctx)
	case "async":
		if runnerSpec.Schedule == nil {
			return e.RunLoop(ctx, runnerSpec.Once)
		}
		spec, err := runnerSpec.Schedule.ToSchedule()
		if err != nil {
			return err
		}
		trigger, err := schedule.NewCronTrigger(spec)
		if err != nil {
			return err
		}
		scheduler := schedule.Scheduler{Trigger: trigger}
		return scheduler.Run(ctx, func(runCtx context.Context) error {
			return e.RunLoop(runCtx, true)
		})
	default:
		return fmt.Errorf("capport: runner %q: unrecognized mode %q", runnerSpec.Name, runnerSpec.Mode)
	}
}

// Registries exposes the compiled pipeline's registry set, mostly useful
// to tests and introspection callers.
func (e *Engine) Registries() *registry.Registries { return e.Built.Registries }

// Universe exposes the compiled pipeline's cell universe.
func (e *Engine) Universe() *universe.Universe { return e.Built.Universe }
