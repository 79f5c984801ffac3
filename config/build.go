// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/stage"
	"github.com/capport-dev/capport/transform"
	"github.com/capport-dev/capport/universe"
)

// BuildDeps is the resolved, build-time context a driver factory needs
// beyond its own spec and the stage's argument map: the Connection and
// Model catalog entries its spec referenced by name, already looked up
// (§9 "capability requirements... are checked at stage build time, not
// baked into types").
type BuildDeps struct {
	Connection *registry.Connection
	Model      *registry.Model
}

// SourceBuilder constructs a dispatchable [registry.Task] for one
// SourceSpec, given the owning stage's resolved argument map (cell
// wiring, $var bindings) and its resolved Connection/Model. Kind-specific
// options live in spec.Options, passed through verbatim (§6).
type SourceBuilder func(spec SourceSpec, args map[string]any, deps BuildDeps) (registry.Task, error)

// SinkBuilder is the sink-side counterpart of [SourceBuilder].
type SinkBuilder func(spec SinkSpec, args map[string]any, deps BuildDeps) (registry.Task, error)

// Drivers is the set of driver-kind factories a caller registers before
// calling Build (§9: "single dynamic dispatch point per task kind, with
// drivers registered by name" — package config is that dispatch point;
// package capport's engine is what imports the concrete driver packages
// and populates this struct, so config itself never imports a specific
// connector, per doc.go's package comment).
type Drivers struct {
	Sources map[string]SourceBuilder
	Sinks   map[string]SinkBuilder
}

// Built is the product of compiling one named pipeline out of a
// Document: its registries, its cell universe, and its stage.Pipeline,
// ready to hand to a runner.
type Built struct {
	Registries *registry.Registries
	Universe   *universe.Universe
	Pipeline   stage.Pipeline
}

// Build compiles pipelineName out of doc: it registers every model and
// connection, builds one Universe sized to exactly the cell names every
// stage's Args imply, and registers one [registry.Task] per stage under
// that stage's own label (see StageSpec's doc comment for why the
// dispatch key is the label rather than the catalog entry name).
//
// Building happens in two passes over the pipeline's stages because the
// cell set a Universe is built with must be complete before any
// transform is compiled against it (transform.NewCompiled binds a
// Universe reference permanently): pass one derives each stage's
// Args-implied cells without touching a Universe at all (stage.Stage's
// InputCells/OutputCells only inspect Args), and pass two, run only
// after Universe is built, compiles and registers each stage's Task.
func Build(doc *Document, pipelineName string, env *envreg.Registry, drivers Drivers) (*Built, error) {
	pipelineSpec, ok := findByName(doc.Pipelines, pipelineName, func(p PipelineSpec) string { return p.Name })
	if !ok {
		return nil, Translate(&Error{Kind: ConfigValidate, Detail: fmt.Sprintf("config: pipeline %q not found", pipelineName)})
	}

	regs := registry.NewRegistries()
	if err := registerModels(regs, doc.Models); err != nil {
		return nil, Translate(err)
	}
	if err := registerConnections(regs, doc.Connections, env); err != nil {
		return nil, Translate(err)
	}

	stages := make([]stage.Stage, 0, len(pipelineSpec.Stages))
	cellNames := map[string]bool{}
	for _, ss := range pipelineSpec.Stages {
		st, err := buildStageSkeleton(ss)
		if err != nil {
			return nil, Translate(err)
		}
		for _, c := range st.InputCells() {
			cellNames[c] = true
		}
		for _, c := range st.OutputCells() {
			cellNames[c] = true
		}
		stages = append(stages, st)
	}

	names := make([]string, 0, len(cellNames))
	for name := range cellNames {
		names = append(names, name)
	}
	u := universe.New(names)

	for _, ss := range pipelineSpec.Stages {
		if err := registerStageTask(ss, doc, regs, drivers, u); err != nil {
			return nil, Translate(err)
		}
	}

	pipeline := stage.Pipeline{Name: pipelineSpec.Name, Stages: stages}
	if err := pipeline.Validate(); err != nil {
		return nil, stage.Translate(err)
	}

	return &Built{Registries: regs, Universe: u, Pipeline: pipeline}, nil
}

func buildStageSkeleton(ss StageSpec) (stage.Stage, error) {
	var every time.Duration
	if ss.Every != "" {
		d, err := time.ParseDuration(ss.Every)
		if err != nil {
			return stage.Stage{}, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: invalid every %q: %v", ss.Label, ss.Every, err)}
		}
		every = d
	}
	return stage.Stage{
		Label:    ss.Label,
		Kind:     stageKindOf(ss.Kind),
		TaskName: ss.Label,
		Args:     ss.Args,
		Every:    every,
	}, nil
}

func stageKindOf(k string) stage.Kind {
	switch k {
	case "source":
		return stage.Source
	case "sink":
		return stage.Sink
	default:
		return stage.Transform
	}
}

func registerStageTask(ss StageSpec, doc *Document, regs *registry.Registries, drivers Drivers, u *universe.Universe) error {
	switch ss.Kind {
	case "transform":
		return registerTransformStage(ss, doc, regs, u)
	case "source":
		return registerSourceStage(ss, doc, regs, drivers)
	case "sink":
		return registerSinkStage(ss, doc, regs, drivers)
	default:
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: unrecognized kind %q", ss.Label, ss.Kind)}
	}
}

func registerTransformStage(ss StageSpec, doc *Document, regs *registry.Registries, u *universe.Universe) error {
	tSpec, ok := findByName(doc.Transforms, ss.Uses, func(t TransformSpec) string { return t.Name })
	if !ok {
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: transform %q not found", ss.Label, ss.Uses)}
	}
	ops := make([]transform.Op, 0, len(tSpec.Ops))
	for _, opSpec := range tSpec.Ops {
		op, err := buildOp(opSpec, ss.Args)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	rt := transform.RootTransform{
		Label:      ss.Label,
		InputCell:  argString(ss.Args, "input"),
		OutputCell: firstNonEmpty(argString(ss.Args, "output"), argString(ss.Args, "to_save"), argString(ss.Args, "save_df")),
		Ops:        ops,
	}
	compiled, err := transform.NewCompiled(rt, u)
	if err != nil {
		return err
	}
	if err := regs.Transforms.Register(ss.Label, compiled, ss.Label); err != nil {
		return err
	}
	return regs.Tasks.Register(ss.Label, compiled.AsTask(), ss.Label)
}

func registerSourceStage(ss StageSpec, doc *Document, regs *registry.Registries, drivers Drivers) error {
	sSpec, ok := findByName(doc.Sources, ss.Uses, func(s SourceSpec) string { return s.Name })
	if !ok {
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: source %q not found", ss.Label, ss.Uses)}
	}
	builder, ok := drivers.Sources[sSpec.Kind]
	if !ok {
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: no source driver registered for kind %q", ss.Label, sSpec.Kind)}
	}
	deps, err := resolveDeps(regs, sSpec.Connection, sSpec.Model)
	if err != nil {
		return err
	}
	task, err := builder(sSpec, ss.Args, deps)
	if err != nil {
		return err
	}
	return regs.Tasks.Register(ss.Label, task, ss.Label)
}

func registerSinkStage(ss StageSpec, doc *Document, regs *registry.Registries, drivers Drivers) error {
	sSpec, ok := findByName(doc.Sinks, ss.Uses, func(s SinkSpec) string { return s.Name })
	if !ok {
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: sink %q not found", ss.Label, ss.Uses)}
	}
	builder, ok := drivers.Sinks[sSpec.Kind]
	if !ok {
		return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("stage %q: no sink driver registered for kind %q", ss.Label, sSpec.Kind)}
	}
	deps, err := resolveDeps(regs, sSpec.Connection, sSpec.Model)
	if err != nil {
		return err
	}
	task, err := builder(sSpec, ss.Args, deps)
	if err != nil {
		return err
	}
	return regs.Tasks.Register(ss.Label, task, ss.Label)
}

func resolveDeps(regs *registry.Registries, connName, modelName string) (BuildDeps, error) {
	var deps BuildDeps
	if connName != "" {
		conn, ok := regs.Connections.Get(connName)
		if !ok {
			return deps, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("connection %q not found", connName)}
		}
		deps.Connection = &conn
	}
	if modelName != "" {
		model, ok := regs.Models.Get(modelName)
		if !ok {
			return deps, &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("model %q not found", modelName)}
		}
		deps.Model = &model
	}
	return deps, nil
}

func registerModels(regs *registry.Registries, specs []ModelSpec) error {
	for _, m := range specs {
		model := registry.Model{Name: m.Name, Fields: make([]registry.ModelField, 0, len(m.Fields))}
		for _, f := range m.Fields {
			constraints := make([]registry.Constraint, 0, len(f.Constraints))
			for _, c := range f.Constraints {
				constraints = append(constraints, registry.Constraint(c))
			}
			model.Fields = append(model.Fields, registry.ModelField{
				Name:        f.Name,
				DType:       frame.DType(f.DType),
				Constraints: constraints,
			})
		}
		if err := regs.Models.Register(m.Name, model, "config"); err != nil {
			return err
		}
	}
	return nil
}

// registerConnections resolves every "_env_var"-suffixed option key
// against env before registering the connection, per §9's design note:
// the actual secret/URI lives in the EnvRegistry under the name given as
// the option's value, resolved once here rather than read by the driver
// at call time.
func registerConnections(regs *registry.Registries, specs []ConnectionSpec, env *envreg.Registry) error {
	for _, c := range specs {
		resolved := make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			if !strings.HasSuffix(k, "_env_var") {
				resolved[k] = v
				continue
			}
			baseKey := strings.TrimSuffix(k, "_env_var")
			val, ok := env.Get(v)
			if !ok {
				return &Error{Kind: ConfigValidate, Detail: fmt.Sprintf("connection %q: %s references env key %q, not set in EnvRegistry", c.Name, k, v)}
			}
			resolved[baseKey] = val
		}
		conn := registry.Connection{Name: c.Name, Kind: c.Kind, Template: resolved}
		if err := regs.Connections.Register(c.Name, conn, "config"); err != nil {
			return err
		}
	}
	return nil
}

func findByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	for _, it := range items {
		if nameOf(it) == name {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
