// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"context"
	"testing"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fakeSourceBuilder writes a fixed one-row Frame to its stage's output
// cell, standing in for a real driver during config-wiring tests.
func fakeSourceBuilder(spec SourceSpec, args map[string]any, deps BuildDeps) (registry.Task, error) {
	output, _ := args["output"].(string)
	return func(rc registry.Context) error {
		cell := rc.Universe().MustCell(output)
		f := frame.New(frame.Schema{{Name: "id", DType: frame.Int64}}, map[string][]any{"id": {int64(1)}}, 1)
		_, err := cell.Write(rc, f, spec.Name)
		return err
	}, nil
}

// fakeSinkRecorder records whether its registered task was invoked and
// how many rows it saw on its input cell.
type fakeSinkRecorder struct {
	invoked bool
	rows    int
}

func (r *fakeSinkRecorder) builder(spec SinkSpec, args map[string]any, deps BuildDeps) (registry.Task, error) {
	input, _ := args["input"].(string)
	return func(rc registry.Context) error {
		cell := rc.Universe().MustCell(input)
		held, _, err := cell.Read(rc)
		if err != nil {
			return err
		}
		f, _ := held.(frame.Frame)
		r.invoked = true
		r.rows = f.NumRows()
		return nil
	}, nil
}

func parseDocument(t *testing.T, yamlDoc string) *Document {
	t.Helper()
	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(yamlDoc), &doc))
	return &doc
}

func testEnv(t *testing.T) *envreg.Registry {
	t.Helper()
	env, err := envreg.Bootstrap(t.TempDir(), t.TempDir(), false)
	require.NoError(t, err)
	return env
}

// invokeTask runs the named stage's registered Task via a freshly built
// capctx.Context, mirroring how a runner dispatches it in production.
func invokeTask(t *testing.T, built *Built, env *envreg.Registry, label string) {
	t.Helper()
	task, ok := built.Registries.Tasks.Get(label)
	require.True(t, ok, "task %q registered", label)

	var args map[string]any
	for _, st := range built.Pipeline.Stages {
		if st.Label == label {
			args = st.Args
		}
	}
	ctx := capctx.New(context.Background(), label, args, built.Universe, built.Registries, env, capplog.Discard())
	require.NoError(t, task(ctx))
}

const demoDoc = `
pipeline:
  - name: demo
    stages:
      - label: load
        kind: source
        uses: players_csv
        args: {output: players}
      - label: shape
        kind: transform
        uses: reshape
        args: {input: players, output: shaped}
      - label: save
        kind: sink
        uses: warehouse
        args: {input: shaped}

source:
  - name: players_csv
    kind: csv

transform:
  - name: reshape
    ops:
      - kind: project
        project: [id]

sink:
  - name: warehouse
    kind: sql
`

func TestBuildWiresSourceTransformSinkThroughOneUniverse(t *testing.T) {
	doc := parseDocument(t, demoDoc)
	recorder := &fakeSinkRecorder{}
	drivers := Drivers{
		Sources: map[string]SourceBuilder{"csv": fakeSourceBuilder},
		Sinks:   map[string]SinkBuilder{"sql": recorder.builder},
	}
	env := testEnv(t)

	built, err := Build(doc, "demo", env, drivers)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"players", "shaped"}, built.Universe.Names())
	assert.Equal(t, 3, built.Registries.Tasks.Len())

	invokeTask(t, built, env, "load")
	invokeTask(t, built, env, "shape")
	invokeTask(t, built, env, "save")

	assert.True(t, recorder.invoked)
	assert.Equal(t, 1, recorder.rows)
}

func TestBuildRejectsUnknownPipeline(t *testing.T) {
	doc := parseDocument(t, demoDoc)
	_, err := Build(doc, "nope", testEnv(t), Drivers{})
	require.Error(t, err)
	var capErr *capperr.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capperr.ConfigValidate, capErr.Kind)
}

func TestBuildRejectsUnknownDriverKind(t *testing.T) {
	doc := parseDocument(t, demoDoc)
	_, err := Build(doc, "demo", testEnv(t), Drivers{})
	require.Error(t, err)
	var capErr *capperr.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capperr.ConfigValidate, capErr.Kind)
}

func TestBuildRejectsMissingTransformReference(t *testing.T) {
	doc := parseDocument(t, `
pipeline:
  - name: demo
    stages:
      - label: shape
        kind: transform
        uses: does_not_exist
        args: {input: players, output: shaped}
`)
	_, err := Build(doc, "demo", testEnv(t), Drivers{})
	require.Error(t, err)
	var capErr *capperr.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capperr.ConfigValidate, capErr.Kind)
}

func TestBuildPropagatesUnresolvedVarAsConfigValidate(t *testing.T) {
	doc := parseDocument(t, `
pipeline:
  - name: demo
    stages:
      - label: shape
        kind: transform
        uses: reshape
        args: {input: players, output: shaped}
transform:
  - name: reshape
    ops:
      - kind: select
        select: {id: $missing}
`)
	_, err := Build(doc, "demo", testEnv(t), Drivers{})
	require.Error(t, err)
	var capErr *capperr.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capperr.ConfigValidate, capErr.Kind)
}

func TestBuildRejectsDuplicateStageLabel(t *testing.T) {
	doc := parseDocument(t, `
pipeline:
  - name: demo
    stages:
      - label: dup
        kind: transform
        uses: reshape
        args: {input: players, output: shaped}
      - label: dup
        kind: transform
        uses: reshape
        args: {input: shaped, output: shaped2}
transform:
  - name: reshape
    ops:
      - kind: project
        project: [id]
`)
	_, err := Build(doc, "demo", testEnv(t), Drivers{})
	require.Error(t, err)
}
