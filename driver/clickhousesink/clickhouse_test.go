// SPDX-License-Identifier: GPL-3.0-or-later

package clickhousesink

import (
	"context"
	"testing"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTableDDLUsesOrderByWhenGiven(t *testing.T) {
	schema := frame.Schema{{Name: "id", DType: frame.Int64}, {Name: "ts", DType: frame.Datetime}}
	ddl := createTableDDL("events", schema, []string{"ts", "id"})
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS events (id Int64, ts DateTime) ENGINE = MergeTree ORDER BY (ts, id)", ddl)
}

func TestCreateTableDDLDefaultsToTupleWhenNoOrderBy(t *testing.T) {
	schema := frame.Schema{{Name: "id", DType: frame.Int64}}
	ddl := createTableDDL("events", schema, nil)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS events (id Int64) ENGINE = MergeTree ORDER BY tuple()", ddl)
}

func TestChTypeMapsFrameDTypes(t *testing.T) {
	assert.Equal(t, "String", chType(frame.Str))
	assert.Equal(t, "Float64", chType(frame.Float64))
	assert.Equal(t, "Bool", chType(frame.Bool))
}

func TestTaskRejectsNullPrimaryColumnWhenModelSet(t *testing.T) {
	model := registry.Model{Name: "events", Fields: []registry.ModelField{
		{Name: "id", DType: frame.Str, Constraints: []registry.Constraint{registry.Primary}},
	}}
	task, err := Builder(config.SinkSpec{Name: "events", Options: map[string]any{"table": "events"}},
		map[string]any{"input": "events"}, config.BuildDeps{Connection: &registry.Connection{Kind: "clickhouse"}, Model: &model})
	require.NoError(t, err)

	dir := t.TempDir()
	u := universe.New([]string{"events"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "save", nil, u, registry.NewRegistries(), env, capplog.Discard())

	f := frame.New(frame.Schema{{Name: "id", DType: frame.Str}}, map[string][]any{"id": {"a", nil}}, 2)
	_, werr := u.MustCell("events").Write(context.Background(), f, "test")
	require.NoError(t, werr)

	err = task(rc)
	require.Error(t, err)
}

func TestTaskSkipsValidationWithoutModelOrStrict(t *testing.T) {
	task, err := Builder(config.SinkSpec{Name: "events", Options: map[string]any{"table": "events"}},
		map[string]any{"input": "events"}, config.BuildDeps{Connection: &registry.Connection{Kind: "clickhouse"}})
	require.NoError(t, err)

	dir := t.TempDir()
	u := universe.New([]string{"events"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "save", nil, u, registry.NewRegistries(), env, capplog.Discard())

	f := frame.New(frame.Schema{{Name: "id", DType: frame.Str}}, map[string][]any{"id": {nil}}, 1)
	_, werr := u.MustCell("events").Write(context.Background(), f, "test")
	require.NoError(t, werr)

	require.NoError(t, task(rc))
}
