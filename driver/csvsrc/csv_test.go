// SPDX-License-Identifier: GPL-3.0-or-later

package csvsrc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderReadsCSVAndPublishes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Ann\n2,Bo\n"), 0o644))

	task, err := Builder(config.SourceSpec{Name: "players", Options: map[string]any{"path": path}},
		map[string]any{"output": "players"}, config.BuildDeps{})
	require.NoError(t, err)

	u := universe.New([]string{"players"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "load", nil, u, registry.NewRegistries(), env, capplog.Discard())

	require.NoError(t, task(rc))

	held, _, err := u.MustCell("players").Read(context.Background())
	require.NoError(t, err)
	f := held.(interface{ NumRows() int })
	assert.Equal(t, 2, f.NumRows())
}

func TestBuilderEnforcesModelDType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Ann\n"), 0o644))

	model := registry.Model{Name: "players", Fields: []registry.ModelField{
		{Name: "id", DType: "int64"},
		{Name: "name", DType: "str"},
	}}
	task, err := Builder(config.SourceSpec{Name: "players", Options: map[string]any{"path": path}},
		map[string]any{"output": "players"}, config.BuildDeps{Model: &model})
	require.NoError(t, err)

	u := universe.New([]string{"players"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "load", nil, u, registry.NewRegistries(), env, capplog.Discard())
	require.NoError(t, task(rc))

	held, _, err := u.MustCell("players").Read(context.Background())
	require.NoError(t, err)
	col, ok := held.(interface {
		Column(string) ([]any, bool)
	}).Column("id")
	require.True(t, ok)
	assert.Equal(t, []any{int64(1)}, col)
}

func TestBuilderRequiresPathOption(t *testing.T) {
	_, err := Builder(config.SourceSpec{Name: "players"}, map[string]any{"output": "players"}, config.BuildDeps{})
	require.Error(t, err)
}
