// SPDX-License-Identifier: GPL-3.0-or-later

package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/stage"
	"github.com/capport-dev/capport/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() capplog.Logger {
	return capplog.New(slog.New(slog.NewTextHandler(io.Discard, nil)), capplog.LevelError)
}

func testEnv(t *testing.T) *envreg.Registry {
	t.Helper()
	env, err := envreg.Bootstrap(t.TempDir(), t.TempDir(), false)
	require.NoError(t, err)
	return env
}

func writeOneRowTask(cellName string) registry.Task {
	return func(rc registry.Context) error {
		u := rc.Universe()
		cell := u.MustCell(cellName)
		schema := frame.Schema{{Name: "n", DType: frame.Int64}}
		f := frame.New(schema, map[string][]any{"n": {int64(1)}}, 1)
		_, err := cell.Write(rc, f, "test")
		return err
	}
}

func failingTask(err error) registry.Task {
	return func(rc registry.Context) error { return err }
}

func TestSyncRunsStagesInOrder(t *testing.T) {
	u := universe.New([]string{"A", "B"})
	regs := registry.NewRegistries()
	var order []string
	require.NoError(t, regs.Tasks.Register("first", func(rc registry.Context) error {
		order = append(order, "first")
		return nil
	}, "test"))
	require.NoError(t, regs.Tasks.Register("second", func(rc registry.Context) error {
		order = append(order, "second")
		return nil
	}, "test"))

	r := Sync{
		Pipeline: stage.Pipeline{Stages: []stage.Stage{
			{Label: "s1", TaskName: "first"},
			{Label: "s2", TaskName: "second"},
		}},
		Registries: regs,
		Universe:   u,
		Env:        testEnv(t),
		Logger:     testLogger(),
	}
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSyncAbortsOnFirstError(t *testing.T) {
	u := universe.New(nil)
	regs := registry.NewRegistries()
	wantErr := capperr.New(capperr.SourceFail, "s1", errors.New("boom"))
	ran := false
	require.NoError(t, regs.Tasks.Register("bad", failingTask(wantErr), "test"))
	require.NoError(t, regs.Tasks.Register("never", func(rc registry.Context) error {
		ran = true
		return nil
	}, "test"))

	r := Sync{
		Pipeline: stage.Pipeline{Stages: []stage.Stage{
			{Label: "s1", TaskName: "bad"},
			{Label: "s2", TaskName: "never"},
		}},
		Registries: regs,
		Universe:   u,
		Env:        testEnv(t),
		Logger:     testLogger(),
	}
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.False(t, ran)
	assert.ErrorIs(t, err, wantErr)
}

func TestSyncReportsMissingTaskAsConfigValidate(t *testing.T) {
	u := universe.New(nil)
	regs := registry.NewRegistries()
	r := Sync{
		Pipeline:   stage.Pipeline{Stages: []stage.Stage{{Label: "s1", TaskName: "missing"}}},
		Registries: regs,
		Universe:   u,
		Env:        testEnv(t),
		Logger:     testLogger(),
	}
	err := r.Run(context.Background())
	require.Error(t, err)
	var capErr *capperr.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capperr.ConfigValidate, capErr.Kind)
}

func TestSyncPublishesToUniverse(t *testing.T) {
	u := universe.New([]string{"OUT"})
	regs := registry.NewRegistries()
	require.NoError(t, regs.Tasks.Register("write", writeOneRowTask("OUT"), "test"))

	r := Sync{
		Pipeline:   stage.Pipeline{Stages: []stage.Stage{{Label: "s1", TaskName: "write", Args: map[string]any{"output": "OUT"}}}},
		Registries: regs,
		Universe:   u,
		Env:        testEnv(t),
		Logger:     testLogger(),
	}
	require.NoError(t, r.Run(context.Background()))

	cell := u.MustCell("OUT")
	_, gen, err := cell.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
}
