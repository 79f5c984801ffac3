// SPDX-License-Identifier: GPL-3.0-or-later

package capctx

import (
	"context"
	"testing"

	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, args map[string]any) *Context {
	t.Helper()
	env, err := envreg.Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)
	u := universe.New([]string{"A"})
	regs := registry.NewRegistries()
	return New(context.Background(), "stageA", args, u, regs, env, capplog.Discard())
}

func TestContextExposesArgs(t *testing.T) {
	c := newTestContext(t, map[string]any{"input": "A"})

	v, ok := c.Arg("input")
	require.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.Arg("missing")
	assert.False(t, ok)
}

func TestContextExposesStageLabel(t *testing.T) {
	c := newTestContext(t, nil)
	assert.Equal(t, "stageA", c.StageLabel())
}

func TestContextSatisfiesRegistryContext(t *testing.T) {
	c := newTestContext(t, nil)
	var _ registry.Context = c
}

func TestWithLoggerDoesNotMutateOriginal(t *testing.T) {
	c := newTestContext(t, nil)
	other := capplog.Discard()
	cp := c.WithLogger(other)

	assert.NotSame(t, c, cp)
}

func TestContextCancellationPropagatesFromParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env, err := envreg.Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)
	c := New(ctx, "s", nil, universe.New(nil), registry.NewRegistries(), env, capplog.Discard())

	cancel()
	select {
	case <-c.Done():
	default:
		t.Fatal("expected Context.Done() to reflect parent cancellation")
	}
}
