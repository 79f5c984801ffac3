// SPDX-License-Identifier: GPL-3.0-or-later

package genid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpanID(t *testing.T) {
	spanID := NewSpanID()

	parsed, err := uuid.Parse(spanID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewRunID(t *testing.T) {
	runID := NewRunID()

	parsed, err := uuid.Parse(runID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewSpanIDUniqueness(t *testing.T) {
	const count = 100
	seen := make(map[string]struct{}, count)

	for range count {
		id := NewSpanID()
		_, duplicate := seen[id]
		require.False(t, duplicate, "duplicate id generated: %s", id)
		seen[id] = struct{}{}
	}
}
