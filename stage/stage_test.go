// SPDX-License-Identifier: GPL-3.0-or-later

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRootWhenNoInputKey(t *testing.T) {
	s := Stage{Label: "source_users", Kind: Source, Args: map[string]any{"output": "USERS"}}
	assert.True(t, s.IsRoot())
	assert.Equal(t, []string{"USERS"}, s.OutputCells())
}

func TestInputCellsRecognizesInputAndRight(t *testing.T) {
	s := Stage{
		Label: "join_orders",
		Kind:  Transform,
		Args: map[string]any{
			"input":  "ORDERS",
			"right":  "USERS",
			"output": "ENRICHED",
		},
	}
	assert.False(t, s.IsRoot())
	assert.ElementsMatch(t, []string{"ORDERS", "USERS"}, s.InputCells())
	assert.Equal(t, []string{"ENRICHED"}, s.OutputCells())
}

func TestOutputCellsRecognizesToSaveAndSaveDf(t *testing.T) {
	s1 := Stage{Label: "sink1", Kind: Sink, Args: map[string]any{"to_save": "USERS"}}
	s2 := Stage{Label: "sink2", Kind: Sink, Args: map[string]any{"save_df": "USERS"}}
	assert.Equal(t, []string{"USERS"}, s1.OutputCells())
	assert.Equal(t, []string{"USERS"}, s2.OutputCells())
}

func TestCollectCellsIgnoresUnrecognizedValueTypes(t *testing.T) {
	s := Stage{Args: map[string]any{"input": 42}}
	assert.Empty(t, s.InputCells())
}

func TestCollectCellsHandlesAnySlice(t *testing.T) {
	s := Stage{Args: map[string]any{"input": []any{"A", "B", "A"}}}
	assert.Equal(t, []string{"A", "B"}, s.InputCells())
}
