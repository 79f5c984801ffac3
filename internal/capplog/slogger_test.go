// SPDX-License-Identifier: GPL-3.0-or-later

package capplog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	sl := slog.New(slog.NewJSONHandler(&buf, nil))
	logger := New(sl, LevelWarn)

	logger.Debug("should be dropped")
	logger.Info("should be dropped too")
	logger.Warn("kept")
	logger.Error("also kept")

	assert.Equal(t, 2, countLines(t, buf.Bytes()))
}

func TestWithAttachesFieldsToSubsequentRecords(t *testing.T) {
	var buf bytes.Buffer
	sl := slog.New(slog.NewJSONHandler(&buf, nil))
	logger := New(sl, LevelInfo).With("stage", "load_players")

	logger.Info("started")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "load_players", rec["stage"])
}

func TestDiscardLoggerIsSilent(t *testing.T) {
	d := Discard()
	assert.NotPanics(t, func() {
		d.Debug("x")
		d.Info("x")
		d.Warn("x")
		d.Error("x")
		d.With("a", 1).Info("y")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func countLines(t *testing.T, b []byte) int {
	t.Helper()
	if len(b) == 0 {
		return 0
	}
	n := bytes.Count(b, []byte("\n"))
	if !bytes.HasSuffix(b, []byte("\n")) {
		n++
	}
	return n
}
