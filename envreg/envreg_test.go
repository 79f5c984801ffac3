// SPDX-License-Identifier: GPL-3.0-or-later

package envreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapRequiresOutputDir(t *testing.T) {
	_, err := Bootstrap("/cfg", "", true)
	require.Error(t, err)
}

func TestBootstrapSetsMandatoryKeys(t *testing.T) {
	r, err := Bootstrap("/cfg", "/out", true)
	require.NoError(t, err)

	v, ok := r.Get(ConfigDir)
	require.True(t, ok)
	assert.Equal(t, "/cfg", v)

	v, ok = r.Get(OutputDir)
	require.True(t, ok)
	assert.Equal(t, "/out", v)

	assert.True(t, r.ExecuteMode())
}

func TestExecuteModeDefaultsFalse(t *testing.T) {
	r, err := Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)
	assert.False(t, r.ExecuteMode())
}

func TestSetRefDatetimeAlsoSetsDateAndTimezone(t *testing.T) {
	r, err := Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, loc)

	r.SetRefDatetime(ts)

	date, ok := r.Get(RefDate)
	require.True(t, ok)
	assert.Equal(t, "2026-03-15", date)

	tz, ok := r.Get(RefTimezone)
	require.True(t, ok)
	assert.Equal(t, "UTC", tz)

	dt, ok := r.Get(RefDatetime)
	require.True(t, ok)
	assert.NotEmpty(t, dt)
}

// TestTeardownClearsTransientKeysOnly covers Testable Property 10: after
// drop, none of the transient keys set during the run are observable to a
// subsequent registry, while bootstrap keys survive.
func TestTeardownClearsTransientKeysOnly(t *testing.T) {
	r, err := Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)
	r.Set("LAST_ROW_COUNT", "42")

	r.Teardown()

	_, ok := r.Get("LAST_ROW_COUNT")
	assert.False(t, ok)

	_, ok = r.Get(OutputDir)
	assert.True(t, ok, "bootstrap keys must survive teardown")
}

func TestSetOverwritesUserKey(t *testing.T) {
	r, err := Bootstrap("/cfg", "/out", false)
	require.NoError(t, err)
	r.Set("k", "1")
	r.Set("k", "2")

	v, ok := r.Get("k")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}
