// SPDX-License-Identifier: GPL-3.0-or-later

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]("widget")
	require.NoError(t, r.Register("a", 1, "file1.yaml"))

	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

// TestDuplicateRegistrationReportsBothSources covers Testable Property 9:
// a name collision is reported deterministically with both source paths.
func TestDuplicateRegistrationReportsBothSources(t *testing.T) {
	r := New[int]("widget")
	require.NoError(t, r.Register("a", 1, "file1.yaml"))

	err := r.Register("a", 2, "file2.yaml")
	require.Error(t, err)

	var dupErr *DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "a", dupErr.Name)
	assert.Equal(t, "file1.yaml", dupErr.Existing)
	assert.Equal(t, "file2.yaml", dupErr.New)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	r := New[int]("widget")
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestMustGetPanicsOnMissing(t *testing.T) {
	r := New[int]("widget")
	assert.Panics(t, func() {
		r.MustGet("missing")
	})
}

func TestNamesSorted(t *testing.T) {
	r := New[int]("widget")
	require.NoError(t, r.Register("zeta", 1, "f"))
	require.NoError(t, r.Register("alpha", 2, "f"))
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestLen(t *testing.T) {
	r := New[int]("widget")
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.Register("a", 1, "f"))
	assert.Equal(t, 1, r.Len())
}

func TestModelPrimaryFields(t *testing.T) {
	m := Model{
		Name: "user",
		Fields: []ModelField{
			{Name: "id", DType: "uint64", Constraints: []Constraint{Primary, NotNull}},
			{Name: "email", DType: "str", Constraints: []Constraint{Unique}},
		},
	}
	assert.Equal(t, []string{"id"}, m.PrimaryFields())

	f, ok := m.Field("email")
	require.True(t, ok)
	assert.True(t, f.Has(Unique))
	assert.False(t, f.Has(Primary))
}

func TestNewRegistriesIsEmpty(t *testing.T) {
	regs := NewRegistries()
	assert.Equal(t, 0, regs.Models.Len())
	assert.Equal(t, 0, regs.Transforms.Len())
	assert.Equal(t, 0, regs.Connections.Len())
	assert.Equal(t, 0, regs.Loggers.Len())
	assert.Equal(t, 0, regs.Tasks.Len())
}
