// SPDX-License-Identifier: GPL-3.0-or-later

package registry

import "github.com/capport-dev/capport/frame"

// Constraint is one of the column-level constraints a Model field may
// declare (§3 Model entity).
type Constraint string

const (
	Primary Constraint = "primary"
	Unique  Constraint = "unique"
	NotNull Constraint = "notnull"
	Foreign Constraint = "foreign"
)

// ModelField is one entry of a Model's ordered field map.
type ModelField struct {
	Name        string
	DType       frame.DType
	Constraints []Constraint
}

// Has reports whether the field declares the given constraint.
func (f ModelField) Has(c Constraint) bool {
	for _, existing := range f.Constraints {
		if existing == c {
			return true
		}
	}
	return false
}

// Model is the schema-plus-constraints contract a sink validates against
// in strict mode (§3 Model entity, §4.5, §7 MODEL_VALIDATION).
type Model struct {
	Name   string
	Fields []ModelField
}

// Field looks up a model field by name.
func (m Model) Field(name string) (ModelField, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ModelField{}, false
}

// PrimaryFields returns the names of every field marked `primary`, in
// declaration order; used by upsert merge policy to build the conflict key.
func (m Model) PrimaryFields() []string {
	var out []string
	for _, f := range m.Fields {
		if f.Has(Primary) {
			out = append(out, f.Name)
		}
	}
	return out
}
