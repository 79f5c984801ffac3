// SPDX-License-Identifier: GPL-3.0-or-later

// Package frame implements Capport's opaque, immutable, columnar value and
// the small relational algebra the transform compiler emits against it
// (§4.1). The engine never inspects column bytes directly; it only calls
// the operations in this package.
//
// A Frame is never mutated in place: every operation below returns a new
// Frame, so a [universe.Cell] can hand out read snapshots that remain
// valid for as long as the caller holds them, even while a writer installs
// a newer generation concurrently.
package frame

import (
	"fmt"
)

// DType is one of the schema field types from §3.
type DType string

const (
	Bool     DType = "bool"
	Int8     DType = "int8"
	Int16    DType = "int16"
	Int32    DType = "int32"
	Int64    DType = "int64"
	Uint8    DType = "uint8"
	Uint16   DType = "uint16"
	Uint32   DType = "uint32"
	Uint64   DType = "uint64"
	Float32  DType = "float32"
	Float64  DType = "float64"
	Str      DType = "str"
	Date     DType = "date"
	Time     DType = "time"
	Datetime DType = "datetime"
	// List and Struct are structural dtypes; Field.Elem and the Struct
	// field set in Field.Fields carry the element/member detail.
	List   DType = "list"
	Struct DType = "struct"
)

// Field is one schema column: a name plus its dtype. List columns carry
// their element type in Elem; struct columns carry their member fields in
// Fields.
type Field struct {
	Name   string
	DType  DType
	Elem   *Field  // non-nil iff DType == List
	Fields []Field // non-empty iff DType == Struct
}

// Schema is the ordered list of a Frame's fields.
type Schema []Field

// IndexOf returns the position of name in the schema, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the schema contains name.
func (s Schema) Has(name string) bool {
	return s.IndexOf(name) >= 0
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	i := s.IndexOf(name)
	if i < 0 {
		return Field{}, false
	}
	return s[i], true
}

// Clone returns an independent copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Frame is an opaque, immutable, typed columnar value: an ordered schema
// plus one column of data per field, all of the same length (the row
// count). Columns are stored as []any for the core's purposes — the core
// treats cell contents as opaque, never inspecting column bytes; a driver
// materializing a Frame is responsible for populating typed values that
// match the declared dtype.
type Frame struct {
	schema Schema
	cols   map[string][]any
	rows   int
}

// New builds a Frame from a schema and column data. It panics if a
// schema field has no matching column, or if any column's length differs
// from the declared row count — this is a programmer error in a driver or
// in the algebra below, never a condition arising from user input.
func New(schema Schema, cols map[string][]any, rows int) Frame {
	for _, f := range schema {
		col, ok := cols[f.Name]
		if !ok {
			panic(fmt.Sprintf("frame: missing column data for field %q", f.Name))
		}
		if len(col) != rows {
			panic(fmt.Sprintf("frame: column %q has %d rows, want %d", f.Name, len(col), rows))
		}
	}
	return Frame{schema: schema.Clone(), cols: cols, rows: rows}
}

// Empty returns a Frame with no columns and zero rows.
func Empty() Frame {
	return Frame{schema: Schema{}, cols: map[string][]any{}, rows: 0}
}

// Schema returns the Frame's ordered field list.
func (f Frame) Schema() Schema { return f.schema.Clone() }

// NumRows returns the Frame's row count.
func (f Frame) NumRows() int { return f.rows }

// NumCols returns the Frame's column count.
func (f Frame) NumCols() int { return len(f.schema) }

// Column returns the raw data for a named column, and whether it exists.
// The returned slice must be treated as read-only: Frame values are
// immutable and shared across readers.
func (f Frame) Column(name string) ([]any, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// MustColumn is like Column but panics if the column is absent; used
// internally by the algebra after a schema check has already passed.
func (f Frame) MustColumn(name string) []any {
	col, ok := f.cols[name]
	if !ok {
		panic(fmt.Sprintf("frame: column %q not found", name))
	}
	return col
}

// Row materializes row i as a name → value map. Intended for tests and
// drivers doing per-row work (e.g. a sink writing one document per row);
// hot paths should use Column directly.
func (f Frame) Row(i int) map[string]any {
	out := make(map[string]any, len(f.schema))
	for _, field := range f.schema {
		out[field.Name] = f.cols[field.Name][i]
	}
	return out
}

// withColumn returns a new Frame with col added or overwritten in place of
// name, preserving existing column order when overwriting and appending
// when new. It does not mutate the receiver.
func (f Frame) withColumn(name string, dtype DType, data []any) Frame {
	newCols := make(map[string][]any, len(f.cols)+1)
	for k, v := range f.cols {
		newCols[k] = v
	}
	newCols[name] = data

	newSchema := make(Schema, 0, len(f.schema)+1)
	replaced := false
	for _, field := range f.schema {
		if field.Name == name {
			newSchema = append(newSchema, Field{Name: name, DType: dtype})
			replaced = true
			continue
		}
		newSchema = append(newSchema, field)
	}
	if !replaced {
		newSchema = append(newSchema, Field{Name: name, DType: dtype})
	}
	return Frame{schema: newSchema, cols: newCols, rows: f.rows}
}

// selectColumns returns a new Frame retaining only the named columns, in
// the given order. Callers must have already validated that every name
// exists.
func (f Frame) selectColumns(names []string) Frame {
	newSchema := make(Schema, 0, len(names))
	newCols := make(map[string][]any, len(names))
	for _, name := range names {
		field, _ := f.schema.Field(name)
		newSchema = append(newSchema, field)
		newCols[name] = f.cols[name]
	}
	return Frame{schema: newSchema, cols: newCols, rows: f.rows}
}
