// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"fmt"
	"strconv"
	"time"
)

// Project selects named columns in the given order (§4.1).
func Project(f Frame, cols []string) (Frame, error) {
	for _, c := range cols {
		if !f.schema.Has(c) {
			return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("project: column %q not found", c)}
		}
	}
	return f.selectColumns(cols), nil
}

// Expr evaluates one column's worth of values against a Frame, returning
// the dtype and per-row data; used by WithColumns.
type Expr func(f Frame) (DType, []any, error)

// WithColumns appends or overwrites named columns with evaluated
// expressions (§4.1). allowTypeChange controls whether overwriting an
// existing column with a different dtype is permitted; when false it
// fails SCHEMA_TYPE.
func WithColumns(f Frame, exprs map[string]Expr, order []string, allowTypeChange bool) (Frame, error) {
	out := f
	for _, name := range order {
		expr, ok := exprs[name]
		if !ok {
			continue
		}
		dtype, data, err := expr(out)
		if err != nil {
			return Frame{}, err
		}
		if len(data) != out.rows {
			return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("with_columns: %q produced %d rows, want %d", name, len(data), out.rows)}
		}
		if existing, ok := out.schema.Field(name); ok && !allowTypeChange && existing.DType != dtype {
			return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("with_columns: %q changes dtype %s -> %s", name, existing.DType, dtype)}
		}
		out = out.withColumn(name, dtype, data)
	}
	return out, nil
}

// Drop removes named columns (§4.1). spec maps a column name to a bool:
// false is a no-op for that column (kept for symmetry with the YAML DSL,
// where `drop: {b: false}` is how an operator disables a drop without
// deleting the line). ignoreMissing makes an absent column a no-op
// instead of a SCHEMA_MISSING error.
func Drop(f Frame, spec map[string]bool, ignoreMissing bool) (Frame, error) {
	keep := make([]string, 0, len(f.schema))
	toDrop := make(map[string]bool, len(spec))
	for name, drop := range spec {
		if drop {
			toDrop[name] = true
		}
	}
	for name := range toDrop {
		if !f.schema.Has(name) && !ignoreMissing {
			return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("drop: column %q not found", name)}
		}
	}
	for _, field := range f.schema {
		if toDrop[field.Name] {
			continue
		}
		keep = append(keep, field.Name)
	}
	return f.selectColumns(keep), nil
}

// Rename applies a bijective old→new column mapping in a single call
// (§4.1). Duplicate target names fail SCHEMA_DUP.
func Rename(f Frame, mapping map[string]string) (Frame, error) {
	newNames := make(map[string]bool, len(f.schema))
	newSchema := make(Schema, 0, len(f.schema))
	newCols := make(map[string][]any, len(f.cols))

	for _, field := range f.schema {
		target := field.Name
		if renamed, ok := mapping[field.Name]; ok {
			target = renamed
		}
		if newNames[target] {
			return Frame{}, &AlgebraError{Kind: SchemaDup, Detail: fmt.Sprintf("rename: duplicate target column %q", target)}
		}
		newNames[target] = true
		newField := field
		newField.Name = target
		newSchema = append(newSchema, newField)
		newCols[target] = f.cols[field.Name]
	}
	return Frame{schema: newSchema, cols: newCols, rows: f.rows}, nil
}

// JoinHow is the join strategy (§4.1).
type JoinHow string

const (
	Inner JoinHow = "inner"
	Left  JoinHow = "left"
	Right JoinHow = "right"
	Full  JoinHow = "full"
	Cross JoinHow = "cross"
)

// JoinOptions configures Join.
type JoinOptions struct {
	How          JoinHow
	LeftOn       []string
	RightOn      []string
	RightSelect  []string          // columns to keep from right, in order
	RightRename  map[string]string // applied to RightSelect before joining
}

// Join performs an equi-join of equal-arity key vectors (§4.1). how=cross
// requires empty LeftOn/RightOn. Null equals null is false, except for
// the padding introduced on the outer side of left/right/full joins.
func Join(left, right Frame, opts JoinOptions) (Frame, error) {
	if opts.How == Cross {
		if len(opts.LeftOn) != 0 || len(opts.RightOn) != 0 {
			return Frame{}, &AlgebraError{Kind: SchemaType, Detail: "join: how=cross requires empty left_on/right_on"}
		}
	} else if len(opts.LeftOn) != len(opts.RightOn) || len(opts.LeftOn) == 0 {
		return Frame{}, &AlgebraError{Kind: SchemaType, Detail: "join: left_on/right_on must be non-empty and of equal arity"}
	}
	for _, c := range opts.LeftOn {
		if !left.schema.Has(c) {
			return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("join: left column %q not found", c)}
		}
	}
	for _, c := range opts.RightOn {
		if !right.schema.Has(c) {
			return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("join: right column %q not found", c)}
		}
	}

	rightProjected := right
	if len(opts.RightSelect) > 0 {
		var err error
		rightProjected, err = Project(right, opts.RightSelect)
		if err != nil {
			return Frame{}, err
		}
	}
	if len(opts.RightRename) > 0 {
		var err error
		rightProjected, err = Rename(rightProjected, opts.RightRename)
		if err != nil {
			return Frame{}, err
		}
	}
	// Key values are read from the unprojected right frame, so right_select
	// need not list the RightOn columns.
	rightKeyCols := make(map[string][]any, len(opts.RightOn))
	for _, c := range opts.RightOn {
		rightKeyCols[c] = right.MustColumn(c)
	}
	// A right key paired with a left key of the same name is not repeated:
	// the output carries that key once, under the left column.
	sharedKey := map[string]bool{}
	for i, c := range opts.RightOn {
		if opts.LeftOn[i] == c {
			sharedKey[c] = true
		}
	}

	leftFields := left.schema
	rightFields := make(Schema, 0, len(rightProjected.schema))
	for _, f := range rightProjected.schema {
		if !sharedKey[f.Name] {
			rightFields = append(rightFields, f)
		}
	}
	for _, name := range leftFields {
		for _, r := range rightFields {
			if r.Name == name.Name {
				return Frame{}, &AlgebraError{Kind: SchemaDup, Detail: fmt.Sprintf("join: column %q present on both sides after right_select", name.Name)}
			}
		}
	}

	outSchema := append(append(Schema{}, leftFields...), rightFields...)
	outCols := make(map[string][]any, len(outSchema))
	for _, f := range outSchema {
		outCols[f.Name] = []any{}
	}

	appendRow := func(leftIdx, rightIdx int) {
		for _, f := range leftFields {
			var v any
			if leftIdx >= 0 {
				v = left.cols[f.Name][leftIdx]
			} else if sharedKey[f.Name] {
				v = rightKeyCols[f.Name][rightIdx]
			}
			outCols[f.Name] = append(outCols[f.Name], v)
		}
		for _, f := range rightFields {
			var v any
			if rightIdx >= 0 {
				v = rightProjected.cols[f.Name][rightIdx]
			}
			outCols[f.Name] = append(outCols[f.Name], v)
		}
	}

	if opts.How == Cross {
		for li := 0; li < left.rows; li++ {
			for ri := 0; ri < right.rows; ri++ {
				appendRow(li, ri)
			}
		}
		return Frame{schema: outSchema, cols: outCols, rows: left.rows * right.rows}, nil
	}

	rightIndex := map[string][]int{}
	for ri := 0; ri < right.rows; ri++ {
		k, ok := joinKey(rightKeyCols, opts.RightOn, ri)
		if !ok {
			continue // null key never matches (null equals null is false)
		}
		rightIndex[k] = append(rightIndex[k], ri)
	}

	leftKeyCols := make(map[string][]any, len(opts.LeftOn))
	for _, c := range opts.LeftOn {
		leftKeyCols[c] = left.MustColumn(c)
	}

	matchedRight := make([]bool, right.rows)
	rows := 0
	for li := 0; li < left.rows; li++ {
		k, ok := joinKey(leftKeyCols, opts.LeftOn, li)
		var matches []int
		if ok {
			matches = rightIndex[k]
		}
		if len(matches) == 0 {
			if opts.How == Left || opts.How == Full {
				appendRow(li, -1)
				rows++
			}
			continue
		}
		for _, ri := range matches {
			matchedRight[ri] = true
			appendRow(li, ri)
			rows++
		}
	}
	if opts.How == Right || opts.How == Full {
		for ri := 0; ri < right.rows; ri++ {
			if !matchedRight[ri] {
				appendRow(-1, ri)
				rows++
			}
		}
	}

	return Frame{schema: outSchema, cols: outCols, rows: rows}, nil
}

func joinKey(cols map[string][]any, names []string, idx int) (string, bool) {
	parts := make([]string, len(names))
	for i, name := range names {
		v := cols[name][idx]
		if v == nil {
			return "", false
		}
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return fmt.Sprint(parts), true
}

// UnnestListOfStruct explodes a list<struct> column into one row per list
// element, merging struct fields as new columns, preserving outer row
// multiplicity (§4.1).
func UnnestListOfStruct(f Frame, col string) (Frame, error) {
	field, ok := f.schema.Field(col)
	if !ok {
		return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("unnest_list_of_struct: column %q not found", col)}
	}
	if field.DType != List || field.Elem == nil || field.Elem.DType != Struct {
		return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("unnest_list_of_struct: %q is not list<struct>", col)}
	}

	memberNames := make([]string, len(field.Elem.Fields))
	for i, mf := range field.Elem.Fields {
		memberNames[i] = mf.Name
	}

	outerNames := make([]string, 0, len(f.schema)-1)
	for _, of := range f.schema {
		if of.Name != col {
			outerNames = append(outerNames, of.Name)
		}
	}

	outSchema := make(Schema, 0, len(outerNames)+len(memberNames))
	for _, name := range outerNames {
		of, _ := f.schema.Field(name)
		outSchema = append(outSchema, of)
	}
	outSchema = append(outSchema, field.Elem.Fields...)

	outCols := make(map[string][]any, len(outSchema))
	for _, of := range outSchema {
		outCols[of.Name] = []any{}
	}

	listCol := f.MustColumn(col)
	rows := 0
	for i := 0; i < f.rows; i++ {
		elems, _ := listCol[i].([]any)
		if len(elems) == 0 {
			continue
		}
		for _, elem := range elems {
			structVal, _ := elem.(map[string]any)
			for _, name := range outerNames {
				outCols[name] = append(outCols[name], f.cols[name][i])
			}
			for _, mf := range field.Elem.Fields {
				outCols[mf.Name] = append(outCols[mf.Name], structVal[mf.Name])
			}
			rows++
		}
	}
	return Frame{schema: outSchema, cols: outCols, rows: rows}, nil
}

// UnnestStruct promotes struct fields to top-level columns and removes
// the source column (§4.1).
func UnnestStruct(f Frame, col string) (Frame, error) {
	field, ok := f.schema.Field(col)
	if !ok {
		return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("unnest_struct: column %q not found", col)}
	}
	if field.DType != Struct {
		return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("unnest_struct: %q is not struct", col)}
	}

	out := f
	structCol := f.MustColumn(col)
	for _, mf := range field.Fields {
		data := make([]any, f.rows)
		for i := 0; i < f.rows; i++ {
			m, _ := structCol[i].(map[string]any)
			data[i] = m[mf.Name]
		}
		out = out.withColumn(mf.Name, mf.DType, data)
	}
	names := make([]string, 0, len(out.schema))
	for _, of := range out.schema {
		if of.Name != col {
			names = append(names, of.Name)
		}
	}
	return out.selectColumns(names), nil
}

// Predicate evaluates whether row i of f satisfies the filter.
type Predicate func(f Frame, row int) (bool, error)

// Filter keeps rows satisfying pred (§4.1).
func Filter(f Frame, pred Predicate) (Frame, error) {
	outCols := make(map[string][]any, len(f.schema))
	for _, field := range f.schema {
		outCols[field.Name] = []any{}
	}
	rows := 0
	for i := 0; i < f.rows; i++ {
		ok, err := pred(f, i)
		if err != nil {
			return Frame{}, err
		}
		if !ok {
			continue
		}
		for _, field := range f.schema {
			outCols[field.Name] = append(outCols[field.Name], f.cols[field.Name][i])
		}
		rows++
	}
	return Frame{schema: f.schema.Clone(), cols: outCols, rows: rows}, nil
}

// TimeParse parses a string column per a strftime-like layout into a
// time/date/datetime column (§4.1). layout uses Go's reference-time
// syntax; drivers translating from strftime-style formats do so before
// calling TimeParse.
func TimeParse(f Frame, col, layout string, into DType) (Frame, error) {
	if into != Date && into != Time && into != Datetime {
		return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("time_parse: invalid target dtype %s", into)}
	}
	src, ok := f.schema.Field(col)
	if !ok {
		return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("time_parse: column %q not found", col)}
	}
	if src.DType != Str {
		return Frame{}, &AlgebraError{Kind: SchemaType, Detail: fmt.Sprintf("time_parse: column %q is not str", col)}
	}
	srcCol := f.MustColumn(col)
	data := make([]any, f.rows)
	for i, v := range srcCol {
		s, _ := v.(string)
		t, err := time.Parse(layout, s)
		if err != nil {
			return Frame{}, &AlgebraError{Kind: Coercion, Detail: fmt.Sprintf("time_parse: row %d: %v", i, err)}
		}
		data[i] = t
	}
	return f.withColumn(col, into, data), nil
}

// UniformIDType coerces a set of identifier columns to a common integer
// dtype (§4.1); conversion failure fails COERCION.
func UniformIDType(f Frame, cols []string, into DType) (Frame, error) {
	out := f
	for _, name := range cols {
		field, ok := f.schema.Field(name)
		if !ok {
			return Frame{}, &AlgebraError{Kind: SchemaMissing, Detail: fmt.Sprintf("uniform_id_type: column %q not found", name)}
		}
		if field.DType == into {
			continue
		}
		src := f.MustColumn(name)
		data := make([]any, f.rows)
		for i, v := range src {
			n, err := coerceToUint64(v)
			if err != nil {
				return Frame{}, &AlgebraError{Kind: Coercion, Detail: fmt.Sprintf("uniform_id_type: column %q row %d: %v", name, i, err)}
			}
			data[i] = n
		}
		out = out.withColumn(name, into, data)
	}
	return out, nil
}

func coerceToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d cannot convert to uint64", n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d cannot convert to uint64", n)
		}
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %v cannot convert to uint64", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// AlgebraErrorKind classifies a Frame algebra failure onto the §7 error
// taxonomy without importing package capperr (which would create an
// import cycle, since drivers importing both frame and capperr need
// frame to stay a leaf package).
type AlgebraErrorKind string

const (
	SchemaMissing AlgebraErrorKind = "SCHEMA_MISSING"
	SchemaType    AlgebraErrorKind = "SCHEMA_TYPE"
	SchemaDup     AlgebraErrorKind = "SCHEMA_DUP"
	Coercion      AlgebraErrorKind = "COERCION"
)

// AlgebraError is the error type every function in this file returns.
// Callers (the transform compiler) translate Kind into a *capperr.Error
// tagged with the failing stage label.
type AlgebraError struct {
	Kind   AlgebraErrorKind
	Detail string
}

func (e *AlgebraError) Error() string { return string(e.Kind) + ": " + e.Detail }
