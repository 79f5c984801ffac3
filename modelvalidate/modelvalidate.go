// SPDX-License-Identifier: GPL-3.0-or-later

// Package modelvalidate implements the model validation every sink runs
// before a write when it is strict or carries a model (§4.5 "strict: true
// forces schema validation before emit"): column set, dtype compatibility,
// and the null/uniqueness constraints declared on the model's fields.
package modelvalidate

import (
	"fmt"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// Against checks f against model: every model field must be present in f's
// schema with a matching dtype, every primary or notnull field must carry
// no null value, and every unique field must carry no duplicate value. A
// nil model is always valid — a sink only calls this once it has already
// decided strict/model validation applies.
func Against(f frame.Frame, model *registry.Model) error {
	if model == nil {
		return nil
	}
	schema := f.Schema()
	for _, field := range model.Fields {
		col, ok := schema.Field(field.Name)
		if !ok {
			return fmt.Errorf("missing column %q required by model %q", field.Name, model.Name)
		}
		if col.DType != field.DType {
			return fmt.Errorf("column %q has dtype %q, model %q requires %q", field.Name, col.DType, model.Name, field.DType)
		}

		if field.Has(registry.Primary) || field.Has(registry.NotNull) {
			if err := checkNoNulls(f, field.Name); err != nil {
				return err
			}
		}
		if field.Has(registry.Unique) {
			if err := checkNoDuplicates(f, field.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkNoNulls(f frame.Frame, column string) error {
	for row, v := range f.MustColumn(column) {
		if v == nil {
			return fmt.Errorf("column %q has a null value at row %d, model requires it non-null", column, row)
		}
	}
	return nil
}

// checkNoDuplicates keys the seen-set off each value's string form rather
// than the value itself — a unique column holding a List/Struct dtype
// would otherwise panic a map keyed on an uncomparable slice or map.
func checkNoDuplicates(f frame.Frame, column string) error {
	seen := make(map[string]int, f.NumRows())
	for row, v := range f.MustColumn(column) {
		if v == nil {
			continue
		}
		key := fmt.Sprint(v)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("column %q has duplicate value at rows %d and %d, model requires it unique", column, prev, row)
		}
		seen[key] = row
	}
	return nil
}
