// SPDX-License-Identifier: GPL-3.0-or-later

// Package sqlsrc implements the database source driver (§4.4): execute a
// query over database/sql, stream the result set into a Frame.
package sqlsrc

import (
	"database/sql"
	"fmt"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/driver/sqlshared"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Source] to [config.SourceBuilder].
func Builder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	query, _ := spec.Options["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("sqlsrc: source %q: missing required option %q", spec.Name, "query")
	}
	output, _ := args["output"].(string)
	if output == "" {
		return nil, fmt.Errorf("sqlsrc: source %q: stage has no output cell", spec.Name)
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("sqlsrc: source %q: no connection resolved", spec.Name)
	}
	src := &Source{Name: spec.Name, Query: query, Connection: deps.Connection, Model: deps.Model, Output: output}
	return src.Task(), nil
}

// Source executes Query over Connection and publishes the result to
// Output, once.
type Source struct {
	Name       string
	Query      string
	Connection *registry.Connection
	Model      *registry.Model
	Output     string
}

// Task adapts Source to the [registry.Task] dispatch signature.
func (s *Source) Task() registry.Task {
	return func(rc registry.Context) error {
		db, err := sqlshared.Open(s.Connection)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("sqlsrc: %s: %w", s.Name, err))
		}
		defer db.Close()

		f, err := s.runQuery(rc, db)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("sqlsrc: %s: %w", s.Name, err))
		}
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "sql", "cell", s.Output, "rows", f.NumRows())
		return nil
	}
}

func (s *Source) runQuery(rc registry.Context, db *sql.DB) (frame.Frame, error) {
	rows, err := db.QueryContext(rc, s.Query)
	if err != nil {
		return frame.Frame{}, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return frame.Frame{}, err
	}
	schema := s.schemaFor(colNames)
	cols := make(map[string][]any, len(colNames))
	for _, name := range colNames {
		cols[name] = nil
	}

	scanTargets := make([]any, len(colNames))
	rowCount := 0
	for rows.Next() {
		values := make([]any, len(colNames))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return frame.Frame{}, err
		}
		for i, name := range colNames {
			cols[name] = append(cols[name], values[i])
		}
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return frame.Frame{}, err
	}
	return frame.New(schema, cols, rowCount), nil
}

func (s *Source) schemaFor(colNames []string) frame.Schema {
	schema := make(frame.Schema, len(colNames))
	for i, name := range colNames {
		dtype := frame.Str
		if s.Model != nil {
			if field, ok := s.Model.Field(name); ok {
				dtype = field.DType
			}
		}
		schema[i] = frame.Field{Name: name, DType: dtype}
	}
	return schema
}
