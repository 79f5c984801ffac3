// SPDX-License-Identifier: GPL-3.0-or-later

// Package sqlsink implements the sql sink driver (§4.5) over
// database/sql: replace/append/upsert merge policies, optional
// create-table-if-not-exists, dry-run skip.
package sqlsink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/driver/sqlshared"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/modelvalidate"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Sink] to [config.SinkBuilder].
func Builder(spec config.SinkSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	table, _ := spec.Options["table"].(string)
	if table == "" {
		return nil, fmt.Errorf("sqlsink: sink %q: missing required option %q", spec.Name, "table")
	}
	input, _ := args["input"].(string)
	if input == "" {
		return nil, fmt.Errorf("sqlsink: sink %q: stage has no input cell", spec.Name)
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("sqlsink: sink %q: no connection resolved", spec.Name)
	}
	sink := &Sink{
		Name:                   spec.Name,
		Table:                  table,
		Connection:             deps.Connection,
		Model:                  deps.Model,
		MergeType:              firstNonEmpty(spec.MergeType, "append"),
		Strict:                 spec.Strict,
		CreateTableIfNotExists: spec.CreateTableIfNotExists,
		OrderBy:                spec.OrderBy,
		PrimaryKey:             spec.PrimaryKey,
		Input:                  input,
	}
	return sink.Task(), nil
}

// Sink writes the Frame on Input to Table over Connection, once per
// invocation.
type Sink struct {
	Name                   string
	Table                  string
	Connection             *registry.Connection
	Model                  *registry.Model
	MergeType              string
	Strict                 bool
	CreateTableIfNotExists bool
	OrderBy                []string
	PrimaryKey             []string
	Input                  string
}

// Task adapts Sink to the [registry.Task] dispatch signature.
func (s *Sink) Task() registry.Task {
	return func(rc registry.Context) error {
		cell := rc.Universe().MustCell(s.Input)
		held, _, err := cell.Read(rc)
		if err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		f, _ := held.(frame.Frame)

		if s.Strict || s.Model != nil {
			if err := modelvalidate.Against(f, s.Model); err != nil {
				return capperr.New(capperr.ModelValidation, rc.StageLabel(), fmt.Errorf("sqlsink: %s: %w", s.Name, err))
			}
		}

		if !rc.Env().ExecuteMode() {
			rc.Logger().Info("sink dry-run", "driver", "sql", "table", s.Table, "merge", s.MergeType, "rows", f.NumRows())
			return nil
		}

		if err := s.write(rc, f); err != nil {
			return capperr.New(capperr.SinkFail, rc.StageLabel(), fmt.Errorf("sqlsink: %s: %w", s.Name, err))
		}
		rc.Logger().Info("sink wrote", "driver", "sql", "table", s.Table, "merge", s.MergeType, "rows", f.NumRows())
		return nil
	}
}

func (s *Sink) write(rc registry.Context, f frame.Frame) error {
	db, err := sqlshared.Open(s.Connection)
	if err != nil {
		return err
	}
	defer db.Close()

	if s.CreateTableIfNotExists {
		if _, err := db.ExecContext(rc, createTableDDL(s.Connection.Kind, s.Table, f.Schema(), s.OrderBy, s.PrimaryKey)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	tx, err := db.BeginTx(rc, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch s.MergeType {
	case "replace":
		if _, err := tx.ExecContext(rc, fmt.Sprintf("DELETE FROM %s", s.Table)); err != nil {
			return fmt.Errorf("truncate before replace: %w", err)
		}
		if err := s.insertAll(rc, tx, f); err != nil {
			return err
		}
	case "append":
		if err := s.insertAll(rc, tx, f); err != nil {
			return err
		}
	case "upsert":
		if err := s.upsertAll(rc, tx, f); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unrecognized merge type %q", s.MergeType)
	}
	return tx.Commit()
}

func (s *Sink) insertAll(rc registry.Context, tx *sql.Tx, f frame.Frame) error {
	schema := f.Schema()
	colNames := make([]string, len(schema))
	for i, field := range schema {
		colNames[i] = field.Name
	}
	stmt := insertStatement(s.Connection.Kind, s.Table, colNames)
	for row := range f.NumRows() {
		args := make([]any, len(colNames))
		for i, name := range colNames {
			args[i] = serializeCell(f.MustColumn(name)[row])
		}
		if _, err := tx.ExecContext(rc, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) upsertAll(rc registry.Context, tx *sql.Tx, f frame.Frame) error {
	primary := s.PrimaryKey
	if len(primary) == 0 && s.Model != nil {
		primary = s.Model.PrimaryFields()
	}
	if len(primary) == 0 {
		return fmt.Errorf("upsert requires primary_key or a model with a primary field")
	}
	schema := f.Schema()
	colNames := make([]string, len(schema))
	for i, field := range schema {
		colNames[i] = field.Name
	}
	stmt := upsertStatement(s.Connection.Kind, s.Table, colNames, primary)
	for row := range f.NumRows() {
		args := make([]any, len(colNames))
		for i, name := range colNames {
			args[i] = serializeCell(f.MustColumn(name)[row])
		}
		if _, err := tx.ExecContext(rc, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

func serializeCell(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func createTableDDL(kind, table string, schema frame.Schema, orderBy, primaryKey []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", table)
	for i, field := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", sqlshared.QuoteIdent(kind, field.Name), sqlshared.ColumnType(kind, field.DType))
	}
	if len(primaryKey) > 0 {
		fmt.Fprintf(&b, ", PRIMARY KEY (%s)", strings.Join(quoteAll(kind, primaryKey), ", "))
	}
	b.WriteString(")")
	_ = orderBy // ignored: Postgres/MySQL have no ORDER BY clause on CREATE TABLE
	return b.String()
}

func quoteAll(kind string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sqlshared.QuoteIdent(kind, n)
	}
	return out
}

func insertStatement(kind, table string, colNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoteAll(kind, colNames), ", "), placeholders(kind, len(colNames)))
	return b.String()
}

func upsertStatement(kind, table string, colNames, primary []string) string {
	placeholderList := placeholders(kind, len(colNames))
	quoted := quoteAll(kind, colNames)
	if kind == "mysql" {
		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE ", table, strings.Join(quoted, ", "), placeholderList)
		for i, name := range colNames {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = VALUES(%s)", sqlshared.QuoteIdent(kind, name), sqlshared.QuoteIdent(kind, name))
		}
		return b.String()
	}

	var updateSet []string
	for _, name := range colNames {
		if contains(primary, name) {
			continue
		}
		updateSet = append(updateSet, fmt.Sprintf("%s = EXCLUDED.%s", sqlshared.QuoteIdent(kind, name), sqlshared.QuoteIdent(kind, name)))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(quoted, ", "), placeholderList, strings.Join(quoteAll(kind, primary), ", "), strings.Join(updateSet, ", "))
}

func placeholders(kind string, n int) string {
	parts := make([]string, n)
	for i := range n {
		if kind == "mysql" {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return strings.Join(parts, ", ")
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
