// SPDX-License-Identifier: GPL-3.0-or-later

// Package clickhousesink implements the clickhouse sink driver (§4.5):
// batched inserts via clickhouse-go/v2's native batch API, with
// create_table_if_not_exists mapping order_by onto MergeTree's ORDER BY.
package clickhousesink

import (
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/modelvalidate"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Sink] to [config.SinkBuilder]. Only the append merge
// policy is meaningful for ClickHouse's MergeTree family at this level of
// the driver — replace/upsert require engine-specific mutation support
// (ReplacingMergeTree/CollapsingMergeTree) that is out of scope here; see
// DESIGN.md.
func Builder(spec config.SinkSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	table, _ := spec.Options["table"].(string)
	if table == "" {
		return nil, fmt.Errorf("clickhousesink: sink %q: missing required option %q", spec.Name, "table")
	}
	if spec.MergeType != "" && spec.MergeType != "append" {
		return nil, fmt.Errorf("clickhousesink: sink %q: unrecognized merge type %q (only append is supported)", spec.Name, spec.MergeType)
	}
	input, _ := args["input"].(string)
	if input == "" {
		return nil, fmt.Errorf("clickhousesink: sink %q: stage has no input cell", spec.Name)
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("clickhousesink: sink %q: no connection resolved", spec.Name)
	}
	sink := &Sink{
		Name:                   spec.Name,
		Table:                  table,
		Connection:             deps.Connection,
		Model:                  deps.Model,
		Strict:                 spec.Strict,
		CreateTableIfNotExists: spec.CreateTableIfNotExists,
		OrderBy:                spec.OrderBy,
		Input:                  input,
	}
	return sink.Task(), nil
}

// Sink writes the Frame on Input to Table, appending via a native batch
// insert.
type Sink struct {
	Name                   string
	Table                  string
	Connection             *registry.Connection
	Model                  *registry.Model
	Strict                 bool
	CreateTableIfNotExists bool
	OrderBy                []string
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
				return capperr.New(capperr.ModelValidation, rc.StageLabel(), fmt.Errorf("clickhousesink: %s: %w", s.Name, err))
			}
		}

		if !rc.Env().ExecuteMode() {
			rc.Logger().Info("sink dry-run", "driver", "clickhouse", "table", s.Table, "rows", f.NumRows())
			return nil
		}

		if err := s.write(rc, f); err != nil {
			return capperr.New(capperr.SinkFail, rc.StageLabel(), fmt.Errorf("clickhousesink: %s: %w", s.Name, err))
		}
		rc.Logger().Info("sink wrote", "driver", "clickhouse", "table", s.Table, "rows", f.NumRows())
		return nil
	}
}

func (s *Sink) write(rc registry.Context, f frame.Frame) error {
	conn, err := open(s.Connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if s.CreateTableIfNotExists {
		if err := conn.Exec(rc, createTableDDL(s.Table, f.Schema(), s.OrderBy)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	schema := f.Schema()
	batch, err := conn.PrepareBatch(rc, fmt.Sprintf("INSERT INTO %s", s.Table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for row := range f.NumRows() {
		values := make([]any, len(schema))
		for i, field := range schema {
			values[i] = f.MustColumn(field.Name)[row]
		}
		if err := batch.Append(values...); err != nil {
			return fmt.Errorf("append row %d: %w", row, err)
		}
	}
	return batch.Send()
}

func open(conn *registry.Connection) (clickhouse.Conn, error) {
	addr := conn.Template["addr"]
	if addr == "" {
		return nil, fmt.Errorf("clickhousesink: connection %q: missing addr option", conn.Name)
	}
	return clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: conn.Template["database"],
			Username: conn.Template["username"],
			Password: conn.Template["password"],
		},
	})
}

func createTableDDL(table string, schema frame.Schema, orderBy []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", table)
	for i, field := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", field.Name, chType(field.DType))
	}
	b.WriteString(") ENGINE = MergeTree ORDER BY ")
	if len(orderBy) > 0 {
		fmt.Fprintf(&b, "(%s)", strings.Join(orderBy, ", "))
	} else {
		b.WriteString("tuple()")
	}
	return b.String()
}

func chType(dtype frame.DType) string {
	switch dtype {
	case frame.Bool:
		return "Bool"
	case frame.Int8:
		return "Int8"
	case frame.Int16:
		return "Int16"
	case frame.Int32:
		return "Int32"
	case frame.Int64:
		return "Int64"
	case frame.Uint8:
		return "UInt8"
	case frame.Uint16:
		return "UInt16"
	case frame.Uint32:
		return "UInt32"
	case frame.Uint64:
		return "UInt64"
	case frame.Float32:
		return "Float32"
	case frame.Float64:
		return "Float64"
	case frame.Date:
		return "Date"
	case frame.Datetime, frame.Time:
		return "DateTime"
	default:
		return "String"
	}
}
