// SPDX-License-Identifier: GPL-3.0-or-later

package sqlshared

import "github.com/capport-dev/capport/frame"

// ColumnType maps a Frame dtype onto the SQL column type used when a sink
// creates its destination table for the first time (§4.5
// create_table_if_not_exists). Struct/List columns are stored as JSON
// text — both Postgres and MySQL accept plain TEXT for that, and the
// sink never needs to query into nested fields itself.
func ColumnType(kind string, dtype frame.DType) string {
	switch dtype {
	case frame.Bool:
		return "BOOLEAN"
	case frame.Int8, frame.Int16, frame.Int32:
		return "INTEGER"
	case frame.Int64:
		return "BIGINT"
	case frame.Uint8, frame.Uint16, frame.Uint32, frame.Uint64:
		if kind == "mysql" {
			return "BIGINT UNSIGNED"
		}
		return "BIGINT"
	case frame.Float32:
		return "REAL"
	case frame.Float64:
		return "DOUBLE PRECISION"
	case frame.Date:
		return "DATE"
	case frame.Time:
		return "TIME"
	case frame.Datetime:
		if kind == "mysql" {
			return "DATETIME"
		}
		return "TIMESTAMP"
	case frame.Struct, frame.List:
		return "TEXT"
	default:
		return "TEXT"
	}
}
