// SPDX-License-Identifier: GPL-3.0-or-later

// Package sqlshared holds the database/sql connection-opening and
// identifier-quoting logic shared by driver/sqlsrc and driver/sqlsink —
// both drivers dispatch on a Connection's Kind ("postgres" or "mysql")
// the same way, and neither should duplicate that switch.
package sqlshared

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"

	"github.com/capport-dev/capport/registry"
)

// Open resolves conn.Kind to a registered database/sql driver name and
// opens a pool using conn.Template["dsn"] (§9: Connection.Template is
// driver-interpreted; the core never parses it).
func Open(conn *registry.Connection) (*sql.DB, error) {
	if conn == nil {
		return nil, fmt.Errorf("sqlshared: no connection resolved")
	}
	dsn := conn.Template["dsn"]
	if dsn == "" {
		return nil, fmt.Errorf("sqlshared: connection %q: missing dsn option", conn.Name)
	}
	driverName, err := driverNameFor(conn.Kind)
	if err != nil {
		return nil, err
	}
	return sql.Open(driverName, dsn)
}

func driverNameFor(kind string) (string, error) {
	switch kind {
	case "postgres", "postgresql":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("sqlshared: unsupported connection kind %q", kind)
	}
}

// QuoteIdent quotes an identifier for inclusion in a generated statement.
// Postgres and MySQL disagree on quote character, so callers pass the
// Connection's Kind through.
func QuoteIdent(kind, name string) string {
	if kind == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
