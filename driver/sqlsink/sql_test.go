// SPDX-License-Identifier: GPL-3.0-or-later

package sqlsink

import (
	"testing"

	"github.com/capport-dev/capport/frame"
	"github.com/stretchr/testify/assert"
)

func TestInsertStatementPostgresUsesDollarPlaceholders(t *testing.T) {
	stmt := insertStatement("postgres", "players", []string{"id", "name"})
	assert.Equal(t, `INSERT INTO players ("id", "name") VALUES ($1, $2)`, stmt)
}

func TestInsertStatementMySQLUsesQuestionPlaceholders(t *testing.T) {
	stmt := insertStatement("mysql", "players", []string{"id", "name"})
	assert.Equal(t, "INSERT INTO players (`id`, `name`) VALUES (?, ?)", stmt)
}

func TestUpsertStatementPostgresUsesOnConflict(t *testing.T) {
	stmt := upsertStatement("postgres", "players", []string{"id", "name"}, []string{"id"})
	assert.Equal(t, `INSERT INTO players ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`, stmt)
}

func TestUpsertStatementMySQLUsesOnDuplicateKey(t *testing.T) {
	stmt := upsertStatement("mysql", "players", []string{"id", "name"}, []string{"id"})
	assert.Equal(t, "INSERT INTO players (`id`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `id` = VALUES(`id`), `name` = VALUES(`name`)", stmt)
}

func TestCreateTableDDLIncludesPrimaryKey(t *testing.T) {
	schema := frame.Schema{{Name: "id", DType: frame.Int64}, {Name: "name", DType: frame.Str}}
	ddl := createTableDDL("postgres", "players", schema, nil, []string{"id"})
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS players ("id" BIGINT, "name" TEXT, PRIMARY KEY ("id"))`, ddl)
}

func TestSerializeCellMarshalsNestedValuesToJSON(t *testing.T) {
	out := serializeCell(map[string]any{"a": 1})
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, int64(5), serializeCell(int64(5)))
}
