// SPDX-License-Identifier: GPL-3.0-or-later

package mongosrc

import (
	"testing"

	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFramesFromDocsUsesModelFieldOrder(t *testing.T) {
	model := registry.Model{Name: "players", Fields: []registry.ModelField{
		{Name: "id", DType: frame.Int64},
		{Name: "name", DType: frame.Str},
	}}
	docs := []bson.M{{"_id": "x", "name": "Ann", "id": int64(1)}}
	f := framesFromDocs(docs, &model)
	assert.Equal(t, []string{"id", "name"}, columnNamesOf(f))
	assert.Equal(t, []any{int64(1)}, f.MustColumn("id"))
}

func TestColumnNamesDropsMongoIDWithoutModel(t *testing.T) {
	docs := []bson.M{{"_id": "x", "name": "Ann"}}
	names := columnNames(docs, nil)
	assert.ElementsMatch(t, []string{"name"}, names)
}

func columnNamesOf(f frame.Frame) []string {
	schema := f.Schema()
	names := make([]string, len(schema))
	for i, field := range schema {
		names[i] = field.Name
	}
	return names
}
