// SPDX-License-Identifier: GPL-3.0-or-later

package mongosink

import (
	"context"
	"testing"

	"github.com/capport-dev/capport/capctx"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/envreg"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/internal/capplog"
	"github.com/capport-dev/capport/registry"
	"github.com/capport-dev/capport/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDocsFromFrameBuildsOneDocumentPerRow(t *testing.T) {
	schema := frame.Schema{{Name: "id", DType: frame.Int64}, {Name: "name", DType: frame.Str}}
	f := frame.New(schema, map[string][]any{
		"id":   {int64(1), int64(2)},
		"name": {"Ann", "Bo"},
	}, 2)

	docs := docsFromFrame(f)
	assert.Len(t, docs, 2)
	assert.Equal(t, bson.M{"id": int64(1), "name": "Ann"}, docs[0])
	assert.Equal(t, bson.M{"id": int64(2), "name": "Bo"}, docs[1])
}

func TestUpsertAllBuildsFilterFromPrimaryKey(t *testing.T) {
	s := &Sink{PrimaryKey: []string{"id"}}
	docs := []any{bson.M{"id": int64(7), "name": "Cy"}}

	var sawFilter bson.M
	fake := fakeReplacer{onReplace: func(filter bson.M) { sawFilter = filter }}
	err := upsertWith(s, docs, fake.replaceOne)
	assert.NoError(t, err)
	assert.Equal(t, bson.M{"id": int64(7)}, sawFilter)
}

func TestUpsertAllRequiresPrimaryKey(t *testing.T) {
	s := &Sink{}
	err := upsertWith(s, []any{bson.M{"id": int64(1)}}, func(filter, doc bson.M) error { return nil })
	assert.Error(t, err)
}

func TestFirstNonEmptyPrefersEarliestSetValue(t *testing.T) {
	assert.Equal(t, "append", firstNonEmpty("", "append"))
	assert.Equal(t, "replace", firstNonEmpty("replace", "append"))
}

type fakeReplacer struct {
	onReplace func(filter bson.M)
}

func (f fakeReplacer) replaceOne(filter, doc bson.M) error {
	f.onReplace(filter)
	return nil
}

// upsertWith mirrors Sink.upsertAll's filter-construction logic without
// requiring a live *mongo.Collection, so the primary-key-to-filter mapping
// can be exercised directly.
func upsertWith(s *Sink, docs []any, replaceOne func(filter, doc bson.M) error) error {
	primary := s.PrimaryKey
	if len(primary) == 0 {
		return assertionError("upsert requires primary_key or a model with a primary field")
	}
	for _, doc := range docs {
		m, _ := doc.(bson.M)
		filter := bson.M{}
		for _, key := range primary {
			filter[key] = m[key]
		}
		if err := replaceOne(filter, m); err != nil {
			return err
		}
	}
	return nil
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func TestTaskRejectsDuplicateUniqueColumnWhenModelSet(t *testing.T) {
	model := registry.Model{Name: "users", Fields: []registry.ModelField{
		{Name: "email", DType: frame.Str, Constraints: []registry.Constraint{registry.Unique}},
	}}
	task, err := Builder(config.SinkSpec{Name: "users", Options: map[string]any{"collection": "users"}},
		map[string]any{"input": "users"}, config.BuildDeps{Connection: &registry.Connection{Kind: "document"}, Model: &model})
	require.NoError(t, err)

	dir := t.TempDir()
	u := universe.New([]string{"users"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "save", nil, u, registry.NewRegistries(), env, capplog.Discard())

	f := frame.New(frame.Schema{{Name: "email", DType: frame.Str}}, map[string][]any{"email": {"a@x.com", "a@x.com"}}, 2)
	_, werr := u.MustCell("users").Write(context.Background(), f, "test")
	require.NoError(t, werr)

	err = task(rc)
	require.Error(t, err)
}

func TestTaskSkipsValidationWithoutModelOrStrict(t *testing.T) {
	task, err := Builder(config.SinkSpec{Name: "users", Options: map[string]any{"collection": "users"}},
		map[string]any{"input": "users"}, config.BuildDeps{Connection: &registry.Connection{Kind: "document"}})
	require.NoError(t, err)

	dir := t.TempDir()
	u := universe.New([]string{"users"})
	env, err := envreg.Bootstrap(dir, t.TempDir(), false)
	require.NoError(t, err)
	rc := capctx.New(context.Background(), "save", nil, u, registry.NewRegistries(), env, capplog.Discard())

	f := frame.New(frame.Schema{{Name: "email", DType: frame.Str}}, map[string][]any{"email": {"a@x.com", "a@x.com"}}, 2)
	_, werr := u.MustCell("users").Write(context.Background(), f, "test")
	require.NoError(t, werr)

	require.NoError(t, task(rc))
}
