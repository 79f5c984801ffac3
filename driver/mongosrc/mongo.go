// SPDX-License-Identifier: GPL-3.0-or-later

// Package mongosrc implements the document source driver (§4.4): execute
// a document filter over go.mongodb.org/mongo-driver, decode the matches
// into a Frame of struct-typed rows.
package mongosrc

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Source] to [config.SourceBuilder].
func Builder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	collection, _ := spec.Options["collection"].(string)
	if collection == "" {
		return nil, fmt.Errorf("mongosrc: source %q: missing required option %q", spec.Name, "collection")
	}
	output, _ := args["output"].(string)
	if output == "" {
		return nil, fmt.Errorf("mongosrc: source %q: stage has no output cell", spec.Name)
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("mongosrc: source %q: no connection resolved", spec.Name)
	}
	var filter map[string]any
	if raw, ok := spec.Options["filter"].(map[string]any); ok {
		filter = raw
	}
	src := &Source{
		Name:       spec.Name,
		Collection: collection,
		Filter:     filter,
		Connection: deps.Connection,
		Model:      deps.Model,
		Output:     output,
	}
	return src.Task(), nil
}

// Source runs Filter against Collection and publishes every match to
// Output, once.
type Source struct {
	Name       string
	Collection string
	Filter     map[string]any
	Connection *registry.Connection
	Model      *registry.Model
	Output     string
}

// Task adapts Source to the [registry.Task] dispatch signature.
func (s *Source) Task() registry.Task {
	return func(rc registry.Context) error {
		f, err := s.fetch(rc)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("mongosrc: %s: %w", s.Name, err))
		}
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "mongo", "cell", s.Output, "rows", f.NumRows())
		return nil
	}
}

func (s *Source) fetch(rc registry.Context) (frame.Frame, error) {
	client, err := mongo.Connect(rc, options.Client().ApplyURI(s.Connection.Template["uri"]))
	if err != nil {
		return frame.Frame{}, err
	}
	defer client.Disconnect(rc)

	coll := client.Database(s.Connection.Template["database"]).Collection(s.Collection)
	cur, err := coll.Find(rc, filterToBSON(s.Filter))
	if err != nil {
		return frame.Frame{}, err
	}
	defer cur.Close(rc)

	var docs []bson.M
	if err := cur.All(rc, &docs); err != nil {
		return frame.Frame{}, err
	}
	return framesFromDocs(docs, s.Model), nil
}

func filterToBSON(filter map[string]any) bson.M {
	if filter == nil {
		return bson.M{}
	}
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

// framesFromDocs mirrors jsonsrc's framesFromRecords: without a Model the
// column order only follows the first document's own key order, since a
// decoded bson.M carries no order guarantee either.
func framesFromDocs(docs []bson.M, model *registry.Model) frame.Frame {
	names := columnNames(docs, model)
	cols := make(map[string][]any, len(names))
	for _, name := range names {
		col := make([]any, len(docs))
		for i, doc := range docs {
			col[i] = doc[name]
		}
		cols[name] = col
	}
	schema := make(frame.Schema, len(names))
	for i, name := range names {
		dtype := frame.Str
		if model != nil {
			if field, ok := model.Field(name); ok {
				dtype = field.DType
			}
		} else {
			dtype = inferDType(cols[name])
		}
		schema[i] = frame.Field{Name: name, DType: dtype}
	}
	return frame.New(schema, cols, len(docs))
}

func columnNames(docs []bson.M, model *registry.Model) []string {
	if model != nil {
		names := make([]string, len(model.Fields))
		for i, f := range model.Fields {
			names[i] = f.Name
		}
		return names
	}
	if len(docs) == 0 {
		return nil
	}
	names := make([]string, 0, len(docs[0]))
	for name := range docs[0] {
		if name == "_id" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func inferDType(col []any) frame.DType {
	for _, v := range col {
		switch v.(type) {
		case bool:
			return frame.Bool
		case int32, int64, float64:
			return frame.Float64
		case string:
			return frame.Str
		}
	}
	return frame.Str
}
