// SPDX-License-Identifier: GPL-3.0-or-later

// Package mongosink implements the document sink driver (§4.5) over
// go.mongodb.org/mongo-driver: replace -> DeleteMany then InsertMany (not
// wrapped in a session or transaction), append -> InsertMany, upsert ->
// bulk ReplaceOne keyed on the model's primary field(s).
package mongosink

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/modelvalidate"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Sink] to [config.SinkBuilder].
func Builder(spec config.SinkSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	collection, _ := spec.Options["collection"].(string)
	if collection == "" {
		return nil, fmt.Errorf("mongosink: sink %q: missing required option %q", spec.Name, "collection")
	}
	input, _ := args["input"].(string)
	if input == "" {
		return nil, fmt.Errorf("mongosink: sink %q: stage has no input cell", spec.Name)
	}
	if deps.Connection == nil {
		return nil, fmt.Errorf("mongosink: sink %q: no connection resolved", spec.Name)
	}
	sink := &Sink{
		Name:       spec.Name,
		Collection: collection,
		Connection: deps.Connection,
		Model:      deps.Model,
		MergeType:  firstNonEmpty(spec.MergeType, "append"),
		Strict:     spec.Strict,
		PrimaryKey: spec.PrimaryKey,
		Input:      input,
	}
	return sink.Task(), nil
}

// Sink writes the Frame on Input to Collection, once per invocation.
type Sink struct {
	Name       string
	Collection string
	Connection *registry.Connection
	Model      *registry.Model
	MergeType  string
	Strict     bool
	PrimaryKey []string
	Input      string
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
				return capperr.New(capperr.ModelValidation, rc.StageLabel(), fmt.Errorf("mongosink: %s: %w", s.Name, err))
			}
		}

		if !rc.Env().ExecuteMode() {
			rc.Logger().Info("sink dry-run", "driver", "mongo", "collection", s.Collection, "merge", s.MergeType, "rows", f.NumRows())
			return nil
		}

		if err := s.write(rc, f); err != nil {
			return capperr.New(capperr.SinkFail, rc.StageLabel(), fmt.Errorf("mongosink: %s: %w", s.Name, err))
		}
		rc.Logger().Info("sink wrote", "driver", "mongo", "collection", s.Collection, "merge", s.MergeType, "rows", f.NumRows())
		return nil
	}
}

func (s *Sink) write(rc registry.Context, f frame.Frame) error {
	client, err := mongo.Connect(rc, options.Client().ApplyURI(s.Connection.Template["uri"]))
	if err != nil {
		return err
	}
	defer client.Disconnect(rc)

	coll := client.Database(s.Connection.Template["database"]).Collection(s.Collection)
	docs := docsFromFrame(f)

	switch s.MergeType {
	case "replace":
		if _, err := coll.DeleteMany(rc, bson.M{}); err != nil {
			return fmt.Errorf("delete before replace: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}
		_, err := coll.InsertMany(rc, docs)
		return err
	case "append":
		if len(docs) == 0 {
			return nil
		}
		_, err := coll.InsertMany(rc, docs)
		return err
	case "upsert":
		return s.upsertAll(rc, coll, docs)
	default:
		return fmt.Errorf("unrecognized merge type %q", s.MergeType)
	}
}

func (s *Sink) upsertAll(rc registry.Context, coll *mongo.Collection, docs []any) error {
	primary := s.PrimaryKey
	if len(primary) == 0 && s.Model != nil {
		primary = s.Model.PrimaryFields()
	}
	if len(primary) == 0 {
		return fmt.Errorf("upsert requires primary_key or a model with a primary field")
	}
	opts := options.Replace().SetUpsert(true)
	for _, doc := range docs {
		m, _ := doc.(bson.M)
		filter := bson.M{}
		for _, key := range primary {
			filter[key] = m[key]
		}
		if _, err := coll.ReplaceOne(rc, filter, m, opts); err != nil {
			return err
		}
	}
	return nil
}

func docsFromFrame(f frame.Frame) []any {
	schema := f.Schema()
	docs := make([]any, f.NumRows())
	for row := range f.NumRows() {
		doc := bson.M{}
		for _, field := range schema {
			doc[field.Name] = f.MustColumn(field.Name)[row]
		}
		docs[row] = doc
	}
	return docs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
