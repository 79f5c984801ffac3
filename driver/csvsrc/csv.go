// SPDX-License-Identifier: GPL-3.0-or-later

// Package csvsrc implements the csv source driver (§4.4): read a CSV
// file, enforce or infer a column schema, publish once.
package csvsrc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Source] to [config.SourceBuilder].
func Builder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	path, _ := spec.Options["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("csvsrc: source %q: missing required option %q", spec.Name, "path")
	}
	delimiter := ","
	if d, ok := spec.Options["delimiter"].(string); ok && d != "" {
		delimiter = d
	}
	output, _ := args["output"].(string)
	if output == "" {
		return nil, fmt.Errorf("csvsrc: source %q: stage has no output cell", spec.Name)
	}
	src := &Source{
		Name:      spec.Name,
		Path:      path,
		Delimiter: []rune(delimiter)[0],
		Model:     deps.Model,
		Output:    output,
	}
	return src.Task(), nil
}

// Source reads one CSV file into a Frame and publishes it to Output.
type Source struct {
	Name      string
	Path      string
	Delimiter rune
	Model     *registry.Model
	Output    string
}

// Task adapts Source to the [registry.Task] dispatch signature.
func (s *Source) Task() registry.Task {
	return func(rc registry.Context) error {
		path := s.Path
		if !filepath.IsAbs(path) {
			if configDir, ok := rc.Env().Get("CONFIG_DIR"); ok {
				path = filepath.Join(configDir, path)
			}
		}
		f, err := readCSV(path, s.Delimiter, s.Model)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("csvsrc: %s: %w", s.Name, err))
		}
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "csv", "cell", s.Output, "rows", f.NumRows())
		return nil
	}
}

func readCSV(path string, delimiter rune, model *registry.Model) (frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("reading header: %w", err)
	}

	schema := schemaFor(header, model)
	cols := make(map[string][]any, len(header))
	for _, name := range header {
		cols[name] = nil
	}

	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frame.Frame{}, err
		}
		for i, name := range header {
			var raw any
			if i < len(record) {
				raw = record[i]
			}
			val, err := coerceCell(raw, schema[i].DType)
			if err != nil {
				return frame.Frame{}, fmt.Errorf("row %d, column %q: %w", rows+1, name, err)
			}
			cols[name] = append(cols[name], val)
		}
		rows++
	}
	return frame.New(schema, cols, rows), nil
}

// schemaFor builds a Schema from the CSV header, enforcing model dtypes
// when a Model is declared and defaulting every column to Str otherwise
// — a CSV file carries no type information of its own, so without a
// Model, string columns are the only choice that never loses data.
func schemaFor(header []string, model *registry.Model) frame.Schema {
	schema := make(frame.Schema, len(header))
	for i, name := range header {
		dtype := frame.Str
		if model != nil {
			if field, ok := model.Field(name); ok {
				dtype = field.DType
			}
		}
		schema[i] = frame.Field{Name: name, DType: dtype}
	}
	return schema
}

func coerceCell(raw any, dtype frame.DType) (any, error) {
	s, _ := raw.(string)
	if s == "" {
		return nil, nil
	}
	switch dtype {
	case frame.Str:
		return s, nil
	case frame.Int64, frame.Int32, frame.Int16, frame.Int8:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case frame.Uint64, frame.Uint32, frame.Uint16, frame.Uint8:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case frame.Float64, frame.Float32:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case frame.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return s, nil
	}
}
