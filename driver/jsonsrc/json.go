// SPDX-License-Identifier: GPL-3.0-or-later

// Package jsonsrc implements the json source driver (§4.4): read a JSON
// array or newline-delimited JSON file, enforce or infer a column schema,
// publish once.
package jsonsrc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/capport-dev/capport/capperr"
	"github.com/capport-dev/capport/config"
	"github.com/capport-dev/capport/frame"
	"github.com/capport-dev/capport/registry"
)

// Builder adapts [Source] to [config.SourceBuilder].
func Builder(spec config.SourceSpec, args map[string]any, deps config.BuildDeps) (registry.Task, error) {
	path, _ := spec.Options["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("jsonsrc: source %q: missing required option %q", spec.Name, "path")
	}
	ndjson, _ := spec.Options["ndjson"].(bool)
	output, _ := args["output"].(string)
	if output == "" {
		return nil, fmt.Errorf("jsonsrc: source %q: stage has no output cell", spec.Name)
	}
	src := &Source{Name: spec.Name, Path: path, NDJSON: ndjson, Model: deps.Model, Output: output}
	return src.Task(), nil
}

// Source reads one JSON file into a Frame and publishes it to Output.
type Source struct {
	Name   string
	Path   string
	NDJSON bool
	Model  *registry.Model
	Output string
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
		records, err := readRecords(path, s.NDJSON)
		if err != nil {
			return capperr.New(capperr.SourceFail, rc.StageLabel(), fmt.Errorf("jsonsrc: %s: %w", s.Name, err))
		}
		f := framesFromRecords(records, s.Model)
		cell := rc.Universe().MustCell(s.Output)
		if _, err := cell.Write(rc, f, rc.StageLabel()); err != nil {
			return capperr.New(capperr.Cancelled, rc.StageLabel(), err)
		}
		rc.Logger().Info("source published", "driver", "json", "cell", s.Output, "rows", f.NumRows())
		return nil
	}
}

func readRecords(path string, ndjson bool) ([]map[string]any, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	if !ndjson {
		var records []map[string]any
		if err := json.NewDecoder(fh).Decode(&records); err != nil {
			return nil, fmt.Errorf("decoding json array: %w", err)
		}
		return records, nil
	}

	var records []map[string]any
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decoding ndjson line: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// framesFromRecords builds a Frame from decoded JSON objects. Column order
// follows the Model's declared field order when a Model is given, falling
// back to the first record's own key order (Go's encoding/json does not
// preserve object key order across a map[string]any, so without a Model
// the schema order is only as stable as the first record happens to be).
func framesFromRecords(records []map[string]any, model *registry.Model) frame.Frame {
	names := columnNames(records, model)
	cols := make(map[string][]any, len(names))
	for _, name := range names {
		col := make([]any, len(records))
		for i, rec := range records {
			col[i] = rec[name]
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
	return frame.New(schema, cols, len(records))
}

func columnNames(records []map[string]any, model *registry.Model) []string {
	if model != nil {
		names := make([]string, len(model.Fields))
		for i, f := range model.Fields {
			names[i] = f.Name
		}
		return names
	}
	if len(records) == 0 {
		return nil
	}
	names := make([]string, 0, len(records[0]))
	for name := range records[0] {
		names = append(names, name)
	}
	return names
}

// inferDType picks a dtype from the first non-nil value in col, defaulting
// to Str when every value is nil.
func inferDType(col []any) frame.DType {
	for _, v := range col {
		switch v.(type) {
		case bool:
			return frame.Bool
		case float64:
			return frame.Float64
		case string:
			return frame.Str
		}
	}
	return frame.Str
}
