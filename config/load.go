// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/capport-dev/capport/registry"
	"gopkg.in/yaml.v3"
)

// LoadDir reads every *.yaml/*.yml file directly inside dir and merges
// them into one [Document] (§6 "multiple files are merged by taking the
// union within each kind; duplicate names within a kind are a fatal
// error"). Files are processed in sorted path order so that, for a
// genuine duplicate, Existing/New in the resulting error are
// deterministic regardless of the directory's on-disk iteration order
// (§8 Testable Property 9).
func LoadDir(dir string) (*Document, error) {
	paths, err := matchingFiles(dir)
	if err != nil {
		return nil, &Error{Kind: ConfigParse, Detail: fmt.Sprintf("config: reading %s: %v", dir, err)}
	}

	doc := &Document{}
	seen := newMergeState()
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Kind: ConfigParse, Detail: fmt.Sprintf("config: reading %s: %v", path, err)}
		}
		var fd Document
		if err := yaml.Unmarshal(raw, &fd); err != nil {
			return nil, &Error{Kind: ConfigParse, Detail: fmt.Sprintf("config: parsing %s: %v", path, err)}
		}
		if err := mergeInto(doc, &fd, path, seen); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func matchingFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// mergeState tracks, per kind, which names have already been merged and
// from which source path, so a collision can be reported with both
// paths via [registry.DuplicateError] (reused rather than redefined,
// since it is exactly the same shape Registry.Register needs).
type mergeState struct {
	seen map[string]map[string]string // kind -> name -> source path
}

func newMergeState() *mergeState {
	return &mergeState{seen: map[string]map[string]string{}}
}

func (m *mergeState) claim(kind, name, path string) error {
	byName, ok := m.seen[kind]
	if !ok {
		byName = map[string]string{}
		m.seen[kind] = byName
	}
	if existing, ok := byName[name]; ok {
		return &registry.DuplicateError{Kind: kind, Name: name, Existing: existing, New: path}
	}
	byName[name] = path
	return nil
}

func mergeInto(dst, src *Document, path string, seen *mergeState) error {
	for _, v := range src.Pipelines {
		if err := seen.claim("pipeline", v.Name, path); err != nil {
			return err
		}
		dst.Pipelines = append(dst.Pipelines, v)
	}
	for _, v := range src.Models {
		if err := seen.claim("model", v.Name, path); err != nil {
			return err
		}
		dst.Models = append(dst.Models, v)
	}
	for _, v := range src.Transforms {
		if err := seen.claim("transform", v.Name, path); err != nil {
			return err
		}
		dst.Transforms = append(dst.Transforms, v)
	}
	for _, v := range src.Sources {
		if err := seen.claim("source", v.Name, path); err != nil {
			return err
		}
		dst.Sources = append(dst.Sources, v)
	}
	for _, v := range src.Sinks {
		if err := seen.claim("sink", v.Name, path); err != nil {
			return err
		}
		dst.Sinks = append(dst.Sinks, v)
	}
	for _, v := range src.Connections {
		if err := seen.claim("connection", v.Name, path); err != nil {
			return err
		}
		dst.Connections = append(dst.Connections, v)
	}
	for _, v := range src.Loggers {
		if err := seen.claim("logger", v.Name, path); err != nil {
			return err
		}
		dst.Loggers = append(dst.Loggers, v)
	}
	for _, v := range src.Runners {
		if err := seen.claim("runner", v.Name, path); err != nil {
			return err
		}
		dst.Runners = append(dst.Runners, v)
	}
	return nil
}
