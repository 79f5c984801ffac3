// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/capport-dev/capport/transform/expr"
	"gopkg.in/yaml.v3"
)

// TargetList decodes a `select`/`with_columns` YAML mapping into an
// ORDERED []expr.Target rather than a Go map, by walking the mapping
// node's key/value pairs directly instead of decoding into
// map[string]any — a plain map would lose the declaration order
// [expr.Compile] relies on to produce deterministic output column order
// (see transform/expr/expr.go's Target doc comment).
type TargetList []expr.Target

var _ yaml.Unmarshaler = (*TargetList)(nil)

func (tl *TargetList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("config: expected a mapping, got %v", value.Tag)
	}
	targets := make([]expr.Target, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var raw any
		if err := valNode.Decode(&raw); err != nil {
			return err
		}
		targets = append(targets, expr.Target{Name: keyNode.Value, Raw: raw})
	}
	*tl = targets
	return nil
}

// aliasPair is one entry of an orderedAliases mapping: an output alias
// and the source column it projects from.
type aliasPair struct {
	Alias  string
	Source string
}

// orderedAliases decodes a `right_select`-style mapping (alias: source
// column) preserving declaration order, for the same reason TargetList
// does — the order becomes the projected column order on the right side
// of a join.
type orderedAliases []aliasPair

var _ yaml.Unmarshaler = (*orderedAliases)(nil)

func (a *orderedAliases) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("config: expected a mapping, got %v", value.Tag)
	}
	pairs := make([]aliasPair, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		pairs = append(pairs, aliasPair{Alias: value.Content[i].Value, Source: value.Content[i+1].Value})
	}
	*a = pairs
	return nil
}

// dropSpec decodes `drop` as either a plain list (every named column
// dropped) or a mapping of column -> bool (§8 S3: `drop:{b:false}` is a
// no-op), matching [frame.Drop]'s map[string]bool contract.
type dropSpec map[string]bool

var _ yaml.Unmarshaler = (*dropSpec)(nil)

func (d *dropSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		m := make(map[string]bool, len(value.Content))
		for _, n := range value.Content {
			m[n.Value] = true
		}
		*d = m
		return nil
	case yaml.MappingNode:
		m := map[string]bool{}
		if err := value.Decode(&m); err != nil {
			return err
		}
		*d = m
		return nil
	default:
		return fmt.Errorf("config: drop: expected a list or mapping, got %v", value.Tag)
	}
}
