// SPDX-License-Identifier: GPL-3.0-or-later

package expr

import (
	"fmt"
	"regexp"
)

// VarUnresolved classifies a $var reference with no binding in the
// stage's argument map; translated by package transform into
// capperr.ConfigValidate ("unresolved $var is a load-time error", §3).
const VarUnresolved ErrKind = "VAR_UNRESOLVED"

var wholeVarRegexp = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)
var embeddedVarRegexp = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// ResolveVars walks a decoded YAML value tree (map[string]any / []any /
// scalars, as produced by gopkg.in/yaml.v3) and resolves every `$var`
// reference against args (§4.2). Resolution is textual: a string value
// that IS exactly one `$var` reference is replaced wholesale by its
// binding, so a structural binding (list/map, or a Frame-name string
// threaded into a cell reference) substitutes the whole subtree; a string
// containing a `$var` reference alongside other text has the reference's
// stringified value spliced in.
func ResolveVars(raw any, args map[string]any) (any, error) {
	switch v := raw.(type) {
	case string:
		return resolveVarString(v, args)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			resolved, err := ResolveVars(val, args)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			resolved, err := ResolveVars(val, args)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return raw, nil
	}
}

func resolveVarString(s string, args map[string]any) (any, error) {
	if m := wholeVarRegexp.FindStringSubmatch(s); m != nil {
		val, ok := args[m[1]]
		if !ok {
			return nil, &Error{Kind: VarUnresolved, Detail: fmt.Sprintf("$%s has no binding in stage args", m[1])}
		}
		return val, nil
	}

	matches := embeddedVarRegexp.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, nil
	}

	out := ""
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		nameStart, nameEnd := m[2], m[3]
		name := s[nameStart:nameEnd]
		val, ok := args[name]
		if !ok {
			return nil, &Error{Kind: VarUnresolved, Detail: fmt.Sprintf("$%s has no binding in stage args", name)}
		}
		out += s[last:start] + stringify(val)
		last = end
	}
	out += s[last:]
	return out, nil
}
