// SPDX-License-Identifier: GPL-3.0-or-later

// Package expr implements Capport's expression DSL and select compiler
// (§4.2): the mapping `target → expr` that a transform's `select` step
// compiles into column-producing closures over a [frame.Frame].
//
// Package expr stays a leaf package like frame: it returns its own
// [ErrKind]/[Error] rather than *capperr.Error, so neither frame nor expr
// needs to depend on capperr, and the transform package (which does
// depend on capperr) translates at the point it knows the failing stage
// label.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/capport-dev/capport/frame"
)

// ErrKind mirrors the subset of the §7 taxonomy a select compile can
// raise.
type ErrKind string

const (
	SchemaMissing ErrKind = "SCHEMA_MISSING"
	TemplateArity ErrKind = "TEMPLATE_ARITY"
	Coercion      ErrKind = "COERCION"
)

// Error is returned by Compile and by the closures it produces.
type Error struct {
	Kind   ErrKind
	Detail string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Detail }

// Target is one `target → expr` entry of a select block, kept as an
// ordered slice (rather than a map) so the compiled output's column order
// matches the YAML declaration order — yaml.v3 decodes mapping nodes in
// document order into a []Target via a custom UnmarshalYAML in package
// config, not into a plain Go map, precisely to preserve this.
type Target struct {
	Name string
	Raw  any // the raw, already-$var-resolved YAML value for this target's expr
}

// Compiled is a select block compiled against a known source schema: an
// ordered list of target names plus a [frame.Expr] closure per target.
type Compiled struct {
	order []string
	exprs map[string]frame.Expr
}

// Names returns the compiled target names in declaration order.
func (c *Compiled) Names() []string { return c.order }

// Apply evaluates every compiled target against src and returns a new
// Frame containing exactly the target columns, in declaration order —
// select always produces a full reprojection, never an in-place patch.
func (c *Compiled) Apply(src frame.Frame) (frame.Frame, error) {
	out, err := frame.WithColumns(src, c.exprs, c.order, true)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.Project(out, c.order)
}

var identityRegexp = regexp.MustCompile(`^\^(.*)\$$`)

// Compile compiles an ordered list of select targets against source (the
// schema of the Frame the select step will run against). $var resolution
// must already have happened (see ResolveVars) — Compile only interprets
// the DSL shape.
func Compile(targets []Target, source frame.Schema) (*Compiled, error) {
	c := &Compiled{
		order: make([]string, 0, len(targets)),
		exprs: make(map[string]frame.Expr, len(targets)),
	}
	for _, t := range targets {
		e, err := compileOne(t.Name, t.Raw, source)
		if err != nil {
			return nil, err
		}
		c.order = append(c.order, t.Name)
		c.exprs[t.Name] = e
	}
	return c, nil
}

func compileOne(target string, raw any, source frame.Schema) (frame.Expr, error) {
	switch v := raw.(type) {
	case nil:
		// empty value: target equals source column of the same name.
		return compilePath(target, source)
	case string:
		return compileStringExpr(v, source)
	case map[string]any:
		return compileAction(v, source)
	default:
		return nil, &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("select %q: unsupported expression shape %T", target, raw)}
	}
}

func compileStringExpr(s string, source frame.Schema) (frame.Expr, error) {
	if m := identityRegexp.FindStringSubmatch(s); m != nil {
		// §4.2: "exact-match column reference; distinguishes a literal
		// name from a path when the name contains metacharacters" — a
		// regex-wrapped literal never splits on '.', unlike a bare
		// dotted-path string.
		return compileExactColumn(m[1], source)
	}
	return compilePath(s, source)
}

// compileExactColumn looks up name as a single, whole column — used for
// regex-wrapped literals, whose entire point is to bypass dotted-path
// splitting for a column name that itself contains a dot.
func compileExactColumn(name string, source frame.Schema) (frame.Expr, error) {
	field, ok := source.Field(name)
	if !ok {
		return nil, &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("column %q not found", name)}
	}
	return func(f frame.Frame) (frame.DType, []any, error) {
		return field.DType, f.MustColumn(name), nil
	}, nil
}

// compilePath compiles a dotted path "A.B.C" into a struct-access chain
// rooted at column A (§4.2 "if the path crosses a struct field boundary
// the compiler emits a struct-access chain").
func compilePath(path string, source frame.Schema) (frame.Expr, error) {
	segments := strings.Split(path, ".")
	root := segments[0]
	field, ok := source.Field(root)
	if !ok {
		return nil, &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("column %q not found", root)}
	}
	finalDType, err := resolveFieldPath(field, segments[1:])
	if err != nil {
		return nil, err
	}
	return func(f frame.Frame) (frame.DType, []any, error) {
		col := f.MustColumn(root)
		data := make([]any, len(col))
		for i, v := range col {
			cur := v
			for _, seg := range segments[1:] {
				m, _ := cur.(map[string]any)
				cur = m[seg]
			}
			data[i] = cur
		}
		return finalDType, data, nil
	}, nil
}

// resolveFieldPath walks a struct field chain purely at the schema level,
// to determine the dtype the compiled expr will ultimately produce.
func resolveFieldPath(field frame.Field, remaining []string) (frame.DType, error) {
	cur := field
	for _, seg := range remaining {
		if cur.DType != frame.Struct {
			return "", &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("%q is not a struct, cannot access %q", cur.Name, seg)}
		}
		var next *frame.Field
		for i := range cur.Fields {
			if cur.Fields[i].Name == seg {
				next = &cur.Fields[i]
				break
			}
		}
		if next == nil {
			return "", &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("struct %q has no field %q", cur.Name, seg)}
		}
		cur = *next
	}
	return cur.DType, nil
}

// compileAction dispatches a mapping-with-action-key expr node on the
// first recognized key, in the order checked below; other keys in the
// mapping are ignored.
func compileAction(m map[string]any, source frame.Schema) (frame.Expr, error) {
	if v, ok := m["format"]; ok {
		return compileFormat(v, source)
	}
	if v, ok := m["concat"]; ok {
		return compileConcat(v, source)
	}
	if v, ok := m["lit"]; ok {
		return compileLit(v)
	}
	if v, ok := m["to_list"]; ok {
		return compileToList(v, source)
	}
	for _, dtype := range []frame.DType{frame.Bool, frame.Int64, frame.Uint64, frame.Float64, frame.Str, frame.Date} {
		key := shorthandKey(dtype)
		if v, ok := m[key]; ok {
			return compileShorthandLit(dtype, v)
		}
	}
	return nil, &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("expr mapping has no recognized action key: %v", keysOf(m))}
}

func shorthandKey(dtype frame.DType) string {
	switch dtype {
	case frame.Bool:
		return "bool"
	case frame.Int64:
		return "int"
	case frame.Uint64:
		return "uint"
	case frame.Float64:
		return "float"
	case frame.Str:
		return "str"
	case frame.Date:
		return "date"
	default:
		return string(dtype)
	}
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// compileFormat compiles {format: {template, columns|cols}} (§4.2).
func compileFormat(v any, source frame.Schema) (frame.Expr, error) {
	spec, ok := v.(map[string]any)
	if !ok {
		return nil, &Error{Kind: SchemaMissing, Detail: "format: expected a mapping"}
	}
	template, _ := spec["template"].(string)
	cols := stringListOf(spec, "columns", "cols")

	placeholderCount := strings.Count(template, "{}")
	if placeholderCount != len(cols) {
		return nil, &Error{Kind: TemplateArity, Detail: fmt.Sprintf("format: template has %d placeholders, got %d columns", placeholderCount, len(cols))}
	}
	for _, c := range cols {
		base := strings.Split(c, ".")[0]
		if !source.Has(base) {
			return nil, &Error{Kind: SchemaMissing, Detail: fmt.Sprintf("format: column %q not found", c)}
		}
	}

	colExprs := make([]frame.Expr, len(cols))
	for i, c := range cols {
		e, err := compileStringExpr(c, source)
		if err != nil {
			return nil, err
		}
		colExprs[i] = e
	}

	return func(f frame.Frame) (frame.DType, []any, error) {
		values := make([][]any, len(colExprs))
		for i, e := range colExprs {
			_, data, err := e(f)
			if err != nil {
				return "", nil, err
			}
			values[i] = data
		}
		out := make([]any, f.NumRows())
		for row := 0; row < f.NumRows(); row++ {
			result := template
			for i := range values {
				result = strings.Replace(result, "{}", stringify(values[i][row]), 1)
			}
			out[row] = result
		}
		return frame.Str, out, nil
	}, nil
}

// compileConcat compiles {concat: {cols, separator?}} (§4.2).
func compileConcat(v any, source frame.Schema) (frame.Expr, error) {
	spec, ok := v.(map[string]any)
	if !ok {
		return nil, &Error{Kind: SchemaMissing, Detail: "concat: expected a mapping"}
	}
	cols := stringListOf(spec, "cols", "columns")
	separator := " "
	if sep, ok := spec["separator"].(string); ok {
		separator = sep
	}

	colExprs := make([]frame.Expr, len(cols))
	for i, c := range cols {
		e, err := compileStringExpr(c, source)
		if err != nil {
			return nil, err
		}
		colExprs[i] = e
	}

	return func(f frame.Frame) (frame.DType, []any, error) {
		values := make([][]any, len(colExprs))
		for i, e := range colExprs {
			_, data, err := e(f)
			if err != nil {
				return "", nil, err
			}
			values[i] = data
		}
		out := make([]any, f.NumRows())
		for row := 0; row < f.NumRows(); row++ {
			parts := make([]string, len(values))
			for i := range values {
				parts[i] = stringify(values[i][row])
			}
			out[row] = strings.Join(parts, separator)
		}
		return frame.Str, out, nil
	}, nil
}

// compileLit compiles {lit: value} or {lit: {value, dtype}} (§4.2).
func compileLit(v any) (frame.Expr, error) {
	var value any
	var dtype frame.DType

	if spec, ok := v.(map[string]any); ok {
		if _, hasValue := spec["value"]; hasValue {
			value = spec["value"]
			if d, ok := spec["dtype"].(string); ok {
				dtype = frame.DType(d)
			} else {
				dtype = inferDType(value)
			}
			return litExpr(value, dtype), nil
		}
	}
	value = v
	dtype = inferDType(value)
	return litExpr(value, dtype), nil
}

func compileShorthandLit(dtype frame.DType, raw any) (frame.Expr, error) {
	value, err := coerceShorthand(dtype, raw)
	if err != nil {
		return nil, err
	}
	return litExpr(value, dtype), nil
}

func litExpr(value any, dtype frame.DType) frame.Expr {
	return func(f frame.Frame) (frame.DType, []any, error) {
		data := make([]any, f.NumRows())
		for i := range data {
			data[i] = value
		}
		return dtype, data, nil
	}
}

func coerceShorthand(dtype frame.DType, raw any) (any, error) {
	switch dtype {
	case frame.Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, &Error{Kind: Coercion, Detail: fmt.Sprintf("bool literal: %v is not a bool", raw)}
		}
		return b, nil
	case frame.Int64:
		switch n := raw.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, &Error{Kind: Coercion, Detail: err.Error()}
			}
			return parsed, nil
		default:
			return nil, &Error{Kind: Coercion, Detail: fmt.Sprintf("int literal: unsupported value %v", raw)}
		}
	case frame.Uint64:
		switch n := raw.(type) {
		case int:
			if n < 0 {
				return nil, &Error{Kind: Coercion, Detail: "uint literal: negative value"}
			}
			return uint64(n), nil
		case float64:
			return uint64(n), nil
		case string:
			parsed, err := strconv.ParseUint(n, 10, 64)
			if err != nil {
				return nil, &Error{Kind: Coercion, Detail: err.Error()}
			}
			return parsed, nil
		default:
			return nil, &Error{Kind: Coercion, Detail: fmt.Sprintf("uint literal: unsupported value %v", raw)}
		}
	case frame.Float64:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, &Error{Kind: Coercion, Detail: err.Error()}
			}
			return parsed, nil
		default:
			return nil, &Error{Kind: Coercion, Detail: fmt.Sprintf("float literal: unsupported value %v", raw)}
		}
	case frame.Str:
		return stringify(raw), nil
	case frame.Date:
		s, ok := raw.(string)
		if !ok {
			return nil, &Error{Kind: Coercion, Detail: "date literal: expected a string"}
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, &Error{Kind: Coercion, Detail: err.Error()}
		}
		return t, nil
	default:
		return nil, &Error{Kind: Coercion, Detail: fmt.Sprintf("unsupported shorthand dtype %s", dtype)}
	}
}

func inferDType(value any) frame.DType {
	switch value.(type) {
	case bool:
		return frame.Bool
	case int, int64:
		return frame.Int64
	case float64:
		return frame.Float64
	case string:
		return frame.Str
	default:
		return frame.Str
	}
}

// compileToList compiles {to_list: col} (§4.2): wraps a scalar column as
// a singleton-list column.
func compileToList(v any, source frame.Schema) (frame.Expr, error) {
	colName, ok := v.(string)
	if !ok {
		return nil, &Error{Kind: SchemaMissing, Detail: "to_list: expected a column name"}
	}
	base, err := compileStringExpr(colName, source)
	if err != nil {
		return nil, err
	}
	return func(f frame.Frame) (frame.DType, []any, error) {
		_, data, err := base(f)
		if err != nil {
			return "", nil, err
		}
		out := make([]any, len(data))
		for i, v := range data {
			out[i] = []any{v}
		}
		return frame.List, out, nil
	}, nil
}

func stringListOf(spec map[string]any, primary, alt string) []string {
	raw, ok := spec[primary]
	if !ok {
		raw, ok = spec[alt]
		if !ok {
			return nil
		}
	}
	list, ok := raw.([]any)
	if !ok {
		if s, ok := raw.(string); ok {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
