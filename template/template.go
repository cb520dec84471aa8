// Package template implements the dataflow template resolver described in
// spec §4.1: substitution of "{{path.to.value}}" expressions over a
// per-run context keyed by node id (plus the reserved "input" key).
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Context is the per-run dataflow mapping the resolver reads from: node id
// (plus the reserved key "input") to that node's output value.
type Context map[string]any

// Resolve substitutes every "{{...}}" token found in v against ctx and
// returns the resolved value. Supported shapes for v: string, map[string]any,
// []any, and any other scalar (returned unchanged). Cyclic input structures
// are not supported; callers must supply tree-shaped data.
func Resolve(v any, ctx Context) any {
	switch t := v.(type) {
	case string:
		return resolveString(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Resolve(child, ctx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Resolve(child, ctx)
		}
		return out
	default:
		return v
	}
}

// resolveString implements the single-string substitution rule: if the
// entire string is exactly one template, the resolved value's native type
// is preserved; otherwise every template token found is stringified and
// spliced into the surrounding text.
func resolveString(s string, ctx Context) any {
	if path, ok := wholeTemplate(s); ok {
		val, found := lookup(path, ctx)
		if !found {
			return s // leave the literal token untouched
		}
		return val
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		path := rest[start+2 : end]
		val, found := lookup(path, ctx)
		if found {
			b.WriteString(stringify(val))
		} else {
			b.WriteString("{{" + path + "}}")
		}
		rest = rest[end+2:]
	}
	return b.String()
}

// wholeTemplate reports whether s is exactly one "{{...}}" span with
// nothing before or after it, returning the inner (untrimmed) path.
func wholeTemplate(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") || len(s) < 4 {
		return "", false
	}
	inner := s[2 : len(s)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return inner, true
}

// lookup resolves a dotted path against ctx. An empty path (the literal
// "{{}}") is treated as an unresolved literal token, per spec §4.1 edge
// policy. Each segment is trimmed of surrounding whitespace before lookup.
func lookup(path string, ctx Context) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")

	var cur any = map[string]any(ctx)
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// step resolves one path segment against the current value: a map lookup
// by key, or a sequence lookup by the segment's integer value.
func step(cur any, segment string) (any, bool) {
	switch t := cur.(type) {
	case map[string]any:
		v, ok := t[segment]
		return v, ok
	case Context:
		v, ok := t[segment]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, false
		}
		return t[idx], true
	default:
		return nil, false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
