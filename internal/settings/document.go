// Package settings implements the nested key/value settings document carried
// by organizations: deep merge with defaults, dotted-path access and per-leaf
// validation rules.
package settings

import (
	"strings"
)

// Document is a nested settings document. Nested sections are
// map[string]any, lists are []any.
type Document = map[string]any

// Merge returns a new document holding every leaf of custom, with missing
// leaves filled from defaults. A key present in custom always wins, even when
// its value is nil. Lists are replaced as a whole, never merged by index.
// Neither input is modified.
func Merge(defaults, custom Document) Document {
	out := Clone(defaults)
	if out == nil {
		out = Document{}
	}
	for k, cv := range custom {
		cm, cIsMap := asMap(cv)
		dm, dIsMap := asMap(out[k])
		if cIsMap && dIsMap {
			out[k] = Merge(dm, cm)
			continue
		}
		out[k] = cloneValue(cv)
	}
	return out
}

// Clone deep-copies a document.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return Clone(tv)
	case []any:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = cloneValue(tv[i])
		}
		return out
	case []string:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = tv[i]
		}
		return out
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Get returns the value at a dotted path such as "app.timezone".
func Get(d Document, path string) (any, bool) {
	var cur any = d
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetOr returns the value at path, or fallback when the path is absent or nil.
func GetOr(d Document, path string, fallback any) any {
	v, ok := Get(d, path)
	if !ok || v == nil {
		return fallback
	}
	return v
}

// Has reports whether path exists in the document.
func Has(d Document, path string) bool {
	_, ok := Get(d, path)
	return ok
}

// Set writes value at a dotted path, creating intermediate sections and
// replacing any non-section value in the way. d must be non-nil.
func Set(d Document, path string, value any) {
	parts := strings.Split(path, ".")
	cur := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = Document{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Remove deletes the value at path. It returns false if nothing was removed.
func Remove(d Document, path string) bool {
	parts := strings.Split(path, ".")
	cur := d
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			return false
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}
