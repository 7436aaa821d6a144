package record

import (
	"encoding/json"
	"math"
	"strconv"
)

// Document is a loosely-typed JSON object as returned by the GraphQL API.
// Every accessor tolerates missing keys and wrong types.
type Document map[string]any

// AsDocument converts v to a Document, reporting false for anything that is
// not a JSON object.
func AsDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, m != nil
	case map[string]any:
		return Document(m), m != nil
	}
	return nil, false
}

// Object returns the nested object at the given path.
func (d Document) Object(path ...string) (Document, bool) {
	cur := d
	for _, key := range path {
		next, ok := AsDocument(cur[key])
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// List returns the array stored under key.
func (d Document) List(key string) ([]any, bool) {
	l, ok := d[key].([]any)
	return l, ok
}

// String returns the string under key, or "" if absent.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// OptString returns the string under key, or nil if absent or not a string.
func (d Document) OptString(key string) *string {
	s, ok := d[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Bool returns the bool under key, or false.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// OptBool returns the bool under key, or nil.
func (d Document) OptBool(key string) *bool {
	b, ok := d[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// Int returns the integer under key, or 0. JSON numbers may arrive as
// float64 or json.Number depending on how the document was decoded.
func (d Document) Int(key string) int {
	switch n := d[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

// Edges flattens a connection container ({"edges": [...]}) stored under key.
// An absent or malformed container yields an empty, non-nil slice.
func (d Document) Edges(key string) []any {
	conn, ok := AsDocument(d[key])
	if !ok {
		return []any{}
	}
	edges, ok := conn.List("edges")
	if !ok || edges == nil {
		return []any{}
	}
	return edges
}
