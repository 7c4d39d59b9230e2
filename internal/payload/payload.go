// Package payload provides a defensive view over the untyped JSON trees
// that tracing-platform run documents carry. Every accessor returns a
// (value, ok) pair instead of panicking: a missing key, an out-of-range
// index, or a wrong-shape node all read as absent.
package payload

import "encoding/json"

// Kind discriminates the shape of a Value.
type Kind int

const (
	Invalid Kind = iota
	Null
	Map
	List
	String
	Bool
	Number
)

// Value wraps one node of a decoded JSON document.
type Value struct {
	raw  any
	kind Kind
}

// From wraps an already-decoded JSON value (the result of json.Unmarshal
// into any). Unsupported Go types yield an Invalid value.
func From(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{raw: nil, kind: Null}
	case map[string]any:
		return Value{raw: t, kind: Map}
	case []any:
		return Value{raw: t, kind: List}
	case string:
		return Value{raw: t, kind: String}
	case bool:
		return Value{raw: t, kind: Bool}
	case float64:
		return Value{raw: t, kind: Number}
	case int:
		return Value{raw: float64(t), kind: Number}
	case int64:
		return Value{raw: float64(t), kind: Number}
	default:
		return Value{kind: Invalid}
	}
}

// Parse decodes raw JSON bytes into a Value. Invalid JSON yields an
// Invalid value and the decode error.
func Parse(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{kind: Invalid}, err
	}
	return From(v), nil
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is Invalid or Null.
func (v Value) IsAbsent() bool { return v.kind == Invalid || v.kind == Null }

// Raw returns the underlying decoded value.
func (v Value) Raw() any { return v.raw }

// Field returns the value under key when this node is a map.
func (v Value) Field(key string) (Value, bool) {
	m, ok := v.raw.(map[string]any)
	if v.kind != Map || !ok {
		return Value{kind: Invalid}, false
	}
	child, ok := m[key]
	if !ok {
		return Value{kind: Invalid}, false
	}
	return From(child), true
}

// At walks a path of map keys and returns the value at the end.
func (v Value) At(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Field(key)
		if !ok {
			return Value{kind: Invalid}, false
		}
		cur = next
	}
	return cur, true
}

// Index returns the i-th element when this node is a list.
func (v Value) Index(i int) (Value, bool) {
	l, ok := v.raw.([]any)
	if v.kind != List || !ok || i < 0 || i >= len(l) {
		return Value{kind: Invalid}, false
	}
	return From(l[i]), true
}

// Len returns the element count for lists and the key count for maps.
func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.raw.([]any))
	case Map:
		return len(v.raw.(map[string]any))
	default:
		return 0
	}
}

// Str returns the string content when this node is a string.
func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, v.kind == String && ok
}

// Boolean returns the bool content when this node is a bool.
func (v Value) Boolean() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, v.kind == Bool && ok
}

// Num returns the numeric content when this node is a number.
func (v Value) Num() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, v.kind == Number && ok
}

// MapOf returns a shallow copy of the map node keyed by field name.
// Non-map nodes return nil, false.
func (v Value) MapOf() (map[string]Value, bool) {
	m, ok := v.raw.(map[string]any)
	if v.kind != Map || !ok {
		return nil, false
	}
	out := make(map[string]Value, len(m))
	for k, child := range m {
		out[k] = From(child)
	}
	return out, true
}

// FlatMap returns the raw map[string]any under this node, or nil when the
// node is not a map. Callers that merge field maps work on this form.
func (v Value) FlatMap() map[string]any {
	if v.kind != Map {
		return nil
	}
	m, _ := v.raw.(map[string]any)
	return m
}
