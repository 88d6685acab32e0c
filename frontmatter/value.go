package frontmatter

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "list", "map"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one frontmatter value: a string, number, bool, list, mapping or null.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map wraps m. A nil map becomes an empty mapping.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string and whether v holds one.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int returns the integer and whether v holds one.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns v as a float64; integers are converted.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns the boolean and whether v holds one.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// List returns the items and whether v is a list.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// Map returns the mapping and whether v is a mapping.
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Get looks up key when v is a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	c, ok := v.m[key]
	return c, ok
}

// Interface converts v into plain Go values (string, int64, float64, bool,
// []any, map[string]any, nil) for consumers that take dynamic data, such as
// html/template.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// String renders scalars as text; lists and maps render as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Context is a parsed frontmatter mapping. Keys are passed through to
// templates untouched.
type Context map[string]Value

// Data converts the context into a map of plain values for templates.
func (c Context) Data() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Interface()
	}
	return out
}

// String returns the value at key when it is a non-empty string.
func (c Context) String(key string) string {
	s, _ := c[key].Str()
	return s
}

// Keys returns the context keys in sorted order.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
