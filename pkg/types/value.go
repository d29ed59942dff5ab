package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the runtime shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindList
	KindMap
)

// Value is the dynamically-typed document value stored inside Atoms and
// compared against filters. Schemas are user-defined, so field content is
// never statically typed at this layer; every write carries its own shape.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value             { return Value{kind: KindNull} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func Text(s string) Value     { return Value{kind: KindText, s: s} }
func List(vs []Value) Value   { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value {
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)              { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)               { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)           { return v.f, v.kind == KindFloat }
func (v Value) AsText() (string, bool)             { return v.s, v.kind == KindText }
func (v Value) AsList() ([]Value, bool)            { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool)    { return v.m, v.kind == KindMap }

// Equal reports deep structural equality, the semantics the executor uses
// for filter matching.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindText:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, lv := range v.m {
			rv, ok := other.m[k]
			if !ok || !lv.Equal(rv) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON renders the Value as the plain JSON document it represents,
// not as a tagged variant, so atoms round-trip through the KV backend as
// ordinary self-describing JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	case KindList:
		return json.Marshal(v.list)
	case KindMap:
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("types: unknown value kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface lifts a decoded JSON value (as produced by encoding/json
// into interface{}) into a Value tree.
func FromInterface(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case string:
		return Text(x)
	case []interface{}:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromInterface(e)
		}
		return List(out)
	case map[string]interface{}:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			out[k] = FromInterface(e)
		}
		return Map(out)
	default:
		return Text(fmt.Sprintf("%v", x))
	}
}

// ToInterface lowers a Value back to plain Go data, used when projecting
// query results to callers that expect generic documents.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToInterface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToInterface()
		}
		return out
	}
	return nil
}

// SortedMapKeys returns the keys of a map Value in deterministic order,
// used by callers that need stable iteration (e.g. building diagnostics).
func SortedMapKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
