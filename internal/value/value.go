// Package value models tool-call arguments as a closed set of variants.
//
// Model output is free-form JSON; decoding it into a closed value type up
// front means malformed payloads surface as protocol violations instead of
// runtime type errors deep inside a tool.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Bool
	List
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Object:
		return "object"
	}
	return "invalid"
}

// Value is one JSON-shaped datum. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	obj  *Map
}

// Map is a mapping that preserves insertion order, matching the order the
// model emitted its arguments in.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set inserts or replaces a key. First insertion fixes the key's position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value for key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Constructors.

func Str(s string) Value      { return Value{kind: String, str: s} }
func Num(f float64) Value     { return Value{kind: Number, num: f} }
func Boolean(b bool) Value    { return Value{kind: Bool, b: b} }
func Nil() Value              { return Value{kind: Null} }
func Arr(vs ...Value) Value   { return Value{kind: List, list: vs} }
func Obj(m *Map) Value        { return Value{kind: Object, obj: m} }

// Accessors.

func (v Value) Kind() Kind { return v.kind }

func (v Value) Text() string    { return v.str }
func (v Value) Float() float64  { return v.num }
func (v Value) IsTrue() bool    { return v.b }
func (v Value) Items() []Value  { return v.list }
func (v Value) Fields() *Map    { return v.obj }

// Decode parses raw JSON into a Value. Object key order is preserved.
func Decode(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	// Reject trailing garbage after the first value.
	if dec.More() {
		return Value{}, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return v, nil
}

// DecodeObject parses raw JSON that must be an object.
func DecodeObject(raw json.RawMessage) (*Map, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if v.kind != Object {
		return nil, fmt.Errorf("expected object, got %s", v.kind)
	}
	return v.obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Nil(), nil
	case string:
		return Str(t), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Num(f), nil
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is not a string")
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Obj(m), nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Arr(items...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// MarshalJSON serializes the value, objects in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case String:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Number:
		buf.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case List:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, key := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj.vals[key].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Canonical returns a deterministic serialization used for hashing and
// permission-key derivation. Identical arguments always canonicalize
// identically.
func (v Value) Canonical() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

// Interface converts to plain Go values (map[string]any, []any, ...) for
// schema validation and mapstructure decoding. Object order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case Null:
		return nil
	case String:
		return v.str
	case Number:
		return v.num
	case Bool:
		return v.b
	case List:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, v.obj.Len())
		for _, key := range v.obj.keys {
			out[key] = v.obj.vals[key].Interface()
		}
		return out
	}
	return nil
}

// MapInterface is Interface for an ordered map.
func (m *Map) MapInterface() map[string]any {
	out := make(map[string]any, m.Len())
	for _, key := range m.keys {
		out[key] = m.vals[key].Interface()
	}
	return out
}

// Canonical returns the deterministic serialization of the map.
func (m *Map) Canonical() string {
	return Obj(m).Canonical()
}
