package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the JSON type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is an arbitrary JSON value tagged with its Kind. It keeps the
// original encoding so params and results round-trip unchanged.
type Value struct {
	kind Kind
	raw  json.RawMessage
}

// NewValue encodes v.
func NewValue(v any) (Value, error) {
	if rv, ok := v.(Value); ok {
		return rv, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	var out Value
	if err := out.UnmarshalJSON(b); err != nil {
		return Value{}, err
	}
	return out, nil
}

// MustValue is NewValue for values known to encode.
func MustValue(v any) Value {
	out, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Kind returns the JSON type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null or unset.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Raw returns the encoded JSON.
func (v Value) Raw() json.RawMessage {
	if len(v.raw) == 0 {
		return json.RawMessage("null")
	}
	return v.raw
}

// Decode unmarshals the value into out.
func (v Value) Decode(out any) error {
	return json.Unmarshal(v.Raw(), out)
}

// Bool returns the value if it holds a bool.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(v.raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// Equal compares two values by their compacted encoding.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	var a, b bytes.Buffer
	if err := json.Compact(&a, v.Raw()); err != nil {
		return false
	}
	if err := json.Compact(&b, o.Raw()); err != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

func (v Value) MarshalJSON() ([]byte, error) { return v.Raw(), nil }

func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return fmt.Errorf("jsonrpc: empty value")
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("jsonrpc: invalid json value")
	}
	switch c := trimmed[0]; {
	case c == 'n':
		v.kind = KindNull
	case c == 't' || c == 'f':
		v.kind = KindBool
	case c == '"':
		v.kind = KindString
	case c == '[':
		v.kind = KindArray
	case c == '{':
		v.kind = KindObject
	default:
		v.kind = KindNumber
	}
	v.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}
