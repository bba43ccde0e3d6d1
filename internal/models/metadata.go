package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Recognized metadata keys. Any other key is allowed; these are the ones the
// pipeline itself reads and writes.
const (
	KeySource      = "source"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
)

// ValueKind discriminates the type held by a metadata Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a small tagged union for metadata: string, number, or bool.
// The zero value is the empty string.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	default:
		return v.Str == o.Str
	}
}

// MarshalJSON encodes the value as a bare JSON string, number, or bool.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.Num, 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON decodes a JSON string, number, or bool into the union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	default:
		return fmt.Errorf("metadata value must be string, number, or bool, got %T", raw)
	}
	return nil
}

// Metadata is an open key-value map attached to a chunk.
type Metadata map[string]Value

// Matches reports whether m contains every key of filter with an equal value
// (superset match). A nil or empty filter matches everything.
func (m Metadata) Matches(filter Metadata) bool {
	for k, want := range filter {
		got, ok := m[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of m (values are immutable).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
