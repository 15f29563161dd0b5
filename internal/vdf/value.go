package vdf

import (
	"math"
	"strings"
	"unicode/utf16"
)

// Kind is the one-byte type tag that precedes every field on disk.
type Kind byte

const (
	KindMap        Kind = 0x00
	KindString     Kind = 0x01
	KindInt32      Kind = 0x02
	KindFloat32    Kind = 0x03
	KindPointer    Kind = 0x04
	KindWideString Kind = 0x05
	KindColor      Kind = 0x06
	KindUint64     Kind = 0x07
	KindInt64      Kind = 0x0A
)

// String returns the human-readable name of a kind.
func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindPointer:
		return "pointer"
	case KindWideString:
		return "wstring"
	case KindColor:
		return "color"
	case KindUint64:
		return "uint64"
	case KindInt64:
		return "int64"
	default:
		return "unknown"
	}
}

// Value is a single node of the tree. The zero Value is an empty map.
type Value struct {
	kind Kind
	str  string
	wide []uint16
	num  uint64
	m    Map
}

// Field is one (key, value) pair of a Map.
type Field struct {
	Key   string
	Value Value
}

// Map is an ordered list of fields. Key order is significant and is
// preserved by Decode and Encode.
type Map []Field

// String returns a UTF-8 string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// WideString returns a UTF-16 string value.
func WideString(s string) Value {
	return Value{kind: KindWideString, wide: utf16.Encode([]rune(s))}
}

// Int32 returns a 32-bit signed integer value.
func Int32(v int32) Value { return Value{kind: KindInt32, num: uint64(uint32(v))} }

// Bool returns the int32 encoding Steam uses for flags.
func Bool(b bool) Value {
	if b {
		return Int32(1)
	}
	return Int32(0)
}

// Float32 returns a 32-bit float value.
func Float32(f float32) Value { return Value{kind: KindFloat32, num: uint64(math.Float32bits(f))} }

// Pointer returns a 32-bit pointer value.
func Pointer(v uint32) Value { return Value{kind: KindPointer, num: uint64(v)} }

// Color returns a 32-bit color value.
func Color(v uint32) Value { return Value{kind: KindColor, num: uint64(v)} }

// Uint64 returns a 64-bit unsigned integer value.
func Uint64(v uint64) Value { return Value{kind: KindUint64, num: v} }

// Int64 returns a 64-bit signed integer value.
func Int64(v int64) Value { return Value{kind: KindInt64, num: uint64(v)} }

// Object returns a nested map value.
func Object(m Map) Value { return Value{kind: KindMap, m: m} }

// Kind reports the type of the value.
func (v Value) Kind() Kind { return v.kind }

// Str returns the contents of a string or wide string value, and ""
// for any other kind.
func (v Value) Str() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindWideString:
		return string(utf16.Decode(v.wide))
	}
	return ""
}

// Int32 returns the value of an int32 field.
func (v Value) Int32() int32 { return int32(uint32(v.num)) }

// Uint32 returns the raw 32 bits of an int32, pointer, or color field.
func (v Value) Uint32() uint32 { return uint32(v.num) }

// Float32 returns the value of a float32 field.
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.num)) }

// Uint64 returns the value of a uint64 field.
func (v Value) Uint64() uint64 { return v.num }

// Int64 returns the value of an int64 field.
func (v Value) Int64() int64 { return int64(v.num) }

// Map returns the children of a map value, or nil for scalars.
func (v Value) Map() Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Equal reports whether two values are structurally equal: same kind,
// same payload, and for maps the same keys in the same order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindMap:
		return v.m.Equal(o.m)
	case KindString:
		return v.str == o.str
	case KindWideString:
		if len(v.wide) != len(o.wide) {
			return false
		}
		for i := range v.wide {
			if v.wide[i] != o.wide[i] {
				return false
			}
		}
		return true
	case KindInt32, KindFloat32, KindPointer, KindColor:
		return uint32(v.num) == uint32(o.num)
	default:
		return v.num == o.num
	}
}

// Equal reports whether two maps hold equal fields in the same order.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if m[i].Key != o[i].Key || !m[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// Get returns the value stored under key (exact match).
func (m Map) Get(key string) (Value, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Lookup returns the first value whose key matches key ignoring case,
// along with the key as spelled in the map.
func (m Map) Lookup(key string) (Value, string, bool) {
	for _, f := range m {
		if strings.EqualFold(f.Key, key) {
			return f.Value, f.Key, true
		}
	}
	return Value{}, "", false
}

// Set replaces the value under key, or appends a new field.
func (m Map) Set(key string, v Value) Map {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, Field{Key: key, Value: v})
}

// Delete removes every field stored under key.
func (m Map) Delete(key string) Map {
	out := m[:0]
	for _, f := range m {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// Keys returns the keys in order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}
