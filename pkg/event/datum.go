// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// ErrUnserializable is returned when encoding a Datum that holds an opaque Go value.
var ErrUnserializable = errors.New("payload value is not serializable")

// Kind tags the variant held by a Datum.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindOpaque
)

var kindCodes = map[Kind]string{
	KindNull:   "n",
	KindBool:   "b",
	KindInt:    "i",
	KindFloat:  "f",
	KindString: "s",
	KindBytes:  "x",
	KindList:   "l",
	KindMap:    "m",
	KindOpaque: "o",
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Datum is a tagged payload value. The zero value is null.
type Datum struct {
	kind Kind
	v    any
}

// Of converts a Go value into a Datum. Scalars, byte slices, slices and string-keyed
// maps map onto their kinds; any other value is kept as an opaque in-process value.
func Of(v any) Datum {
	switch x := v.(type) {
	case nil:
		return Datum{}
	case Datum:
		return x
	case bool:
		return Datum{kind: KindBool, v: x}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return Datum{kind: KindInt, v: cast.ToInt64(x)}
	case uint64:
		if x > 1<<63-1 {
			return Datum{kind: KindOpaque, v: x}
		}
		return Datum{kind: KindInt, v: int64(x)}
	case float32:
		return Datum{kind: KindFloat, v: float64(x)}
	case float64:
		return Datum{kind: KindFloat, v: x}
	case string:
		return Datum{kind: KindString, v: x}
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return Datum{kind: KindBytes, v: b}
	case []Datum:
		l := make([]Datum, len(x))
		copy(l, x)
		return Datum{kind: KindList, v: l}
	case []any:
		l := make([]Datum, len(x))
		for i, e := range x {
			l[i] = Of(e)
		}
		return Datum{kind: KindList, v: l}
	case []string:
		l := make([]Datum, len(x))
		for i, e := range x {
			l[i] = Of(e)
		}
		return Datum{kind: KindList, v: l}
	case map[string]Datum:
		m := make(map[string]Datum, len(x))
		for k, e := range x {
			m[k] = e
		}
		return Datum{kind: KindMap, v: m}
	case map[string]any:
		m := make(map[string]Datum, len(x))
		for k, e := range x {
			m[k] = Of(e)
		}
		return Datum{kind: KindMap, v: m}
	case map[string]string:
		m := make(map[string]Datum, len(x))
		for k, e := range x {
			m[k] = Of(e)
		}
		return Datum{kind: KindMap, v: m}
	default:
		return Datum{kind: KindOpaque, v: x}
	}
}

// Kind returns the variant tag.
func (d Datum) Kind() Kind { return d.kind }

// IsNull reports whether the datum is null.
func (d Datum) IsNull() bool { return d.kind == KindNull }

// Interface returns the native Go value: nil, bool, int64, float64, string, []byte,
// []any, map[string]any or the opaque value itself.
func (d Datum) Interface() any {
	switch d.kind {
	case KindList:
		l := d.v.([]Datum)
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		m := d.v.(map[string]Datum)
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = e.Interface()
		}
		return out
	default:
		return d.v
	}
}

// AsBool converts the datum to a bool.
func (d Datum) AsBool() (bool, error) { return cast.ToBoolE(d.scalar()) }

// AsInt converts the datum to an int64.
func (d Datum) AsInt() (int64, error) { return cast.ToInt64E(d.scalar()) }

// AsFloat converts the datum to a float64.
func (d Datum) AsFloat() (float64, error) { return cast.ToFloat64E(d.scalar()) }

// AsString converts the datum to a string.
func (d Datum) AsString() (string, error) {
	if d.kind == KindBytes {
		return string(d.v.([]byte)), nil
	}
	return cast.ToStringE(d.scalar())
}

// List returns the elements of a list datum, or nil for other kinds.
func (d Datum) List() []Datum {
	if d.kind != KindList {
		return nil
	}
	l := d.v.([]Datum)
	out := make([]Datum, len(l))
	copy(out, l)
	return out
}

// Map returns the entries of a map datum, or nil for other kinds.
func (d Datum) Map() map[string]Datum {
	if d.kind != KindMap {
		return nil
	}
	m := d.v.(map[string]Datum)
	out := make(map[string]Datum, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Serializable reports whether the datum, including nested values, can be encoded.
func (d Datum) Serializable() bool {
	switch d.kind {
	case KindOpaque:
		return false
	case KindList:
		for _, e := range d.v.([]Datum) {
			if !e.Serializable() {
				return false
			}
		}
	case KindMap:
		for _, e := range d.v.(map[string]Datum) {
			if !e.Serializable() {
				return false
			}
		}
	}
	return true
}

// String renders the datum for diagnostics.
func (d Datum) String() string {
	switch d.kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("%q", d.v)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(d.v.([]byte)))
	case KindList:
		l := d.v.([]Datum)
		parts := make([]string, len(l))
		for i, e := range l {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		m := d.v.(map[string]Datum)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(d.v)
	}
}

func (d Datum) scalar() any {
	if d.kind == KindList || d.kind == KindMap {
		return d.Interface()
	}
	return d.v
}

type wireDatum struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON encodes the datum with its kind tag so integer and float values
// survive a round trip. Opaque values fail with ErrUnserializable.
func (d Datum) MarshalJSON() ([]byte, error) {
	if d.kind == KindOpaque {
		return nil, fmt.Errorf("%w: %T", ErrUnserializable, d.v)
	}
	w := wireDatum{T: kindCodes[d.kind]}
	if d.kind != KindNull {
		raw, err := json.Marshal(d.v)
		if err != nil {
			return nil, err
		}
		w.V = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a kind-tagged datum.
func (d *Datum) UnmarshalJSON(data []byte) error {
	var w wireDatum
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var err error
	switch w.T {
	case "n":
		*d = Datum{}
	case "b":
		var v bool
		err = json.Unmarshal(w.V, &v)
		*d = Datum{kind: KindBool, v: v}
	case "i":
		var v int64
		err = json.Unmarshal(w.V, &v)
		*d = Datum{kind: KindInt, v: v}
	case "f":
		var v float64
		err = json.Unmarshal(w.V, &v)
		*d = Datum{kind: KindFloat, v: v}
	case "s":
		var v string
		err = json.Unmarshal(w.V, &v)
		*d = Datum{kind: KindString, v: v}
	case "x":
		var v []byte
		err = json.Unmarshal(w.V, &v)
		*d = Datum{kind: KindBytes, v: v}
	case "l":
		var v []Datum
		err = json.Unmarshal(w.V, &v)
		if v == nil {
			v = []Datum{}
		}
		*d = Datum{kind: KindList, v: v}
	case "m":
		var v map[string]Datum
		err = json.Unmarshal(w.V, &v)
		if v == nil {
			v = map[string]Datum{}
		}
		*d = Datum{kind: KindMap, v: v}
	default:
		return fmt.Errorf("unknown datum kind %q", w.T)
	}
	return err
}
