// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html

// Package cellvalue models the loosely shaped cell payloads sent by the
// spreadsheet UI and reduces them to numbers.
package cellvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxDepth bounds how many wrapper levels ExtractNumber follows.
const MaxDepth = 32

// Value is one cell payload. It is one of Number, Text, Bool, Null,
// *Wrapped, *Keyed or Object.
type Value interface {
	isValue()
}

type Number float64

type Text string

type Bool bool

// Null carries no value: JSON null, arrays and anything else without a
// numeric signal.
type Null struct{}

// Wrapped is an object with a "value" field, e.g. {"value": 10, "style": {...}}.
// The remaining fields are kept so the payload can be sent back unchanged.
type Wrapped struct {
	Value Value
	Extra map[string]any
}

// Keyed is a single-key object without a "value" field, e.g. {"A1": {...}}.
type Keyed struct {
	Key   string
	Value Value
}

// Object is an object with zero or several keys and no "value" field.
type Object struct {
	Fields map[string]any
}

func (Number) isValue()   {}
func (Text) isValue()     {}
func (Bool) isValue()     {}
func (Null) isValue()     {}
func (*Wrapped) isValue() {}
func (*Keyed) isValue()   {}
func (Object) isValue()   {}

// FromAny converts a decoded JSON value (as produced by encoding/json into
// an interface{}) into a Value.
func FromAny(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null{}
	case Value:
		return v
	case float64:
		return Number(v)
	case float32:
		return Number(v)
	case int:
		return Number(v)
	case int64:
		return Number(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Number(f)
		}
		return Text(v.String())
	case string:
		return Text(v)
	case bool:
		return Bool(v)
	case map[string]any:
		if inner, ok := v["value"]; ok {
			extra := make(map[string]any, len(v)-1)
			for key, field := range v {
				if key != "value" {
					extra[key] = field
				}
			}
			return &Wrapped{Value: FromAny(inner), Extra: extra}
		}
		if len(v) == 1 {
			for key, inner := range v {
				return &Keyed{Key: key, Value: FromAny(inner)}
			}
		}
		return Object{Fields: v}
	}
	return Null{}
}

// ToAny is the inverse of FromAny, suitable for encoding/json.
func ToAny(v Value) any {
	return toAny(v, 0)
}

func toAny(v Value, depth int) any {
	if depth > MaxDepth {
		return nil
	}
	switch v := v.(type) {
	case Number:
		return float64(v)
	case Text:
		return string(v)
	case Bool:
		return bool(v)
	case *Wrapped:
		if v == nil {
			return nil
		}
		out := make(map[string]any, len(v.Extra)+1)
		for key, field := range v.Extra {
			out[key] = field
		}
		out["value"] = toAny(v.Value, depth+1)
		return out
	case *Keyed:
		if v == nil {
			return nil
		}
		return map[string]any{v.Key: toAny(v.Value, depth+1)}
	case Object:
		if v.Fields == nil {
			return map[string]any{}
		}
		return v.Fields
	}
	return nil
}

// ExtractNumber reduces a cell payload to a number. It never fails: anything
// without a numeric signal, and anything nested deeper than MaxDepth, is 0.
func ExtractNumber(v Value) float64 {
	return extract(v, 0)
}

func extract(v Value, depth int) float64 {
	if depth > MaxDepth {
		return 0
	}
	switch v := v.(type) {
	case Number:
		return finite(float64(v))
	case Text:
		n, _ := ParseNumber(string(v))
		return n
	case Bool:
		if v {
			return 1
		}
		return 0
	case *Wrapped:
		if v == nil {
			return 0
		}
		return extract(v.Value, depth+1)
	case *Keyed:
		if v == nil {
			return 0
		}
		return extract(v.Value, depth+1)
	}
	return 0
}

// ParseNumber parses numeric text, ignoring surrounding whitespace. NaN and
// infinities are not numbers here.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a number the shortest way that parses back to it,
// without an exponent.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// List is a JSON array of cell payloads.
type List []Value

func (l *List) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("values must be an array: %w", err)
	}
	*l = make(List, len(raw))
	for i, v := range raw {
		(*l)[i] = FromAny(v)
	}
	return nil
}

// Sheet maps cell references such as "A1" to their payloads for a single
// evaluation.
type Sheet map[string]Value

func (s *Sheet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cells must be an object: %w", err)
	}
	*s = make(Sheet, len(raw))
	for ref, v := range raw {
		(*s)[ref] = FromAny(v)
	}
	return nil
}

func (s Sheet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s))
	for ref, v := range s {
		out[ref] = ToAny(v)
	}
	return json.Marshal(out)
}
