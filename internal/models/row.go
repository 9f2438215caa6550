package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a cell Value holds
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindString
	KindNumber
)

// Value is a single spreadsheet cell: a string, a number or nothing
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// StringValue wraps a string cell. A blank string is an empty cell, which is
// what the decoders produce for it.
func StringValue(s string) Value {
	if s == "" {
		return EmptyValue()
	}
	return Value{Kind: KindString, Str: s}
}

// NumberValue wraps a numeric cell
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// EmptyValue is a blank cell
func EmptyValue() Value {
	return Value{}
}

// IsEmpty reports whether the cell is blank
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String renders the cell the way a spreadsheet shows it
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the cell as an integer. Numbers must be integral and
// strings must parse as base-10 integers after trimming. Either way the
// result must fit in 32 bits, the width of a GraphQL Int.
func (v Value) Int() (int, bool) {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) || v.Num != math.Trunc(v.Num) {
			return 0, false
		}
		if v.Num < math.MinInt32 || v.Num > math.MaxInt32 {
			return 0, false
		}
		return int(v.Num), true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 32)
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// MarshalJSON writes numbers as JSON numbers, strings as strings and blanks as ""
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte(`""`), nil
	}
}

// Row is a header-keyed record that remembers column order
type Row struct {
	keys   []string
	values map[string]Value
}

// NewRow creates an empty row
func NewRow() Row {
	return Row{keys: []string{}, values: map[string]Value{}}
}

// RowOf builds a row from alternating key/value pairs, mostly for tests and fixtures
func RowOf(pairs ...interface{}) Row {
	r := NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch val := pairs[i+1].(type) {
		case Value:
			r.Set(key, val)
		case string:
			r.Set(key, StringValue(val))
		case int:
			r.Set(key, NumberValue(float64(val)))
		case float64:
			r.Set(key, NumberValue(val))
		case nil:
			r.Set(key, EmptyValue())
		}
	}
	return r
}

// Set assigns key, appending it to the column order the first time it is seen
func (r *Row) Set(key string, v Value) {
	if r.values == nil {
		r.values = map[string]Value{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the cell under key
func (r Row) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Text returns the cell under key as display text, "" when missing
func (r Row) Text(key string) string {
	return r.values[key].String()
}

// Keys returns the column order
func (r Row) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of columns
func (r Row) Len() int {
	return len(r.keys)
}

// IsBlank reports whether every cell is empty
func (r Row) IsBlank() bool {
	for _, v := range r.values {
		if v.Kind != KindEmpty {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (r Row) Clone() Row {
	c := Row{keys: make([]string, len(r.keys)), values: make(map[string]Value, len(r.values))}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// With returns a copy of the row with key set to a string value
func (r Row) With(key, value string) Row {
	c := r.Clone()
	c.Set(key, StringValue(value))
	return c
}

// MarshalJSON writes the row as an object with keys in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := r.values[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
