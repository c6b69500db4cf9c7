package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ValueKind identifies the variant held by a Value.
type ValueKind string

const (
	KindNull      ValueKind = "null"
	KindLogical   ValueKind = "logical"
	KindInteger   ValueKind = "integer"
	KindDouble    ValueKind = "double"
	KindCharacter ValueKind = "character"
	KindList      ValueKind = "list"
	KindCondition ValueKind = "condition"
)

// Value is an opaque host value as seen from the bridge side of the boundary.
// It is a tagged variant: exactly one of the typed slices is meaningful,
// selected by Kind. Vectors carry an NA mask parallel to their values.
//
// The bridge borrows Values for the duration of a call and never retains them.
type Value struct {
	Attributes map[string]Value
	Condition  *ErrorDetail
	Logicals   []bool
	Ints       []int
	Doubles    []float64
	Strings    []string
	Elements   []Value
	NA         []bool
	Kind       ValueKind
}

// Null returns the "no value" sentinel.
func Null() Value { return Value{Kind: KindNull} }

// Logicals builds a logical vector.
func Logicals(v ...bool) Value { return Value{Kind: KindLogical, Logicals: v} }

// Integers builds an integer vector.
func Integers(v ...int) Value { return Value{Kind: KindInteger, Ints: v} }

// Doubles builds a double vector.
func Doubles(v ...float64) Value { return Value{Kind: KindDouble, Doubles: v} }

// Strings builds a character vector.
func Strings(v ...string) Value { return Value{Kind: KindCharacter, Strings: v} }

// List builds a generic vector.
func List(elems ...Value) Value { return Value{Kind: KindList, Elements: elems} }

// NamedList builds a list whose "names" attribute is taken from the map keys
// in sorted order.
func NamedList(fields map[string]Value) Value {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	elems := make([]Value, len(names))
	for i, n := range names {
		elems[i] = fields[n]
	}
	return List(elems...).WithAttr("names", Strings(names...))
}

// ConditionValue wraps an error detail as a host condition.
func ConditionValue(detail *ErrorDetail) Value {
	return Value{Kind: KindCondition, Condition: detail}
}

// Len returns the number of elements in a vector or list; 0 for null and conditions.
func (v Value) Len() int {
	switch v.Kind {
	case KindLogical:
		return len(v.Logicals)
	case KindInteger:
		return len(v.Ints)
	case KindDouble:
		return len(v.Doubles)
	case KindCharacter:
		return len(v.Strings)
	case KindList:
		return len(v.Elements)
	default:
		return 0
	}
}

// IsNull reports whether v is the null sentinel.
func (v Value) IsNull() bool { return v.Kind == KindNull || v.Kind == "" }

// IsCondition reports whether v carries an error.
func (v Value) IsCondition() bool { return v.Kind == KindCondition }

// IsNA reports whether element i is missing.
func (v Value) IsNA(i int) bool {
	if i < len(v.NA) && v.NA[i] {
		return true
	}
	if v.Kind == KindDouble && i < len(v.Doubles) {
		return math.IsNaN(v.Doubles[i])
	}
	return false
}

// WithNA returns v with element i marked missing.
func (v Value) WithNA(i int) Value {
	n := v.Len()
	if i < 0 || i >= n {
		return v
	}
	na := make([]bool, n)
	copy(na, v.NA)
	na[i] = true
	v.NA = na
	return v
}

// WithAttr returns v with the named attribute set.
func (v Value) WithAttr(name string, attr Value) Value {
	attrs := make(map[string]Value, len(v.Attributes)+1)
	for k, a := range v.Attributes {
		attrs[k] = a
	}
	attrs[name] = attr
	v.Attributes = attrs
	return v
}

// Attr returns the named attribute.
func (v Value) Attr(name string) (Value, bool) {
	a, ok := v.Attributes[name]
	return a, ok
}

// Field returns the element of a named list.
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindList {
		return Value{}, false
	}
	names, ok := v.Attr("names")
	if !ok {
		return Value{}, false
	}
	for i, n := range names.Strings {
		if n == name && i < len(v.Elements) {
			return v.Elements[i], true
		}
	}
	return Value{}, false
}

// AsStrings returns the elements of a character vector. NA elements become "".
func (v Value) AsStrings() ([]string, bool) {
	if v.Kind != KindCharacter {
		return nil, false
	}
	out := make([]string, len(v.Strings))
	for i, s := range v.Strings {
		if !v.IsNA(i) {
			out[i] = s
		}
	}
	return out, true
}

// AsString returns the first element of a character vector.
func (v Value) AsString() (string, bool) {
	ss, ok := v.AsStrings()
	if !ok || len(ss) == 0 || v.IsNA(0) {
		return "", false
	}
	return ss[0], true
}

// AsInts coerces integer, double and logical vectors to ints.
// The second result lists which elements were NA.
func (v Value) AsInts() ([]int, []bool, bool) {
	n := v.Len()
	out := make([]int, n)
	na := make([]bool, n)
	switch v.Kind {
	case KindInteger:
		copy(out, v.Ints)
	case KindDouble:
		for i, d := range v.Doubles {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				na[i] = true
				continue
			}
			out[i] = int(d)
		}
	case KindLogical:
		for i, b := range v.Logicals {
			if b {
				out[i] = 1
			}
		}
	default:
		return nil, nil, false
	}
	for i := range out {
		if v.IsNA(i) {
			na[i] = true
		}
	}
	return out, na, true
}

// AsInt returns the first element of a numeric vector.
func (v Value) AsInt() (int, bool) {
	ints, na, ok := v.AsInts()
	if !ok || len(ints) == 0 || na[0] {
		return 0, false
	}
	return ints[0], true
}

// AsBool returns the first element of a logical vector.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindLogical || len(v.Logicals) == 0 || v.IsNA(0) {
		return false, false
	}
	return v.Logicals[0], true
}

// valueWire is the JSON form of a Value.
type valueWire struct {
	Attributes map[string]Value `json:"attributes,omitempty"`
	Condition  *ErrorDetail     `json:"condition,omitempty"`
	Values     json.RawMessage  `json:"values,omitempty"`
	NA         []bool           `json:"na,omitempty"`
	Type       ValueKind        `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := valueWire{
		Type:       v.Kind,
		Attributes: v.Attributes,
		Condition:  v.Condition,
	}
	if w.Type == "" {
		w.Type = KindNull
	}
	var payload any
	switch w.Type {
	case KindLogical:
		payload = nonNil(v.Logicals)
	case KindInteger:
		payload = nonNil(v.Ints)
	case KindDouble:
		// NaN is not valid JSON; NA positions are encoded in the mask.
		ds := make([]float64, len(v.Doubles))
		for i, d := range v.Doubles {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				continue
			}
			ds[i] = d
		}
		payload = ds
	case KindCharacter:
		payload = RawStrings(nonNil(v.Strings))
	case KindList:
		payload = nonNil(v.Elements)
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		w.Values = raw
	}
	if hasNA(v) {
		w.NA = make([]bool, v.Len())
		for i := range w.NA {
			w.NA[i] = v.IsNA(i)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Value{Kind: w.Type, Attributes: w.Attributes, Condition: w.Condition, NA: w.NA}
	if out.Kind == "" {
		out.Kind = KindNull
	}
	var target any
	switch out.Kind {
	case KindNull, KindCondition:
	case KindLogical:
		target = &out.Logicals
	case KindInteger:
		target = &out.Ints
	case KindDouble:
		target = &out.Doubles
	case KindCharacter:
		target = (*RawStrings)(&out.Strings)
	case KindList:
		target = &out.Elements
	default:
		return fmt.Errorf("unknown host value type %q", w.Type)
	}
	if target != nil && len(w.Values) > 0 {
		if err := json.Unmarshal(w.Values, target); err != nil {
			return fmt.Errorf("decode %s values: %w", out.Kind, err)
		}
	}
	if out.Kind == KindDouble {
		for i := range out.Doubles {
			if i < len(out.NA) && out.NA[i] {
				out.Doubles[i] = math.NaN()
			}
		}
	}
	*v = out
	return nil
}

func hasNA(v Value) bool {
	for i := 0; i < v.Len(); i++ {
		if v.IsNA(i) {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
