package entities

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// RawString is a string that survives JSON transport byte for byte.
//
// Valid UTF-8 is encoded as a JSON string. Anything else (latin1 file
// names, undeclared native encodings) is encoded as {"base64": "..."},
// because encoding/json replaces invalid bytes with U+FFFD. Both forms
// are accepted when decoding.
type RawString string

type rawBytes struct {
	Base64 string `json:"base64"`
}

// MarshalJSON implements json.Marshaler.
func (s RawString) MarshalJSON() ([]byte, error) {
	if utf8.ValidString(string(s)) {
		return json.Marshal(string(s))
	}
	return json.Marshal(rawBytes{Base64: base64.StdEncoding.EncodeToString([]byte(s))})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RawString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var raw rawBytes
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(raw.Base64)
		if err != nil {
			return fmt.Errorf("decode raw string: %w", err)
		}
		*s = RawString(b)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RawString(str)
	return nil
}

// RawStrings is a []string whose elements are encoded as RawString.
// A plain []string is assignable to it.
type RawStrings []string

// MarshalJSON implements json.Marshaler.
func (ss RawStrings) MarshalJSON() ([]byte, error) {
	if ss == nil {
		return []byte("null"), nil
	}
	out := make([]RawString, len(ss))
	for i, s := range ss {
		out[i] = RawString(s)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ss *RawStrings) UnmarshalJSON(data []byte) error {
	var in []RawString
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in == nil {
		*ss = nil
		return nil
	}
	out := make(RawStrings, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	*ss = out
	return nil
}
