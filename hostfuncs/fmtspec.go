package hostfuncs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
)

// MaxFormatArgs is the largest number of arguments a format may consume.
const MaxFormatArgs = 100

// MaxFormatLength is the longest accepted format string in bytes.
const MaxFormatLength = 8192

// formatVerbs are the conversion characters that terminate a specification.
const formatVerbs = "diosfeEgGxXaAscpn"

// FormatRequest contains one printf-style format string.
type FormatRequest struct {
	Format string `json:"format"`
}

// FormatField describes one argument slot consumed by a format.
type FormatField struct {
	// Spec is the conversion specification without any "n$" position,
	// e.g. "%5.2f", or "*" for a width/precision taken from an argument.
	Spec string `json:"spec"`

	// Verb is the conversion character, or "*" for star arguments.
	Verb string `json:"verb"`

	// Flags holds any of "-+ #0".
	Flags string `json:"flags,omitempty"`

	// Width is the literal field width, "*" or empty.
	Width string `json:"width,omitempty"`

	// Precision is the literal precision (without '.'), "*" or empty.
	Precision string `json:"precision,omitempty"`

	// Index is the 1-based argument position this field consumes.
	Index int `json:"index"`
}

// FormatResponse lists the fields in argument order.
type FormatResponse struct {
	// Error is set when the format is malformed.
	Error *entities.ErrorDetail `json:"error,omitempty"`

	// Fields has one entry per argument position; positions not referenced
	// by the format have an empty Spec.
	Fields []FormatField `json:"fields"`
}

// PerformGetFormats splits a format string into the conversion
// specifications that consume arguments. "%%" consumes nothing. Explicit
// positions ("%2$s", "%*1$d") are honoured; at most one '*' may appear in
// each specification.
func PerformGetFormats(_ context.Context, req FormatRequest) FormatResponse {
	fields, err := parseFormats(req.Format)
	if err != nil {
		return FormatResponse{Error: bridgeerrors.ToErrorDetail(err)}
	}
	return FormatResponse{Fields: fields}
}

func parseFormats(format string) ([]FormatField, error) {
	if len(format) > MaxFormatLength {
		return nil, &bridgeerrors.InvalidArgumentError{
			Argument: "fmt",
			Reason:   fmt.Sprintf("length exceeds maximal format length %d", MaxFormatLength),
		}
	}

	slots := make([]FormatField, 0, 4)
	set := func(pos int, f FormatField) error {
		if pos >= MaxFormatArgs {
			return &bridgeerrors.ParseError{Message: fmt.Sprintf("only %d arguments are allowed", MaxFormatArgs)}
		}
		for len(slots) <= pos {
			slots = append(slots, FormatField{Index: len(slots) + 1})
		}
		f.Index = pos + 1
		slots[pos] = f
		return nil
	}

	cnt := 0
	for cur := 0; cur < len(format); {
		if format[cur] != '%' {
			next := strings.IndexByte(format[cur:], '%')
			if next < 0 {
				break
			}
			cur += next
			continue
		}
		if cur+1 < len(format) && format[cur+1] == '%' {
			cur += 2
			continue
		}

		end := strings.IndexAny(format[cur+1:], formatVerbs)
		if end < 0 {
			return nil, &bridgeerrors.ParseError{
				Message: fmt.Sprintf("unrecognised format specification '%s'", format[cur:]),
				Line:    1,
				Column:  cur + 1,
			}
		}
		spec := format[cur : cur+end+2]
		column := cur + 1
		cur += end + 2

		// "%n$..." selects the argument explicitly.
		body := spec[1:]
		if digits := leadingDigits(body); digits > 0 && digits < len(body) && body[digits] == '$' {
			n, _ := strconv.Atoi(body[:digits])
			if n < 1 {
				return nil, &bridgeerrors.ParseError{Message: fmt.Sprintf("invalid position in '%s'", spec), Line: 1, Column: column}
			}
			cnt = n - 1
			body = body[digits+1:]
		}

		if strings.Count(body, "*") > 1 {
			return nil, &bridgeerrors.ParseError{
				Message: "at most one asterisk '*' is supported in each conversion specification",
				Line:    1,
				Column:  column,
			}
		}
		if star := strings.IndexByte(body, '*'); star >= 0 {
			starPos := -1
			after := body[star+1:]
			if digits := leadingDigits(after); digits > 0 && digits < len(after) && after[digits] == '$' {
				n, _ := strconv.Atoi(after[:digits])
				starPos = n - 1
				body = body[:star+1] + after[digits+1:]
			}
			if starPos < 0 {
				starPos = cnt
				cnt++
			}
			if err := set(starPos, FormatField{Spec: "*", Verb: "*"}); err != nil {
				return nil, err
			}
		}

		field := describeSpec("%" + body)
		if err := set(cnt, field); err != nil {
			return nil, err
		}
		cnt++
	}
	return slots, nil
}

// describeSpec splits "%[flags][width][.precision]verb" into its parts.
func describeSpec(spec string) FormatField {
	f := FormatField{Spec: spec, Verb: spec[len(spec)-1:]}
	body := spec[1 : len(spec)-1]

	i := 0
	for i < len(body) && strings.IndexByte("-+ #0", body[i]) >= 0 {
		i++
	}
	f.Flags = body[:i]
	body = body[i:]

	if dot := strings.IndexByte(body, '.'); dot >= 0 {
		f.Width = body[:dot]
		f.Precision = body[dot+1:]
	} else {
		f.Width = body
	}
	return f
}

func leadingDigits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
