package hostfuncs

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
)

// DelimMatchRequest contains the strings to scan and the delimiter pair.
type DelimMatchRequest struct {
	// Text holds the strings to scan.
	Text entities.RawStrings `json:"text"`

	// Delims must hold exactly two non-empty strings: start and end delimiter.
	Delims []string `json:"delims"`
}

// DelimMatchResponse holds one match span per input string.
type DelimMatchResponse struct {
	// Error is set when the delimiter specification is malformed.
	Error *entities.ErrorDetail `json:"error,omitempty"`

	// Start is the 1-based character position of the start delimiter, or -1.
	Start []int `json:"start"`

	// Length is the span length in characters including both delimiters, or -1.
	Length []int `json:"length"`
}

// PerformDelimMatch finds the first balanced delimited substring of each string.
//
// A backslash escapes the following character, and '%' starts a comment that
// runs to the end of the line. Nested start delimiters raise the depth; the
// match ends when the depth returns to zero. When both delimiters are equal
// the first occurrence opens and the second closes.
func PerformDelimMatch(_ context.Context, req DelimMatchRequest) DelimMatchResponse {
	if len(req.Delims) != 2 || req.Delims[0] == "" || req.Delims[1] == "" {
		err := &bridgeerrors.InvalidArgumentError{Argument: "delims", Reason: "must be two non-empty strings"}
		return DelimMatchResponse{Error: err.ToErrorDetail()}
	}

	resp := DelimMatchResponse{
		Start:  make([]int, len(req.Text)),
		Length: make([]int, len(req.Text)),
	}
	for i, s := range req.Text {
		resp.Start[i], resp.Length[i] = delimMatch(s, req.Delims[0], req.Delims[1])
	}
	return resp
}

func delimMatch(s, open, close string) (int, int) {
	same := open == close
	start, end := -1, -1
	depth := 0
	escaped := false
	pos := 0

	for off := 0; off < len(s); {
		rest := s[off:]
		c := rest[0]
		switch {
		case c == '\n':
			escaped = false
		case c == '\\':
			escaped = !escaped
		case escaped:
			escaped = false
		case c == '%':
			// skip to the newline, which is handled on the next iteration
			for off < len(s) && s[off] != '\n' {
				off += runeLen(s[off:])
				pos++
			}
			continue
		case strings.HasPrefix(rest, close):
			switch {
			case depth > 1:
				depth--
			case depth == 1:
				end = pos
			case same:
				start = pos
				depth++
			}
		case strings.HasPrefix(rest, open):
			if depth == 0 {
				start = pos
			}
			depth++
		}
		if end >= 0 {
			break
		}
		off += runeLen(rest)
		pos++
	}

	if end < 0 {
		return -1, -1
	}
	return start + 1, end - start + utf8.RuneCountInString(close)
}
