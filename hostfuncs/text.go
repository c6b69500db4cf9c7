package hostfuncs

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
)

// DefaultTabWidth is the tab stop interval used when none is configured.
const DefaultTabWidth = 8

// NonASCIIRequest contains the lines to scan for non-ASCII bytes.
type NonASCIIRequest struct {
	// Text holds the lines to scan.
	Text entities.RawStrings `json:"text"`

	// IgnoreQuotes disables quote tracking: when true, bytes inside quoted
	// strings are checked like any other byte.
	IgnoreQuotes bool `json:"ignore_quotes"`
}

// NonASCIIResponse reports the scan result.
type NonASCIIResponse struct {
	// Indices lists the 1-based positions of lines containing non-ASCII bytes
	// (PerformNonASCIIIndices only).
	Indices []int `json:"indices,omitempty"`

	// Found is true if any line has a non-ASCII byte outside comments
	// (PerformCheckNonASCII only).
	Found bool `json:"found"`
}

// PerformCheckNonASCII reports whether any line contains a byte above 127
// outside a '#' comment. Unless IgnoreQuotes is set, the contents of single-
// or double-quoted strings are skipped; an escaped quote does not close a
// string. Quote state does not carry across lines.
func PerformCheckNonASCII(_ context.Context, req NonASCIIRequest) NonASCIIResponse {
	for _, line := range req.Text {
		if lineHasNonASCII(line, req.IgnoreQuotes) {
			return NonASCIIResponse{Found: true}
		}
	}
	return NonASCIIResponse{}
}

func lineHasNonASCII(line string, ignoreQuotes bool) bool {
	var quote byte
	inQuote := false
	backslashes := 0

	for i := 0; i < len(line); i++ {
		c := line[i]
		if !inQuote && c == '#' {
			return false
		}
		if (!inQuote || ignoreQuotes) && c > 127 {
			return true
		}
		if backslashes%2 == 0 && (c == '"' || c == '\'') {
			switch {
			case inQuote && c == quote:
				inQuote = false
			case !inQuote:
				quote = c
				inQuote = true
			}
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
	}
	return false
}

// PerformNonASCIIIndices returns the 1-based indices of lines containing any
// byte above 127. Comments and quotes are not special.
func PerformNonASCIIIndices(_ context.Context, req NonASCIIRequest) NonASCIIResponse {
	resp := NonASCIIResponse{Indices: []int{}}
	for i, line := range req.Text {
		for j := 0; j < len(line); j++ {
			if line[j] > 127 {
				resp.Indices = append(resp.Indices, i+1)
				resp.Found = true
				break
			}
		}
	}
	return resp
}

// TabExpandRequest contains the strings to expand.
type TabExpandRequest struct {
	// Strings holds the text to expand; each may contain newlines.
	Strings entities.RawStrings `json:"strings"`

	// Starts gives the column at which each string begins, recycled over
	// Strings. Empty means column 0 for every string.
	Starts []int `json:"starts,omitempty"`

	// TabWidth is the tab stop interval. Zero means DefaultTabWidth.
	TabWidth int `json:"tab_width,omitempty" validate:"gte=0,lte=256"`
}

// TabExpandResponse holds the expanded strings.
type TabExpandResponse struct {
	Strings entities.RawStrings `json:"strings"`
}

// PerformTabExpand replaces each tab with the spaces needed to reach the next
// tab stop. Columns are counted in characters, not bytes, so a multi-byte
// UTF-8 character occupies one column, as does each byte of invalid UTF-8,
// which is copied through unchanged. A newline resets the column to 0.
func PerformTabExpand(_ context.Context, req TabExpandRequest) TabExpandResponse {
	width := req.TabWidth
	if width <= 0 {
		width = DefaultTabWidth
	}

	resp := TabExpandResponse{Strings: make([]string, len(req.Strings))}
	for i, s := range req.Strings {
		start := 0
		if len(req.Starts) > 0 {
			start = req.Starts[i%len(req.Starts)]
		}
		resp.Strings[i] = expandTabs(s, start, width)
	}
	return resp
}

func expandTabs(s string, col, width int) string {
	if !strings.ContainsRune(s, '\t') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + width)
	for i := 0; i < len(s); {
		n := runeLen(s[i:])
		switch s[i] {
		case '\t':
			pad := width - mod(col, width)
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
		case '\n':
			b.WriteByte('\n')
			col = 0
		default:
			b.WriteString(s[i : i+n])
			col++
		}
		i += n
	}
	return b.String()
}

// mod is a modulus that stays non-negative for negative starting columns.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// runeLen returns the byte length of the first character of s, treating
// invalid UTF-8 as single bytes.
func runeLen(s string) int {
	_, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return 1
	}
	return size
}
