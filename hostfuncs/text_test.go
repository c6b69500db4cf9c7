package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformCheckNonASCII(t *testing.T) {
	tests := []struct {
		name         string
		lines        []string
		ignoreQuotes bool
		want         bool
	}{
		{"plain ascii", []string{"x <- 1", "y <- 'a'"}, false, false},
		{"bare non-ascii", []string{"x <- 1", "é <- 2"}, false, true},
		{"in comment", []string{"x <- 1 # café"}, false, false},
		{"in single quotes", []string{"x <- 'café'"}, false, false},
		{"in double quotes", []string{`x <- "café"`}, false, false},
		{"quotes not ignored when flag set", []string{"x <- 'café'"}, true, true},
		{"escaped quote keeps string open", []string{`x <- "a\"é"`}, false, false},
		{"after closed string", []string{`x <- "a" + é`}, false, true},
		{"hash inside string is not a comment", []string{`x <- "#" ; é`}, false, true},
		{"quote state resets per line", []string{`x <- "a`, "é"}, false, true},
		{"empty", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := PerformCheckNonASCII(context.Background(), NonASCIIRequest{Text: tt.lines, IgnoreQuotes: tt.ignoreQuotes})
			assert.Equal(t, tt.want, resp.Found)
		})
	}
}

func TestPerformNonASCIIIndices(t *testing.T) {
	resp := PerformNonASCIIIndices(context.Background(), NonASCIIRequest{
		Text: []string{"a", "é", "b # ü", "'ö'"},
	})
	assert.True(t, resp.Found)
	assert.Equal(t, []int{2, 3, 4}, resp.Indices)

	resp = PerformNonASCIIIndices(context.Background(), NonASCIIRequest{Text: []string{"a", "b"}})
	assert.False(t, resp.Found)
	assert.NotNil(t, resp.Indices)
	assert.Empty(t, resp.Indices)
}

func TestPerformTabExpand(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		start int
		width int
		want  string
	}{
		{"width four", "a\tb", 0, 4, "a   b"},
		{"default width", "a\tb", 0, 0, "a       b"},
		{"tab at stop", "abcd\te", 0, 4, "abcd    e"},
		{"leading tab", "\tx", 0, 4, "    x"},
		{"start column", "\tx", 2, 4, "  x"},
		{"newline resets column", "ab\n\tc", 0, 4, "ab\n    c"},
		{"multibyte counts one column", "é\tx", 0, 4, "é   x"},
		{"no tabs", "plain", 3, 4, "plain"},
		{"negative start", "\tx", -1, 4, " x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := PerformTabExpand(context.Background(), TabExpandRequest{
				Strings:  []string{tt.in},
				Starts:   []int{tt.start},
				TabWidth: tt.width,
			})
			assert.EqualValues(t, []string{tt.want}, resp.Strings)
		})
	}
}

func TestPerformTabExpand_RecyclesStarts(t *testing.T) {
	resp := PerformTabExpand(context.Background(), TabExpandRequest{
		Strings:  []string{"\ta", "\tb", "\tc"},
		Starts:   []int{0, 1},
		TabWidth: 4,
	})
	assert.EqualValues(t, []string{"    a", "   b", "    c"}, resp.Strings)
}

func TestPerformTabExpand_InvalidUTF8(t *testing.T) {
	resp := PerformTabExpand(context.Background(), TabExpandRequest{
		Strings: []string{"\xe9\tb", "a\xff\xfe\tc"},
	})
	assert.EqualValues(t, []string{"\xe9       b", "a\xff\xfe     c"}, resp.Strings,
		"each invalid byte is copied and takes one column")
}

func TestTabExpand_InvalidUTF8ThroughRegistry(t *testing.T) {
	reg, err := NewRegistry(WithBundle(TextBundle()))
	require.NoError(t, err)

	payload, err := json.Marshal(TabExpandRequest{Strings: []string{"\xe9\tb"}, TabWidth: 4})
	require.NoError(t, err)
	raw, err := reg.Invoke(context.Background(), FuncTabExpand, payload)
	require.NoError(t, err)

	var resp TabExpandResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.EqualValues(t, []string{"\xe9   b"}, resp.Strings)
}
