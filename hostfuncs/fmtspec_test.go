package hostfuncs

import (
	"context"
	"strings"
	"testing"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformGetFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   []FormatField
	}{
		{
			name:   "sequential",
			format: "%d items in %s",
			want: []FormatField{
				{Spec: "%d", Verb: "d", Index: 1},
				{Spec: "%s", Verb: "s", Index: 2},
			},
		},
		{
			name:   "literal percent",
			format: "100%% done",
			want:   []FormatField{},
		},
		{
			name:   "width and precision",
			format: "%-10.3f",
			want:   []FormatField{{Spec: "%-10.3f", Verb: "f", Flags: "-", Width: "10", Precision: "3", Index: 1}},
		},
		{
			name:   "positional",
			format: "%2$s then %1$d",
			want: []FormatField{
				{Spec: "%d", Verb: "d", Index: 1},
				{Spec: "%s", Verb: "s", Index: 2},
			},
		},
		{
			name:   "star width",
			format: "%*d",
			want: []FormatField{
				{Spec: "*", Verb: "*", Index: 1},
				{Spec: "%*d", Verb: "d", Width: "*", Index: 2},
			},
		},
		{
			name:   "positional star",
			format: "%2$*1$d",
			want: []FormatField{
				{Spec: "*", Verb: "*", Index: 1},
				{Spec: "%*d", Verb: "d", Width: "*", Index: 2},
			},
		},
		{
			name:   "gap in positions",
			format: "%3$s",
			want: []FormatField{
				{Index: 1},
				{Index: 2},
				{Spec: "%s", Verb: "s", Index: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := PerformGetFormats(context.Background(), FormatRequest{Format: tt.format})
			require.Nil(t, resp.Error)
			assert.Equal(t, tt.want, resp.Fields)
		})
	}
}

func TestPerformGetFormats_Errors(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		errType string
		message string
	}{
		{"unterminated", "abc %y", entities.ErrorTypeParse, "unrecognised format specification '%y'"},
		{"two stars", "%*.*f", entities.ErrorTypeParse, "at most one asterisk"},
		{"too many arguments", "%101$d", entities.ErrorTypeParse, "only 100 arguments"},
		{"zero position", "%0$d", entities.ErrorTypeParse, "invalid position"},
		{"too long", strings.Repeat("x", MaxFormatLength+1), entities.ErrorTypeInvalidArgument, "maximal format length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := PerformGetFormats(context.Background(), FormatRequest{Format: tt.format})
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.errType, resp.Error.Type)
			assert.Contains(t, resp.Error.Message, tt.message)
			assert.Nil(t, resp.Fields)
		})
	}
}

func TestPerformGetFormats_ErrorColumn(t *testing.T) {
	resp := PerformGetFormats(context.Background(), FormatRequest{Format: "ab %y"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 1, resp.Error.Details["line"])
	assert.Equal(t, 4, resp.Error.Details["column"])
}
