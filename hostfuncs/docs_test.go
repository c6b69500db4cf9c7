package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/reglet-dev/rtools-bridge/latex"
	"github.com/reglet-dev/rtools-bridge/rd"
)

func TestPerformParseRd(t *testing.T) {
	ctx := context.Background()

	t.Run("parses and warns", func(t *testing.T) {
		resp := PerformParseRd(ctx, RdParseRequest{Text: "\\name{x}\\foo{1}\n", Source: "x.Rd"})
		require.Nil(t, resp.Error)
		require.NotNil(t, resp.Document)
		assert.Equal(t, "x.Rd", resp.Document.Source)
		require.NotEmpty(t, resp.Document.Warnings)
		assert.Contains(t, resp.Document.Warnings[0].Message, `\foo`)
	})

	t.Run("external macros are known", func(t *testing.T) {
		resp := PerformParseRd(ctx, RdParseRequest{Text: "\\name{x}\\foo{1}\n", Macros: []string{`\foo`}})
		require.Nil(t, resp.Error)
		assert.Empty(t, resp.Document.Warnings)
	})

	t.Run("parse error carries position", func(t *testing.T) {
		resp := PerformParseRd(ctx, RdParseRequest{Text: "\\name{x}\n\\title{oops\n", Source: "x.Rd"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, entities.ErrorTypeParse, resp.Error.Type)
		assert.EqualValues(t, 2, resp.Error.Details["line"])
		assert.Nil(t, resp.Document)
	})

	t.Run("latin1 input", func(t *testing.T) {
		resp := PerformParseRd(ctx, RdParseRequest{Text: "\\title{caf\xe9}", Encoding: "latin1", Fragment: true})
		require.Nil(t, resp.Error)
		assert.Equal(t, "café", resp.Document.Nodes[0].PlainText())
	})

	t.Run("unknown encoding", func(t *testing.T) {
		resp := PerformParseRd(ctx, RdParseRequest{Text: "x", Encoding: "klingon", Fragment: true})
		require.NotNil(t, resp.Error)
		assert.Equal(t, entities.ErrorTypeInvalidArgument, resp.Error.Type)
	})
}

func TestPerformDeparseRd(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		src := "\\name{f}\n% comment\n\\alias{f}\n\\title{A \\% sign}\n\\examples{\nf(\"{\") # it's\n}\n"
		parsed := PerformParseRd(ctx, RdParseRequest{Text: src})
		require.Nil(t, parsed.Error)
		resp := PerformDeparseRd(ctx, RdDeparseRequest{Nodes: parsed.Document.Nodes})
		require.Nil(t, resp.Error)
		assert.EqualValues(t, src, resp.Text)
	})

	t.Run("escape text", func(t *testing.T) {
		resp := PerformDeparseRd(ctx, RdDeparseRequest{Text: `50% {x}`})
		require.Nil(t, resp.Error)
		assert.EqualValues(t, `50\% \{x\}`, resp.Text)
	})

	t.Run("bad tag", func(t *testing.T) {
		resp := PerformDeparseRd(ctx, RdDeparseRequest{Text: "x", Tag: "LIST"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, entities.ErrorTypeInvalidArgument, resp.Error.Type)
	})

	t.Run("invalid tree", func(t *testing.T) {
		nodes := []*rd.Node{{Kind: rd.Text, Raw: "a}b"}}
		resp := PerformDeparseRd(ctx, RdDeparseRequest{Nodes: nodes})
		require.NotNil(t, resp.Error)
		assert.Equal(t, entities.ErrorTypeInvalidArgument, resp.Error.Type)
	})
}

func TestPerformParseLatex(t *testing.T) {
	ctx := context.Background()

	resp := PerformParseLatex(ctx, LatexParseRequest{Text: `$x$ \emph{y}`})
	require.Nil(t, resp.Error)
	require.Len(t, resp.Nodes, 4)
	assert.Equal(t, latex.Math, resp.Nodes[0].Kind)
	assert.Equal(t, `$x$ \emph{y}`, latex.Deparse(resp.Nodes))

	empty := PerformParseLatex(ctx, LatexParseRequest{})
	require.Nil(t, empty.Error)
	assert.NotNil(t, empty.Nodes)

	bad := PerformParseLatex(ctx, LatexParseRequest{Text: "{", Source: "v.Rnw"})
	require.NotNil(t, bad.Error)
	assert.Equal(t, entities.ErrorTypeParse, bad.Error.Type)
}

func TestRdParseRequest_BytesSurviveJSON(t *testing.T) {
	handler := NewJSONHandler(PerformParseRd)
	payload, err := json.Marshal(RdParseRequest{Bytes: []byte("\\title{na\xefve}"), Encoding: "latin1", Fragment: true})
	require.NoError(t, err)

	raw, err := handler(context.Background(), payload)
	require.NoError(t, err)
	var resp RdParseResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Nil(t, resp.Error)
	assert.Equal(t, "naïve", resp.Document.Nodes[0].PlainText())
}
