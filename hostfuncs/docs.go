package hostfuncs

import (
	"context"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/latex"
	"github.com/reglet-dev/rtools-bridge/rd"
)

// RdParseRequest contains Rd source to parse.
type RdParseRequest struct {
	// Text is the Rd source. Lines are expected to be joined with "\n".
	Text string `json:"text"`

	// Source names the input in diagnostics, usually the file name.
	Source string `json:"source,omitempty"`

	// Bytes, when set, replaces Text. Use it for input that is not UTF-8,
	// which would not survive JSON transport as a string.
	Bytes []byte `json:"bytes,omitempty"`

	// Encoding of the input, e.g. "latin1". Empty means UTF-8.
	Encoding string `json:"encoding,omitempty"`

	// Macros lists externally defined macro names.
	Macros []string `json:"macros,omitempty"`

	// Fragment parses a piece of a file rather than a whole file.
	Fragment bool `json:"fragment"`
}

// RdParseResponse holds the parsed document or the parse error.
type RdParseResponse struct {
	Error    *entities.ErrorDetail `json:"error,omitempty"`
	Document *rd.Document          `json:"document,omitempty"`
}

// PerformParseRd parses Rd source into a lossless tree. Warnings are
// returned in the document; only malformed input fails.
func PerformParseRd(_ context.Context, req RdParseRequest) RdParseResponse {
	src := req.Bytes
	if src == nil {
		src = []byte(req.Text)
	}
	doc, err := rd.ParseBytes(src, rd.ParseOptions{
		Source:   req.Source,
		Encoding: req.Encoding,
		Macros:   req.Macros,
		Fragment: req.Fragment,
	})
	if err != nil {
		return RdParseResponse{Error: bridgeerrors.ToErrorDetail(err)}
	}
	return RdParseResponse{Document: doc}
}

// RdDeparseRequest contains a tree to serialise, or a single string to
// escape when Nodes is empty.
type RdDeparseRequest struct {
	// Nodes is a tree as returned by PerformParseRd.
	Nodes []*rd.Node `json:"nodes,omitempty"`

	// Text is escaped for a leaf of kind Tag when Nodes is empty.
	Text entities.RawString `json:"text,omitempty"`

	// Tag is TEXT, RCODE or VERB. Empty means TEXT.
	Tag string `json:"tag,omitempty"`
}

// RdDeparseResponse holds the Rd source.
type RdDeparseResponse struct {
	Error *entities.ErrorDetail `json:"error,omitempty"`
	Text  entities.RawString    `json:"text"`
}

// PerformDeparseRd serialises an Rd tree. For any tree produced by
// PerformParseRd the result equals the parsed text.
func PerformDeparseRd(_ context.Context, req RdDeparseRequest) RdDeparseResponse {
	if len(req.Nodes) == 0 {
		kind := rd.Text
		if req.Tag != "" {
			k, ok := rd.KindOf(req.Tag)
			if !ok || !(k == rd.Text || k == rd.RCode || k == rd.Verb) {
				err := &bridgeerrors.InvalidArgumentError{Argument: "tag", Reason: "must be TEXT, RCODE or VERB, got " + req.Tag}
				return RdDeparseResponse{Error: err.ToErrorDetail()}
			}
			kind = k
		}
		return RdDeparseResponse{Text: entities.RawString(rd.Escape(string(req.Text), kind))}
	}

	if err := rd.Validate(req.Nodes); err != nil {
		return RdDeparseResponse{Error: bridgeerrors.ToErrorDetail(
			&bridgeerrors.InvalidArgumentError{Argument: "nodes", Reason: err.Error()})}
	}
	return RdDeparseResponse{Text: entities.RawString(rd.Deparse(req.Nodes))}
}

// LatexParseRequest contains a LaTeX fragment.
type LatexParseRequest struct {
	Text   entities.RawString `json:"text"`
	Source string             `json:"source,omitempty"`

	// VerbatimEnvs overrides the environments whose bodies are not parsed.
	// Null keeps the defaults; an empty list disables them.
	VerbatimEnvs []string `json:"verbatim_envs"`

	// VerbMacros overrides the macros whose argument is kept verbatim.
	VerbMacros []string `json:"verb_macros"`
}

// LatexParseResponse holds the token tree or the parse error.
type LatexParseResponse struct {
	Error *entities.ErrorDetail `json:"error,omitempty"`
	Nodes []*latex.Node         `json:"nodes,omitempty"`
}

// PerformParseLatex parses a LaTeX fragment.
func PerformParseLatex(_ context.Context, req LatexParseRequest) LatexParseResponse {
	nodes, err := latex.Parse(string(req.Text), latex.ParseOptions{
		Source:       req.Source,
		VerbatimEnvs: req.VerbatimEnvs,
		VerbMacros:   req.VerbMacros,
	})
	if err != nil {
		return LatexParseResponse{Error: bridgeerrors.ToErrorDetail(err)}
	}
	if nodes == nil {
		nodes = []*latex.Node{}
	}
	return LatexParseResponse{Nodes: nodes}
}
