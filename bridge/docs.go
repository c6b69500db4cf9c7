package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
	"github.com/reglet-dev/rtools-bridge/latex"
	"github.com/reglet-dev/rtools-bridge/rd"
)

// Attribute names used for documentation trees.
const (
	AttrRdTag    = "Rd_tag"
	AttrLatexTag = "latex_tag"
	AttrSrcref   = "srcref"
	AttrClass    = "class"
	AttrWarnings = "warnings"
	AttrMacros   = "macros"
	AttrEncoding = "encoding"
)

// C_parseRd(text, source, verbose, fragment, basename, warningcalls).
//
// text is a character vector of lines; its "encoding" attribute names the
// input encoding. Externally defined macros are read from the "macros"
// attribute of source. basename, when set, names the input in messages
// instead of source. With verbose, warnings are also logged. With
// warningcalls, the "warnings" attribute holds conditions carrying
// positions; otherwise it holds plain messages.
func (b *Bridge) parseRd(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymParseRd, vals)
	lines, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	source, err := a.str(1, "")
	if err != nil {
		return condition(err)
	}
	verbose, err := a.bool(2, false)
	if err != nil {
		return condition(err)
	}
	fragment, err := a.bool(3, false)
	if err != nil {
		return condition(err)
	}
	base, err := a.str(4, "")
	if err != nil {
		return condition(err)
	}
	calls, err := a.bool(5, false)
	if err != nil {
		return condition(err)
	}

	req := hostfuncs.RdParseRequest{Text: joinLines(lines), Source: source, Fragment: fragment}
	if base != "" {
		req.Source = base
	}
	if enc, ok := vals[0].Attr(AttrEncoding); ok {
		req.Encoding, _ = enc.AsString()
	}
	// JSON strings cannot carry bytes that are not UTF-8.
	if req.Encoding != "" || !utf8.ValidString(req.Text) {
		req.Bytes, req.Text = []byte(req.Text), ""
	}
	if m, ok := vals[1].Attr(AttrMacros); ok {
		req.Macros, _ = m.AsStrings()
	}

	resp, detail := invoke[hostfuncs.RdParseRequest, hostfuncs.RdParseResponse](ctx, b.reg, hostfuncs.FuncParseRd, req)
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}

	doc := resp.Document
	if verbose {
		for _, w := range doc.Warnings {
			b.logger.InfoContext(ctx, "parseRd: "+w.Message,
				slog.String("source", doc.Source), slog.Int("line", w.Pos.Line), slog.Int("column", w.Pos.Column))
		}
	}
	out := RdToValue(doc)
	if len(doc.Warnings) > 0 {
		out = out.WithAttr(AttrWarnings, rdWarnings(doc, calls))
	}
	return out
}

func rdWarnings(doc *rd.Document, calls bool) entities.Value {
	if !calls {
		msgs := make([]string, len(doc.Warnings))
		for i, w := range doc.Warnings {
			msgs[i] = w.Message
		}
		return entities.Strings(msgs...)
	}
	conds := make([]entities.Value, len(doc.Warnings))
	for i, w := range doc.Warnings {
		src := doc.Source
		if src == "" {
			src = "<input>"
		}
		conds[i] = entities.ConditionValue(&entities.ErrorDetail{
			Type:    entities.ErrorTypeParse,
			Code:    "warning",
			Message: fmt.Sprintf("%s:%d:%d: %s", src, w.Pos.Line, w.Pos.Column, w.Message),
			Details: map[string]any{"line": w.Pos.Line, "column": w.Pos.Column},
		})
	}
	return entities.List(conds...)
}

// C_deparseRd(e, tag): Rd source for the tree e, or, when e is a character
// vector, its first element escaped for a leaf of kind tag.
func (b *Bridge) deparseRd(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymDeparseRd, vals)
	tag, err := a.str(1, "")
	if err != nil {
		return condition(err)
	}

	var req hostfuncs.RdDeparseRequest
	switch e := vals[0]; {
	case e.Kind == entities.KindCharacter:
		if _, tagged := e.Attr(AttrRdTag); !tagged {
			text, _ := e.AsString()
			req.Text = entities.RawString(text)
			req.Tag = tag
			break
		}
		fallthrough
	default:
		nodes, err := ValueToRd(e)
		if err != nil {
			return condition(&bridgeerrors.InvalidArgumentError{Argument: a.name(0), Reason: err.Error()})
		}
		if len(nodes) == 0 {
			return entities.Strings("")
		}
		req.Nodes = nodes
	}

	resp, detail := invoke[hostfuncs.RdDeparseRequest, hostfuncs.RdDeparseResponse](ctx, b.reg, hostfuncs.FuncDeparseRd, req)
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return entities.Strings(string(resp.Text))
}

// C_parseLatex(text, verbatim): a LaTeX token tree. verbatim names the
// environments whose bodies are kept as VERB; NULL uses the defaults.
func (b *Bridge) parseLatex(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymParseLatex, vals)
	lines, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	envs, err := a.strings(1)
	if err != nil {
		return condition(err)
	}
	req := hostfuncs.LatexParseRequest{Text: entities.RawString(joinLines(lines)), VerbatimEnvs: envs}
	resp, detail := invoke[hostfuncs.LatexParseRequest, hostfuncs.LatexParseResponse](ctx, b.reg, hostfuncs.FuncParseLatex, req)
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return latexList(resp.Nodes).WithAttr(AttrClass, entities.Strings("LaTeX"))
}

func joinLines(lines []string) string {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

// RdToValue converts a parsed document into a host value: a list of nodes
// of class "Rd". Leaves are character scalars holding their raw source;
// macros, groups and options are lists. Every node carries its tag in the
// "Rd_tag" attribute and its position as an integer "srcref" (line, column).
func RdToValue(doc *rd.Document) entities.Value {
	out := rdList(doc.Nodes).WithAttr(AttrClass, entities.Strings("Rd"))
	if doc.Source != "" {
		out = out.WithAttr("srcfile", entities.Strings(doc.Source))
	}
	if doc.Fragment {
		out = out.WithAttr("fragment", entities.Logicals(true))
	}
	return out
}

func rdList(nodes []*rd.Node) entities.Value {
	elems := make([]entities.Value, len(nodes))
	for i, n := range nodes {
		elems[i] = rdNode(n)
	}
	return entities.List(elems...)
}

func rdNode(n *rd.Node) entities.Value {
	var v entities.Value
	if n.IsLeaf() {
		v = entities.Strings(n.Raw)
	} else {
		v = rdList(n.Children)
	}
	return v.WithAttr(AttrRdTag, entities.Strings(n.Tag())).
		WithAttr(AttrSrcref, entities.Integers(n.Pos.Line, n.Pos.Column))
}

// ValueToRd converts a host value produced by RdToValue, or built by hand
// in the same shape, back into nodes. A value without an "Rd_tag" is a
// list of top-level nodes.
func ValueToRd(v entities.Value) ([]*rd.Node, error) {
	if _, tagged := v.Attr(AttrRdTag); tagged {
		n, err := valueToRdNode(v)
		if err != nil {
			return nil, err
		}
		return []*rd.Node{n}, nil
	}
	if v.Kind != entities.KindList {
		return nil, fmt.Errorf("expected an Rd list, got %s", v.Kind)
	}
	return valuesToRd(v.Elements)
}

func valuesToRd(elems []entities.Value) ([]*rd.Node, error) {
	nodes := make([]*rd.Node, len(elems))
	for i, e := range elems {
		n, err := valueToRdNode(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i+1, err)
		}
		nodes[i] = n
	}
	return nodes, nil
}

func valueToRdNode(v entities.Value) (*rd.Node, error) {
	tagVal, ok := v.Attr(AttrRdTag)
	if !ok {
		return nil, fmt.Errorf("missing %s attribute", AttrRdTag)
	}
	tag, _ := tagVal.AsString()
	kind, ok := rd.KindOf(tag)
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", AttrRdTag, tag)
	}

	n := &rd.Node{Kind: kind}
	if ref, ok := v.Attr(AttrSrcref); ok {
		if pos, _, ok := ref.AsInts(); ok && len(pos) >= 2 {
			n.Pos = rd.Pos{Line: pos[0], Column: pos[1]}
		}
	}

	if n.IsLeaf() {
		raw, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%s node must be a character string", tag)
		}
		n.Raw = raw
		return n, nil
	}
	if v.Kind != entities.KindList {
		return nil, fmt.Errorf("%s node must be a list", tag)
	}
	if kind == rd.Macro || kind == rd.Conditional {
		n.Name = tag
	}
	children, err := valuesToRd(v.Elements)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	n.Children = children
	return n, nil
}

func latexList(nodes []*latex.Node) entities.Value {
	elems := make([]entities.Value, len(nodes))
	for i, n := range nodes {
		elems[i] = latexNode(n)
	}
	return entities.List(elems...)
}

// latexNode converts a LaTeX node. ENVIRONMENT becomes list(name, body),
// MATH a list of its contents with the delimiter in a "delim" attribute.
func latexNode(n *latex.Node) entities.Value {
	var v entities.Value
	switch n.Kind {
	case latex.Block:
		v = latexList(n.Children)
	case latex.Environment:
		v = entities.List(entities.Strings(n.Name), latexList(n.Children))
	case latex.Math:
		v = latexList(n.Children).WithAttr("delim", entities.Strings(n.Raw))
	default:
		v = entities.Strings(n.Raw)
	}
	return v.WithAttr(AttrLatexTag, entities.Strings(n.Kind.String())).
		WithAttr(AttrSrcref, entities.Integers(n.Pos.Line, n.Pos.Column))
}
