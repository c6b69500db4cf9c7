package rd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"golang.org/x/text/encoding/charmap"
)

const eof = -1

// endifCloser ends the body of a conditional.
const endifCloser rune = -2

// ParseOptions controls Parse.
type ParseOptions struct {
	// Source names the input in errors and warnings.
	Source string

	// Encoding of the input passed to ParseBytes: empty, "UTF-8" or
	// "unknown" take the bytes as they are; "latin1" and "CP1252" are
	// decoded to UTF-8 first.
	Encoding string

	// Macros lists additional macro names, such as `\CRANpkg`, that are
	// defined outside the document and must not be reported as unknown.
	Macros []string

	// Fragment parses a piece of a file. Without it, top-level content
	// other than sections, comments and whitespace is reported.
	Fragment bool
}

// Parse parses Rd source.
func Parse(src string, opts ParseOptions) (*Document, error) {
	p := &parser{
		src:        src,
		source:     opts.Source,
		line:       1,
		col:        1,
		userMacros: make(map[string]int, len(opts.Macros)),
	}
	for _, name := range opts.Macros {
		p.userMacros[name] = -1
	}

	nodes, err := p.parseSeq(LatexLike, 0, Pos{})
	if err != nil {
		return nil, err
	}
	doc := &Document{Source: opts.Source, Nodes: nodes, Fragment: opts.Fragment}
	if !opts.Fragment {
		p.checkTopLevel(nodes)
	}
	doc.Warnings = p.warnings
	return doc, nil
}

// ParseBytes decodes b according to opts.Encoding and parses the result.
func ParseBytes(b []byte, opts ParseOptions) (*Document, error) {
	src, err := decode(b, opts.Encoding)
	if err != nil {
		return nil, err
	}
	return Parse(src, opts)
}

func decode(b []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8", "unknown", "native.enc":
		return string(b), nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		return string(out), err
	case "cp1252", "windows-1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		return string(out), err
	default:
		return "", &bridgeerrors.InvalidArgumentError{Argument: "encoding", Reason: "unsupported encoding " + strconv.Quote(encoding)}
	}
}

type parser struct {
	src    string
	source string
	off    int
	line   int
	col    int

	// userMacros maps a macro defined by \newcommand to its argument count,
	// or to -1 for externally declared macros.
	userMacros map[string]int
	warnings   []Warning
}

func (p *parser) pos() Pos { return Pos{Line: p.line, Column: p.col} }

func (p *parser) peekAt(n int) rune {
	off := p.off
	for ; n > 0 && off < len(p.src); n-- {
		_, size := utf8.DecodeRuneInString(p.src[off:])
		off += size
	}
	if off >= len(p.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(p.src[off:])
	return r
}

func (p *parser) peek() rune { return p.peekAt(0) }

func (p *parser) advance() {
	if p.off >= len(p.src) {
		return
	}
	r, size := utf8.DecodeRuneInString(p.src[p.off:])
	p.off += size
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
}

func (p *parser) errorf(at Pos, format string, args ...any) error {
	return &bridgeerrors.ParseError{
		Source:  p.source,
		Message: fmt.Sprintf(format, args...),
		Line:    at.Line,
		Column:  at.Column,
	}
}

func (p *parser) warn(at Pos, format string, args ...any) {
	p.warnings = append(p.warnings, Warning{Pos: at, Message: fmt.Sprintf(format, args...)})
}

// parseSeq parses nodes until closer, which is 0 at the top level. The
// closer itself is left unconsumed. open is where the enclosing group began.
func (p *parser) parseSeq(mode Mode, closer rune, open Pos) ([]*Node, error) {
	var nodes []*Node
	textStart := -1
	var textPos Pos
	inRComment := false

	startText := func() {
		if textStart < 0 {
			textStart = p.off
			textPos = p.pos()
		}
	}
	flush := func() {
		if textStart >= 0 {
			nodes = append(nodes, &Node{Kind: mode.textKind(), Raw: p.src[textStart:p.off], Pos: textPos})
			textStart = -1
		}
	}

	for {
		if p.col == 1 {
			switch d := p.directive(); {
			case d == "":
			case d == DirectiveEndif && closer == endifCloser:
				flush()
				return nodes, nil
			case d == DirectiveEndif:
				p.warn(p.pos(), "%s without %s", DirectiveEndif, DirectiveIfdef)
			default:
				c, err := p.conditional(mode, d)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, c)
				continue
			}
		}

		r := p.peek()
		switch {
		case r == eof:
			flush()
			if closer != 0 {
				return nil, p.errorf(open, "unexpected end of input: %q opened here is never closed", opener(closer))
			}
			return nodes, nil

		case r == '%':
			flush()
			nodes = append(nodes, p.comment())

		case r == '\\':
			next := p.peekAt(1)
			switch {
			case next != eof && strings.ContainsRune(escapable, next):
				startText()
				p.advance()
				p.advance()
			case isLetter(next) && mode != Verbatim:
				flush()
				m, err := p.macro(mode)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, m)
			default:
				startText()
				p.advance()
			}

		case r == '{':
			flush()
			g, err := p.group(mode, Group)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, g)

		case r == '}':
			if closer != '}' {
				return nil, p.errorf(p.pos(), "unexpected '}'")
			}
			flush()
			return nodes, nil

		case r == ']' && closer == ']':
			flush()
			return nodes, nil

		case mode == RLike && r == '#':
			startText()
			inRComment = true
			p.advance()

		case mode == RLike && !inRComment && (r == '"' || r == '\'' || r == '`'):
			startText()
			if err := p.quoted(r); err != nil {
				return nil, err
			}

		case r == '\n':
			startText()
			p.advance()
			inRComment = false
			flush()

		default:
			startText()
			p.advance()
		}
	}
}

func opener(closer rune) string {
	switch closer {
	case ']':
		return "["
	case endifCloser:
		return DirectiveIfdef
	}
	return "{"
}

// directive returns the conditional directive starting at the current
// offset, or "".
func (p *parser) directive() string {
	rest := p.src[p.off:]
	if strings.HasPrefix(rest, DirectiveEndif) {
		return DirectiveEndif
	}
	for _, d := range [...]string{DirectiveIfdef, DirectiveIfndef} {
		if len(rest) > len(d) && strings.HasPrefix(rest, d) && (rest[len(d)] == ' ' || rest[len(d)] == '\t') {
			return d
		}
	}
	return ""
}

// conditional consumes an "#ifdef" or "#ifndef" block through its "#endif".
// The body is parsed in the enclosing mode; anything after "#endif" on the
// same line belongs to the parent.
func (p *parser) conditional(mode Mode, directive string) (*Node, error) {
	at := p.pos()
	for range directive {
		p.advance()
	}
	condAt, start := p.pos(), p.off
	for r := p.peek(); r != eof && r != '\n'; r = p.peek() {
		p.advance()
	}
	if strings.TrimSpace(p.src[start:p.off]) == "" {
		return nil, p.errorf(at, "%s without a condition", directive)
	}
	if p.peek() == eof {
		return nil, p.errorf(at, "unexpected end of input: %q opened here is never closed", directive)
	}
	p.advance()
	cond := &Node{Kind: Verb, Raw: p.src[start:p.off], Pos: condAt}

	body, err := p.parseSeq(mode, endifCloser, at)
	if err != nil {
		return nil, err
	}
	for range DirectiveEndif {
		p.advance()
	}
	return &Node{Kind: Conditional, Name: directive, Children: append([]*Node{cond}, body...), Pos: at}, nil
}

// comment consumes a '%' comment, leaving the newline.
func (p *parser) comment() *Node {
	start, at := p.off, p.pos()
	for r := p.peek(); r != eof && r != '\n'; r = p.peek() {
		p.advance()
	}
	return &Node{Kind: Comment, Raw: p.src[start:p.off], Pos: at}
}

// quoted consumes an R string literal. Braces and '%' inside it are text.
func (p *parser) quoted(q rune) error {
	at := p.pos()
	p.advance()
	for {
		switch p.peek() {
		case eof:
			return p.errorf(at, "unterminated string starting with %c", q)
		case '\\':
			p.advance()
			p.advance()
		case q:
			p.advance()
			return nil
		default:
			p.advance()
		}
	}
}

// group consumes "{...}" or "[...]" and returns it as a node of kind k.
func (p *parser) group(mode Mode, k Kind) (*Node, error) {
	at := p.pos()
	closer := '}'
	if k == Option {
		closer = ']'
	}
	p.advance()
	children, err := p.parseSeq(mode, closer, at)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &Node{Kind: k, Children: children, Pos: at}, nil
}

// macro consumes a macro name and the arguments its spec allows. outer is
// the mode of the enclosing text; unknown macros lex their arguments in it.
func (p *parser) macro(outer Mode) (*Node, error) {
	at, start := p.pos(), p.off
	p.advance()
	for r := p.peek(); isLetter(r) || isDigit(r); r = p.peek() {
		p.advance()
	}
	name := p.src[start:p.off]

	spec, known := p.lookupMacro(name)
	if !known {
		p.warn(at, "unknown macro '%s'", name)
	}

	m := &Node{Kind: Macro, Name: name, Pos: at}
	if spec.option && p.peek() == '[' {
		opt, err := p.group(LatexLike, Option)
		if err != nil {
			return nil, err
		}
		m.Children = append(m.Children, opt)
	}
	for i := 0; spec.maxArgs() < 0 || i < spec.maxArgs(); i++ {
		if p.peek() != '{' {
			break
		}
		mode := spec.argMode(i)
		if spec.greedy {
			mode = outer
		}
		g, err := p.group(mode, Group)
		if err != nil {
			return nil, err
		}
		m.Children = append(m.Children, g)
	}

	if spec.defines {
		p.define(m)
	}
	return m, nil
}

// define records a \newcommand so later uses are not reported as unknown.
func (p *parser) define(m *Node) {
	args := m.Args()
	if len(args) == 0 {
		return
	}
	name := strings.TrimSpace(args[0].PlainText())
	if !isMacroName(name) {
		p.warn(m.Pos, "%s: invalid macro name %q", m.Name, name)
		return
	}
	n := 0
	if len(args) > 1 {
		n = maxParamRef(args[1].String())
	}
	p.userMacros[name] = n
}

// maxParamRef returns the largest #n referenced in a macro body.
func maxParamRef(body string) int {
	n := 0
	for i := 0; i+1 < len(body); i++ {
		if body[i] == '#' && body[i+1] >= '1' && body[i+1] <= '9' {
			n = max(n, int(body[i+1]-'0'))
		}
	}
	return n
}

// checkTopLevel reports stray text and duplicated sections in a full file.
func (p *parser) checkTopLevel(nodes []*Node) {
	seen := make(map[string]bool)
	for _, n := range nodes {
		switch n.Kind {
		case Comment:
		case Conditional:
			p.checkTopLevel(n.Body())
		case Text:
			if strings.TrimSpace(Unescape(n.Raw)) != "" {
				p.warn(n.Pos, "all text must be in a section")
			}
		case Macro:
			spec, _ := p.lookupMacro(n.Name)
			_, user := p.userMacros[n.Name]
			switch {
			case user:
			case !spec.section:
				p.warn(n.Pos, "all text must be in a section")
			case !spec.repeatable && seen[n.Name]:
				p.warn(n.Pos, "duplicated section %s", n.Name)
			}
			seen[n.Name] = true
		default:
			p.warn(n.Pos, "all text must be in a section")
		}
	}
}

func isLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
