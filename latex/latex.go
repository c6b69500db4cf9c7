// Package latex parses LaTeX fragments, such as those found in package
// vignettes and \eqn bodies, into a lossless token tree.
//
// The parser does not expand macros or attach arguments to them: a macro
// is followed by the BLOCK nodes that happen to come after it. Only
// \begin/\end pairs, math shifts, \verb and verbatim environments are
// structural.
package latex

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
)

// Kind identifies a node type.
type Kind int

const (
	Text Kind = iota
	Comment
	Macro
	Block
	Environment
	Math
	Verb
)

var kindNames = [...]string{"TEXT", "COMMENT", "MACRO", "BLOCK", "ENVIRONMENT", "MATH", "VERB"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := KindOf(string(b))
	if !ok {
		return fmt.Errorf("latex: unknown node kind %q", b)
	}
	*k = v
	return nil
}

// KindOf returns the kind named by tag.
func KindOf(tag string) (Kind, bool) {
	for i, name := range kindNames {
		if name == tag {
			return Kind(i), true
		}
	}
	return 0, false
}

// DefaultVerbatimEnvs are the environments whose bodies are not parsed.
var DefaultVerbatimEnvs = []string{"Sinput", "Soutput", "verbatim", "verbatim*"}

// DefaultVerbMacros are the macros whose braced argument is kept verbatim.
var DefaultVerbMacros = []string{`\Sexpr`}

// Pos is a 1-based source position. Columns count characters.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is one element of the tree.
//
// Raw holds the source of TEXT, COMMENT, MACRO and VERB nodes, and the
// delimiter ("$" or "$$") of MATH nodes. Name is the environment name.
type Node struct {
	Raw      string  `json:"raw,omitempty"`
	Name     string  `json:"name,omitempty"`
	Children []*Node `json:"children,omitempty"`
	Pos      Pos     `json:"pos"`
	Kind     Kind    `json:"kind"`
}

type nodeWire struct {
	Raw      entities.RawString `json:"raw,omitempty"`
	Name     string             `json:"name,omitempty"`
	Children []*Node            `json:"children,omitempty"`
	Pos      Pos                `json:"pos"`
	Kind     Kind               `json:"kind"`
}

// MarshalJSON implements json.Marshaler; Raw keeps bytes that are not UTF-8.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeWire{Raw: entities.RawString(n.Raw), Name: n.Name, Children: n.Children, Pos: n.Pos, Kind: n.Kind})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{Raw: string(w.Raw), Name: w.Name, Children: w.Children, Pos: w.Pos, Kind: w.Kind}
	return nil
}

// String returns the LaTeX source of the node.
func (n *Node) String() string {
	var b strings.Builder
	write(&b, n)
	return b.String()
}

// Deparse concatenates the source of nodes.
func Deparse(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		write(&b, n)
	}
	return b.String()
}

func write(b *strings.Builder, n *Node) {
	switch n.Kind {
	case Block:
		b.WriteByte('{')
		writeAll(b, n.Children)
		b.WriteByte('}')
	case Environment:
		b.WriteString(`\begin{` + n.Name + `}`)
		writeAll(b, n.Children)
		b.WriteString(`\end{` + n.Name + `}`)
	case Math:
		b.WriteString(n.Raw)
		writeAll(b, n.Children)
		b.WriteString(n.Raw)
	default:
		b.WriteString(n.Raw)
	}
}

func writeAll(b *strings.Builder, nodes []*Node) {
	for _, n := range nodes {
		write(b, n)
	}
}

// ParseOptions controls Parse.
type ParseOptions struct {
	// Source names the input in errors.
	Source string

	// VerbatimEnvs overrides DefaultVerbatimEnvs when non-nil.
	VerbatimEnvs []string

	// VerbMacros overrides DefaultVerbMacros when non-nil.
	VerbMacros []string
}

// Parse parses a LaTeX fragment.
func Parse(src string, opts ParseOptions) ([]*Node, error) {
	p := &parser{src: src, source: opts.Source, line: 1, col: 1}
	p.verbatim = toSet(opts.VerbatimEnvs, DefaultVerbatimEnvs)
	p.verbMacros = toSet(opts.VerbMacros, DefaultVerbMacros)
	return p.parseSeq(closer{})
}

func toSet(names, defaults []string) map[string]bool {
	if names == nil {
		names = defaults
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// closer describes what ends the sequence being parsed.
type closer struct {
	env   string // \end{env}
	math  string // "$" or "$$"
	at    Pos    // where the construct opened
	brace bool   // "}"
}

func (c closer) describe() string {
	switch {
	case c.brace:
		return "'{'"
	case c.env != "":
		return `\begin{` + c.env + `}`
	case c.math != "":
		return "math shift '" + c.math + "'"
	default:
		return ""
	}
}

type parser struct {
	src        string
	source     string
	verbatim   map[string]bool
	verbMacros map[string]bool
	off        int
	line       int
	col        int
}

func (p *parser) pos() Pos { return Pos{Line: p.line, Column: p.col} }

func (p *parser) rest() string { return p.src[p.off:] }

func (p *parser) advanceBytes(n int) {
	end := min(p.off+n, len(p.src))
	for p.off < end {
		r, size := utf8.DecodeRuneInString(p.src[p.off:])
		p.off += size
		if r == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
	}
}

func (p *parser) errorf(at Pos, format string, args ...any) error {
	return &bridgeerrors.ParseError{Source: p.source, Message: fmt.Sprintf(format, args...), Line: at.Line, Column: at.Column}
}

func (p *parser) parseSeq(c closer) ([]*Node, error) {
	var nodes []*Node
	textStart := -1
	var textPos Pos
	flush := func() {
		if textStart >= 0 {
			nodes = append(nodes, &Node{Kind: Text, Raw: p.src[textStart:p.off], Pos: textPos})
			textStart = -1
		}
	}

	for p.off < len(p.src) {
		rest := p.rest()
		switch {
		case rest[0] == '%':
			flush()
			nodes = append(nodes, p.leaf(Comment, lineLen(rest)))

		case rest[0] == '}':
			if !c.brace {
				return nil, p.errorf(p.pos(), "unexpected '}'")
			}
			flush()
			return nodes, nil

		case rest[0] == '$':
			if c.math != "" && strings.HasPrefix(rest, c.math) {
				flush()
				return nodes, nil
			}
			flush()
			n, err := p.math()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		case rest[0] == '{':
			flush()
			at := p.pos()
			p.advanceBytes(1)
			children, err := p.parseSeq(closer{brace: true, at: at})
			if err != nil {
				return nil, err
			}
			p.advanceBytes(1)
			nodes = append(nodes, &Node{Kind: Block, Children: children, Pos: at})

		case rest[0] == '\\':
			if name, ok := envArg(rest, `\end`); ok {
				if name != c.env {
					if c.env == "" {
						return nil, p.errorf(p.pos(), `\end{%s} without matching \begin`, name)
					}
					return nil, p.errorf(p.pos(), `\begin{%s} at %d:%d ended by \end{%s}`, c.env, c.at.Line, c.at.Column, name)
				}
				flush()
				return nodes, nil
			}
			flush()
			n, err := p.backslash()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		default:
			if textStart < 0 {
				textStart, textPos = p.off, p.pos()
			}
			_, size := utf8.DecodeRuneInString(rest)
			p.advanceBytes(size)
		}
	}

	flush()
	if d := c.describe(); d != "" {
		return nil, p.errorf(c.at, "unexpected end of input: %s is never closed", d)
	}
	return nodes, nil
}

func (p *parser) leaf(k Kind, n int) *Node {
	at, start := p.pos(), p.off
	p.advanceBytes(n)
	return &Node{Kind: k, Raw: p.src[start:p.off], Pos: at}
}

func (p *parser) math() (*Node, error) {
	at := p.pos()
	delim := "$"
	if strings.HasPrefix(p.rest(), "$$") {
		delim = "$$"
	}
	p.advanceBytes(len(delim))
	children, err := p.parseSeq(closer{math: delim, at: at})
	if err != nil {
		return nil, err
	}
	p.advanceBytes(len(delim))
	return &Node{Kind: Math, Raw: delim, Children: children, Pos: at}, nil
}

// backslash parses a macro, an environment, \verb or a verb macro.
func (p *parser) backslash() (*Node, error) {
	rest := p.rest()
	at := p.pos()

	if name, ok := envArg(rest, `\begin`); ok {
		head := len(`\begin{`) + len(name) + 1
		p.advanceBytes(head)
		if p.verbatim[name] {
			end := `\end{` + name + `}`
			i := strings.Index(p.rest(), end)
			if i < 0 {
				return nil, p.errorf(at, `unexpected end of input: \begin{%s} is never closed`, name)
			}
			body := p.leaf(Verb, i)
			p.advanceBytes(len(end))
			return &Node{Kind: Environment, Name: name, Children: []*Node{body}, Pos: at}, nil
		}
		children, err := p.parseSeq(closer{env: name, at: at})
		if err != nil {
			return nil, err
		}
		p.advanceBytes(len(`\end{`) + len(name) + 1)
		return &Node{Kind: Environment, Name: name, Children: children, Pos: at}, nil
	}

	name := macroName(rest)
	switch {
	case name == `\verb` || name == `\verb*`:
		n := len(name)
		if n >= len(rest) {
			return nil, p.errorf(at, `unterminated %s`, name)
		}
		delim, size := utf8.DecodeRuneInString(rest[n:])
		end := strings.IndexRune(rest[n+size:], delim)
		if end < 0 || strings.Contains(rest[n+size:n+size+end], "\n") {
			return nil, p.errorf(at, "unterminated %s", name)
		}
		return p.leaf(Verb, n+size+end+utf8.RuneLen(delim)), nil

	case p.verbMacros[name]:
		n, err := verbArgs(rest, len(name))
		if err != nil {
			return nil, p.errorf(at, "%s: %v", name, err)
		}
		return p.leaf(Verb, n), nil
	}
	return p.leaf(Macro, len(name)), nil
}

// macroName returns the control sequence at the start of s, which begins
// with a backslash: a run of letters (plus a trailing '*' for \verb*), or a
// single other character.
func macroName(s string) string {
	i := 1
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 1 {
		if len(s) == 1 {
			return s
		}
		_, size := utf8.DecodeRuneInString(s[1:])
		return s[:1+size]
	}
	if s[:i] == `\verb` && i < len(s) && s[i] == '*' {
		i++
	}
	return s[:i]
}

// envArg reports whether s starts with cmd immediately followed by a
// braced environment name.
func envArg(s, cmd string) (string, bool) {
	if !strings.HasPrefix(s, cmd+"{") {
		return "", false
	}
	s = s[len(cmd)+1:]
	end := strings.IndexByte(s, '}')
	if end <= 0 {
		return "", false
	}
	name := s[:end]
	if strings.ContainsAny(name, "\\{%$\n") {
		return "", false
	}
	return name, true
}

// verbArgs returns the length of a verb macro with its optional [..] and
// one balanced {..} argument, starting after the macro name at offset n.
func verbArgs(s string, n int) (int, error) {
	i := n
	if i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return 0, fmt.Errorf("unterminated option")
		}
		i += end + 1
	}
	if i >= len(s) || s[i] != '{' {
		return i, nil
	}
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced braces in argument")
}

func lineLen(s string) int {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return i
	}
	return len(s)
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
