// Package rd parses and deparses Rd, the markup language of R documentation
// files.
//
// The parse tree is lossless: every byte of the input is owned by exactly
// one node, escapes and comments are kept in their source form, and Deparse
// concatenates the nodes back into the original text. Deparse(Parse(D)) == D
// holds for every D that parses without error.
//
// Rd has three lexical modes, selected by the enclosing macro:
//
//   - LaTeX-like (the default): macros, braces and '%' comments.
//   - R-like (\code, \usage, \examples, ...): as LaTeX-like, but braces
//     inside quoted strings are not counted and '#' starts an R comment in
//     which quotes are inert.
//   - Verbatim (\verb, \preformatted, \alias, ...): only braces, escapes and
//     comments are recognised; a backslash followed by letters is text.
package rd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
)

// Kind identifies a node type. The string forms match the tags the host
// interpreter uses for parsed documentation.
type Kind int

const (
	// Text is LaTeX-like text.
	Text Kind = iota
	// RCode is text in R-like mode.
	RCode
	// Verb is verbatim text.
	Verb
	// Comment is a '%' comment up to, not including, the end of line.
	Comment
	// Macro is a backslash macro with its arguments.
	Macro
	// Group is a braced list "{...}".
	Group
	// Option is a bracketed optional macro argument "[...]".
	Option
	// Conditional is an "#ifdef" or "#ifndef" block ending at an "#endif"
	// line.
	Conditional
)

var kindNames = [...]string{"TEXT", "RCODE", "VERB", "COMMENT", "MACRO", "LIST", "OPTION", "CONDITIONAL"}

// Conditional directives. Each must start a line.
const (
	DirectiveIfdef  = "#ifdef"
	DirectiveIfndef = "#ifndef"
	DirectiveEndif  = "#endif"
)

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
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("rd: unknown node kind %q", b)
}

// KindOf returns the kind named by tag, as produced by Node.Tag.
func KindOf(tag string) (Kind, bool) {
	switch {
	case strings.HasPrefix(tag, `\`):
		return Macro, true
	case tag == DirectiveIfdef || tag == DirectiveIfndef:
		return Conditional, true
	}
	for i, name := range kindNames {
		if name == tag && Kind(i) != Macro && Kind(i) != Conditional {
			return Kind(i), true
		}
	}
	return 0, false
}

// Mode is a lexical mode.
type Mode int

const (
	LatexLike Mode = iota
	RLike
	Verbatim
)

func (m Mode) String() string {
	switch m {
	case RLike:
		return "R-like"
	case Verbatim:
		return "verbatim"
	default:
		return "LaTeX-like"
	}
}

// textKind is the leaf kind produced for text in mode m.
func (m Mode) textKind() Kind {
	switch m {
	case RLike:
		return RCode
	case Verbatim:
		return Verb
	default:
		return Text
	}
}

// Pos is a 1-based source position. Columns count characters.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is one element of the parse tree.
//
// Leaves (Text, RCode, Verb, Comment) hold their raw source in Raw.
// A Macro holds its name, including the backslash, in Name and its
// arguments, each an Option or Group, in Children. Group and Option hold
// their contents in Children. A Conditional holds its directive in Name;
// its first child is a Verb with the rest of the directive line, newline
// included, and the remaining children are the body up to "#endif".
type Node struct {
	Name     string  `json:"name,omitempty"`
	Raw      string  `json:"raw,omitempty"`
	Children []*Node `json:"children,omitempty"`
	Pos      Pos     `json:"pos"`
	Kind     Kind    `json:"kind"`
}

// nodeWire is the JSON form of a Node. Raw is a RawString so leaves that are
// not valid UTF-8 round-trip exactly.
type nodeWire struct {
	Name     string             `json:"name,omitempty"`
	Raw      entities.RawString `json:"raw,omitempty"`
	Children []*Node            `json:"children,omitempty"`
	Pos      Pos                `json:"pos"`
	Kind     Kind               `json:"kind"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeWire{Name: n.Name, Raw: entities.RawString(n.Raw), Children: n.Children, Pos: n.Pos, Kind: n.Kind})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{Name: w.Name, Raw: string(w.Raw), Children: w.Children, Pos: w.Pos, Kind: w.Kind}
	return nil
}

// Tag returns the name of macros and conditionals and the kind name
// otherwise.
func (n *Node) Tag() string {
	if n.Kind == Macro || n.Kind == Conditional {
		return n.Name
	}
	return n.Kind.String()
}

// IsLeaf reports whether n carries raw text.
func (n *Node) IsLeaf() bool {
	return n.Kind <= Comment
}

// Value returns the text of a leaf with Rd escapes removed. Comments are
// returned unchanged.
func (n *Node) Value() string {
	if n.Kind == Comment {
		return n.Raw
	}
	return Unescape(n.Raw)
}

// Args returns the Group arguments of a macro, skipping any Option.
func (n *Node) Args() []*Node {
	args := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind == Group {
			args = append(args, c)
		}
	}
	return args
}

// Opt returns the Option argument of a macro, or nil.
func (n *Node) Opt() *Node {
	for _, c := range n.Children {
		if c.Kind == Option {
			return c
		}
	}
	return nil
}

// Condition returns the symbol tested by a conditional, or "".
func (n *Node) Condition() string {
	if n.Kind != Conditional || len(n.Children) == 0 {
		return ""
	}
	return strings.TrimSpace(n.Children[0].Raw)
}

// Body returns the nodes inside a conditional.
func (n *Node) Body() []*Node {
	if n.Kind != Conditional || len(n.Children) == 0 {
		return nil
	}
	return n.Children[1:]
}

// PlainText concatenates the unescaped text below n, dropping comments,
// conditions and macro names. It is intended for short values such as \name or \alias.
func (n *Node) PlainText() string {
	var b strings.Builder
	n.plain(&b)
	return b.String()
}

func (n *Node) plain(b *strings.Builder) {
	switch {
	case n.Kind == Comment:
	case n.Kind == Conditional:
		for _, c := range n.Body() {
			c.plain(b)
		}
	case n.IsLeaf():
		b.WriteString(n.Value())
	default:
		for _, c := range n.Children {
			c.plain(b)
		}
	}
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Message string `json:"message"`
	Pos     Pos    `json:"pos"`
}

// Document is a parsed Rd file or fragment.
type Document struct {
	// Source names the input in diagnostics.
	Source string `json:"source,omitempty"`

	// Nodes are the top-level nodes in source order.
	Nodes []*Node `json:"nodes"`

	// Warnings lists non-fatal diagnostics in source order.
	Warnings []Warning `json:"warnings,omitempty"`

	// Fragment records whether the document was parsed as a fragment.
	Fragment bool `json:"fragment"`
}

// Sections returns the top-level macros in source order.
func (d *Document) Sections() []*Node {
	var out []*Node
	for _, n := range d.Nodes {
		if n.Kind == Macro {
			out = append(out, n)
		}
	}
	return out
}

// Section returns the first top-level macro with the given name, or nil.
func (d *Document) Section(name string) *Node {
	for _, n := range d.Nodes {
		if n.Kind == Macro && n.Name == name {
			return n
		}
	}
	return nil
}
