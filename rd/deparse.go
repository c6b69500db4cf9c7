package rd

import (
	"fmt"
	"strings"
)

// Deparse serialises nodes back to Rd source.
func Deparse(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
	}
	return b.String()
}

// String returns the Rd source of the document.
func (d *Document) String() string {
	return Deparse(d.Nodes)
}

// String returns the Rd source of the node.
func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case Text, RCode, Verb, Comment:
		b.WriteString(n.Raw)
	case Macro:
		b.WriteString(n.Name)
		for _, c := range n.Children {
			writeNode(b, c)
		}
	case Group:
		b.WriteByte('{')
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteByte('}')
	case Option:
		b.WriteByte('[')
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteByte(']')
	case Conditional:
		b.WriteString(n.Name)
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteString(DirectiveEndif)
	}
}

// Validate checks that a tree built by hand deparses to text that parses
// back into the same shape: leaves contain no unescaped braces, comments
// start with '%' and do not span lines, and macros have names.
func Validate(nodes []*Node) error {
	for _, n := range nodes {
		if err := validateNode(n); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node) error {
	switch n.Kind {
	case Comment:
		if !strings.HasPrefix(n.Raw, "%") || strings.Contains(n.Raw, "\n") {
			return fmt.Errorf("comment %q must start with %% and fit on one line", n.Raw)
		}
	case Text, RCode, Verb:
		if i := unescapedBrace(n.Raw, n.Kind); i >= 0 {
			return fmt.Errorf("%s %q has an unescaped brace at byte %d", n.Kind, n.Raw, i)
		}
	case Macro:
		if !isMacroName(n.Name) {
			return fmt.Errorf("invalid macro name %q", n.Name)
		}
		for _, c := range n.Children {
			if c.Kind != Group && c.Kind != Option {
				return fmt.Errorf("macro %s argument has kind %s", n.Name, c.Kind)
			}
		}
	case Conditional:
		if err := validateConditional(n); err != nil {
			return err
		}
		// The condition line is raw; only the body is markup.
		return Validate(n.Body())
	case Group, Option:
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
	for _, c := range n.Children {
		if err := validateNode(c); err != nil {
			return err
		}
	}
	return nil
}

// validateConditional checks that the directive line is a single line and
// that the body leaves "#endif" at the start of a line.
func validateConditional(n *Node) error {
	if n.Name != DirectiveIfdef && n.Name != DirectiveIfndef {
		return fmt.Errorf("invalid conditional directive %q", n.Name)
	}
	if len(n.Children) == 0 || n.Children[0].Kind != Verb {
		return fmt.Errorf("%s needs a condition", n.Name)
	}
	cond := n.Children[0].Raw
	if strings.TrimSpace(cond) == "" || (cond[0] != ' ' && cond[0] != '\t') || !strings.HasSuffix(cond, "\n") || strings.Count(cond, "\n") != 1 {
		return fmt.Errorf("%s condition %q must be one line ending in a newline", n.Name, cond)
	}
	if body := n.Body(); len(body) > 0 && !strings.HasSuffix(Deparse(body), "\n") {
		return fmt.Errorf("%s body must end with a newline", n.Name)
	}
	return nil
}

// unescapedBrace returns the offset of the first brace that would be read
// as markup, or -1. In R code, braces inside quoted strings are text.
func unescapedBrace(s string, kind Kind) int {
	var quote byte
	inComment := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && quote != 0:
			i++
		case c == '\\':
			if i+1 < len(s) && strings.IndexByte(escapable, s[i+1]) >= 0 {
				i++
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '{' || c == '}':
			return i
		case kind != RCode:
		case c == '#':
			inComment = true
		case c == '\n':
			inComment = false
		case !inComment && (c == '"' || c == '\'' || c == '`'):
			quote = c
		}
	}
	return -1
}

func isMacroName(name string) bool {
	if len(name) < 2 || name[0] != '\\' || !isLetter(rune(name[1])) {
		return false
	}
	for _, r := range name[2:] {
		if !isLetter(r) && !isDigit(r) {
			return false
		}
	}
	return true
}
