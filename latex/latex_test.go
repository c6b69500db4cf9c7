package latex

import (
	"errors"
	"testing"

	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		`\alpha + \beta`,
		`\\ \{ \} \% \$`,
		"a % comment\nb",
		"% at eof",
		`$x^2$ and $$\sum_i x_i$$`,
		`\begin{itemize}\item {one} \item two\end{itemize}`,
		`\begin{figure*}\centering\end{figure*}`,
		`\begin{verbatim}\foo{ $ % \end{itemiz}\end{verbatim}`,
		`\verb|\x{|, \verb*+y+`,
		`\Sexpr[results=rd]{paste0("a", 1)}`,
		`\textbf{\emph{nested {deep}}}`,
		"ünïcödé $α$",
		`\begin{}`,
		`\`,
	}
	for _, src := range inputs {
		nodes, err := Parse(src, ParseOptions{})
		require.NoError(t, err, "input %q", src)
		assert.Equal(t, src, Deparse(nodes), "input %q", src)
	}
}

func TestParse_Structure(t *testing.T) {
	src := "Hello $x^2$ % note\n\\begin{itemize}\\item {a}\\end{itemize}"
	nodes, err := Parse(src, ParseOptions{})
	require.NoError(t, err)

	var kinds []Kind
	for _, n := range nodes {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []Kind{Text, Math, Text, Comment, Text, Environment}, kinds)

	math := nodes[1]
	assert.Equal(t, "$", math.Raw)
	require.Len(t, math.Children, 1)
	assert.Equal(t, "x^2", math.Children[0].Raw)

	assert.Equal(t, "% note", nodes[3].Raw)

	env := nodes[5]
	assert.Equal(t, "itemize", env.Name)
	assert.Equal(t, Pos{Line: 2, Column: 1}, env.Pos)
	require.Len(t, env.Children, 3)
	assert.Equal(t, Macro, env.Children[0].Kind)
	assert.Equal(t, `\item`, env.Children[0].Raw)
	assert.Equal(t, Text, env.Children[1].Kind)
	assert.Equal(t, Block, env.Children[2].Kind)
	assert.Equal(t, "{a}", env.Children[2].String())
}

func TestParse_MacroNames(t *testing.T) {
	nodes, err := Parse(`\alpha2\\\%`, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, `\alpha`, nodes[0].Raw)
	assert.Equal(t, "2", nodes[1].Raw)
	assert.Equal(t, `\\`, nodes[2].Raw)
	assert.Equal(t, `\%`, nodes[3].Raw)
}

func TestParse_Verbatim(t *testing.T) {
	nodes, err := Parse(`\begin{Sinput}> x <- {1}\end{Sinput}`, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, Verb, nodes[0].Children[0].Kind)
	assert.Equal(t, "> x <- {1}", nodes[0].Children[0].Raw)

	nodes, err = Parse(`\verb!a}b!`, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, Verb, nodes[0].Kind)

	nodes, err = Parse(`\Sexpr{x{y}}z`, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, Verb, nodes[0].Kind)
	assert.Equal(t, `\Sexpr{x{y}}`, nodes[0].Raw)
}

func TestParse_CustomVerbatim(t *testing.T) {
	src := `\begin{code}{\end{code}`
	nodes, err := Parse(src, ParseOptions{VerbatimEnvs: []string{"code"}})
	require.NoError(t, err)
	assert.Equal(t, Verb, nodes[0].Children[0].Kind)

	_, err = Parse(src, ParseOptions{})
	require.Error(t, err, "code is not verbatim by default, so the brace is unbalanced")

	nodes, err = Parse(`\Sexpr{x}`, ParseOptions{VerbMacros: []string{}})
	require.NoError(t, err)
	assert.Equal(t, Macro, nodes[0].Kind)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    int
		column  int
		message string
	}{
		{"unclosed brace", "ab {c", 1, 4, "'{' is never closed"},
		{"stray brace", "a}", 1, 2, "unexpected '}'"},
		{"mismatched end", `\begin{a}x\end{b}`, 1, 11, `ended by \end{b}`},
		{"stray end", "x\n\\end{a}", 2, 1, "without matching"},
		{"unclosed env", "\\begin{a}\nx", 1, 1, `\begin{a} is never closed`},
		{"unclosed math", "x $y", 1, 3, "math shift '$' is never closed"},
		{"single shift inside display math", "$$y$", 1, 4, "never closed"},
		{"unclosed verb", `\verb|abc`, 1, 1, `unterminated \verb`},
		{"verb across lines", "\\verb|a\nb|", 1, 1, "unterminated"},
		{"unclosed verbatim", `\begin{verbatim}x`, 1, 1, "never closed"},
		{"unbalanced verb macro", `\Sexpr{x`, 1, 1, "unbalanced"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, ParseOptions{Source: "frag.tex"})
			require.Error(t, err)
			var pe *bridgeerrors.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.column, pe.Column)
			assert.Contains(t, pe.Message, tt.message)
			assert.Contains(t, pe.Error(), "frag.tex:")
		})
	}
}

func TestKindOf(t *testing.T) {
	for _, k := range []Kind{Text, Comment, Macro, Block, Environment, Math, Verb} {
		got, ok := KindOf(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := KindOf("nope")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
