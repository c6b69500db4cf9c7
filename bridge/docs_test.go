package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
)

const sampleRd = `% generated
\name{delim}
\alias{delim}
\title{Match \{ and \}}
\usage{delim(x = "{", ...)}
\arguments{
  \item{x}{a string}
}
\examples{
delim("{a}") # 50% off
}
`

func lines(s string) entities.Value {
	return entities.Strings(strings.Split(s, "\n")...)
}

func parseRd(b *Bridge, text entities.Value, fragment bool) entities.Value {
	return b.Call(context.Background(), SymParseRd,
		text, entities.Strings("delim.Rd"), entities.Logicals(false),
		entities.Logicals(fragment), entities.Null(), entities.Logicals(false))
}

func TestBridge_RdRoundTrip(t *testing.T) {
	f := newFixture(t)

	tree := parseRd(f.bridge, lines(sampleRd), false)
	require.False(t, tree.IsCondition(), "%v", tree.Condition)
	class, _ := tree.Attr(AttrClass)
	assert.Equal(t, []string{"Rd"}, class.Strings)

	// The tree survives the JSON wire form unchanged.
	raw, err := json.Marshal(tree)
	require.NoError(t, err)
	var decoded entities.Value
	require.NoError(t, json.Unmarshal(raw, &decoded))

	out := f.bridge.Call(context.Background(), SymDeparseRd, decoded, entities.Null())
	require.False(t, out.IsCondition(), "%v", out.Condition)
	assert.Equal(t, []string{sampleRd}, out.Strings)
}

func TestBridge_RdTreeShape(t *testing.T) {
	f := newFixture(t)
	tree := parseRd(f.bridge, lines(`\title{A \emph{b}}`), true)
	require.Equal(t, entities.KindList, tree.Kind)
	require.Equal(t, 1, tree.Len())

	title := tree.Elements[0]
	tag, _ := title.Attr(AttrRdTag)
	assert.Equal(t, []string{`\title`}, tag.Strings)
	ref, _ := title.Attr(AttrSrcref)
	assert.Equal(t, []int{1, 1}, ref.Ints)

	arg := title.Elements[0]
	tag, _ = arg.Attr(AttrRdTag)
	assert.Equal(t, []string{"LIST"}, tag.Strings)
	require.Equal(t, 2, arg.Len())
	assert.Equal(t, []string{"A "}, arg.Elements[0].Strings)

	nodes, err := ValueToRd(title)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, `\title{A \emph{b}}`, nodes[0].String())
}

func TestBridge_RdConditional(t *testing.T) {
	f := newFixture(t)
	src := "\\name{x}\n#ifdef windows\n\\alias{x.win}\n#endif\n"
	tree := parseRd(f.bridge, lines(src), false)
	require.False(t, tree.IsCondition(), "%v", tree.Condition)
	require.Equal(t, 4, tree.Len())

	cond := tree.Elements[2]
	tag, _ := cond.Attr(AttrRdTag)
	assert.Equal(t, []string{"#ifdef"}, tag.Strings)
	require.Equal(t, entities.KindList, cond.Kind)
	assert.Equal(t, []string{" windows\n"}, cond.Elements[0].Strings)

	out := f.bridge.Call(context.Background(), SymDeparseRd, tree, entities.Null())
	require.False(t, out.IsCondition(), "%v", out.Condition)
	assert.Equal(t, []string{src}, out.Strings)
}

func TestBridge_ParseRdWarnings(t *testing.T) {
	f := newFixture(t)
	src := lines("\\name{x}\n\\foo{1}")

	plain := parseRd(f.bridge, src, false)
	w, ok := plain.Attr(AttrWarnings)
	require.True(t, ok)
	require.Equal(t, entities.KindCharacter, w.Kind)
	assert.Contains(t, w.Strings[0], `\foo`)

	withCalls := f.bridge.Call(context.Background(), SymParseRd,
		src, entities.Strings("x.Rd"), entities.Logicals(true),
		entities.Logicals(false), entities.Strings("x"), entities.Logicals(true))
	w, ok = withCalls.Attr(AttrWarnings)
	require.True(t, ok)
	require.Equal(t, entities.KindList, w.Kind)
	require.True(t, w.Elements[0].IsCondition())
	assert.True(t, strings.HasPrefix(w.Elements[0].Condition.Message, "x:2:1: "), w.Elements[0].Condition.Message)

	macroSrc := entities.Strings("x.Rd").WithAttr(AttrMacros, entities.Strings(`\foo`))
	known := f.bridge.Call(context.Background(), SymParseRd,
		src, macroSrc, entities.Logicals(false), entities.Logicals(false), entities.Null(), entities.Logicals(false))
	_, ok = known.Attr(AttrWarnings)
	assert.False(t, ok)
}

func TestBridge_ParseRdErrors(t *testing.T) {
	f := newFixture(t)

	d := requireCondition(t, parseRd(f.bridge, lines("\\name{x}\n\\title{oops"), false), entities.ErrorTypeParse)
	assert.EqualValues(t, 2, d.Details["line"])
	assert.Contains(t, d.Message, "delim.Rd:2:")

	latin1 := entities.Strings("\\title{caf\xe9}").WithAttr(AttrEncoding, entities.Strings("latin1"))
	tree := parseRd(f.bridge, latin1, true)
	require.False(t, tree.IsCondition())
	out := f.bridge.Call(context.Background(), SymDeparseRd, tree, entities.Null())
	assert.Equal(t, []string{"\\title{café}"}, out.Strings)

	requireCondition(t, f.bridge.Call(context.Background(), SymParseRd,
		entities.Integers(1), entities.Null(), entities.Null(), entities.Null(), entities.Null(), entities.Null()),
		entities.ErrorTypeInvalidArgument)
}

func TestBridge_DeparseRd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	escaped := f.bridge.Call(ctx, SymDeparseRd, entities.Strings("100% {sure}"), entities.Null())
	assert.Equal(t, []string{`100\% \{sure\}`}, escaped.Strings)

	leaf := entities.Strings("x}").WithAttr(AttrRdTag, entities.Strings("TEXT"))
	requireCondition(t, f.bridge.Call(ctx, SymDeparseRd, leaf, entities.Null()), entities.ErrorTypeInvalidArgument)

	untagged := entities.List(entities.Strings("x"))
	requireCondition(t, f.bridge.Call(ctx, SymDeparseRd, untagged, entities.Null()), entities.ErrorTypeInvalidArgument)

	requireCondition(t, f.bridge.Call(ctx, SymDeparseRd, entities.Strings("x"), entities.Strings("LIST")), entities.ErrorTypeInvalidArgument)

	empty := f.bridge.Call(ctx, SymDeparseRd, entities.List(), entities.Null())
	assert.Equal(t, []string{""}, empty.Strings)
}

func TestBridge_ParseLatex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.bridge.Call(ctx, SymParseLatex, lines(`$x$ \begin{Sinput}{\end{Sinput}`), entities.Null())
	require.False(t, v.IsCondition(), "%v", v.Condition)
	class, _ := v.Attr(AttrClass)
	assert.Equal(t, []string{"LaTeX"}, class.Strings)
	require.Equal(t, 3, v.Len())

	math := v.Elements[0]
	tag, _ := math.Attr(AttrLatexTag)
	assert.Equal(t, []string{"MATH"}, tag.Strings)
	delim, _ := math.Attr("delim")
	assert.Equal(t, []string{"$"}, delim.Strings)

	env := v.Elements[2]
	require.Equal(t, 2, env.Len())
	assert.Equal(t, []string{"Sinput"}, env.Elements[0].Strings)
	body := env.Elements[1].Elements[0]
	tag, _ = body.Attr(AttrLatexTag)
	assert.Equal(t, []string{"VERB"}, tag.Strings)

	// With no verbatim environments the lone brace is unbalanced.
	d := requireCondition(t, f.bridge.Call(ctx, SymParseLatex, lines(`\begin{Sinput}{\end{Sinput}`), entities.Strings()), entities.ErrorTypeParse)
	assert.EqualValues(t, 1, d.Details["line"])
}

func TestBridge_Handlers(t *testing.T) {
	f := newFixture(t)
	reg, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(f.bridge))
	require.NoError(t, err)
	assert.Len(t, reg.Names(), 16)

	payload := []byte(`{"args":[{"type":"character","values":["a\tb"]},{"type":"integer","values":[0]}]}`)
	raw, err := reg.Invoke(context.Background(), HandlerName(SymTabExpand), payload)
	require.NoError(t, err)

	var v entities.Value
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, []string{"a       b"}, v.Strings)

	raw, err = reg.Invoke(context.Background(), HandlerName(SymTabExpand), []byte(`{"args":[]}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.True(t, v.IsCondition())

	raw, err = reg.Invoke(context.Background(), HandlerName(SymTabExpand), []byte(`{bad`))
	require.NoError(t, err)
	_, rejected := hostfuncs.IsErrorResponse(raw)
	assert.True(t, rejected)
}

func TestBridge_Describe(t *testing.T) {
	f := newFixture(t)
	infos, err := f.bridge.Describe()
	require.NoError(t, err)
	require.Len(t, infos, 16)

	byName := map[string]SlotInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	rd := byName[SymParseRd]
	assert.Equal(t, 6, rd.Arity)
	assert.Equal(t, hostfuncs.FuncParseRd, rd.Function)
	assert.Contains(t, string(rd.RequestSchema), `"fragment"`)

	assert.Empty(t, byName[SymStopHTTPD].RequestSchema)
}

func TestBridge_HandlersDoNotShadowHostFunctions(t *testing.T) {
	f := newFixture(t)
	reg, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(hostfuncs.Bundles(hostfuncs.AllBundles(), f.bridge)))
	require.NoError(t, err)

	for _, sym := range []string{SymDelimMatch, SymKill, SymPriority} {
		assert.True(t, reg.Has(sym), "host function %s", sym)
		assert.True(t, reg.Has(HandlerName(sym)), "slot %s", sym)
	}

	raw, err := reg.Invoke(context.Background(), hostfuncs.FuncDelimMatch, []byte(`{"text":["a{b}c"],"delims":["{","}"]}`))
	require.NoError(t, err)
	var typed hostfuncs.DelimMatchResponse
	require.NoError(t, json.Unmarshal(raw, &typed))
	assert.Equal(t, []int{2}, typed.Start)
	assert.Equal(t, []int{3}, typed.Length)

	raw, err = reg.Invoke(context.Background(), HandlerName(SymDelimMatch),
		[]byte(`{"args":[{"type":"character","values":["a{b}c"]},{"type":"character","values":["{","}"]}]}`))
	require.NoError(t, err)
	var v entities.Value
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, []int{2}, v.Ints)
}

func TestHandlerNames(t *testing.T) {
	f := newFixture(t)
	names := f.bridge.HandlerNames()
	require.Len(t, names, 16)
	assert.Contains(t, names, "tools.C_parseRd")
	for _, n := range names {
		assert.True(t, strings.HasPrefix(n, HandlerPrefix), n)
	}
}
