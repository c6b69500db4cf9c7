package rd

// macroSpec describes how a macro's arguments are lexed.
type macroSpec struct {
	// modes gives the mode of each braced argument; the last entry repeats.
	// An empty slice means the macro takes no arguments.
	modes []Mode
	// option is true when a "[...]" argument may precede the braces.
	option bool
	// section is true for macros allowed at the top level of a file.
	section bool
	// repeatable sections may appear more than once in a file.
	repeatable bool
	// defines is true for \newcommand and \renewcommand.
	defines bool
	// greedy macros take every braced group that immediately follows.
	greedy bool
}

func (s macroSpec) maxArgs() int {
	if s.greedy {
		return -1
	}
	return len(s.modes)
}

func (s macroSpec) argMode(i int) Mode {
	if i < len(s.modes) {
		return s.modes[i]
	}
	return s.modes[len(s.modes)-1]
}

var (
	latex1 = []Mode{LatexLike}
	latex2 = []Mode{LatexLike, LatexLike}
	rlike1 = []Mode{RLike}
	verb1  = []Mode{Verbatim}
)

func section(modes []Mode) macroSpec    { return macroSpec{modes: modes, section: true} }
func repeatable(modes []Mode) macroSpec { return macroSpec{modes: modes, section: true, repeatable: true} }

// macros is the table of built-in Rd macros.
var macros = map[string]macroSpec{
	// sections
	`\name`:         section(verb1),
	`\title`:        section(latex1),
	`\description`:  section(latex1),
	`\usage`:        section(rlike1),
	`\arguments`:    section(latex1),
	`\value`:        section(latex1),
	`\details`:      section(latex1),
	`\format`:       section(latex1),
	`\source`:       section(latex1),
	`\references`:   section(latex1),
	`\note`:         section(latex1),
	`\author`:       section(latex1),
	`\seealso`:      section(latex1),
	`\examples`:     section(rlike1),
	`\synopsis`:     section(rlike1),
	`\docType`:      section(latex1),
	`\encoding`:     section(latex1),
	`\Rdversion`:    section(latex1),
	`\section`:      repeatable(latex2),
	`\alias`:        repeatable(verb1),
	`\keyword`:      repeatable(latex1),
	`\concept`:      repeatable(latex1),
	`\RdOpts`:       repeatable(verb1),
	`\Sexpr`:        {modes: rlike1, option: true, section: true, repeatable: true},
	`\newcommand`:   {modes: []Mode{Verbatim, Verbatim}, section: true, repeatable: true, defines: true},
	`\renewcommand`: {modes: []Mode{Verbatim, Verbatim}, section: true, repeatable: true, defines: true},

	// R-like markup
	`\code`:        {modes: rlike1},
	`\dontshow`:    {modes: rlike1},
	`\donttest`:    {modes: rlike1},
	`\dontdiff`:    {modes: rlike1},
	`\testonly`:    {modes: rlike1},
	`\method`:      {modes: []Mode{LatexLike, LatexLike}},
	`\S3method`:    {modes: []Mode{LatexLike, LatexLike}},
	`\S4method`:    {modes: []Mode{LatexLike, LatexLike}},
	`\var`:         {modes: latex1},
	`\link`:        {modes: latex1, option: true},
	`\linkS4class`: {modes: latex1},

	// verbatim markup
	`\verb`:         {modes: verb1},
	`\preformatted`: {modes: verb1},
	`\samp`:         {modes: verb1},
	`\kbd`:          {modes: verb1},
	`\url`:          {modes: verb1},
	`\special`:      {modes: verb1},
	`\dontrun`:      {modes: verb1},
	`\out`:          {modes: verb1},
	`\env`:          {modes: verb1},
	`\eqn`:          {modes: []Mode{Verbatim, LatexLike}},
	`\deqn`:         {modes: []Mode{Verbatim, LatexLike}},
	`\href`:         {modes: []Mode{Verbatim, LatexLike}},

	// LaTeX-like markup
	`\acronym`:    {modes: latex1},
	`\bold`:       {modes: latex1},
	`\cite`:       {modes: latex1},
	`\command`:    {modes: latex1},
	`\dfn`:        {modes: latex1},
	`\dQuote`:     {modes: latex1},
	`\email`:      {modes: latex1},
	`\emph`:       {modes: latex1},
	`\file`:       {modes: latex1},
	`\figure`:     {modes: []Mode{Verbatim, Verbatim}},
	`\option`:     {modes: latex1},
	`\pkg`:        {modes: latex1},
	`\sQuote`:     {modes: latex1},
	`\strong`:     {modes: latex1},
	`\abbr`:       {modes: latex1},
	`\describe`:   {modes: latex1},
	`\enumerate`:  {modes: latex1},
	`\itemize`:    {modes: latex1},
	`\item`:       {modes: latex2},
	`\subsection`: {modes: latex2},
	`\tabular`:    {modes: []Mode{Verbatim, LatexLike}},
	`\enc`:        {modes: latex2},
	`\if`:         {modes: []Mode{Verbatim, LatexLike}},
	`\ifelse`:     {modes: []Mode{Verbatim, LatexLike, LatexLike}},

	// no arguments
	`\R`:     {},
	`\dots`:  {},
	`\ldots`: {},
	`\cr`:    {},
	`\tab`:   {},
}

// lookupMacro returns the spec of a built-in or user-defined macro. User
// macros take as many LaTeX-like arguments as their definition references.
// Macros declared through ParseOptions.Macros, and unknown macros, take
// every braced group that follows them.
func (p *parser) lookupMacro(name string) (macroSpec, bool) {
	if spec, ok := macros[name]; ok {
		return spec, true
	}
	if n, ok := p.userMacros[name]; ok {
		if n < 0 {
			return macroSpec{modes: latex1, greedy: true}, true
		}
		modes := make([]Mode, n)
		for i := range modes {
			modes[i] = LatexLike
		}
		return macroSpec{modes: modes}, true
	}
	return macroSpec{modes: latex1, greedy: true}, false
}

// KnownMacro reports whether name is a built-in Rd macro.
func KnownMacro(name string) bool {
	_, ok := macros[name]
	return ok
}
