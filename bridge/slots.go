package bridge

import (
	"context"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
)

// Exported symbols.
const (
	SymDelimMatch      = "delim_match"
	SymDirChmod        = "dirchmod"
	SymMD5             = "Rmd5"
	SymCheckNonASCII   = "check_nonASCII"
	SymCheckNonASCII2  = "check_nonASCII2"
	SymTabExpand       = "doTabExpand"
	SymKill            = "ps_kill"
	SymSignals         = "ps_sigs"
	SymPriority        = "ps_priority"
	SymCodeFilesAppend = "codeFilesAppend"
	SymGetFormats      = "getfmts"
	SymStartHTTPD      = "startHTTPD"
	SymStopHTTPD       = "stopHTTPD"
	SymParseLatex      = "C_parseLatex"
	SymParseRd         = "C_parseRd"
	SymDeparseRd       = "C_deparseRd"
)

func (b *Bridge) table() []Slot {
	return []Slot{
		{Name: SymDelimMatch, Function: hostfuncs.FuncDelimMatch, Args: []string{"x", "delims"}, Request: hostfuncs.DelimMatchRequest{}, Fn: b.delimMatch},
		{Name: SymDirChmod, Function: hostfuncs.FuncDirChmod, Args: []string{"dir", "group_writable"}, Request: hostfuncs.DirChmodRequest{}, Fn: b.dirChmod},
		{Name: SymMD5, Function: hostfuncs.FuncMD5, Args: []string{"files"}, Request: hostfuncs.MD5Request{}, Fn: b.md5},
		{Name: SymCheckNonASCII, Function: hostfuncs.FuncCheckNonASCII, Args: []string{"text", "ignore_quotes"}, Request: hostfuncs.NonASCIIRequest{}, Fn: b.checkNonASCII},
		{Name: SymCheckNonASCII2, Function: hostfuncs.FuncNonASCIIIndices, Args: []string{"text"}, Request: hostfuncs.NonASCIIRequest{}, Fn: b.nonASCIIIndices},
		{Name: SymTabExpand, Function: hostfuncs.FuncTabExpand, Args: []string{"strings", "starts"}, Request: hostfuncs.TabExpandRequest{}, Fn: b.tabExpand},
		{Name: SymKill, Function: hostfuncs.FuncKill, Args: []string{"pid", "signal"}, Request: hostfuncs.KillRequest{}, Fn: b.kill},
		{Name: SymSignals, Function: hostfuncs.FuncSignals, Args: []string{"signo"}, Fn: b.signals},
		{Name: SymPriority, Function: hostfuncs.FuncPriority, Args: []string{"pid", "value"}, Request: hostfuncs.PriorityRequest{}, Fn: b.priority},
		{Name: SymCodeFilesAppend, Function: hostfuncs.FuncCodeFilesAppend, Args: []string{"file1", "file2"}, Request: hostfuncs.CodeFilesAppendRequest{}, Fn: b.codeFilesAppend},
		{Name: SymGetFormats, Function: hostfuncs.FuncGetFormats, Args: []string{"format"}, Request: hostfuncs.FormatRequest{}, Fn: b.getFormats},
		{Name: SymStartHTTPD, Function: hostfuncs.FuncHTTPDStart, Args: []string{"ip", "port"}, Request: hostfuncs.HTTPDStartRequest{}, Fn: b.startHTTPD},
		{Name: SymStopHTTPD, Function: hostfuncs.FuncHTTPDStop, Args: []string{}, Fn: b.stopHTTPD},
		{Name: SymParseLatex, Function: hostfuncs.FuncParseLatex, Args: []string{"text", "verbatim"}, Request: hostfuncs.LatexParseRequest{}, Fn: b.parseLatex},
		{
			Name: SymParseRd, Function: hostfuncs.FuncParseRd,
			Args:    []string{"text", "source", "verbose", "fragment", "basename", "warningcalls"},
			Request: hostfuncs.RdParseRequest{}, Fn: b.parseRd,
		},
		{Name: SymDeparseRd, Function: hostfuncs.FuncDeparseRd, Args: []string{"e", "tag"}, Request: hostfuncs.RdDeparseRequest{}, Fn: b.deparseRd},
	}
}

func (b *Bridge) args(name string, vals []entities.Value) args {
	s := b.slots[name]
	return args{vals: vals, names: s.Args}
}

// withItemErrors attaches per-item failures as an "errors" attribute: a
// list parallel to the items holding NULL for successes and a condition
// for failures. v is returned unchanged when nothing failed.
func withItemErrors(v entities.Value, details []*entities.ErrorDetail) entities.Value {
	failed := false
	elems := make([]entities.Value, len(details))
	for i, d := range details {
		if d == nil {
			elems[i] = entities.Null()
			continue
		}
		failed = true
		elems[i] = entities.ConditionValue(d)
	}
	if !failed {
		return v
	}
	return v.WithAttr("errors", entities.List(elems...))
}

// delim_match(x, delims): start positions with a "match.length" attribute.
func (b *Bridge) delimMatch(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymDelimMatch, vals)
	text, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	delims, err := a.strictStrings(1)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.DelimMatchRequest, hostfuncs.DelimMatchResponse](ctx, b.reg, hostfuncs.FuncDelimMatch,
		hostfuncs.DelimMatchRequest{Text: nonNil(text), Delims: delims})
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	starts := entities.Integers(nonNil(resp.Start)...)
	lengths := entities.Integers(nonNil(resp.Length)...)
	for i := range text {
		if vals[0].IsNA(i) {
			starts = starts.WithNA(i)
			lengths = lengths.WithNA(i)
		}
	}
	return starts.WithAttr("match.length", lengths)
}

// dirchmod(dir, group_writable): the changed paths, with failures attached.
func (b *Bridge) dirChmod(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymDirChmod, vals)
	dirs, err := a.strictStrings(0)
	if err != nil {
		return condition(err)
	}
	gw, err := a.bool(1, false)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.DirChmodRequest, hostfuncs.DirChmodResponse](ctx, b.reg, hostfuncs.FuncDirChmod,
		hostfuncs.DirChmodRequest{Dirs: dirs, GroupWritable: gw})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	out := entities.Strings(nonNil(resp.Changed)...)
	if len(resp.Failures) == 0 {
		return out
	}
	failed := make([]string, len(resp.Failures))
	details := make([]*entities.ErrorDetail, len(resp.Failures))
	for i, f := range resp.Failures {
		failed[i] = f.Path
		details[i] = f.Error
	}
	return withItemErrors(out.WithAttr("failed", entities.Strings(failed...)), details)
}

// Rmd5(files): hex digests, NA where a file could not be read.
func (b *Bridge) md5(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymMD5, vals)
	files, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.MD5Request, hostfuncs.MD5Response](ctx, b.reg, hostfuncs.FuncMD5, hostfuncs.MD5Request{Files: nonNil(files)})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return pathStatuses(resp.Results, func(st hostfuncs.PathStatus) string { return st.Digest })
}

// pathStatuses builds a character vector from per-path results, NA for failures.
func pathStatuses(results []hostfuncs.PathStatus, field func(hostfuncs.PathStatus) string) entities.Value {
	out := make([]string, len(results))
	details := make([]*entities.ErrorDetail, len(results))
	for i, st := range results {
		if st.OK {
			out[i] = field(st)
		}
		details[i] = st.Error
	}
	v := entities.Strings(out...)
	for i, st := range results {
		if !st.OK {
			v = v.WithNA(i)
		}
	}
	return withItemErrors(v, details)
}

// check_nonASCII(text, ignore_quotes): TRUE if any line has a non-ASCII byte.
func (b *Bridge) checkNonASCII(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymCheckNonASCII, vals)
	text, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	ignore, err := a.bool(1, false)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.NonASCIIRequest, hostfuncs.NonASCIIResponse](ctx, b.reg, hostfuncs.FuncCheckNonASCII,
		hostfuncs.NonASCIIRequest{Text: nonNil(text), IgnoreQuotes: ignore})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return entities.Logicals(resp.Found)
}

// check_nonASCII2(text): 1-based indices of elements with non-ASCII bytes.
func (b *Bridge) nonASCIIIndices(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymCheckNonASCII2, vals)
	text, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.NonASCIIRequest, hostfuncs.NonASCIIResponse](ctx, b.reg, hostfuncs.FuncNonASCIIIndices,
		hostfuncs.NonASCIIRequest{Text: nonNil(text)})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return entities.Integers(nonNil(resp.Indices)...)
}

// doTabExpand(strings, starts): strings with tabs replaced by spaces.
func (b *Bridge) tabExpand(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymTabExpand, vals)
	strs, err := a.strings(0)
	if err != nil {
		return condition(err)
	}
	starts, _, err := a.ints(1)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.TabExpandRequest, hostfuncs.TabExpandResponse](ctx, b.reg, hostfuncs.FuncTabExpand,
		hostfuncs.TabExpandRequest{Strings: nonNil(strs), Starts: starts, TabWidth: b.tabWidth})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	out := entities.Strings(nonNil(resp.Strings)...)
	for i := range strs {
		if vals[0].IsNA(i) {
			out = out.WithNA(i)
		}
	}
	return out
}

// ps_kill(pid, signal): TRUE per pid that was signalled.
func (b *Bridge) kill(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymKill, vals)
	pids, na, err := a.ints(0)
	if err != nil {
		return condition(err)
	}
	sig, ok, err := a.int(1)
	if err != nil {
		return condition(err)
	}
	if !ok {
		return condition(a.invalid(1, "must be a signal number"))
	}

	// NA pids are reported as invalid without reaching the host function.
	req := hostfuncs.KillRequest{PIDs: []int{}, Signal: sig}
	idx := make([]int, 0, len(pids))
	for i, pid := range pids {
		if !na[i] {
			req.PIDs = append(req.PIDs, pid)
			idx = append(idx, i)
		}
	}
	resp, detail := invoke[hostfuncs.KillRequest, hostfuncs.KillResponse](ctx, b.reg, hostfuncs.FuncKill, req)
	if detail != nil {
		return entities.ConditionValue(detail)
	}

	out := make([]bool, len(pids))
	details := make([]*entities.ErrorDetail, len(pids))
	for i := range pids {
		if na[i] {
			details[i] = naPID(a)
		}
	}
	for j, st := range resp.Statuses {
		if j >= len(idx) {
			break
		}
		out[idx[j]] = st.OK
		details[idx[j]] = st.Error
	}
	return withItemErrors(entities.Logicals(out...), details)
}

func naPID(a args) *entities.ErrorDetail {
	return bridgeerrors.ToErrorDetail(a.invalid(0, "pid is NA"))
}

// ps_sigs(signo): host signal numbers for the given portable signal codes,
// or a named vector of all known signals when signo is NULL.
func (b *Bridge) signals(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymSignals, vals)
	resp, detail := invoke[struct{}, hostfuncs.SignalsResponse](ctx, b.reg, hostfuncs.FuncSignals, struct{}{})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	lookup := func(name string) (int, bool) {
		n, ok := resp.Signals[name]
		return n, ok && n >= 0
	}

	if vals[0].IsNull() {
		names := hostfuncs.SignalNames()
		return signalVector(names, lookup).WithAttr("names", entities.Strings(names...))
	}
	if vals[0].Kind == entities.KindCharacter {
		names, err := a.strings(0)
		if err != nil {
			return condition(err)
		}
		return signalVector(names, lookup)
	}
	codes, na, err := a.ints(0)
	if err != nil {
		return condition(err)
	}
	names := make([]string, len(codes))
	for i, c := range codes {
		if !na[i] {
			names[i] = portableSignals[c]
		}
	}
	return signalVector(names, lookup)
}

// portableSignals maps the signal codes used by R's tools package to names.
var portableSignals = map[int]string{
	1: "SIGHUP", 2: "SIGINT", 3: "SIGQUIT", 9: "SIGKILL", 15: "SIGTERM",
	17: "SIGSTOP", 18: "SIGTSTP", 19: "SIGCONT", 20: "SIGCHLD",
	30: "SIGUSR1", 31: "SIGUSR2",
}

func signalVector(names []string, lookup func(string) (int, bool)) entities.Value {
	out := make([]int, len(names))
	missing := make([]bool, len(names))
	for i, name := range names {
		n, ok := lookup(name)
		out[i], missing[i] = n, !ok
	}
	v := entities.Integers(out...)
	for i, m := range missing {
		if m {
			v = v.WithNA(i)
		}
	}
	return v
}

// ps_priority(pid, value): previous priorities, NA where the pid failed.
// A NULL or NA value only reads.
func (b *Bridge) priority(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymPriority, vals)
	pids, na, err := a.ints(0)
	if err != nil {
		return condition(err)
	}
	value, set, err := a.int(1)
	if err != nil {
		return condition(err)
	}

	req := hostfuncs.PriorityRequest{PIDs: []int{}}
	if set {
		req.Value = &value
	}
	idx := make([]int, 0, len(pids))
	for i, pid := range pids {
		if !na[i] {
			req.PIDs = append(req.PIDs, pid)
			idx = append(idx, i)
		}
	}
	resp, detail := invoke[hostfuncs.PriorityRequest, hostfuncs.PriorityResponse](ctx, b.reg, hostfuncs.FuncPriority, req)
	if detail != nil {
		return entities.ConditionValue(detail)
	}

	out := make([]int, len(pids))
	details := make([]*entities.ErrorDetail, len(pids))
	failed := make([]bool, len(pids))
	for i := range pids {
		if na[i] {
			failed[i] = true
			details[i] = naPID(a)
		}
	}
	for j, st := range resp.Statuses {
		if j >= len(idx) {
			break
		}
		i := idx[j]
		out[i] = st.Priority
		details[i] = st.Error
		failed[i] = !st.OK
	}
	v := entities.Integers(out...)
	for i, f := range failed {
		if f {
			v = v.WithNA(i)
		}
	}
	return withItemErrors(v, details)
}

// codeFilesAppend(file1, file2): TRUE per successfully appended pair.
func (b *Bridge) codeFilesAppend(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymCodeFilesAppend, vals)
	targets, err := a.strictStrings(0)
	if err != nil {
		return condition(err)
	}
	sources, err := a.strictStrings(1)
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.CodeFilesAppendRequest, hostfuncs.CodeFilesAppendResponse](ctx, b.reg, hostfuncs.FuncCodeFilesAppend,
		hostfuncs.CodeFilesAppendRequest{Targets: nonNil(targets), Sources: nonNil(sources)})
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	out := make([]bool, len(resp.Results))
	details := make([]*entities.ErrorDetail, len(resp.Results))
	for i, st := range resp.Results {
		out[i] = st.OK
		details[i] = st.Error
	}
	return withItemErrors(entities.Logicals(out...), details)
}

// getfmts(format): the conversion specifications of a printf format.
func (b *Bridge) getFormats(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymGetFormats, vals)
	format, err := a.str(0, "")
	if err != nil {
		return condition(err)
	}
	resp, detail := invoke[hostfuncs.FormatRequest, hostfuncs.FormatResponse](ctx, b.reg, hostfuncs.FuncGetFormats, hostfuncs.FormatRequest{Format: format})
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	specs := make([]string, len(resp.Fields))
	index := make([]int, len(resp.Fields))
	for i, f := range resp.Fields {
		specs[i] = f.Spec
		index[i] = f.Index
	}
	return entities.Strings(specs...).WithAttr("index", entities.Integers(index...))
}

// startHTTPD(ip, port): the server status as a named list.
func (b *Bridge) startHTTPD(ctx context.Context, vals []entities.Value) entities.Value {
	a := b.args(SymStartHTTPD, vals)
	ip, err := a.str(0, "")
	if err != nil {
		return condition(err)
	}
	port, ok, err := a.int(1)
	if err != nil {
		return condition(err)
	}
	if !ok {
		return condition(a.invalid(1, "must be a port number"))
	}
	resp, detail := invoke[hostfuncs.HTTPDStartRequest, hostfuncs.HTTPDResponse](ctx, b.reg, hostfuncs.FuncHTTPDStart,
		hostfuncs.HTTPDStartRequest{IP: ip, Port: port})
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return statusValue(resp)
}

// stopHTTPD(): NULL once the listener is closed.
func (b *Bridge) stopHTTPD(ctx context.Context, _ []entities.Value) entities.Value {
	resp, detail := invoke[struct{}, hostfuncs.HTTPDResponse](ctx, b.reg, hostfuncs.FuncHTTPDStop, struct{}{})
	if detail == nil {
		detail = resp.Error
	}
	if detail != nil {
		return entities.ConditionValue(detail)
	}
	return entities.Null()
}

func statusValue(resp hostfuncs.HTTPDResponse) entities.Value {
	st := resp.Status
	return entities.NamedList(map[string]entities.Value{
		"running": entities.Logicals(st.Running),
		"ip":      entities.Strings(st.IP),
		"port":    entities.Integers(st.Port),
		"addr":    entities.Strings(st.Addr),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
