package hostfuncs

import (
	"context"
	"sort"
)

// Host function names registered by the built-in bundles.
const (
	FuncDelimMatch      = "delim_match"
	FuncCheckNonASCII   = "check_non_ascii"
	FuncNonASCIIIndices = "non_ascii_indices"
	FuncTabExpand       = "tab_expand"
	FuncGetFormats      = "get_formats"
	FuncMD5             = "md5"
	FuncDirChmod        = "dir_chmod"
	FuncCodeFilesAppend = "code_files_append"
	FuncKill            = "ps_kill"
	FuncSignals         = "ps_signals"
	FuncPriority        = "ps_priority"
	FuncHTTPDStart      = "httpd_start"
	FuncHTTPDStop       = "httpd_stop"
	FuncHTTPDStatus     = "httpd_status"
	FuncParseRd         = "rd_parse"
	FuncDeparseRd       = "rd_deparse"
	FuncParseLatex      = "latex_parse"
)

// HostFuncBundle is a pre-configured set of related host functions.
// Bundles allow registering multiple handlers at once for common use cases.
type HostFuncBundle interface {
	// Handlers returns a map of handler names to ByteHandler functions.
	Handlers() map[string]ByteHandler
}

// staticBundle implements HostFuncBundle with a fixed set of handlers.
type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// TextBundle returns the string helpers:
// delim_match, check_non_ascii, non_ascii_indices, tab_expand, get_formats.
func TextBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncDelimMatch:      NewJSONHandler(PerformDelimMatch),
			FuncCheckNonASCII:   NewJSONHandler(PerformCheckNonASCII),
			FuncNonASCIIIndices: NewJSONHandler(PerformNonASCIIIndices),
			FuncTabExpand:       NewJSONHandler(PerformTabExpand),
			FuncGetFormats:      NewJSONHandler(PerformGetFormats),
		},
	}
}

// FileBundle returns the file system helpers:
// md5, dir_chmod, code_files_append.
func FileBundle(opts ...FileOption) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncMD5: NewJSONHandler(PerformMD5),
			FuncDirChmod: NewJSONHandler(func(ctx context.Context, req DirChmodRequest) DirChmodResponse {
				return PerformDirChmod(ctx, req, opts...)
			}),
			FuncCodeFilesAppend: NewJSONHandler(func(ctx context.Context, req CodeFilesAppendRequest) CodeFilesAppendResponse {
				return PerformCodeFilesAppend(ctx, req, opts...)
			}),
		},
	}
}

// ProcessBundle returns the process control helpers:
// ps_kill, ps_signals, ps_priority.
func ProcessBundle(opts ...ProcessOption) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncKill: NewJSONHandler(func(ctx context.Context, req KillRequest) KillResponse {
				return PerformKill(ctx, req, opts...)
			}),
			FuncSignals: NewNoArgHandler(PerformSignals),
			FuncPriority: NewJSONHandler(func(ctx context.Context, req PriorityRequest) PriorityResponse {
				return PerformPriority(ctx, req, opts...)
			}),
		},
	}
}

// HTTPDBundle returns the help server controls:
// httpd_start, httpd_stop, httpd_status.
func HTTPDBundle(opts ...HTTPDOption) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncHTTPDStart: NewJSONHandler(func(ctx context.Context, req HTTPDStartRequest) HTTPDResponse {
				return PerformStartHTTPD(ctx, req, opts...)
			}),
			FuncHTTPDStop: NewNoArgHandler(func(ctx context.Context) HTTPDResponse {
				return PerformStopHTTPD(ctx, opts...)
			}),
			FuncHTTPDStatus: NewNoArgHandler(func(ctx context.Context) HTTPDResponse {
				return PerformHTTPDStatus(ctx, opts...)
			}),
		},
	}
}

// DocsBundle returns the documentation parsers:
// rd_parse, rd_deparse, latex_parse.
func DocsBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncParseRd:    NewJSONHandler(PerformParseRd),
			FuncDeparseRd:  NewJSONHandler(PerformDeparseRd),
			FuncParseLatex: NewJSONHandler(PerformParseLatex),
		},
	}
}

// compositeBundle combines multiple bundles into one.
type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// Bundles combines bundles into one.
func Bundles(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// AllBundles returns a bundle containing all built-in host functions with
// default options.
func AllBundles() HostFuncBundle {
	return Bundles(
		TextBundle(),
		FileBundle(),
		ProcessBundle(),
		HTTPDBundle(),
		DocsBundle(),
	)
}

// WithBundle registers all handlers from a bundle. The parts of a combined
// bundle are registered one by one, so a name defined by two parts is a
// duplicate handler error rather than one part silently shadowing the other.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		b.addBundle(bundle)
	}
}

func (b *registryBuilder) addBundle(bundle HostFuncBundle) {
	if c, ok := bundle.(*compositeBundle); ok {
		for _, part := range c.bundles {
			b.addBundle(part)
		}
		return
	}
	names := make([]string, 0)
	handlers := bundle.Handlers()
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.addHandler(name, handlers[name]); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithHandler registers a typed host function with automatic JSON handling.
// The handler will be wrapped with NewJSONHandler for JSON serialization.
//
// Example usage:
//
//	WithHandler("custom_func", func(ctx context.Context, req MyRequest) MyResponse {
//	    return MyResponse{Result: req.Input}
//	})
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		handler := NewJSONHandler(fn)
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}
