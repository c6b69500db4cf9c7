package hostfuncs

import (
	"context"
	"fmt"
	"sort"
)

// DefaultMaxRequestSize is the largest JSON request, in bytes, that the
// wazero adapter reads from guest memory unless the host config overrides
// limits.max_request_size.
const DefaultMaxRequestSize = 1 << 20

// HandlerRegistry maps host function names to their JSON handlers. It holds
// two namespaces side by side: the typed functions of the bundles in this
// package ("md5", "rd_parse", "delim_match", ...) and, when a bridge is
// registered, its symbol slots under "tools." ("tools.C_parseRd", ...).
//
// The table is fixed by NewRegistry and read without locks, so one registry
// serves the CLI, the plugin executor and every bridge call concurrently.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	names    []string
}

type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errors     []error
}

// NewRegistry builds a registry from bundles, single handlers and
// middleware. A name registered twice fails the build, including a clash
// between two parts of a composite bundle, so a bridge slot can never
// replace a typed host function.
//
// The CLI builds its registry like this:
//
//	reg, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware(), TracingMiddleware(tracer), SlogMiddleware(logger)),
//	    WithBundle(Bundles(AllBundles(), bridge)),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	reg := &HandlerRegistry{
		handlers: make(map[string]ByteHandler, len(b.handlers)),
		names:    make([]string, 0, len(b.handlers)),
	}
	for name, h := range b.handlers {
		reg.handlers[name] = chain(h, b.middleware)
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

// chain wraps h so that mw[0] runs first on the way in.
func chain(h ByteHandler, mw []Middleware) ByteHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Invoke runs the handler registered under name with a JSON request.
//
// The context reaching the handler is a HostContext naming the function, so
// middleware can log, trace and count per function; a HostContext already
// carrying a request ID for the same name is passed through unchanged. An
// unknown name is not a Go error: the caller gets a NOT_FOUND envelope, the
// same shape a guest sees for any failed call.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	h, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON(), nil
	}
	return h(HostContextFrom(ctx, name), payload)
}

// Has reports whether name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered names in sorted order. The wazero adapter
// exports one host function per name.
func (r *HandlerRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

func (b *registryBuilder) addHandler(name string, handler ByteHandler) error {
	switch {
	case name == "":
		return fmt.Errorf("handler name cannot be empty")
	case handler == nil:
		return fmt.Errorf("handler %q is nil", name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithByteHandler registers a handler that works on raw JSON. Typed
// handlers come from NewJSONHandler through WithHandler or a bundle.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware appends to the chain applied to every handler. Options
// may be given in any order; the chain is applied once all are collected.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
