package hostfuncs

import (
	"context"
	"sync"

	"github.com/reglet-dev/rtools-bridge/internal/requestid"
)

// HostContext wraps a standard context.Context with host function-specific helpers.
// It provides access to the invoked function name and allows middleware to store
// request-scoped values without polluting the standard context.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the host function being invoked.
	FunctionName() string

	// RequestID returns a sortable identifier unique to this invocation.
	RequestID() string

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing HostContext for performance.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	values    map[any]any
	funcName  string
	requestID string
	mu        sync.RWMutex
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{
		Context:   ctx,
		funcName:  funcName,
		requestID: requestid.New(),
		values:    make(map[any]any),
	}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) RequestID() string {
	return c.requestID
}

func (c *hostContext) SetValue(key, value any) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

func (c *hostContext) GetValue(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom extracts a HostContext from a context.Context.
// If the context is already a HostContext for the same function, it is
// returned directly. Otherwise, a new HostContext is created wrapping ctx.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

// functionName returns the invoked function name, or "unknown".
func functionName(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.FunctionName()
	}
	return "unknown"
}

// rebase returns a HostContext that reports hc's function, request ID and
// values but carries ctx, so middleware can derive contexts without losing
// the host function identity.
func rebase(hc HostContext, ctx context.Context) HostContext {
	return &rebasedContext{Context: ctx, hc: hc}
}

type rebasedContext struct {
	context.Context
	hc HostContext
}

func (c *rebasedContext) FunctionName() string { return c.hc.FunctionName() }
func (c *rebasedContext) RequestID() string { return c.hc.RequestID() }
func (c *rebasedContext) SetValue(key, value any) { c.hc.SetValue(key, value) }
func (c *rebasedContext) GetValue(key any) (any, bool) { return c.hc.GetValue(key) }
