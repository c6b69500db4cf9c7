// Package bridge exposes the native entry points of R's tools package as a
// fixed table of slots taking and returning host values.
//
// Each slot converts its arguments into a typed hostfuncs request, invokes
// the corresponding host function through a HandlerRegistry (so registry
// middleware such as logging, metrics and allow-lists applies), and
// converts the response back into one host value. Failures never escape as
// Go errors: a single-target failure is returned as a condition value and
// per-item failures are attached to the result as an "errors" attribute.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
)

// SlotFunc implements one native entry point. len(args) equals the slot arity.
type SlotFunc func(ctx context.Context, args []entities.Value) entities.Value

// Slot maps an exported symbol to its implementation.
type Slot struct {
	Fn SlotFunc

	// Name is the exported symbol, e.g. "Rmd5".
	Name string

	// Function is the host function the slot dispatches to.
	Function string

	// Args names the positional arguments; len(Args) is the arity.
	Args []string

	// Request is a zero value of the typed request sent to Function, used
	// for schema generation. Nil for functions without a request.
	Request any
}

// Arity is the fixed number of arguments.
func (s Slot) Arity() int { return len(s.Args) }

// Bridge is an immutable slot table. It is safe for concurrent use.
type Bridge struct {
	reg      *hostfuncs.HandlerRegistry
	logger   *slog.Logger
	slots    map[string]Slot
	names    []string
	tabWidth int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for verbose parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTabWidth sets the tab stop interval used by doTabExpand.
func WithTabWidth(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.tabWidth = n
		}
	}
}

// New builds the slot table over reg. Every host function a slot dispatches
// to must be registered.
func New(reg *hostfuncs.HandlerRegistry, opts ...Option) (*Bridge, error) {
	if reg == nil {
		return nil, fmt.Errorf("bridge: registry is nil")
	}
	b := &Bridge{
		reg:      reg,
		logger:   slog.Default(),
		tabWidth: hostfuncs.DefaultTabWidth,
	}
	for _, opt := range opts {
		opt(b)
	}

	table := b.table()
	b.slots = make(map[string]Slot, len(table))
	for _, s := range table {
		if _, dup := b.slots[s.Name]; dup {
			return nil, fmt.Errorf("bridge: duplicate slot %q", s.Name)
		}
		if !reg.Has(s.Function) {
			return nil, fmt.Errorf("bridge: slot %s needs host function %q, which is not registered", s.Name, s.Function)
		}
		b.slots[s.Name] = s
		b.names = append(b.names, s.Name)
	}
	sort.Strings(b.names)
	return b, nil
}

// NewDefault builds a bridge over a registry holding all built-in bundles.
func NewDefault(opts ...Option) (*Bridge, error) {
	reg, err := hostfuncs.NewRegistry(
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
		hostfuncs.WithBundle(hostfuncs.AllBundles()),
	)
	if err != nil {
		return nil, err
	}
	return New(reg, opts...)
}

// Names returns the exported symbols in sorted order.
func (b *Bridge) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Lookup returns the slot for name.
func (b *Bridge) Lookup(name string) (Slot, bool) {
	s, ok := b.slots[name]
	return s, ok
}

// Call invokes the slot name. Unknown symbols and arity mismatches are
// returned as InvalidArgument conditions.
func (b *Bridge) Call(ctx context.Context, name string, args ...entities.Value) entities.Value {
	s, ok := b.slots[name]
	if !ok {
		return condition(&bridgeerrors.InvalidArgumentError{Argument: "symbol", Reason: "unknown native symbol " + strconv.Quote(name)})
	}
	if len(args) != s.Arity() {
		return condition(&bridgeerrors.InvalidArgumentError{
			Argument: "args",
			Reason:   fmt.Sprintf("%s takes %d arguments, got %d", name, s.Arity(), len(args)),
		})
	}
	return s.Fn(ctx, args)
}

// condition converts err into a condition value.
func condition(err error) entities.Value {
	return entities.ConditionValue(bridgeerrors.ToErrorDetail(err))
}

// invoke sends req to the host function name and decodes the response.
// Registry-level rejections are mapped onto the error taxonomy.
func invoke[Req, Resp any](ctx context.Context, reg *hostfuncs.HandlerRegistry, name string, req Req) (Resp, *entities.ErrorDetail) {
	var resp Resp
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, internalDetail(name, err)
	}
	raw, err := reg.Invoke(ctx, name, payload)
	if err != nil {
		return resp, internalDetail(name, err)
	}
	if e, ok := hostfuncs.IsErrorResponse(raw); ok {
		return resp, rejection(name, e)
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, internalDetail(name, err)
	}
	return resp, nil
}

func internalDetail(name string, err error) *entities.ErrorDetail {
	return &entities.ErrorDetail{Type: entities.ErrorTypeInternal, Code: name, Message: err.Error()}
}

func rejection(name string, e hostfuncs.ErrorResponse) *entities.ErrorDetail {
	typ := entities.ErrorTypeInternal
	switch e.Code {
	case 400:
		typ = entities.ErrorTypeInvalidArgument
	case 403:
		typ = entities.ErrorTypePermissionDenied
	}
	return &entities.ErrorDetail{
		Type:    typ,
		Code:    name,
		Message: e.Message,
		Details: map[string]any{"error": e.Error, "status": e.Code},
	}
}
