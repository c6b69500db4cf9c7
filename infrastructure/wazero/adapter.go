package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/rtools-bridge/hostfuncs"
	rlog "github.com/reglet-dev/rtools-bridge/log"
)

// DefaultModuleName is the host module guests import from.
const DefaultModuleName = "r_tools"

// LogFunctionName is the export through which guests send log records.
const LogFunctionName = "log_message"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives adapter errors and guest log records.
	Logger *slog.Logger

	// ModuleName is the host module name (default: DefaultModuleName).
	ModuleName string

	// CustomHandlers are exported in addition to the registry functions.
	CustomHandlers []CustomHandler

	// MaxRequestSize limits the size of requests read from guest memory.
	MaxRequestSize uint32

	// DisableGuestLog omits the log_message export.
	DisableGuestLog bool
}

// CustomHandler is a wazero function that does not follow the packed i64
// request/response convention.
type CustomHandler struct {
	Handler     api.GoModuleFunc
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size read from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		if size > 0 {
			c.MaxRequestSize = size
		}
	}
}

// WithLogger sets the logger for adapter errors and guest log records.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithoutGuestLog omits the log_message export.
func WithoutGuestLog() AdapterOption {
	return func(c *AdapterConfig) {
		c.DisableGuestLog = true
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Logger:         slog.Default(),
		ModuleName:     DefaultModuleName,
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
}

// RegisterWithRuntime exports every function in registry from a host module
// of runtime.
//
// Each export takes and returns one i64 packing a guest pointer (high 32
// bits) and length (low 32 bits). The request is read from guest memory,
// passed to the registry, and the response is written to memory obtained
// from the guest's "allocate" export. A zero result means the response
// could not be delivered.
//
// Unless disabled, a log_message(i64) export replays guest log records,
// encoded as log.MessageWire, into the configured logger.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	if registry == nil {
		return fmt.Errorf("wazero: registry is nil")
	}
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	for _, name := range registry.Names() {
		funcName := name
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleRegistryCall(ctx, mod, stack, registry, funcName, cfg)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(funcName)
	}

	if !cfg.DisableGuestLog && !registry.Has(LogFunctionName) {
		logger := cfg.Logger
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleGuestLog(ctx, mod, stack, logger, cfg.MaxRequestSize)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
			Export(LogFunctionName)
	}

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

func handleRegistryCall(ctx context.Context, mod api.Module, stack []uint64, registry *hostfuncs.HandlerRegistry, name string, cfg AdapterConfig) {
	ptr, length := unpackPtrLen(stack[0])

	if length > cfg.MaxRequestSize {
		errMsg := fmt.Sprintf("request size %d exceeds maximum %d bytes", length, cfg.MaxRequestSize)
		cfg.Logger.ErrorContext(ctx, "wazero: "+errMsg, "function", name)
		stack[0] = writeResponse(ctx, mod, cfg.Logger, hostfuncs.NewValidationError(errMsg).ToJSON())
		return
	}

	requestBytes, ok := mod.Memory().Read(ptr, length)
	if !ok {
		errMsg := "failed to read request from guest memory"
		cfg.Logger.ErrorContext(ctx, "wazero: "+errMsg, "function", name)
		stack[0] = writeResponse(ctx, mod, cfg.Logger, hostfuncs.NewInternalError(errMsg).ToJSON())
		return
	}

	ctx = WithPluginName(ctx, GetPluginName(ctx, mod))
	responseBytes, err := registry.Invoke(ctx, name, requestBytes)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: handler invocation failed", "function", name, "error", err)
		stack[0] = writeResponse(ctx, mod, cfg.Logger, hostfuncs.NewInternalError(err.Error()).ToJSON())
		return
	}

	stack[0] = writeResponse(ctx, mod, cfg.Logger, responseBytes)
}

func handleGuestLog(ctx context.Context, mod api.Module, stack []uint64, logger *slog.Logger, maxSize uint32) {
	ptr, length := unpackPtrLen(stack[0])
	if length > maxSize {
		logger.WarnContext(ctx, "wazero: guest log message too large", "size", length)
		return
	}
	payload, ok := mod.Memory().Read(ptr, length)
	if !ok {
		logger.WarnContext(ctx, "wazero: failed to read guest log message")
		return
	}
	rlog.Replay(ctx, logger, payload, slog.String("plugin", GetPluginName(ctx, mod)))
}

// writeResponse copies data into memory allocated by the guest and returns
// its packed location, or 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, logger *slog.Logger, data []byte) uint64 {
	allocateFn := mod.ExportedFunction("allocate")
	if allocateFn == nil {
		logger.ErrorContext(ctx, "wazero: guest module missing 'allocate' export")
		return 0
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		logger.ErrorContext(ctx, "wazero: failed to call guest allocate", "error", err)
		return 0
	}
	if len(results) == 0 {
		logger.ErrorContext(ctx, "wazero: guest allocate returned nothing")
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		logger.ErrorContext(ctx, "wazero: failed to write response to guest memory")
		return 0
	}

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by guest memory
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}
