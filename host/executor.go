package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/reglet-dev/rtools-bridge/hostfuncs"
	rtwazero "github.com/reglet-dev/rtools-bridge/infrastructure/wazero"
)

// Executor manages the lifecycle of WASM plugins.
type Executor struct {
	runtime        wazero.Runtime
	registry       *hostfuncs.HandlerRegistry
	logger         *slog.Logger
	stdout, stderr io.Writer
	maxRequestSize uint32
}

// NewExecutor creates a runtime with WASI and the host function module.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		reg, err := hostfuncs.NewRegistry(
			hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
			hostfuncs.WithBundle(hostfuncs.AllBundles()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	err := rtwazero.RegisterWithRuntime(ctx, rt, e.registry,
		rtwazero.WithLogger(e.logger),
		rtwazero.WithMaxRequestSize(e.maxRequestSize),
	)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}
	e.runtime = rt
	return e, nil
}

// Close releases the runtime and every plugin loaded into it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Executor) moduleConfig(name string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().WithName(name)
	if e.stdout != nil {
		cfg = cfg.WithStdout(e.stdout)
	}
	if e.stderr != nil {
		cfg = cfg.WithStderr(e.stderr)
	}
	return cfg
}

// Run executes a WASI command plugin to completion. A non-zero exit status
// is returned as an *ExitError.
func (e *Executor) Run(ctx context.Context, name string, wasmBytes []byte, args ...string) error {
	cfg := e.moduleConfig(name).WithArgs(append([]string{name}, args...)...)
	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Plugin: name, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("run %s: %w", name, err)
	}
	return mod.Close(ctx)
}

// ExitError reports a plugin that exited with a non-zero status.
type ExitError struct {
	Plugin string
	Code   uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("plugin %s exited with status %d", e.Plugin, e.Code)
}

// PluginInstance is an instantiated reactor plugin.
type PluginInstance struct {
	module api.Module
}

// LoadPlugin instantiates a reactor plugin without running _start and calls
// its _initialize export if present.
func (e *Executor) LoadPlugin(ctx context.Context, name string, wasmBytes []byte) (*PluginInstance, error) {
	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, e.moduleConfig(name).WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}
	return &PluginInstance{module: mod}, nil
}

// Name returns the module name.
func (p *PluginInstance) Name() string { return p.module.Name() }

// Close releases the plugin.
func (p *PluginInstance) Close(ctx context.Context) error { return p.module.Close(ctx) }

// Call passes input to an export with signature (i64) -> i64 using the same
// packed pointer/length convention as host functions, and returns the bytes
// the export points to.
func (p *PluginInstance) Call(ctx context.Context, export string, input []byte) ([]byte, error) {
	f := p.module.ExportedFunction(export)
	if f == nil {
		return nil, fmt.Errorf("export %q not found", export)
	}

	var packed uint64
	if len(input) > 0 {
		ptr, err := p.write(ctx, input)
		if err != nil {
			return nil, err
		}
		packed = uint64(ptr)<<32 | uint64(len(input))
	}

	results, err := f.Call(ctx, packed)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", export, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return p.read(results[0])
}

func (p *PluginInstance) write(ctx context.Context, data []byte) (uint32, error) {
	allocate := p.module.ExportedFunction("allocate")
	if allocate == nil {
		return 0, fmt.Errorf("guest does not export 'allocate'")
	}
	res, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}
	ptr := uint32(res[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if !p.module.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write input to guest memory")
	}
	return ptr, nil
}

func (p *PluginInstance) read(packed uint64) ([]byte, error) {
	ptr, length := uint32(packed>>32), uint32(packed) //nolint:gosec // G115: packed 32-bit halves
	if ptr == 0 || length == 0 {
		return nil, fmt.Errorf("null response from plugin")
	}
	data, ok := p.module.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("failed to read response from memory")
	}
	return append([]byte(nil), data...), nil
}
