package host

import (
	"io"
	"log/slog"

	"github.com/reglet-dev/rtools-bridge/hostfuncs"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithHostFunctions configures the executor with a host function registry.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithLogger sets the logger for plugin log records and host errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxRequestSize bounds the request a plugin may pass to a host function.
func WithMaxRequestSize(n uint32) Option {
	return func(e *Executor) {
		e.maxRequestSize = n
	}
}

// WithOutput connects plugin stdout and stderr. Nil discards.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout, e.stderr = stdout, stderr
	}
}
