package hostfuncs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/reglet-dev/rtools-bridge/metrics"
)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	timing := func(next ByteHandler) ByteHandler {
//	    return func(ctx context.Context, payload []byte) ([]byte, error) {
//	        start := time.Now()
//	        defer func() { fmt.Println(time.Since(start)) }()
//	        return next(ctx, payload)
//	    }
//	}
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware returns a middleware that catches panics and converts
// them to structured ErrorResponse JSON instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil // Return JSON error, not Go error
				}
			}()
			return next(ctx, payload)
		}
	}
}

// SlogMiddleware logs each invocation at debug level and failures at warn.
// A nil logger uses slog.Default().
func SlogMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			attrs := []any{slog.String("function", functionName(ctx))}
			if hc, ok := ctx.(HostContext); ok {
				attrs = append(attrs, slog.String("request_id", hc.RequestID()))
			}
			start := time.Now()
			resp, err := next(ctx, payload)
			attrs = append(attrs, slog.Duration("duration", time.Since(start)))

			switch status := callStatus(resp, err); status {
			case statusOK:
				logger.DebugContext(ctx, "host function completed", attrs...)
			default:
				if err != nil {
					attrs = append(attrs, slog.Any("error", err))
				}
				logger.WarnContext(ctx, "host function failed", append(attrs, slog.String("status", status))...)
			}
			return resp, err
		}
	}
}

// MetricsMiddleware records call counts and latencies, plus one failure
// per failed item of a batch response.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			name := functionName(ctx)
			m.RecordCall(name, callStatus(resp, err), time.Since(start))
			if err == nil {
				for _, typ := range itemFailures(resp) {
					m.RecordItemFailure(name, typ)
				}
			}
			return resp, err
		}
	}
}

// AllowListMiddleware rejects every function not named in allowed with a
// FORBIDDEN ErrorResponse. An empty list allows everything.
func AllowListMiddleware(allowed ...string) Middleware {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if len(set) > 0 {
				name := functionName(ctx)
				if _, ok := set[name]; !ok {
					return NewForbiddenError(name).ToJSON(), nil
				}
			}
			return next(ctx, payload)
		}
	}
}

const (
	statusOK       = "ok"
	statusError    = "error"
	statusRejected = "rejected"
)

// callStatus classifies a handler result: "rejected" for an ErrorResponse,
// "error" for a Go error or a response carrying an error detail, else "ok".
func callStatus(resp []byte, err error) string {
	if err != nil {
		return statusError
	}
	if _, ok := IsErrorResponse(resp); ok {
		return statusRejected
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(resp, &envelope) == nil && len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return statusError
	}
	return statusOK
}

// itemFailures returns the error type of every failed element found in the
// top-level arrays of a batch response.
func itemFailures(resp []byte) []string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(resp, &fields) != nil {
		return nil
	}
	var out []string
	for _, raw := range fields {
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var items []struct {
			Error *struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &items) != nil {
			continue
		}
		for _, it := range items {
			if it.Error != nil {
				out = append(out, it.Error.Type)
			}
		}
	}
	return out
}
