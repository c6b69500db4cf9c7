package hostfuncs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware wraps each invocation in a span named "hostfunc <name>".
// Rejected calls and calls whose response carries an error end with an
// error status; the number of failed batch items is recorded as an attribute.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			name := functionName(ctx)
			attrs := []attribute.KeyValue{
				attribute.String("rtools.function", name),
				attribute.Int("rtools.request_size", len(payload)),
			}
			hc, isHost := ctx.(HostContext)
			if isHost {
				attrs = append(attrs, attribute.String("rtools.request_id", hc.RequestID()))
			}

			spanCtx, span := tracer.Start(ctx, "hostfunc "+name, trace.WithAttributes(attrs...))
			defer span.End()
			if isHost {
				spanCtx = rebase(hc, spanCtx)
			}

			resp, err := next(spanCtx, payload)
			status := callStatus(resp, err)
			span.SetAttributes(
				attribute.String("rtools.status", status),
				attribute.Int("rtools.item_failures", len(itemFailures(resp))),
			)
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case status != statusOK:
				span.SetStatus(codes.Error, status)
			default:
				span.SetStatus(codes.Ok, "")
			}
			return resp, err
		}
	}
}
