package hostfuncs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// HostFunc is a generic function signature for host functions.
// It accepts a context and a typed request, and returns a typed response.
type HostFunc[Req any, Resp any] func(context.Context, Req) Resp

// ByteHandler is a function that accepts raw bytes (JSON) and returns raw bytes (JSON).
// This is the common interface that WASM runtimes and the bridge can easily use.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// validate is shared by all handlers; validator caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NewJSONHandler wraps a typed HostFunc into a ByteHandler.
// It unmarshals the request, checks its `validate` struct tags, and
// marshals the response. Malformed or invalid requests produce an
// ErrorResponse instead of a Go error so callers always get JSON back.
//
// Usage:
//
//	md5Handler := hostfuncs.NewJSONHandler(func(ctx context.Context, req hostfuncs.MD5Request) hostfuncs.MD5Response {
//	    return hostfuncs.PerformMD5(ctx, req)
//	})
//
//	respBytes, err := md5Handler(ctx, []byte(`{"files":["DESCRIPTION"]}`))
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return NewValidationError("failed to unmarshal request: " + err.Error()).ToJSON(), nil
			}
		}
		if err := validateRequest(req); err != nil {
			return NewValidationError(err.Error()).ToJSON(), nil
		}

		resp := fn(ctx, req)

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}

		return respBytes, nil
	}
}

// NewNoArgHandler wraps a function without a request. The payload is ignored.
func NewNoArgHandler[Resp any](fn func(context.Context) Resp) ByteHandler {
	return func(ctx context.Context, _ []byte) ([]byte, error) {
		respBytes, err := json.Marshal(fn(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return respBytes, nil
	}
}

// validateRequest runs struct validation on req. Non-struct requests pass.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}
	return err
}
