package hostfuncs

import (
	"encoding/json"
)

// ErrorResponse represents a structured error returned as JSON when a call
// cannot be dispatched at all. Failures of the operation itself are carried
// in the typed response (entities.ErrorDetail) instead.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "INTERNAL_ERROR").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Code:    400,
	}
}

// NewForbiddenError creates an error response for functions the caller may not invoke.
func NewForbiddenError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   "FORBIDDEN",
		Message: "host function not allowed: " + name,
		Code:    403,
	}
}

// NewNotFoundError creates an error response for unknown handler names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   "NOT_FOUND",
		Message: "unknown host function: " + name,
		Code:    404,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "panic: " + msg,
		Code:    500,
	}
}

// IsErrorResponse reports whether payload is an ErrorResponse and returns it.
func IsErrorResponse(payload []byte) (ErrorResponse, bool) {
	var envelope struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ErrorResponse{}, false
	}
	s, ok := envelope.Error.(string)
	if !ok || s == "" || envelope.Code == 0 {
		return ErrorResponse{}, false
	}
	return ErrorResponse{Error: s, Message: envelope.Message, Code: envelope.Code}, true
}
