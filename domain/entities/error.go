package entities

import "fmt"

// Error types carried in ErrorDetail.Type. These are the categories the host
// interpreter recognises when it turns a condition value into an R condition.
const (
	ErrorTypeInvalidArgument  = "invalid_argument"
	ErrorTypeOS               = "os"
	ErrorTypeFileNotFound     = "file_not_found"
	ErrorTypeIO               = "io"
	ErrorTypePermissionDenied = "permission_denied"
	ErrorTypeParse            = "parse"
	ErrorTypeInternal         = "internal"
)

// ErrorDetail provides structured error information.
// It is the payload of a condition Value and the wire format of per-item failures.
type ErrorDetail struct {
	// Wrapped contains a wrapped error for error chains.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details contains additional error context (path, pid, line, column).
	Details map[string]any `json:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error, one of the ErrorType constants.
	Type string `json:"type"`

	// Code is a machine-readable error code, usually the failing operation.
	Code string `json:"code"`

	// IsNotFound indicates the target (file, process) does not exist.
	IsNotFound bool `json:"is_not_found,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != ErrorTypeInternal {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails attaches details and returns the receiver.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode attaches a code and returns the receiver.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
