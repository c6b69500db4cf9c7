// Package errors provides the bridge error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is(),
// and convert to the ErrorDetail carried by host condition values.
package errors

import (
	stdErrors "errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is implemented by error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface to be understood by ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    entities.ErrorTypeInternal,
	}
}

// InvalidArgumentError reports a host value of the wrong type, length or content.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	if e.Argument != "" {
		return fmt.Sprintf("invalid argument '%s': %s", e.Argument, e.Reason)
	}
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *InvalidArgumentError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: entities.ErrorTypeInvalidArgument, Code: e.Argument}
}

// OSError represents a failed system call that fits no narrower category.
type OSError struct {
	Err       error
	Operation string
	Path      string
}

func (e *OSError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *OSError) ToErrorDetail() *entities.ErrorDetail {
	return withPath(&entities.ErrorDetail{Message: e.Error(), Type: entities.ErrorTypeOS, Code: e.Operation}, e.Path)
}

// FileNotFoundError reports a missing file or, for process operations, a missing pid.
type FileNotFoundError struct {
	Err       error
	Operation string
	Path      string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("%s: no such file or process '%s'", e.Operation, e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *FileNotFoundError) ToErrorDetail() *entities.ErrorDetail {
	d := withPath(&entities.ErrorDetail{Message: e.Error(), Type: entities.ErrorTypeFileNotFound, Code: e.Operation}, e.Path)
	d.IsNotFound = true
	return d
}

// IOError represents a read or write failure on an open file.
type IOError struct {
	Err       error
	Operation string
	Path      string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed on '%s': %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *IOError) ToErrorDetail() *entities.ErrorDetail {
	return withPath(&entities.ErrorDetail{Message: e.Error(), Type: entities.ErrorTypeIO, Code: e.Operation}, e.Path)
}

// PermissionDeniedError reports EPERM/EACCES.
type PermissionDeniedError struct {
	Err       error
	Operation string
	Path      string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: permission denied for '%s'", e.Operation, e.Path)
}

func (e *PermissionDeniedError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *PermissionDeniedError) ToErrorDetail() *entities.ErrorDetail {
	return withPath(&entities.ErrorDetail{Message: e.Error(), Type: entities.ErrorTypePermissionDenied, Code: e.Operation}, e.Path)
}

// ParseError represents a syntax error in a parsed document or format string.
// Line and Column are 1-based; zero means unknown.
type ParseError struct {
	Source  string
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", src, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", src, e.Message)
}

// ToErrorDetail implements DetailedError.
func (e *ParseError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    entities.ErrorTypeParse,
		Code:    "parse",
		Details: map[string]any{"line": e.Line, "column": e.Column},
	}
}

// Classify wraps a raw OS error into the taxonomy.
// Not-exist and ESRCH become FileNotFoundError, EPERM/EACCES become
// PermissionDeniedError, everything else is an OSError.
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var de DetailedError
	if stdErrors.As(err, &de) {
		return err
	}
	switch {
	case stdErrors.Is(err, fs.ErrNotExist), stdErrors.Is(err, syscall.ESRCH):
		return &FileNotFoundError{Operation: op, Path: path, Err: err}
	case stdErrors.Is(err, fs.ErrPermission), stdErrors.Is(err, syscall.EPERM):
		return &PermissionDeniedError{Operation: op, Path: path, Err: err}
	default:
		return &OSError{Operation: op, Path: path, Err: err}
	}
}

// ClassifyIO is Classify for errors raised while reading or writing an
// already opened file: unknown failures become IOError instead of OSError.
func ClassifyIO(op, path string, err error) error {
	c := Classify(op, path, err)
	var osErr *OSError
	if stdErrors.As(c, &osErr) {
		return &IOError{Operation: op, Path: path, Err: err}
	}
	return c
}

func withPath(d *entities.ErrorDetail, path string) *entities.ErrorDetail {
	if path != "" {
		d.Details = map[string]any{"path": path}
	}
	return d
}
