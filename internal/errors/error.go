package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryUpload     Category = "upload"
	CategoryDisplay    Category = "display"
	CategoryConfig     Category = "config"
	CategoryDiscovery  Category = "discovery"
	CategoryArchive    Category = "archive"
	CategoryCLI        Category = "cli"
)

// Sentinels for errors.Is. They are matched by code, so a LensError built
// with New("L001") and later decorated still matches ErrNoFileSelected.
// Never call the With* builders on these values.
var (
	ErrNoFileSelected = New("L001")
	ErrTooLarge       = New("L002")
	ErrNotOpen        = New("L010")
	ErrClosed         = New("L011")
	ErrQueueFull      = New("L012")
	ErrConnectFailed  = New("L013")
	ErrSendFailed     = New("L014")
	ErrBlobNotFound   = New("L020")
)

// LensError is a structured error with a stable code, a hint and documentation.
type LensError struct {
	// Code is a unique error identifier (e.g., "L001").
	Code string

	// Category is the error type (connection, upload, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *LensError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *LensError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a LensError with the same code.
func (e *LensError) Is(target error) bool {
	t, ok := target.(*LensError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// WithSuggestion adds a fix suggestion to the error.
func (e *LensError) WithSuggestion(s string) *LensError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *LensError) WithDetail(d string) *LensError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *LensError) Wrap(err error) *LensError {
	e.Wrapped = err
	return e
}

// New creates a LensError from a registered error code.
func New(code string) *LensError {
	template, ok := registry[code]
	if !ok {
		return &LensError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &LensError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new LensError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *LensError {
	return &LensError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a LensError.
func FromError(err error, code string) *LensError {
	if err == nil {
		return nil
	}
	var le *LensError
	if stderrors.As(err, &le) {
		return le
	}
	return New(code).Wrap(err)
}

// Is is errors.Is, re-exported so callers importing this package under the
// name "errors" keep access to the standard helpers.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// CodeOf returns the code of the first LensError in err's chain, or "".
func CodeOf(err error) string {
	var le *LensError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ""
}
