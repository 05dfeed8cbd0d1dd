package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors used across the pipeline.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("operation timed out")

	// Annotation error taxonomy. Transient failures and malformed responses
	// are retryable; the rest abort the attempt immediately.
	ErrBudgetExceeded     = errors.New("annotation budget exceeded")
	ErrMalformedResponse  = errors.New("malformed model response")
	ErrProviderRejected   = errors.New("provider rejected request")
	ErrUnreadableDocument = errors.New("unreadable interview document")
	ErrEmptyTranscript    = errors.New("transcript produced no turns")
	ErrMarkerMissing      = errors.New("stage marker missing")
)

// Error is a structured error carrying context fields, an optional code,
// and the location it was created at.
type Error struct {
	original error
	message  string
	fields   map[string]interface{}
	file     string
	line     int

	// Code categorizes the error for reports and API responses.
	Code string
}

func newError(skip int, original error, message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(skip + 1)

	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}

	return &Error{
		original: original,
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
	}
}

// New creates a structured error with the given message.
func New(message string, fields ...map[string]interface{}) *Error {
	return newError(1, errors.New(message), message, fields...)
}

// Wrap wraps an existing error with additional context. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(1, err, message, fields...)
}

// WithField returns a copy of the error with one more context field.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	return e.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a copy of the error with the given fields merged in.
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}

	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+len(fields)),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode returns a copy of the error with the given code.
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	result := *e
	result.Code = code
	return &result
}

func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}
	if e.message == "" {
		return e.original.Error()
	}
	if e.message == e.original.Error() {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.original)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Is matches against the wrapped error chain.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if errors.Is(e.original, target) {
		return true
	}
	return e == target
}

// Location returns file:line of the error's creation site.
func (e *Error) Location() string {
	if e == nil {
		return ""
	}
	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

// GetFields returns the error's context fields.
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// AsJSON renders the error as a JSON-friendly map for API responses.
func (e *Error) AsJSON() map[string]interface{} {
	if e == nil {
		return nil
	}
	result := map[string]interface{}{
		"message":  e.Error(),
		"location": e.Location(),
	}
	if e.Code != "" {
		result["code"] = e.Code
	}
	if len(e.fields) > 0 {
		result["context"] = e.fields
	}
	return result
}

func sentinel(original error, code, message string, fields ...map[string]interface{}) *Error {
	err := newError(2, original, message, fields...)
	err.Code = code
	return err
}

// NewBudgetExceeded signals that the run's cost ceiling refuses new work.
func NewBudgetExceeded(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrBudgetExceeded, "BUDGET_EXCEEDED", message, fields...)
}

// NewMalformedResponse signals an unparseable or schema-violating model reply.
func NewMalformedResponse(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrMalformedResponse, "MALFORMED_RESPONSE", message, fields...)
}

// NewProviderRejected signals a non-retryable provider rejection (4xx).
func NewProviderRejected(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrProviderRejected, "PROVIDER_REJECTED", message, fields...)
}

// NewUnreadableDocument signals a document the loader could not ingest.
func NewUnreadableDocument(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrUnreadableDocument, "UNREADABLE_DOCUMENT", message, fields...)
}

// NewMarkerMissing signals a stage invoked before its prerequisite stage.
func NewMarkerMissing(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrMarkerMissing, "MARKER_MISSING", message, fields...)
}

// NewNotFound creates an ErrNotFound error with additional context.
func NewNotFound(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrNotFound, "NOT_FOUND", message, fields...)
}

// NewInvalidInput creates an ErrInvalidInput error with additional context.
func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	return sentinel(ErrInvalidInput, "INVALID_INPUT", message, fields...)
}

// IsRetryable reports whether an annotation attempt that failed with err
// should be retried. Budget refusals and provider rejections are permanent;
// transport failures and malformed responses are worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBudgetExceeded) || errors.Is(err, ErrProviderRejected) {
		return false
	}
	return true
}

// Is, As and Unwrap from the standard library work on *Error; these
// re-exports keep call sites on a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
