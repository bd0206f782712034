// Package apperr defines the structured error taxonomy shared by components and the RPC path.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

// Category groups errors by the kind of failure.
type Category string

const (
	CategoryUnknown          Category = "Unknown"
	CategoryInternal         Category = "Internal"
	CategoryMisconfiguration Category = "Misconfiguration"
	CategoryNoResponse       Category = "NoResponse"
	CategoryFailedInvocation Category = "FailedInvocation"
	CategoryBadRequest       Category = "BadRequest"
	CategoryNotFound         Category = "NotFound"
	CategoryConflict         Category = "Conflict"
	CategoryUnauthorized     Category = "Unauthorized"
)

// Error is a structured application error.
type Error struct {
	Category Category
	Code     string
	Message  string
	TraceID  string
	Status   int
	Details  map[string]string
	Cause    error
	Stack    string
}

// New creates an Error with the given category, code and message.
func New(category Category, traceID, code, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		TraceID:  traceID,
		Status:   statusFor(category),
	}
}

// Error formats the code, message and cause.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails adds a detail entry and returns the same error.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = fmt.Sprint(value)
	return e
}

// WithCause sets the wrapped cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithTraceID sets the trace id.
func (e *Error) WithTraceID(traceID string) *Error {
	e.TraceID = traceID
	return e
}

// WithStatus overrides the status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithStack sets the stack trace text. An empty value captures the current stack.
func (e *Error) WithStack(stack string) *Error {
	if stack == "" {
		stack = string(debug.Stack())
	}
	e.Stack = stack
	return e
}

// Is matches another *Error by category and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// NewConfigError reports invalid or missing configuration.
func NewConfigError(traceID, code, message string) *Error {
	return New(CategoryMisconfiguration, traceID, code, message)
}

// NewReferenceError reports that a required dependency could not be located.
func NewReferenceError(traceID string, locator any) *Error {
	return New(CategoryInternal, traceID, "REF_ERROR", fmt.Sprintf("Failed to obtain reference to %v", locator)).
		WithDetails("locator", locator)
}

// NewCreateError reports that a factory could not build a component.
func NewCreateError(traceID string, locator any) *Error {
	return New(CategoryInternal, traceID, "CANNOT_CREATE", fmt.Sprintf("Requested component %v cannot be created", locator)).
		WithDetails("locator", locator)
}

// NewConnectionError reports a transport or bind failure.
func NewConnectionError(traceID, code, message string) *Error {
	return New(CategoryNoResponse, traceID, code, message)
}

// NewInvocationError reports a failure while executing a call.
func NewInvocationError(traceID, code, message string) *Error {
	return New(CategoryFailedInvocation, traceID, code, message)
}

// NewBadRequestError reports invalid input from the caller.
func NewBadRequestError(traceID, code, message string) *Error {
	return New(CategoryBadRequest, traceID, code, message)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(traceID, code, message string) *Error {
	return New(CategoryNotFound, traceID, code, message)
}

// NewConflictError reports a state conflict.
func NewConflictError(traceID, code, message string) *Error {
	return New(CategoryConflict, traceID, code, message)
}

// NewUnauthorizedError reports a missing or invalid credential.
func NewUnauthorizedError(traceID, code, message string) *Error {
	return New(CategoryUnauthorized, traceID, code, message)
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(traceID, code, message string) *Error {
	return New(CategoryInternal, traceID, code, message)
}

// NewUnknownError wraps an error of unknown origin.
func NewUnknownError(traceID, code, message string) *Error {
	return New(CategoryUnknown, traceID, code, message)
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCategory reports whether the first *Error in the chain has the category.
func IsCategory(err error, category Category) bool {
	e, ok := As(err)
	return ok && e.Category == category
}

// HasCode reports whether the first *Error in the chain has the code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func statusFor(category Category) int {
	switch category {
	case CategoryBadRequest:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
